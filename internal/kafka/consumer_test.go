package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves a fixed batch, then blocks until the consumer stops.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
	done      chan struct{}
	want      int
}

func newFakeReader(msgs []kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, done: make(chan struct{}), want: len(msgs)}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.committed) == r.want {
		close(r.done)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kafka.Message(nil), r.committed...)
}

func run(t *testing.T, r *fakeReader, workers int, h Handler) {
	t.Helper()
	c := newConsumer(r, workers, zerolog.Nop())
	c.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(ctx, h) }()

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("messages were not all committed")
	}
	cancel()
	require.NoError(t, <-errCh)
}

func TestFailedMessageIsRetriedBeforeLaterOffsetsCommit(t *testing.T) {
	r := newFakeReader([]kafka.Message{
		{Partition: 0, Offset: 0},
		{Partition: 0, Offset: 1},
		{Partition: 0, Offset: 2},
	})
	var mu sync.Mutex
	attempts := map[int64]int{}

	run(t, r, 4, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[m.Offset]++
		if m.Offset == 1 && attempts[1] < 3 {
			return errors.New("redis: connection refused")
		}
		return nil
	})

	var offsets []int64
	for _, m := range r.commits() {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int64{0, 1, 2}, offsets)
	assert.Equal(t, 3, attempts[1])
}

func TestPermanentFailureIsCommitted(t *testing.T) {
	r := newFakeReader([]kafka.Message{{Partition: 0, Offset: 0}, {Partition: 0, Offset: 1}})
	var calls int
	run(t, r, 1, func(_ context.Context, m kafka.Message) error {
		calls++
		if m.Offset == 0 {
			return Permanent(errors.New("decode envelope"))
		}
		return nil
	})

	assert.Len(t, r.commits(), 2)
	assert.Equal(t, 2, calls)
}

func TestPartitionsKeepOffsetOrder(t *testing.T) {
	var msgs []kafka.Message
	for off := int64(0); off < 20; off++ {
		for p := 0; p < 3; p++ {
			msgs = append(msgs, kafka.Message{Partition: p, Offset: off})
		}
	}
	r := newFakeReader(msgs)

	run(t, r, 4, func(context.Context, kafka.Message) error { return nil })

	last := map[int]int64{0: -1, 1: -1, 2: -1}
	for _, m := range r.commits() {
		assert.Greater(t, m.Offset, last[m.Partition], "partition %d", m.Partition)
		last[m.Partition] = m.Offset
	}
}

func TestPermanentWrapping(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := errors.New("bad payload")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}
