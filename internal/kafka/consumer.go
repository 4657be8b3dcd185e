package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// Handler processes one message. A nil return commits the message. An error
// wrapped with Permanent is logged and committed as well; any other error is
// retried with backoff, so a partition never commits past an unhandled
// message.
type Handler func(ctx context.Context, m kafka.Message) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as one that no retry can fix, e.g. an undecodable message.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const maxRetryBackoff = 10 * time.Second

type Consumer struct {
	r            reader
	workers      int
	retryBackoff time.Duration
	log          zerolog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, log.With().Str("component", "kafka-consumer").Str("topic", topic).Str("group", group).Logger())
}

func newConsumer(r reader, workers int, log zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, retryBackoff: 200 * time.Millisecond, log: log}
}

// Start fetches messages and fans them out to the worker pool until ctx is
// done. Every partition is pinned to one worker, which handles and commits its
// messages in offset order. A cancelled ctx is a clean exit and returns nil.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	g, gctx := errgroup.WithContext(ctx)
	jobs := make([]chan kafka.Message, c.workers)
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 256)
		in, worker := jobs[i], i
		g.Go(func() error {
			for m := range in {
				if err := c.process(gctx, h, m); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					c.log.Error().Err(err).Int("worker", worker).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("commit message")
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, ch := range jobs {
				close(ch)
			}
		}()
		for {
			m, err := c.r.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case jobs[m.Partition%c.workers] <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// process runs h until it succeeds or fails permanently, then commits m.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil || IsPermanent(err) {
			if err != nil {
				c.log.Error().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("dropping unprocessable message")
			}
			return c.r.CommitMessages(ctx, m)
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("handle message, retrying")

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if backoff *= 2; backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}
