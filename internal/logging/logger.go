package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a JSON logger tagged with the service name. Unknown levels
// fall back to info.
func New(service, level string) zerolog.Logger {
	return NewWithWriter(os.Stdout, service, level)
}

func NewWithWriter(w io.Writer, service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
}
