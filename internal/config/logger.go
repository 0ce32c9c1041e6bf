package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger builds the process logger writing to w and installs it as the
// global zerolog logger.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(w).Level(c.LogLevel).With().Timestamp().Logger()
	log.Logger = l
	return l
}
