// Package logtrace provides logging and tracing utilities for the application.
// It integrates with zerolog for structured logging and supports request tracing.
package logtrace

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global logger. With debug the level is lowered to debug and
// records go to a human-readable console writer on stderr; otherwise records are JSON with
// Unix timestamps at info level.
func InitLogger(debug bool) {
	initLogger(os.Stderr, debug)
}

func initLogger(w io.Writer, debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
