package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the output format and level of the process logger
type Options struct {
	Environment string
	Level       string
	Output      io.Writer
}

// Init configures the global logger. Production writes JSON at info level,
// everything else writes to a console writer with caller info at debug level.
// A non-empty Level overrides the environment default.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.DebugLevel
	if opts.Environment == "production" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		level = zerolog.InfoLevel
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Caller().Logger()
	}

	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = parsed
		}
	}
	log.Logger = log.Logger.Level(level)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
