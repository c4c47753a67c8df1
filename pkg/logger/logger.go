package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogMode selects the output format and verbosity of the global logger.
type LogMode string

const (
	LogModeDebug  LogMode = "debug"
	LogModePretty LogMode = "pretty"
	LogModeInfo   LogMode = "info"
	LogModeProd   LogMode = "prod"
	LogModeTest   LogMode = "test"
)

var log zerolog.Logger

// InitWithMode configures the global logger. Pretty and debug modes write a
// human-readable console stream; info and prod write JSON to stdout; test
// discards everything below the error level.
func InitWithMode(mode LogMode) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch mode {
	case LogModeDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log = consoleLogger()
	case LogModePretty:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log = consoleLogger()
	case LogModeInfo, LogModeProd:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	case LogModeTest:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log = consoleLogger()
	}

	zerolog.DefaultContextLogger = &log
}

func consoleLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// Get returns the global logger instance.
func Get() *zerolog.Logger {
	return &log
}

// WithComponent returns a logger tagged with the given component name.
func WithComponent(component string) *zerolog.Logger {
	l := log.With().Str("component", component).Logger()
	return &l
}
