package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log  zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	once sync.Once
)

// Init configures the process-wide logger. Development output is human readable,
// anything else is JSON.
func Init(environment string, debug bool) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		level := zerolog.InfoLevel
		if debug {
			level = zerolog.DebugLevel
		}

		if environment == "production" {
			log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
			return
		}

		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
		log = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	})
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

func withFields(event *zerolog.Event, keyValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprint(keyValues[i])
		}
		event = event.Interface(key, keyValues[i+1])
	}
	if len(keyValues)%2 == 1 {
		event = event.Interface("extra", keyValues[len(keyValues)-1])
	}
	return event
}

func Debug(msg string, keyValues ...interface{}) {
	withFields(log.Debug(), keyValues).Msg(msg)
}

func Info(msg string, keyValues ...interface{}) {
	withFields(log.Info(), keyValues).Msg(msg)
}

func Infof(format string, args ...interface{}) {
	log.Info().Msgf(format, args...)
}

func Warn(msg string, keyValues ...interface{}) {
	withFields(log.Warn(), keyValues).Msg(msg)
}

func Error(msg string, err error, keyValues ...interface{}) {
	withFields(log.Error().Err(err), keyValues).Msg(msg)
}

// Fatal logs the message and exits the process.
func Fatal(msg string, err error, keyValues ...interface{}) {
	withFields(log.Fatal().Err(err), keyValues).Msg(msg)
}
