package xcpindex

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// log is the package logger. Console output by default; ConfigureLogging
// adds a rotating event-log file alongside it.
var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// LogOptions configures the event log layer
type LogOptions struct {
	Level      string // trace/debug/info/warn/error
	File       string // rotating log file path, empty for console only
	MaxSizeMB  int    // rotate threshold
	MaxBackups int    // rotated files kept
}

// ConfigureLogging applies log options to the package logger
func ConfigureLogging(opts LogOptions) error {
	if opts.Level != "" {
		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		log.SetLevel(level)
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	}
	return nil
}

// Logger exposes the package logger so the CLI can share it
func Logger() *logrus.Logger {
	return log
}
