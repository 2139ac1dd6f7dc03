package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TimestampFormat is the timestamp layout used for every log line.
const TimestampFormat = "2006-01-02 15:04:05"

// Options configures Setup.
type Options struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string
	// File is an optional log file path. Empty or "console" logs to stderr only.
	File string
	// Stderr receives console output. Defaults to os.Stderr.
	Stderr io.Writer
}

// Setup builds a logrus logger that writes to the console and, when a file
// is configured, to a rotated log file as well. The returned closer releases
// the log file and must be called before exit.
func Setup(opts Options) (*log.Logger, io.Closer, error) {
	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}

	console := opts.Stderr
	if console == nil {
		console = os.Stderr
	}

	logger := log.New()
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
		DisableColors:   true,
	})

	var closer io.Closer = nopCloser{}
	if opts.File != "" && opts.File != "console" {
		rotated := &lumberjack.Logger{
			Filename:   filepath.ToSlash(opts.File),
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}
		logger.SetOutput(io.MultiWriter(console, rotated))
		closer = rotated
	} else {
		logger.SetOutput(console)
	}

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// logrusLogger adapts a logrus entry to the Logger interface.
type logrusLogger struct {
	entry *log.Entry
}

// FromLogrus wraps a logrus logger so it satisfies Logger.
// Key-value pairs become logrus fields.
func FromLogrus(l *log.Logger) Logger {
	return &logrusLogger{entry: log.NewEntry(l)}
}

func (l *logrusLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l *logrusLogger) Info(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Info(msg)
}

func (l *logrusLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Warn(msg)
}

func (l *logrusLogger) Error(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Error(msg)
}

func (l *logrusLogger) with(keysAndValues []interface{}) *log.Entry {
	if len(keysAndValues) == 0 {
		return l.entry
	}
	return l.entry.WithFields(toFields(keysAndValues))
}

// toFields converts alternating key/value pairs to logrus fields.
// A trailing key without a value is kept under "!BADKEY".
func toFields(keysAndValues []interface{}) log.Fields {
	fields := make(log.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 >= len(keysAndValues) {
			fields["!BADKEY"] = keysAndValues[i]
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
