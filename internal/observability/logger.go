package observability

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging surface the services depend on. Hiding the
// logrus entry behind it keeps the service packages free of a direct logrus
// dependency and lets tests drop in a no-op.
type Logger interface {
	Info(args ...interface{})
	Error(args ...interface{})
	Debug(args ...interface{})
	Warn(args ...interface{})
	WithField(key string, value interface{}) Logger
}

type entryLogger struct {
	entry *logrus.Entry
}

// NewLogger builds the process-wide JSON logger. The level defaults to info;
// set LOG_LEVEL=debug for per-request detail.
func NewLogger() Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	return &entryLogger{entry: logrus.NewEntry(log)}
}

func (l *entryLogger) Info(args ...interface{}) { l.entry.Info(args...) }

func (l *entryLogger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *entryLogger) Debug(args ...interface{}) { l.entry.Debug(args...) }

func (l *entryLogger) Warn(args ...interface{}) { l.entry.Warn(args...) }

// WithField returns a child logger carrying the field on every line.
func (l *entryLogger) WithField(key string, value interface{}) Logger {
	return &entryLogger{entry: l.entry.WithField(key, value)}
}
