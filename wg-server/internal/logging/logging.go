package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is what components log through.
type Logger = logrus.FieldLogger

type Fields = logrus.Fields

// New returns a JSON logger that tags every entry with the service name.
// An unknown level falls back to info.
func New(service, level string) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(ParseLevel(level))
	return l.WithField("service", service)
}

func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Discard returns a logger that writes nothing.
func Discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
