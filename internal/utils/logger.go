package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// AppLogger exposes printf-style level methods over logrus.
type AppLogger struct {
	log *logrus.Logger
}

func NewAppLogger() *AppLogger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &AppLogger{log: l}
}

func (l *AppLogger) Debug(msg string, args ...interface{}) {
	l.log.Debugf(msg, args...)
}

func (l *AppLogger) Info(msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}

func (l *AppLogger) Error(msg string, args ...interface{}) {
	l.log.Errorf(msg, args...)
}

func (l *AppLogger) Fatal(msg string, args ...interface{}) {
	l.log.Fatalf(msg, args...)
}
