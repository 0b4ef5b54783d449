// Package o2log provides the leveled logging interface used across
// o2core. The transport, directory and clock-sync components take a
// Logger at construction time instead of reaching for a package-level
// global.
package o2log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is implemented by anything that can receive leveled,
// printf-style diagnostics from the core. The shape mirrors what the
// rest of the ensemble expects from a drop-warning callback: cheap to
// call on the hot dispatch path, safe to pass nil-receiver fields
// around.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// logrusLogger is the default Logger, backed by logrus so the core
// gets structured, leveled output without hand-rolling a formatter.
type logrusLogger struct {
	entry *logrus.Entry
}

// New returns the default Logger, tagged with the given process name
// so multi-process tests can tell log lines apart.
func New(process string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logrusLogger{entry: l.WithField("process", process)}
}

// NewSilent returns a Logger that discards everything below error
// level; handy for tests that assert on behavior, not log noise.
func NewSilent() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return &logrusLogger{entry: l.WithField("process", "test")}
}

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }
