// Package logging builds the logrus loggers used across the daemon.
package logging

import (
	"io"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
)

// New returns a root logger at the given level (0 panic .. 6 trace) writing
// to out with the prefixed text formatter. Components derive their own entry
// with For.
func New(level int, out io.Writer) *logrus.Entry {
	logrus.ErrorKey = "$error"
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(clamp(level))

	f := new(prefixed.TextFormatter)
	f.TimestampFormat = "2006-01-02 15:04:05"
	f.FullTimestamp = true
	f.PrefixPadding = 20
	f.SpacePadding = 50
	logger.SetFormatter(f)
	return logrus.NewEntry(logger)
}

// For returns an entry tagged with a component prefix.
func For(base *logrus.Entry, prefix string) *logrus.Entry {
	return base.WithField("prefix", prefix)
}

func clamp(level int) logrus.Level {
	switch {
	case level < int(logrus.PanicLevel):
		return logrus.PanicLevel
	case level > int(logrus.TraceLevel):
		return logrus.TraceLevel
	}
	return logrus.Level(level)
}
