package log

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Null returns an entry that discards everything written to it.
func Null() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// New returns a logger that writes warnings and errors to errOut and
// everything else to out.
func New(out, errOut io.Writer, format string, debug bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	switch format {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q, expected %q or %q", format, FormatText, FormatJSON)
	}

	logger.AddHook(&WriterHook{
		Writer:    errOut,
		LogLevels: []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel},
	})
	logger.AddHook(&WriterHook{
		Writer:    out,
		LogLevels: []logrus.Level{logrus.InfoLevel, logrus.DebugLevel, logrus.TraceLevel},
	})
	return logger, nil
}
