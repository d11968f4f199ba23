package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// WriterHook writes entries of the given levels to Writer.
type WriterHook struct {
	Writer    io.Writer
	LogLevels []logrus.Level
}

func (hook *WriterHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}
	_, err = hook.Writer.Write(line)
	return err
}

func (hook *WriterHook) Levels() []logrus.Level {
	return hook.LogLevels
}
