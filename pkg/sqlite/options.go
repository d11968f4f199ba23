package sqlite

import (
	"database/sql/driver"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

type options struct {
	logger logrus.FieldLogger
	driver driver.Driver
}

// Option configures a Connection at open time.
type Option func(*options)

// WithLogger sets the logger used for teardown failures and timed executions.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() *options {
	return &options{
		logger: logrus.StandardLogger(),
		driver: &sqlite3.SQLiteDriver{},
	}
}
