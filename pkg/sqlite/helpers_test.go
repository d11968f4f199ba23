package sqlite

import (
	"database/sql/driver"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/operator-framework/sqlguard/pkg/lib/log"
)

const customerSchema = `CREATE TABLE customer(customer_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT, email TEXT, phone TEXT, address TEXT)`

func withDriver(d driver.Driver) Option {
	return func(o *options) {
		o.driver = d
	}
}

func nullLogger() logrus.FieldLogger {
	return log.Null()
}

func openTemp(t *testing.T, flags OpenFlags, opts ...Option) *Connection {
	t.Helper()
	opts = append([]Option{WithLogger(nullLogger())}, opts...)
	c, err := Open(filepath.Join(t.TempDir(), "test.db"), flags, "", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

// closeFailsDriver really closes the engine connection and then reports a
// failure, so teardown error paths can be observed.
type closeFailsDriver struct {
	sqlite3.SQLiteDriver
}

func (d *closeFailsDriver) Open(dsn string) (driver.Conn, error) {
	c, err := d.SQLiteDriver.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &closeFailsConn{Conn: c}, nil
}

type closeFailsConn struct {
	driver.Conn
}

func (c *closeFailsConn) Close() error {
	if err := c.Conn.Close(); err != nil {
		return err
	}
	return sqlite3.Error{Code: sqlite3.ErrBusy, ExtendedCode: sqlite3.ErrNoExtended(sqlite3.ErrBusy)}
}
