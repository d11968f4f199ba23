package workload

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/sqlguard/pkg/sqlite"
)

// Mode selects how reader workers get their connection.
type Mode string

const (
	// ModeShared gives every worker the same serialized connection.
	ModeShared Mode = "shared"
	// ModePerWorker gives every worker its own unsynchronized connection.
	ModePerWorker Mode = "per-worker"
)

func (m Mode) flags() sqlite.OpenFlags {
	if m == ModeShared {
		return sqlite.OpenFullMutex
	}
	return sqlite.OpenNoMutex
}

const (
	DefaultWorkers = 10
	DefaultQueries = 500

	FirstName = "John"
	LastName  = "Doe"
	Phone     = "+12345678"
	Address   = "123 Main St"

	Schema      = `CREATE TABLE customer(customer_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT, email TEXT, phone TEXT, address TEXT);`
	InsertQuery = `INSERT INTO customer(first_name, last_name, email, phone, address) VALUES (?, ?, ?, ?, ?);`
	SelectQuery = `SELECT customer_id, first_name, last_name, email, phone, address FROM customer;`
)

// Config describes one run.
type Config struct {
	// Database is the backing store. It is deleted and recreated.
	Database string
	// Emails supplies one customer row each.
	Emails []string
	// Rows limits how many emails are inserted. Zero inserts all of them.
	Rows int
	Workers int
	// Queries is the number of reads each worker issues.
	Queries int
	Mode    Mode
	// QueriesPerSecond paces each worker. Zero means unpaced.
	QueriesPerSecond float64
	// Timed reads use ExecuteTimed.
	Timed bool
	// VerifyHashes compares every row read against the populated content.
	VerifyHashes bool
	Logger       logrus.FieldLogger
}

// Complete fills in defaults.
func (c *Config) Complete() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Queries == 0 {
		c.Queries = DefaultQueries
	}
	if c.Mode == "" {
		c.Mode = ModeShared
	}
	if c.Rows == 0 {
		c.Rows = len(c.Emails)
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Database == "":
		return errors.New("database path must be set")
	case c.Database == sqlite.MemoryPath:
		return errors.New("database must be file backed so workers can share it")
	case c.Mode != ModeShared && c.Mode != ModePerWorker:
		return errors.Errorf("unknown mode %q, expected %q or %q", c.Mode, ModeShared, ModePerWorker)
	case c.Workers < 1:
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	case c.Queries < 1:
		return errors.Errorf("queries must be positive, got %d", c.Queries)
	case c.Rows < 1:
		return errors.New("at least one email is required")
	case c.Rows > len(c.Emails):
		return errors.Errorf("%d rows requested but only %d emails loaded", c.Rows, len(c.Emails))
	case c.QueriesPerSecond < 0:
		return errors.Errorf("queries per second must not be negative, got %v", c.QueriesPerSecond)
	}
	return nil
}
