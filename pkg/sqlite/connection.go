package sqlite

import (
	"database/sql/driver"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/blang/semver/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// journal mode applied to every connection right after it opens
const journalPragma = "PRAGMA journal_mode=WAL;"

// write-ahead logging first shipped in 3.7.0
var minimumEngineVersion = semver.MustParse("3.7.0")

// Connection owns one open engine connection. The zero value and a connection
// that has been closed or moved from are empty: Close is a no-op and every
// other operation fails with SQLITE_MISUSE.
//
// A Connection opened with OpenFullMutex may be shared between goroutines.
// Connections opened with OpenNoMutex are meant for a single goroutine;
// calls on them are additionally serialized here.
type Connection struct {
	mu sync.Mutex
	h  *handle
}

// handle is the state shared between a connection and the statements
// prepared on it. Lock order: handle.mu, Statement.mu, handle.stmtMu.
type handle struct {
	mu     sync.RWMutex
	conn   driver.Conn
	path   string
	flags  OpenFlags
	vfs    string
	logger logrus.FieldLogger

	stmtMu sync.Mutex
	stmts  map[*Statement]struct{}
}

// Open opens the store at path and switches it to write-ahead logging. The
// vfs name may be empty to use the engine default.
func Open(path string, flags OpenFlags, vfs string, opts ...Option) (*Connection, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if v := EngineVersion(); v.LT(minimumEngineVersion) {
		return nil, newException("open", sqlite3.ErrMisuse, "engine version %s is older than %s", v, minimumEngineVersion)
	}
	if err := flags.validate(); err != nil {
		return nil, err
	}

	conn, err := o.driver.Open(flags.dsn(path, vfs))
	if err != nil {
		return nil, engineException("open", err, "failed to open database %q", path)
	}
	acquiredConnection()

	c := &Connection{h: &handle{
		conn:   conn,
		path:   path,
		flags:  flags,
		vfs:    vfs,
		logger: o.logger.WithField("database", path),
		stmts:  map[*Statement]struct{}{},
	}}
	runtime.SetFinalizer(c, (*Connection).finalize)

	rs, err := c.Exec(journalPragma)
	if err != nil {
		c.Release()
		return nil, err
	}
	if len(rs.Rows) > 0 && len(rs.Rows[0]) > 0 {
		c.h.logger.WithFields(logrus.Fields{
			"journal":   rs.Rows[0][0].String(),
			"threading": flags.ThreadingMode(),
		}).Debug("opened database")
	}
	return c, nil
}

// Path returns the path the connection was opened with, or "" when empty.
func (c *Connection) Path() string {
	if h := c.current(); h != nil {
		return h.path
	}
	return ""
}

// Flags returns the flags the connection was opened with.
func (c *Connection) Flags() OpenFlags {
	if h := c.current(); h != nil {
		return h.flags
	}
	return 0
}

// Valid reports whether the connection still owns an open engine connection.
func (c *Connection) Valid() bool {
	h := c.current()
	if h == nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conn != nil
}

func (c *Connection) current() *handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

// Move transfers ownership to a new Connection. c is left empty.
// Statements prepared on c stay valid and now belong to the result.
func (c *Connection) Move() *Connection {
	c.mu.Lock()
	h := c.h
	c.h = nil
	c.mu.Unlock()

	moved := &Connection{h: h}
	if h != nil {
		runtime.SetFinalizer(moved, (*Connection).finalize)
	}
	return moved
}

// Prepare compiles sql against this connection.
func (c *Connection) Prepare(sql string) (*Statement, error) {
	h := c.current()
	if h == nil {
		return nil, newException("prepare", sqlite3.ErrMisuse, "failed to prepare statement %q: connection is closed", sql)
	}
	return h.prepare(sql)
}

// Exec prepares sql, binds args to its placeholders in order, executes it
// once and finalizes it.
func (c *Connection) Exec(sql string, args ...interface{}) (rs *ResultSet, err error) {
	stmt, err := c.Prepare(sql)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, stmt.Close())
		if err != nil {
			rs = nil
		}
	}()

	for i, arg := range args {
		if err := stmt.Bind(i+1, arg); err != nil {
			return nil, err
		}
	}
	return stmt.Execute()
}

// Close finalizes every statement still open on the connection and then
// closes it. Closing an empty connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	h := c.h
	c.h = nil
	c.mu.Unlock()

	runtime.SetFinalizer(c, nil)
	if h == nil {
		return nil
	}
	return h.close()
}

// Release closes the connection and logs any failure instead of returning it.
func (c *Connection) Release() {
	h := c.current()
	if h == nil {
		return
	}
	if err := c.Close(); err != nil {
		logReleaseFailure(h.logger, err, fmt.Sprintf("failed to release connection to %q", h.path))
	}
}

func (c *Connection) finalize() {
	h := c.current()
	if h == nil {
		return
	}
	h.logger.Warn("connection was not closed before it became unreachable")
	c.Release()
}

func (h *handle) prepare(sql string) (*Statement, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, newException("prepare", sqlite3.ErrMisuse, "failed to prepare statement %q: empty statement", sql)
	}

	unlock := h.lock()
	defer unlock()
	if h.conn == nil {
		return nil, newException("prepare", sqlite3.ErrMisuse, "failed to prepare statement %q: connection is closed", sql)
	}

	ds, err := h.conn.Prepare(sql)
	if err != nil {
		return nil, engineException("prepare", err, "failed to prepare statement %q", sql)
	}
	qs, ok := ds.(queryStmt)
	if !ok {
		ds.Close()
		return nil, newException("prepare", sqlite3.ErrMisuse, "failed to prepare statement %q: driver statement %T cannot be queried", sql, ds)
	}

	s := &Statement{
		h:      h,
		sql:    sql,
		params: qs.NumInput(),
		stmt:   qs,
		binds:  map[int]driver.Value{},
		state:  StatePrepared,
	}
	acquiredStatement()

	h.stmtMu.Lock()
	h.stmts[s] = struct{}{}
	h.stmtMu.Unlock()
	return s, nil
}

// lock takes the handle for a call into the engine. Connections without
// engine-side locking are serialized here.
func (h *handle) lock() (unlock func()) {
	if h.flags.Has(OpenNoMutex) {
		h.mu.Lock()
		return h.mu.Unlock
	}
	h.mu.RLock()
	return h.mu.RUnlock
}

func (h *handle) forget(s *Statement) {
	h.stmtMu.Lock()
	delete(h.stmts, s)
	h.stmtMu.Unlock()
}

func (h *handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}

	h.stmtMu.Lock()
	stmts := make([]*Statement, 0, len(h.stmts))
	for s := range h.stmts {
		stmts = append(stmts, s)
	}
	h.stmts = map[*Statement]struct{}{}
	h.stmtMu.Unlock()

	var errs error
	for _, s := range stmts {
		s.mu.Lock()
		errs = multierr.Append(errs, s.finalizeLocked())
		s.mu.Unlock()
	}

	if err := h.conn.Close(); err != nil {
		errs = multierr.Append(errs, engineException("close", err, "failed to close database %q", h.path))
	}
	h.conn = nil
	releasedConnection()
	return errs
}

func logReleaseFailure(logger logrus.FieldLogger, err error, msg string) {
	for _, e := range multierr.Errors(err) {
		if ex, ok := AsException(e); ok {
			logger.WithFields(ex.Fields()).Error(msg)
			continue
		}
		logger.WithError(e).Error(msg)
	}
}

// EngineVersion returns the version of the linked engine.
func EngineVersion() semver.Version {
	return engineVersion()
}

var engineVersion = sync.OnceValue(func() semver.Version {
	lib, _, _ := sqlite3.Version()
	v, err := semver.ParseTolerant(lib)
	if err != nil {
		return semver.Version{}
	}
	return v
})
