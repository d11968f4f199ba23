package sqlite

import (
	"context"
	"database/sql/driver"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/operator-framework/sqlguard/pkg/metrics"
)

// queryStmt is the part of a driver statement used here.
type queryStmt interface {
	driver.Stmt
	driver.StmtQueryContext
}

// State is the execution state of a Statement.
type State int

const (
	StatePrepared State = iota
	StateDone
	StateFailed
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Statement is a compiled query owned by the caller and scoped to the
// Connection that prepared it. Bindings persist across executions until they
// are overwritten.
type Statement struct {
	h      *handle
	sql    string
	params int

	mu    sync.Mutex
	stmt  queryStmt
	binds map[int]driver.Value
	state State
}

// SQL returns the text the statement was prepared from.
func (s *Statement) SQL() string { return s.sql }

// ParameterCount returns the number of placeholders in the statement.
func (s *Statement) ParameterCount() int { return s.params }

func (s *Statement) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Bind sets the placeholder at the 1-based index. Accepted values are int,
// int32, int64, float32, float64, string and Value. Text is copied.
func (s *Statement) Bind(index int, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stmt == nil {
		return newException("bind", sqlite3.ErrMisuse, "failed to bind index %d of %q: statement is finalized", index, s.sql)
	}
	dv, ok := driverValue(value)
	if !ok {
		return newException("bind", sqlite3.ErrMismatch, "failed to bind %T %v at index %d of %q: unsupported type", value, value, index, s.sql)
	}
	if index < 1 || index > s.params {
		return newException("bind", sqlite3.ErrRange, "failed to bind %s %v at index %d of %q: column index out of range (statement has %d parameters)",
			bindKind(dv), dv, index, s.sql, s.params)
	}
	s.binds[index] = dv
	return nil
}

func (s *Statement) BindInt(index int, v int32) error       { return s.Bind(index, v) }
func (s *Statement) BindInt64(index int, v int64) error     { return s.Bind(index, v) }
func (s *Statement) BindFloat64(index int, v float64) error { return s.Bind(index, v) }
func (s *Statement) BindText(index int, v string) error     { return s.Bind(index, v) }

func bindKind(v driver.Value) string {
	switch v.(type) {
	case int64:
		return "int64"
	case float64:
		return "double"
	case string:
		return "text"
	}
	return "value"
}

// Execute steps the statement to completion and returns every row it produced.
func (s *Statement) Execute() (*ResultSet, error) {
	return s.execute()
}

// ExecuteTimed behaves like Execute and records how long the call took,
// whether or not it succeeded.
func (s *Statement) ExecuteTimed() (rs *ResultSet, err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		outcome := metrics.Succeeded
		if err != nil {
			outcome = metrics.Failed
			metrics.RegisterStatementFailure(elapsed)
		} else {
			metrics.RegisterStatementSuccess(elapsed)
		}
		s.h.logger.WithFields(logrus.Fields{
			metrics.Outcome: outcome,
			"duration":      elapsed,
		}).Infof("%q took %d microseconds.", s.sql, elapsed.Microseconds())
	}()
	return s.execute()
}

func (s *Statement) execute() (*ResultSet, error) {
	unlock := s.h.lock()
	defer unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stmt == nil {
		return nil, newException("execute", sqlite3.ErrMisuse, "failed to execute %q: statement is finalized", s.sql)
	}
	// the driver binds missing ordinals as NULL
	for i := 1; i <= s.params; i++ {
		if _, ok := s.binds[i]; !ok {
			s.state = StateFailed
			return nil, newException("bind", sqlite3.ErrRange, "failed to execute %q: parameter %d is not bound", s.sql, i)
		}
	}

	rows, err := s.stmt.QueryContext(context.Background(), s.namedValues())
	if err != nil {
		s.state = StateFailed
		return nil, engineException("bind", err, "failed to bind parameters of %q", s.sql)
	}

	rs, err := s.collect(rows)
	if cerr := rows.Close(); cerr != nil && err == nil {
		err = engineException("reset", cerr, "failed to reset %q", s.sql)
	}
	if err != nil {
		s.state = StateFailed
		return nil, err
	}
	s.state = StateDone
	return rs, nil
}

func (s *Statement) collect(rows driver.Rows) (*ResultSet, error) {
	rs := &ResultSet{Columns: rows.Columns()}
	dest := make([]driver.Value, len(rs.Columns))
	for {
		err := rows.Next(dest)
		if err == io.EOF {
			return rs, nil
		}
		if err != nil {
			return nil, engineException("step", err, "sqlite3_step failed for %q", s.sql)
		}
		// a row with no columns means the driver has nothing to step
		if len(dest) == 0 {
			return nil, newException("step", sqlite3.ErrMisuse, "sqlite3_step failed for %q: statement has no program", s.sql)
		}
		row, err := decodeRow(rs.Columns, dest)
		if err != nil {
			metrics.EmitDecodeFailure()
			return nil, err
		}
		rs.Rows = append(rs.Rows, row)
	}
}

func (s *Statement) namedValues() []driver.NamedValue {
	args := make([]driver.NamedValue, 0, len(s.binds))
	for i, v := range s.binds {
		args = append(args, driver.NamedValue{Ordinal: i, Value: v})
	}
	sort.Slice(args, func(i, j int) bool { return args[i].Ordinal < args[j].Ordinal })
	return args
}

// Close finalizes the statement. Closing a finalized statement is a no-op.
func (s *Statement) Close() error {
	unlock := s.h.lock()
	defer unlock()
	s.mu.Lock()
	err := s.finalizeLocked()
	s.mu.Unlock()
	s.h.forget(s)
	return err
}

// Release finalizes the statement and logs any failure instead of returning it.
func (s *Statement) Release() {
	if err := s.Close(); err != nil {
		logReleaseFailure(s.h.logger, err, "failed to release statement")
	}
}

func (s *Statement) finalizeLocked() error {
	if s.stmt == nil {
		return nil
	}
	err := s.stmt.Close()
	s.stmt = nil
	s.binds = nil
	s.state = StateFinalized
	releasedStatement()
	if err != nil {
		return engineException("finalize", err, "failed to finalize %q", s.sql)
	}
	return nil
}
