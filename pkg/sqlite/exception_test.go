package sqlite

import (
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionProvenance(t *testing.T) {
	e := newException("prepare", sqlite3.ErrMisuse, "statement %q is empty", "")

	require.Equal(t, "sqlite.Exception", e.Type())
	require.Equal(t, "prepare", e.Op())
	require.Equal(t, "exception_test.go", e.File())
	require.Equal(t, "sqlite.TestExceptionProvenance", e.Function())
	require.NotZero(t, e.Line())
	require.Equal(t, sqlite3.ErrMisuse, e.ResultCode())
	require.Equal(t, `statement "" is empty`, e.Message())
	require.Nil(t, e.Unwrap())
}

func TestExceptionFromEngine(t *testing.T) {
	cause := sqlite3.Error{Code: sqlite3.ErrCantOpen, ExtendedCode: sqlite3.ErrNoExtended(sqlite3.ErrCantOpen)}
	e := engineException("open", cause, "failed to open database %q", "/nowhere")

	require.Equal(t, sqlite3.ErrCantOpen, e.ResultCode())
	require.Contains(t, e.Message(), `failed to open database "/nowhere": `)
	require.Contains(t, e.Message(), cause.Error())
	require.Equal(t, cause, errors.Cause(errors.Unwrap(e)))

	var se sqlite3.Error
	require.True(t, errors.As(e, &se))
	require.Equal(t, sqlite3.ErrCantOpen, se.Code)
}

func TestExceptionFromForeignError(t *testing.T) {
	e := engineException("open", fmt.Errorf("Invalid _mutex: maybe"), "failed to open database %q", "x")
	require.Equal(t, sqlite3.ErrError, e.ResultCode())
	require.Equal(t, `failed to open database "x": Invalid _mutex: maybe`, e.Message())
}

func TestExceptionSerialization(t *testing.T) {
	e := &Exception{
		op:       "step",
		line:     42,
		function: "sqlite.(*Statement).collect",
		file:     "statement.go",
		code:     sqlite3.ErrConstraint,
		message:  `UNIQUE constraint failed: "customer.email"`,
	}

	require.Equal(t,
		`sqlite.Exception{"line": 42, "function": "sqlite.(*Statement).collect", "file": "statement.go", "resultCode": SQLITE_CONSTRAINT, "message": "UNIQUE constraint failed: \"customer.email\""}`,
		e.String())
	require.Equal(t, `UNIQUE constraint failed: "customer.email" (SQLITE_CONSTRAINT)`, e.Error())

	fields := e.Fields()
	assert.Equal(t, 42, fields["line"])
	assert.Equal(t, "SQLITE_CONSTRAINT", fields["resultCode"])
	assert.Equal(t, "step", fields["op"])
}

func TestIsCode(t *testing.T) {
	e := newException("bind", sqlite3.ErrRange, "out of range")
	wrapped := errors.Wrap(e, "binding customer")

	require.True(t, IsCode(wrapped, sqlite3.ErrRange))
	require.False(t, IsCode(wrapped, sqlite3.ErrMisuse))
	require.False(t, IsCode(errors.New("plain"), sqlite3.ErrRange))

	got, ok := AsException(wrapped)
	require.True(t, ok)
	require.Same(t, e, got)
}

func TestCodeName(t *testing.T) {
	tests := []struct {
		code sqlite3.ErrNo
		want string
	}{
		{sqlite3.ErrCantOpen, "SQLITE_CANTOPEN"},
		{sqlite3.ErrRange, "SQLITE_RANGE"},
		{sqlite3.ErrMisuse, "SQLITE_MISUSE"},
		{101, "SQLITE_DONE"},
		{77, "SQLITE_UNKNOWN(77)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, CodeName(tt.code))
		})
	}
}

func TestShortFunction(t *testing.T) {
	require.Equal(t, "sqlite.(*Statement).Execute", shortFunction("github.com/operator-framework/sqlguard/pkg/sqlite.(*Statement).Execute"))
	require.Equal(t, "main.main", shortFunction("main.main"))
}
