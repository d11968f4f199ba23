package sqlite

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const exceptionType = "sqlite.Exception"

// Exception reports a single failed engine operation along with the place it
// failed. It is immutable once constructed.
type Exception struct {
	op       string
	line     int
	function string
	file     string
	code     sqlite3.ErrNo
	extended sqlite3.ErrNoExtended
	message  string
	cause    error
}

var _ error = &Exception{}

// newException builds an Exception for a failure detected by this package
// rather than reported by the engine.
func newException(op string, code sqlite3.ErrNo, format string, args ...interface{}) *Exception {
	return build(op, code, sqlite3.ErrNoExtended(code), nil, fmt.Sprintf(format, args...))
}

// engineException builds an Exception from an error returned by the driver.
// The engine's own message is appended to the formatted context.
func engineException(op string, err error, format string, args ...interface{}) *Exception {
	code, extended := sqlite3.ErrError, sqlite3.ErrNoExtended(sqlite3.ErrError)
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code != 0 {
		code, extended = se.Code, se.ExtendedCode
	}
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return build(op, code, extended, err, msg)
}

// build must be called directly by one of the constructors so the caller
// frame two levels up is the failure site.
func build(op string, code sqlite3.ErrNo, extended sqlite3.ErrNoExtended, cause error, msg string) *Exception {
	e := &Exception{
		op:       op,
		code:     code,
		extended: extended,
		message:  msg,
		cause:    cause,
	}
	if e.message == "" {
		e.message = CodeName(code)
	}
	if pc, file, line, ok := runtime.Caller(2); ok {
		e.file = filepath.Base(file)
		e.line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.function = shortFunction(fn.Name())
		}
	}
	return e
}

// shortFunction drops the import path from a fully qualified function name:
// github.com/x/y/pkg/sqlite.(*Statement).Execute becomes sqlite.(*Statement).Execute.
func shortFunction(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func (e *Exception) Type() string                        { return exceptionType }
func (e *Exception) Op() string                          { return e.op }
func (e *Exception) Line() int                           { return e.line }
func (e *Exception) Function() string                    { return e.function }
func (e *Exception) File() string                        { return e.file }
func (e *Exception) ResultCode() sqlite3.ErrNo           { return e.code }
func (e *Exception) ExtendedCode() sqlite3.ErrNoExtended { return e.extended }
func (e *Exception) Message() string                     { return e.message }

// Unwrap returns the driver error the exception was built from, if any.
func (e *Exception) Unwrap() error { return e.cause }

func (e *Exception) Error() string {
	return fmt.Sprintf("%s (%s)", e.message, CodeName(e.code))
}

// String is the canonical serialization used in logs.
func (e *Exception) String() string {
	return fmt.Sprintf(`%s{"line": %d, "function": %q, "file": %q, "resultCode": %s, "message": %q}`,
		exceptionType, e.line, e.function, e.file, CodeName(e.code), e.message)
}

// Fields returns the exception as structured log fields.
func (e *Exception) Fields() logrus.Fields {
	return logrus.Fields{
		"type":       exceptionType,
		"op":         e.op,
		"line":       e.line,
		"function":   e.function,
		"file":       e.file,
		"resultCode": CodeName(e.code),
		"message":    e.message,
	}
}

// AsException reports whether err is or wraps an *Exception.
func AsException(err error) (*Exception, bool) {
	var e *Exception
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err is an *Exception carrying the given primary code.
func IsCode(err error, code sqlite3.ErrNo) bool {
	e, ok := AsException(err)
	return ok && e.code == code
}
