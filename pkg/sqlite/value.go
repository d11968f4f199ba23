package sqlite

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/mitchellh/hashstructure"
	"github.com/pkg/errors"
)

// Type tags the variant held by a Value.
type Type int

const (
	TypeInteger Type = iota + 1
	TypeFloat
	TypeText
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeText:
		return "text"
	default:
		return "invalid(" + strconv.Itoa(int(t)) + ")"
	}
}

// Value is a single decoded column value. Only the field matching Type is
// meaningful. Blob and null columns have no representation.
type Value struct {
	Type Type
	I64  int64
	F64  float64
	S    string
}

func Int64(v int64) Value     { return Value{Type: TypeInteger, I64: v} }
func Float64(v float64) Value { return Value{Type: TypeFloat, F64: v} }
func Text(v string) Value     { return Value{Type: TypeText, S: v} }

// Interface returns the held value as int64, float64 or string.
func (v Value) Interface() interface{} {
	switch v.Type {
	case TypeInteger:
		return v.I64
	case TypeFloat:
		return v.F64
	case TypeText:
		return v.S
	}
	return nil
}

func (v Value) String() string {
	switch v.Type {
	case TypeInteger:
		return strconv.FormatInt(v.I64, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case TypeText:
		return v.S
	}
	return "<" + v.Type.String() + ">"
}

// Row holds one value per result column, in statement column order.
type Row []Value

// Hash returns a content hash of the row that is stable across executions
// and connections.
func (r Row) Hash() (uint64, error) {
	return hashstructure.Hash(r, nil)
}

// ResultSet holds the rows produced by one execution, in the order the engine
// emitted them.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// ErrUnsupportedType is the cause of every DecodeError.
var ErrUnsupportedType = errors.New("unsupported column type")

// DecodeError reports a result column whose runtime type has no Value
// representation. The engine itself succeeded; the row cannot be represented.
type DecodeError struct {
	Column int
	Name   string
	Kind   string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("column %d (%q): %s %s", e.Column, e.Name, ErrUnsupportedType, e.Kind)
}

func (e *DecodeError) Unwrap() error { return ErrUnsupportedType }

// Cause lets errors.Cause reach ErrUnsupportedType.
func (e *DecodeError) Cause() error { return ErrUnsupportedType }

// decodeValue maps a value produced by the driver onto a Value. The driver
// reports integer, float and text columns as int64, float64 and string; every
// other shape is rejected.
func decodeValue(column int, name string, dv driver.Value) (Value, error) {
	switch v := dv.(type) {
	case int64:
		return Int64(v), nil
	case float64:
		return Float64(v), nil
	case string:
		return Text(v), nil
	case nil:
		return Value{}, &DecodeError{Column: column, Name: name, Kind: "null"}
	case []byte:
		return Value{}, &DecodeError{Column: column, Name: name, Kind: "blob"}
	default:
		return Value{}, &DecodeError{Column: column, Name: name, Kind: fmt.Sprintf("%T", v)}
	}
}

func decodeRow(columns []string, dest []driver.Value) (Row, error) {
	row := make(Row, len(dest))
	for i, dv := range dest {
		var name string
		if i < len(columns) {
			name = columns[i]
		}
		v, err := decodeValue(i, name, dv)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// driverValue converts a Go value accepted by Bind into the form the driver binds.
func driverValue(v interface{}) (driver.Value, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case string:
		return x, true
	case Value:
		if x.Type < TypeInteger || x.Type > TypeText {
			return nil, false
		}
		return x.Interface(), true
	}
	return nil, false
}
