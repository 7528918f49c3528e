// Package row defines the row contract consumed by the document builders:
// ordered column metadata, typed cell accessors, and variable interpolation.
package row

import (
	"fmt"
	"strconv"
	"time"

	"github.com/c360/mongosink/errors"
)

// CellType identifies the declared type of a row cell.
type CellType int

// Supported cell types. TypeSerializable covers opaque values that cannot be
// stored in a document and always fail coercion.
const (
	TypeNone CellType = iota
	TypeString
	TypeBoolean
	TypeInteger
	TypeNumber
	TypeDate
	TypeBinary
	TypeBigNumber
	TypeSerializable
)

// String returns the string representation of a CellType
func (t CellType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeDate:
		return "date"
	case TypeBinary:
		return "binary"
	case TypeBigNumber:
		return "bignumber"
	case TypeSerializable:
		return "serializable"
	default:
		return "none"
	}
}

// ParseCellType maps a type name to a CellType. Unknown names map to TypeNone.
func ParseCellType(name string) CellType {
	switch name {
	case "string":
		return TypeString
	case "boolean", "bool":
		return TypeBoolean
	case "integer", "int":
		return TypeInteger
	case "number", "float":
		return TypeNumber
	case "date":
		return TypeDate
	case "binary":
		return TypeBinary
	case "bignumber":
		return TypeBigNumber
	case "serializable":
		return TypeSerializable
	default:
		return TypeNone
	}
}

// Column describes a single row column.
type Column struct {
	Name string
	Type CellType
}

// Row is an ordered tuple of cell values aligned with a Meta.
type Row []any

// Meta holds ordered column metadata for a row stream.
type Meta struct {
	columns []Column
	index   map[string]int
}

// NewMeta creates an empty row Meta.
func NewMeta() *Meta {
	return &Meta{index: make(map[string]int)}
}

// AddColumn appends a column definition. The first column registered under a
// name wins on lookup, matching source-step semantics.
func (m *Meta) AddColumn(name string, t CellType) {
	if _, exists := m.index[name]; !exists {
		m.index[name] = len(m.columns)
	}
	m.columns = append(m.columns, Column{Name: name, Type: t})
}

// Len returns the number of columns.
func (m *Meta) Len() int {
	return len(m.columns)
}

// IndexOf returns the column index for name, or -1 if absent.
func (m *Meta) IndexOf(name string) int {
	if i, ok := m.index[name]; ok {
		return i
	}
	return -1
}

// Name returns the column name at index i.
func (m *Meta) Name(i int) string {
	return m.columns[i].Name
}

// Type returns the declared cell type at index i.
func (m *Meta) Type(i int) CellType {
	return m.columns[i].Type
}

// IsNull reports whether the cell at index i is null in the given row.
// Indexes past the end of a short row are null.
func (m *Meta) IsNull(r Row, i int) bool {
	if i < 0 || i >= len(r) {
		return true
	}
	return r[i] == nil
}

// StringValue returns the cell at index i rendered as a string. Every cell
// type has a string form.
func (m *Meta) StringValue(r Row, i int) (string, error) {
	if m.IsNull(r, i) {
		return "", nil
	}
	switch v := r[i].(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// BoolValue returns the cell at index i as a boolean.
func (m *Meta) BoolValue(r Row, i int) (bool, error) {
	if m.IsNull(r, i) {
		return false, nil
	}
	switch v := r[i].(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, errors.WrapInvalid(
			fmt.Errorf("cell %d has type %T", i, r[i]), "Meta", "BoolValue", "type conversion")
	}
}

// IntValue returns the cell at index i as an int64.
func (m *Meta) IntValue(r Row, i int) (int64, error) {
	if m.IsNull(r, i) {
		return 0, nil
	}
	switch v := r[i].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("cell %d has type %T", i, r[i]), "Meta", "IntValue", "type conversion")
	}
}

// FloatValue returns the cell at index i as a float64.
func (m *Meta) FloatValue(r Row, i int) (float64, error) {
	if m.IsNull(r, i) {
		return 0, nil
	}
	switch v := r[i].(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("cell %d has type %T", i, r[i]), "Meta", "FloatValue", "type conversion")
	}
}

// DateValue returns the cell at index i as a time.Time.
func (m *Meta) DateValue(r Row, i int) (time.Time, error) {
	if m.IsNull(r, i) {
		return time.Time{}, nil
	}
	switch v := r[i].(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	default:
		return time.Time{}, errors.WrapInvalid(
			fmt.Errorf("cell %d has type %T", i, r[i]), "Meta", "DateValue", "type conversion")
	}
}

// BinaryValue returns the cell at index i as raw bytes.
func (m *Meta) BinaryValue(r Row, i int) ([]byte, error) {
	if m.IsNull(r, i) {
		return nil, nil
	}
	switch v := r[i].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cell %d has type %T", i, r[i]), "Meta", "BinaryValue", "type conversion")
	}
}

// BigNumberValue returns the cell at index i as its decimal string form.
// Callers round-trip big decimals through strings.
func (m *Meta) BigNumberValue(r Row, i int) (string, error) {
	return m.StringValue(r, i)
}
