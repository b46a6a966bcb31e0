// Package reference holds the manifest of expected items and finds the row
// that best matches a recognized label.
package reference

import (
	"errors"
	"fmt"
	"strings"
)

// Reserved column names. They are carried through to the export but never
// take part in text comparison.
const (
	ColumnID       = "ID"
	ColumnQuantity = "Quantity"
)

var (
	// ErrEmptyRow is returned when a row has no columns at all.
	ErrEmptyRow = errors.New("reference: row has no columns")
	// ErrDuplicateColumn is returned when a row names the same column twice.
	ErrDuplicateColumn = errors.New("reference: duplicate column")
)

// Field is one column of a row.
type Field struct {
	Name  string
	Value string
}

// Row is an ordered mapping of column name to value. The zero Row is the
// "no row" sentinel returned when nothing could be matched.
type Row struct {
	fields []Field
}

// NewRow builds a row from fields in column order. The fields are copied.
func NewRow(fields ...Field) (Row, error) {
	if len(fields) == 0 {
		return Row{}, ErrEmptyRow
	}
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Name]; dup {
			return Row{}, fmt.Errorf("%w %q", ErrDuplicateColumn, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return Row{fields: append([]Field(nil), fields...)}, nil
}

// MustRow is NewRow for fixed tables; it panics on invalid input.
func MustRow(fields ...Field) Row {
	row, err := NewRow(fields...)
	if err != nil {
		panic(err)
	}
	return row
}

// IsZero reports whether r is the "no row" sentinel.
func (r Row) IsZero() bool { return len(r.fields) == 0 }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.fields) }

// Fields returns a copy of the row's columns in order.
func (r Row) Fields() []Field { return append([]Field(nil), r.fields...) }

// Get returns the value stored under name.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every column value in column order, reserved ones included.
func (r Row) Values() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Value
	}
	return out
}

// ComparisonText is the space-joined value of every non-reserved column.
func (r Row) ComparisonText() string {
	parts := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		if isReserved(f.Name) {
			continue
		}
		parts = append(parts, f.Value)
	}
	return strings.Join(parts, " ")
}

func isReserved(name string) bool {
	return name == ColumnID || name == ColumnQuantity
}
