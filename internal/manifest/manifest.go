// Package manifest reads an uploaded reference file into reference rows.
package manifest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/liteapi-travel/label-matcher-async/internal/reference"
)

var (
	// ErrUnsupportedType is returned for files that are not CSV or TSV.
	ErrUnsupportedType = errors.New("manifest: unsupported file type")
	// ErrEmpty is returned when the file holds no data rows.
	ErrEmpty = errors.New("manifest: no rows")
)

var mimeDelimiters = map[string]rune{
	"text/csv":                  ',',
	"application/csv":           ',',
	"text/tab-separated-values": '\t',
}

var extDelimiters = map[string]rune{
	".csv": ',',
	".tsv": '\t',
}

// Parse decodes data as a delimited table whose first line is the header.
// The delimiter is picked from the file extension, falling back to the MIME
// type.
func Parse(name, mimeType string, data []byte) ([]reference.Row, error) {
	comma, ok := delimiterFor(name, mimeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, describe(name, mimeType))
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(name), err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	header := make([]string, len(records[0]))
	for i, cell := range records[0] {
		header[i] = cleanCell(cell)
		if header[i] == "" {
			header[i] = fmt.Sprintf("#%d", i+1)
		}
	}

	rows := make([]reference.Row, 0, len(records)-1)
	for n, record := range records[1:] {
		if blank(record) {
			continue
		}
		fields := make([]reference.Field, len(header))
		for i, col := range header {
			var value string
			if i < len(record) {
				value = cleanCell(record[i])
			}
			fields[i] = reference.Field{Name: col, Value: value}
		}
		row, err := reference.NewRow(fields...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+2, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

func delimiterFor(name, mimeType string) (rune, bool) {
	if comma, ok := extDelimiters[strings.ToLower(filepath.Ext(name))]; ok {
		return comma, true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	comma, ok := mimeDelimiters[mimeType]
	return comma, ok
}

func describe(name, mimeType string) string {
	switch {
	case name != "" && mimeType != "":
		return fmt.Sprintf("%s (%s)", name, mimeType)
	case name != "":
		return name
	case mimeType != "":
		return mimeType
	default:
		return "unnamed file"
	}
}

func cleanCell(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(norm.NFKC.String(v))
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
