// Package export serializes accepted matches into the delimited text document
// handed back to the sender when a session ends.
package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record is one accepted match: the matched row's values in column order and
// the caption sent with the photo.
type Record struct {
	Values  []string
	Caption string
}

// Artifact is an encoded export.
type Artifact struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Lines     int
	Body      []byte
}

// Deliverer hands a finished artifact to its recipient. path points at a
// transient copy on disk that is removed once Deliver returns.
type Deliverer interface {
	Deliver(ctx context.Context, a Artifact, path string) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, a Artifact, path string) error

func (f DelivererFunc) Deliver(ctx context.Context, a Artifact, path string) error {
	return f(ctx, a, path)
}

// New encodes records into an artifact.
func New(id string, createdAt time.Time, records []Record) Artifact {
	return Artifact{
		ID:        id,
		Name:      fmt.Sprintf("labels_%s.csv", createdAt.Format("20060102150405")),
		CreatedAt: createdAt,
		Lines:     len(records),
		Body:      Encode(records),
	}
}

// Encode writes one line per record: values then caption, joined with a
// comma. There is no header and no quoting, so a value containing a comma
// shifts the columns of its line.
func Encode(records []Record) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		fields := make([]string, 0, len(rec.Values)+1)
		fields = append(fields, rec.Values...)
		fields = append(fields, rec.Caption)
		buf.WriteString(strings.Join(fields, ","))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteTemp stores the artifact body under dir (the system temp dir when
// empty) and returns the file path.
func WriteTemp(dir string, a Artifact) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "*-"+a.Name)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(a.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close export file: %w", err)
	}
	return filepath.Clean(path), nil
}
