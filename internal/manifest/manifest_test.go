package manifest

import (
	"errors"
	"reflect"
	"testing"

	"github.com/liteapi-travel/label-matcher-async/internal/reference"
)

func TestParseCSV(t *testing.T) {
	data := []byte("\ufeffID,Quantity,Item,Size\n1,5,Box A,M\n\n2,3, Crate B ,L\n")
	rows, err := Parse("manifest.csv", "", data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	want := []reference.Field{
		{Name: "ID", Value: "2"},
		{Name: "Quantity", Value: "3"},
		{Name: "Item", Value: "Crate B"},
		{Name: "Size", Value: "L"},
	}
	if got := rows[1].Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected fields %+v", got)
	}
	if got := rows[0].ComparisonText(); got != "Box A M" {
		t.Fatalf("unexpected comparison text %q", got)
	}
}

func TestParseTSVByMIMEType(t *testing.T) {
	rows, err := Parse("upload", "text/tab-separated-values; charset=utf-8", []byte("Item\tSize\nBox A\tM\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := rows[0].Values(); !reflect.DeepEqual(got, []string{"Box A", "M"}) {
		t.Fatalf("unexpected values %v", got)
	}
}

func TestParsePadsShortRowsAndNamesBlankHeaders(t *testing.T) {
	rows, err := Parse("m.csv", "", []byte("Item,,Size\nBox A\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []reference.Field{{Name: "Item", Value: "Box A"}, {Name: "#2"}, {Name: "Size"}}
	if got := rows[0].Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected fields %+v", got)
	}
}

func TestParseNormalizesWidth(t *testing.T) {
	rows, err := Parse("m.csv", "", []byte("Item\nＢｏｘ Ａ\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if v, _ := rows[0].Get("Item"); v != "Box A" {
		t.Fatalf("expected NFKC folded value, got %q", v)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name     string
		file     string
		mimeType string
		data     string
		want     error
	}{
		{name: "image", file: "photo.jpg", mimeType: "image/jpeg", data: "xx", want: ErrUnsupportedType},
		{name: "spreadsheet", file: "book.xlsx", data: "xx", want: ErrUnsupportedType},
		{name: "empty", file: "m.csv", data: "", want: ErrEmpty},
		{name: "header only", file: "m.csv", data: "ID,Item\n", want: ErrEmpty},
		{name: "duplicate header", file: "m.csv", data: "Item,Item\na,b\n", want: reference.ErrDuplicateColumn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.file, tc.mimeType, []byte(tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseMalformedCSV(t *testing.T) {
	_, err := Parse("m.csv", "", []byte("Item\n\"unterminated\n"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrEmpty) {
		t.Fatalf("unexpected sentinel %v", err)
	}
}
