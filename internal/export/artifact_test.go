package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	body := Encode([]Record{
		{Values: []string{"1", "5", "Box A", "M"}, Caption: "dock 4"},
		{Values: []string{"2", "3", "Crate B", "L"}},
	})
	want := "1,5,Box A,M,dock 4\n2,3,Crate B,L,\n"
	if string(body) != want {
		t.Fatalf("Encode() = %q, want %q", body, want)
	}
}

func TestEncodeEmpty(t *testing.T) {
	if body := Encode(nil); len(body) != 0 {
		t.Fatalf("expected empty body, got %q", body)
	}
}

func TestEncodeDoesNotQuoteCommas(t *testing.T) {
	body := Encode([]Record{{Values: []string{"Box, large"}, Caption: "x"}})
	if string(body) != "Box, large,x\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestNewNamesArtifact(t *testing.T) {
	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	a := New("abc", created, []Record{{Values: []string{"1"}}})
	if a.Name != "labels_20260304050607.csv" {
		t.Fatalf("unexpected name %q", a.Name)
	}
	if a.Lines != 1 || string(a.Body) != "1,\n" {
		t.Fatalf("unexpected artifact %+v", a)
	}
}

func TestWriteTemp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	a := New("abc", time.Now(), []Record{{Values: []string{"1", "Box A"}}})
	path, err := WriteTemp(dir, a)
	if err != nil {
		t.Fatalf("WriteTemp() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != string(a.Body) {
		t.Fatalf("file content %q, want %q", data, a.Body)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("artifact written outside %s: %s", dir, path)
	}
}
