package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunTextMode(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LABEL_LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("LABEL_EXPORT_DIR", dir)
	ref := writeFile(t, dir, "boxes.csv", "ID,Quantity,Item\n1,5,BLUE WIDGET\n2,3,RED GADGET\n")
	first := writeFile(t, dir, "first.txt", "TO: RED GADGET")
	second := writeFile(t, dir, "second.txt", "completely unrelated")
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	args := []string{"--config", filepath.Join(dir, "missing.yaml"), "--reference", ref, "--out", out, "--text", first, second}
	if err := run(args, &stdout); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Reference loaded: 2 rows.") {
		t.Fatalf("stdout = %q", stdout.String())
	}

	entries, err := os.ReadDir(out)
	if err != nil || len(entries) != 1 {
		t.Fatalf("ReadDir(out) = %v, %v", entries, err)
	}
	body, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if want := "2,3,RED GADGET,first\n"; string(body) != want {
		t.Fatalf("export = %q, want %q", body, want)
	}
}

func TestRunNeedsInputs(t *testing.T) {
	if err := run([]string{"--text"}, &bytes.Buffer{}); err == nil {
		t.Fatal("run() expected error without inputs")
	}
}
