package recognize

import (
	"errors"
	"testing"
)

func TestTranscript(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "To: Box A *3x", want: "To: Box A *3x"},
		{name: "surrounding space", in: "\n  Box A\n", want: "Box A"},
		{name: "fenced", in: "```\nTo: Box A\nline 2\n```", want: "To: Box A\nline 2"},
		{name: "fenced with language", in: "```text\nBox A\n```", want: "Box A"},
		{name: "quoted", in: `"Box A"`, want: "Box A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transcript(tc.in)
			if err != nil {
				t.Fatalf("Transcript(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Transcript(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTranscriptNoText(t *testing.T) {
	for _, in := range []string{"", "   ", NoTextMarker, "```\n```", `""`} {
		if _, err := Transcript(in); !errors.Is(err, ErrNoText) {
			t.Fatalf("Transcript(%q) expected ErrNoText, got %v", in, err)
		}
	}
}
