// Package recognize defines the text recognition provider consumed by the
// session controller and helpers shared by its implementations.
package recognize

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrNoText is returned when the provider found nothing legible.
var ErrNoText = errors.New("recognize: no text detected")

// NoTextMarker is what vision models are told to answer for an unreadable
// photo.
const NoTextMarker = "NO_TEXT"

// Image is a photo to transcribe.
type Image struct {
	Data     []byte
	MIMEType string
}

// Provider turns a photo into plain text.
type Provider interface {
	Recognize(ctx context.Context, img Image) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, img Image) (string, error)

func (f ProviderFunc) Recognize(ctx context.Context, img Image) (string, error) {
	return f(ctx, img)
}

var fence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// Transcript cleans model output down to the transcribed text: code fences
// and wrapping quotes are removed. It returns ErrNoText for blank output or
// the NoTextMarker.
func Transcript(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	if text == "" || text == NoTextMarker {
		return "", ErrNoText
	}
	return text, nil
}
