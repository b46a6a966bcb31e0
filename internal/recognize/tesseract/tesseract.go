//go:build tesseract

// Package tesseract recognizes label text locally with libtesseract. Build
// with -tags tesseract; the C library and language data must be installed.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
)

// Provider implements recognize.Provider on top of a gosseract client.
type Provider struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New returns a provider for the given tesseract language codes
// (default "eng").
func New(languages ...string) *Provider {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Provider{
		languages:     append([]string(nil), languages...),
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs OCR on the photo. The context is checked before the call;
// tesseract itself cannot be interrupted.
func (p *Provider) Recognize(ctx context.Context, img recognize.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", recognize.ErrNoText
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := p.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(p.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(img.Data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return recognize.Transcript(text)
}
