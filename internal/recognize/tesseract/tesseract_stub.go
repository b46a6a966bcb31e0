//go:build !tesseract

package tesseract

import (
	"context"
	"errors"

	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
)

// ErrUnavailable is returned when the binary was built without tesseract
// support.
var ErrUnavailable = errors.New("tesseract: built without the tesseract tag")

// Provider reports ErrUnavailable for every photo.
type Provider struct{}

// New returns a provider that always fails with ErrUnavailable.
func New(languages ...string) *Provider { return &Provider{} }

func (p *Provider) Recognize(context.Context, recognize.Image) (string, error) {
	return "", ErrUnavailable
}
