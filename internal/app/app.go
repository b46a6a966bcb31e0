// Package app wires configuration into the recognizer and session
// controller shared by the function and the command line tools.
package app

import (
	"fmt"
	"log"

	"github.com/liteapi-travel/label-matcher-async/internal/confidence"
	"github.com/liteapi-travel/label-matcher-async/internal/config"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize/gpt"
	"github.com/liteapi-travel/label-matcher-async/internal/recognize/tesseract"
	"github.com/liteapi-travel/label-matcher-async/internal/session"
)

// NewRecognizer returns the provider selected by cfg.
func NewRecognizer(cfg config.Config, logger *log.Logger) (recognize.Provider, error) {
	switch cfg.Recognition.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai provider needs OPENAI_API_KEY")
		}
		return gpt.New(gpt.Config{
			APIKey:         cfg.OpenAI.APIKey,
			BaseURL:        cfg.OpenAI.BaseURL,
			Model:          cfg.OpenAI.Model,
			MaxRetries:     cfg.OpenAI.MaxRetries,
			AttemptTimeout: cfg.OpenAI.AttemptTimeout,
			RateLimit:      cfg.OpenAI.RateLimit,
			Burst:          cfg.OpenAI.Burst,
		}, logger), nil
	case config.ProviderTesseract:
		return tesseract.New(cfg.Recognition.Languages...), nil
	default:
		return nil, fmt.Errorf("unknown recognition provider %q", cfg.Recognition.Provider)
	}
}

// NewController builds the session controller for cfg around recognizer.
func NewController(cfg config.Config, recognizer recognize.Provider, logger *log.Logger) (*session.Controller, error) {
	classifier, err := confidence.New(cfg.Threshold)
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Classifier:         &classifier,
		Recognizer:         recognizer,
		RecognitionTimeout: cfg.Recognition.Timeout,
		ExportDir:          cfg.Export.Dir,
		Logger:             logger,
	}), nil
}
