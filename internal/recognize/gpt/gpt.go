// Package gpt transcribes label photos with an OpenAI vision model.
package gpt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/liteapi-travel/label-matcher-async/internal/recognize"
)

const systemPrompt = "You are a shipping label transcription assistant. You copy the text printed on parcel labels exactly as it appears."

const userPrompt = `Transcribe every line of text printed on the shipping label in this photo.

Keep the original line breaks, spelling, capitalization and symbols such as "*" and "To:". Do not translate, summarize or correct anything.

If there is no legible text, answer with ` + recognize.NoTextMarker + ` and nothing else.

IMPORTANT: Your response MUST contain only the transcribed text. Do not include any explanations.`

// Config controls the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxRetries     int
	AttemptTimeout time.Duration
	RateLimit      float64
	Burst          int
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 25 * time.Second
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 3
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
}

// Provider implements recognize.Provider.
type Provider struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	logger  *log.Logger

	// backoff returns the pause before the given retry attempt.
	backoff func(attempt int) time.Duration
}

// New builds a provider. A nil logger disables logging.
func New(cfg Config, logger *log.Logger) *Provider {
	cfg.applyDefaults()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger,
		backoff: jitteredBackoff,
	}
}

// Recognize sends the photo to the model and returns the transcribed text.
// Failed attempts are retried with backoff until MaxRetries is reached or ctx
// is done.
func (p *Provider) Recognize(ctx context.Context, img recognize.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", recognize.ErrNoText
	}
	startTime := time.Now()
	req := p.request(img)

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if err = p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		attemptCtx, attemptCancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		resp, err = p.client.CreateChatCompletion(attemptCtx, req)
		attemptCancel()

		if err == nil && len(resp.Choices) > 0 {
			break
		}
		if err == nil {
			err = errors.New("no choices returned")
		}
		p.logf("OpenAI recognition attempt %d failed: %v", attempt, err)

		if !retryable(err) || attempt == p.cfg.MaxRetries {
			break
		}
		wait := p.backoff(attempt)
		p.logf("Retrying in %v...", wait)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return "", fmt.Errorf("openai recognition: %w", err)
	}

	p.logf("Time taken to get transcription from OpenAI: %v", time.Since(startTime))
	return recognize.Transcript(resp.Choices[0].Message.Content)
}

func (p *Provider) request(img recognize.Image) openai.ChatCompletionRequest {
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))
	return openai.ChatCompletionRequest{
		Model: p.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0.1,
	}
}

// retryable reports whether another attempt could succeed. Client errors other
// than rate limiting are final.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

func jitteredBackoff(attempt int) time.Duration {
	baseDelay := time.Duration(attempt*3) * time.Second
	jitter := time.Duration(rand.Intn(3)) * time.Second
	return baseDelay + jitter
}

func (p *Provider) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
