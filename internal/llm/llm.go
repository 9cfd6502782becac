// Package llm implements the retry and fallback protocol every pipeline
// stage uses to talk to language models.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/resilience"
)

// ErrEmptyResponse is returned by backends, or synthesized by the protocol,
// when a call succeeds but yields no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one model invocation. Zero MaxTokens and nil Temperature take
// the protocol defaults.
type Request struct {
	Prompt      string
	Model       string
	System      string
	MaxTokens   int64
	Temperature *float64
	Phase       string // for logs and cost attribution
}

// Backend performs a single model call with no retries.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Invoker is what pipeline stages depend on.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, bool)
	Fallback(model string) string
}

// Config tunes the protocol.
type Config struct {
	MaxRetries      int
	FallbackRetries int
	BaseWait        time.Duration
	MaxTokens       int64
	Temperature     float64
	Fallbacks       map[string]string
}

// Protocol retries a model with exponential backoff, then its fallback.
type Protocol struct {
	backend Backend
	cfg     Config
}

// NewProtocol creates a Protocol over backend.
func NewProtocol(backend Backend, cfg Config) *Protocol {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.FallbackRetries <= 0 {
		cfg.FallbackRetries = 2
	}
	return &Protocol{backend: backend, cfg: cfg}
}

// Fallback returns the configured fallback for model, or "".
func (p *Protocol) Fallback(model string) string {
	fb := p.cfg.Fallbacks[model]
	if fb == model {
		return ""
	}
	return fb
}

// Invoke returns the first non-empty response from model or its fallback.
// The boolean is false when every attempt failed; errors are only logged.
func (p *Protocol) Invoke(ctx context.Context, req Request) (string, bool) {
	if req.MaxTokens == 0 {
		req.MaxTokens = p.cfg.MaxTokens
	}
	if req.Temperature == nil {
		temp := p.cfg.Temperature
		req.Temperature = &temp
	}

	text, err := p.attempt(ctx, req, p.cfg.MaxRetries)
	if err == nil {
		return text, true
	}

	log := zap.L().With(zap.String("model", req.Model), zap.String("phase", req.Phase))
	fb := p.Fallback(req.Model)
	if fb == "" || ctx.Err() != nil {
		log.Error("llm: all attempts failed", zap.Int("attempts", p.cfg.MaxRetries), zap.Error(err))
		return "", false
	}

	log.Warn("llm: primary model exhausted, trying fallback", zap.String("fallback", fb), zap.Error(err))
	req.Model = fb
	text, err = p.attempt(ctx, req, p.cfg.FallbackRetries)
	if err != nil {
		log.Error("llm: fallback failed", zap.String("fallback", fb), zap.Error(err))
		return "", false
	}
	return text, true
}

func (p *Protocol) attempt(ctx context.Context, req Request, attempts int) (string, error) {
	retry := resilience.Exponential(attempts, p.cfg.BaseWait)
	retry.OnRetry = resilience.RetryLogger("llm", req.Phase, zap.String("model", req.Model))

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		text, err := p.backend.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
}
