package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/briefing-cli/internal/resilience"
	"github.com/sells-group/briefing-cli/pkg/openai"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float64, error)
}

// OpenAIEmbedder calls the embeddings endpoint once per text.
type OpenAIEmbedder struct {
	client openai.Client
}

// NewOpenAIEmbedder wraps an OpenAI client.
func NewOpenAIEmbedder(client openai.Client) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, model, text string) ([]float64, error) {
	vecs, err := e.client.CreateEmbedding(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, eris.New("llm: empty embedding")
	}
	return vecs[0], nil
}

// RetryingEmbedder retries an Embedder with the protocol's primary budget.
type RetryingEmbedder struct {
	next     Embedder
	attempts int
	baseWait time.Duration
}

// NewRetryingEmbedder wraps next.
func NewRetryingEmbedder(next Embedder, attempts int, baseWait time.Duration) *RetryingEmbedder {
	return &RetryingEmbedder{next: next, attempts: attempts, baseWait: baseWait}
}

// Embed implements Embedder.
func (e *RetryingEmbedder) Embed(ctx context.Context, model, text string) ([]float64, error) {
	retry := resilience.Exponential(e.attempts, e.baseWait)
	retry.OnRetry = resilience.RetryLogger("llm", "embed", zap.String("model", model))
	return resilience.DoVal(ctx, retry, func(ctx context.Context) ([]float64, error) {
		return e.next.Embed(ctx, model, text)
	})
}
