package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxRetries:      3,
		FallbackRetries: 2,
		MaxTokens:       2048,
		Temperature:     0.7,
		Fallbacks:       map[string]string{"gpt-5-nano": "gpt-5-mini"},
	}
}

func TestInvoke_FirstAttemptSucceeds(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Model == "gpt-5-nano" && r.MaxTokens == 2048 && r.Temperature != nil && *r.Temperature == 0.7
	})).Return("summary", nil).Once()

	text, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-nano"})
	require.True(t, ok)
	assert.Equal(t, "summary", text)
	b.AssertExpectations(t)
}

func TestInvoke_ExplicitZeroTemperatureKept(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Temperature != nil && *r.Temperature == 0
	})).Return("deterministic", nil).Once()

	zero := 0.0
	text, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-nano", Temperature: &zero})
	require.True(t, ok)
	assert.Equal(t, "deterministic", text)
	b.AssertExpectations(t)
}

func TestInvoke_FallbackAfterPrimaryExhausted(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, forModel("gpt-5-nano")).Return("", errors.New("boom")).Times(3)
	b.On("Complete", mock.Anything, forModel("gpt-5-mini")).Return("from fallback", nil).Once()

	text, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-nano"})
	require.True(t, ok)
	assert.Equal(t, "from fallback", text)
	b.AssertNumberOfCalls(t, "Complete", 4)
	b.AssertExpectations(t)
}

func TestInvoke_EmptyResponsesAreRetried(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, forModel("gpt-5-mini")).Return("   ", nil).Twice()
	b.On("Complete", mock.Anything, forModel("gpt-5-mini")).Return("8", nil).Once()

	text, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-mini"})
	require.True(t, ok)
	assert.Equal(t, "8", text)
	b.AssertNumberOfCalls(t, "Complete", 3)
}

func TestInvoke_NoFallbackReturnsFalse(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, forModel("gpt-5-mini")).Return("", errors.New("down"))

	text, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-mini"})
	assert.False(t, ok)
	assert.Empty(t, text)
	b.AssertNumberOfCalls(t, "Complete", 3)
}

func TestInvoke_FallbackAlsoFails(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, mock.Anything).Return("", nil)

	_, ok := NewProtocol(b, testConfig()).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-nano"})
	assert.False(t, ok)
	b.AssertNumberOfCalls(t, "Complete", 5)
}

func TestInvoke_BackoffDoubles(t *testing.T) {
	b := &mockBackend{}
	b.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("down"))

	cfg := testConfig()
	cfg.BaseWait = 20 * time.Millisecond
	start := time.Now()
	_, ok := NewProtocol(b, cfg).Invoke(context.Background(), Request{Prompt: "p", Model: "gpt-5-mini"})
	assert.False(t, ok)
	// Waits of 20ms and 40ms between three attempts.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestFallback(t *testing.T) {
	p := NewProtocol(&mockBackend{}, Config{Fallbacks: map[string]string{"a": "b", "c": "c"}})
	assert.Equal(t, "b", p.Fallback("a"))
	assert.Empty(t, p.Fallback("c"))
	assert.Empty(t, p.Fallback("z"))
}

func TestRouter(t *testing.T) {
	claude := &mockBackend{}
	claude.On("Complete", mock.Anything, mock.Anything).Return("claude says", nil)
	gpt := &mockBackend{}
	gpt.On("Complete", mock.Anything, mock.Anything).Return("gpt says", nil)

	r := NewRouter(gpt).Route("claude", claude)

	text, err := r.Complete(context.Background(), Request{Model: "claude-sonnet-4-5-20250929"})
	require.NoError(t, err)
	assert.Equal(t, "claude says", text)

	text, err = r.Complete(context.Background(), Request{Model: "gpt-5-mini"})
	require.NoError(t, err)
	assert.Equal(t, "gpt says", text)

	_, err = NewRouter(nil).Complete(context.Background(), Request{Model: "gpt-5-mini"})
	assert.ErrorContains(t, err, "no backend configured")
}
