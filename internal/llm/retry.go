package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const retryMaxElapsed = 5 * time.Minute

// RetryLLM wraps a provider with a per-attempt timeout and bounded
// exponential backoff. Only transport failures are retried: client errors,
// configuration errors and malformed responses stop immediately.
type RetryLLM struct {
	next       LLM
	timeout    time.Duration
	maxRetries int
	newBackOff func() backoff.BackOff
	logger     *slog.Logger
}

// RetryOption customizes a RetryLLM.
type RetryOption func(*RetryLLM)

// WithLogger sets the logger used to report retried attempts.
func WithLogger(logger *slog.Logger) RetryOption {
	return func(r *RetryLLM) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithBackOff overrides the backoff schedule. BackOff implementations are
// stateful, so the factory must return a fresh instance per call.
func WithBackOff(factory func() backoff.BackOff) RetryOption {
	return func(r *RetryLLM) {
		r.newBackOff = factory
	}
}

// NewRetryLLM wraps next with the timeout and retry budget from config.
func NewRetryLLM(next LLM, config LLMConfig, opts ...RetryOption) *RetryLLM {
	r := &RetryLLM{
		next:       next,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		newBackOff: defaultBackOff,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if r.maxRetries < 0 {
		r.maxRetries = 0
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// Generate calls the wrapped provider until it succeeds, fails permanently,
// or the retry budget is spent.
func (r *RetryLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var text string
	attempt := 0

	op := func() error {
		attempt++
		callCtx, cancel := r.attemptContext(ctx)
		defer cancel()

		out, err := r.next.Generate(callCtx, systemPrompt, userPrompt)
		if err == nil {
			text = out
			return nil
		}
		if !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("LLM attempt failed", "attempt", attempt, "max_attempts", r.maxRetries+1, "error", err)
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), uint64(r.maxRetries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return text, nil
}

func (r *RetryLLM) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// isRetryable reports whether err is a transient failure. A per-attempt
// timeout is transient; cancellation of the caller's context is not.
func isRetryable(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	if errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return retryableStatus(openaiErr.StatusCode)
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return retryableStatus(anthropicErr.StatusCode)
	}

	// Connection resets, DNS failures and the like.
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}
