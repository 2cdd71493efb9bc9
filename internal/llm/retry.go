package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cardwatch/agreements-tracker/internal/common"
)

// WithRetry decorates a FieldExtractor with bounded, jittered retries on
// service errors. Parse failures are returned immediately: extraction runs
// at deterministic sampling, so replaying the same text buys nothing.
func WithRetry(inner FieldExtractor, attempts int, backoff time.Duration, logger *slog.Logger) FieldExtractor {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryExtractor{inner: inner, attempts: attempts, backoff: backoff, logger: logger}
}

type retryExtractor struct {
	inner    FieldExtractor
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

func (r *retryExtractor) ExtractFields(ctx context.Context, text string) (FieldMap, []byte, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		fields, raw, err := r.inner.ExtractFields(ctx, text)
		if err == nil {
			return fields, raw, nil
		}
		lastErr = err

		if !errors.Is(err, common.ErrExtractionService) || attempt == r.attempts {
			return nil, raw, err
		}

		wait := r.backoff << (attempt - 1)
		wait += time.Duration(rand.Int63n(int64(wait)/2 + 1))
		r.logger.Warn("llm.extract.retry",
			"attempt", attempt,
			"max_attempts", r.attempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, nil, lastErr
}
