package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hntbot/biddocs/internal/llm"
)

// MaxRetries is the number of attempts made for one embedding batch.
const MaxRetries = 3

const (
	backoffBase = time.Second
	backoffCap  = 30 * time.Second
)

// IsRetryable reports whether a provider error is transient: rate limits,
// overload and 5xx responses.
func IsRetryable(err error) bool {
	return llm.IsRetryable(err)
}

// Backoff is the wait before retry attempt n (0-indexed): base doubled per
// attempt, capped, plus up to half again as jitter.
func Backoff(attempt int) time.Duration {
	d := backoffCap
	if attempt < 5 {
		d = min(backoffBase<<attempt, backoffCap)
	}
	return d + time.Duration(rand.Int64N(int64(d)/2))
}

// retry runs fn up to MaxRetries times while it fails with a retryable error,
// sleeping wait(attempt) in between. It returns fn's last error, or the
// context error if ctx ends while waiting.
func retry(ctx context.Context, log *slog.Logger, wait func(int) time.Duration, fn func() error) error {
	var err error
	for attempt := range MaxRetries {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable provider error", "attempt", attempt+1, "error", err)
		select {
		case <-time.After(wait(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
