package retry

import (
	"context"
	"errors"
	"time"

	"github.com/stupiduntilnot/helpdesk/internal/llm"
)

// Policy defines retry behavior for provider calls.
type Policy struct {
	MaxRetries int
}

// DefaultPolicy returns the default provider retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3}
}

// Backoff computes exponential backoff with a fixed cap.
func Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	seconds := 1 << (attempt - 1)
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

// Transient reports whether a failed provider call is worth retrying.
// Rate limits, server-side errors, and transport failures retry; auth and
// malformed-request rejections do not, and neither does a timeout (the
// overall deadline is already spent).
func Transient(err error) bool {
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		return false
	}
	return provErr.Status == 0 || provErr.Status == 429 || provErr.Status >= 500
}

// Do runs fn, retrying transient failures with exponential backoff until the
// policy is exhausted or ctx expires. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		attempts++
		if !Transient(err) || attempts > p.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(Backoff(attempts)):
		}
	}
}
