package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Retry defaults.
const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 200 * time.Millisecond
	maxBackoff          = 5 * time.Second
)

// RetryPolicy bounds how AnalyzeWithRetry reruns failed analyses.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseBackoff time.Duration // doubled per attempt, capped
}

// DefaultRetryPolicy returns the standard bounded policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseBackoff: DefaultRetryBackoff}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = DefaultRetryBackoff
	}
	return p
}

// AnalyzeWithRetry runs Analyze, retrying retryable failures with capped
// exponential backoff. Validation errors return immediately; the analysis is
// deterministic per input, so retries only help transient stage failures.
func (e *Engine) AnalyzeWithRetry(ctx context.Context, text string, ref time.Time, policy RetryPolicy) (*Result, error) {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(policy.BaseBackoff, attempt)); err != nil {
				return nil, NewError(KindTimeout, "retry", err)
			}
			e.log.Warn("retrying analysis", zap.Int("attempt", attempt+1), zap.Error(lastErr))
		}

		res, err := e.Analyze(ctx, text, ref)
		if err == nil {
			return res, nil
		}
		if !Retryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base << uint(attempt-1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
