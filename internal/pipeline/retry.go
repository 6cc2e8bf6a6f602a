package pipeline

import (
	"context"
	"time"

	"github.com/hpungsan/reel/internal/errors"
	"github.com/hpungsan/reel/internal/logging"
	"github.com/hpungsan/reel/internal/metrics"
)

// RetryPolicy bounds retries of one stage. The wait before attempt n+1 is
// BaseDelay * 2^(n-1).
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

// DefaultRetryPolicy is three attempts starting at one second.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// Retry runs op until it succeeds or the policy is exhausted. The final
// failure is a STAGE_RETRY_EXHAUSTED error naming stage and wrapping the last
// error. A done context stops the backoff wait early.
func Retry[T any](ctx context.Context, stage string, p RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		if attempt == attempts {
			break
		}
		delay := p.Delay(attempt)
		metrics.StageRetries.WithLabelValues(stage).Inc()
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("stage", stage).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", delay).
			Msg("stage failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			metrics.StageFailures.WithLabelValues(stage).Inc()
			return zero, errors.NewStageRetryExhausted(stage, attempt, last)
		}
	}

	metrics.StageFailures.WithLabelValues(stage).Inc()
	return zero, errors.NewStageRetryExhausted(stage, attempts, last)
}
