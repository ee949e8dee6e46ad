package download

import (
	"context"
	"time"

	"comicdl/internal/config"
	"comicdl/internal/services"
)

// RetryPolicy retries transient image failures with exponential backoff.
type RetryPolicy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// RetryPolicyFromConfig reads the [download] retry settings.
func RetryPolicyFromConfig(cfg config.Download) RetryPolicy {
	return RetryPolicy{
		Attempts:   cfg.RetryAttempts,
		Backoff:    cfg.RetryBackoff(),
		MaxBackoff: cfg.RetryMaxBackoff(),
	}
}

// Do runs fn once plus up to Attempts more times while it fails with a
// retryable error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	delay := p.Backoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= p.Attempts || !services.Retryable(err) {
			return err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return services.Wrap(services.ErrCancelled, "download", "retry", "cancelled during backoff", ctx.Err())
			case <-timer.C:
			}
		}
		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
}
