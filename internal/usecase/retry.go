package usecase

import (
	"context"
	"math"
	"time"

	"yt_multi_account/config"
	"yt_multi_account/internal/domain"
)

// RetryPolicy controls re-dispatch of a failed request within a batch.
// The zero value disables retries.
type RetryPolicy struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// RetryPolicyFromConfig builds a RetryPolicy from the retry section
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  cfg.RetryMaxRetries,
		InitialWait: cfg.RetryInitialWait,
		MaxWait:     cfg.RetryMaxWait,
		Multiplier:  2.0,
	}
}

// backoff returns the wait before retry number attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := time.Duration(float64(p.InitialWait) * math.Pow(mult, float64(attempt-1)))
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	return wait
}

// retryable reports whether a request that ended with outcome may be
// dispatched again. Only failures that happen before anything is clicked or
// posted qualify: a repeated comment insert can duplicate the comment and a
// repeated like click can remove the like.
func retryable(outcome domain.Outcome) bool {
	switch outcome {
	case domain.OutcomeLaunchFailed, domain.OutcomeNavigationTimeout:
		return true
	}
	return false
}

// SleepFunc waits for d or until ctx ends
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
