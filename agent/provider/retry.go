package provider

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/agentloops/agent/contract"
)

// RetryPolicy configures exponential backoff around one oracle call.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay returns the wait before retry attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	delay := math.Min(float64(p.BaseDelay)*math.Pow(mult, float64(attempt)), float64(p.MaxDelay))
	if p.Jitter {
		// +/- 50%
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

// retry runs fn until it succeeds, fails with a non-retryable error, or the
// policy is spent.
func retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	for attempt := 0; err != nil && attempt < policy.MaxRetries; attempt++ {
		if !retryable(ctx, err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		result, err = fn(ctx)
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, contractx.ErrSchemaViolation) {
		return false
	}

	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusConflict,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}
	// transport failures and per-attempt timeouts
	return true
}
