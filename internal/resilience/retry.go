package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries of a single remote call.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the wait before the first retry; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Jitter randomizes each wait by up to this fraction (0.25 = ±25%).
	Jitter float64
}

// DefaultPolicy returns three attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Jitter:    0.25,
	}
}

// PolicyWithRetries returns DefaultPolicy allowing maxRetries retries after
// the first attempt. Negative values disable retries.
func PolicyWithRetries(maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries < 0 {
		maxRetries = 0
	}
	p.Attempts = maxRetries + 1
	return p
}

// Call runs fn until it succeeds, fails with a non-transient error, the
// attempts run out, or ctx is done. Retries are logged at Warn with op.
func Call[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= p.Attempts {
			return zero, err
		}

		zap.L().Warn("resilience: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// delay returns the wait after the given 1-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
