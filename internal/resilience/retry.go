package resilience

import (
	"context"
	"math"
	"time"

	"github.com/sells-group/locator-cli/internal/model"
)

// Policy controls per-ZIP retry behavior with exponential backoff. Unlike a
// jittered API-call retry, the schedule is deterministic so that a resumed
// run reproduces the same pacing it recorded.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. A value
	// of 2 means up to three attempts total. Default: 2.
	MaxRetries int

	// BaseDelay is the pause before the second attempt. Default: 5s.
	BaseDelay time.Duration

	// Multiplier scales the delay for each subsequent attempt. Default: 2.0.
	Multiplier float64
}

// DefaultPolicy returns the retry policy used when no flags override it.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  5 * time.Second,
		Multiplier: 2.0,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 5 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	return p
}

// MaxAttempts is the total attempt budget including the first try.
func (p Policy) MaxAttempts() int {
	return p.withDefaults().MaxRetries + 1
}

// Delay returns the pause taken before the given 1-based attempt. The first
// attempt is immediate; attempt 2 waits BaseDelay, attempt 3 waits
// BaseDelay*Multiplier, and so on.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	p = p.withDefaults()
	scale := math.Pow(p.Multiplier, float64(attempt-2))
	return time.Duration(float64(p.BaseDelay) * scale)
}

// Sleep blocks for the backoff preceding attempt, or returns early with the
// context's error if it is canceled first.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Snapshot renders the policy in the shape persisted into run state.
func (p Policy) Snapshot() model.RetrySnapshot {
	p = p.withDefaults()
	return model.RetrySnapshot{
		MaxRetries:        p.MaxRetries,
		BaseDelaySeconds:  p.BaseDelay.Seconds(),
		BackoffMultiplier: p.Multiplier,
	}
}
