// Package retry provides backoff policies for transient failures, such as a
// NATS publish during a reconnect.
package retry

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/cubepio/internal/foundation/errors"
)

// Mode selects how the delay grows between attempts.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

// Policy is immutable after construction.
type Policy struct {
	Mode       Mode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy is exponential from 100ms, capped at 2s, with 3 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeExponential, Initial: 100 * time.Millisecond, Max: 2 * time.Second, MaxRetries: 3}
}

// NewPolicy builds a policy from raw config fields; zero or unknown values
// keep the defaults. A negative maxRetries keeps the default count.
func NewPolicy(mode Mode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case ModeFixed, ModeLinear, ModeExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case ModeFixed:
		d = p.Initial
	case ModeExponential:
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

// Validate reports policies that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return ferrors.ValidationError("retry initial delay must be > 0").Build()
	case p.Max <= 0:
		return ferrors.ValidationError("retry max delay must be > 0").Build()
	case p.MaxRetries < 0:
		return ferrors.ValidationError("retry count cannot be negative").Build()
	}
	return nil
}

// Do calls fn until it succeeds, the retries are used up, or ctx ends. The
// last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	err := fn()
	for n := 1; err != nil && n <= p.MaxRetries; n++ {
		t := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		err = fn()
	}
	return err
}
