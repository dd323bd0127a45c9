package backoff

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultMaxDelay caps the exponential schedule when no explicit cap is set.
const DefaultMaxDelay = 30 * time.Second

// Policy is the exponential redelivery schedule shared by the pipeline
// consumers. It holds no per-record state.
//
// MaxAttempts counts redeliveries after the first failed call, so a record
// that keeps failing reaches its handler MaxAttempts+1 times before it is
// abandoned.
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxAttempts  int
	MaxDelay     time.Duration
}

func (p Policy) Validate() error {
	var errs []error
	if p.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("initial delay must not be negative, got %s", p.InitialDelay))
	}
	if p.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("multiplier must be at least 1, got %v", p.Multiplier))
	}
	if p.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must not be negative, got %d", p.MaxAttempts))
	}
	if p.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("max delay must not be negative, got %s", p.MaxDelay))
	}
	return errors.Join(errs...)
}

// Delay returns the wait before the k-th redelivery, k starting at 1:
// min(InitialDelay * Multiplier^(k-1), MaxDelay).
func (p Policy) Delay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = DefaultMaxDelay
	}

	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(k-1))
	if math.IsNaN(d) || d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}

// Exhausted reports whether a record that has failed the given number of
// times must be abandoned instead of redelivered.
func (p Policy) Exhausted(failures int) bool {
	return failures > p.MaxAttempts
}

// RetryState tracks one in-flight record between its first failure and its
// success or abandonment.
type RetryState struct {
	Attempt   int
	NextDelay time.Duration
	LastError error
}
