package conversion

import (
	"time"
)

type State string

const (
	StateAttempting     State = "attempting"
	StateSucceeded      State = "succeeded"
	StateRetryScheduled State = "retry_scheduled"
	StateFailedTerminal State = "failed_terminal"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 60 * time.Second
	DefaultHardLimit   = 900 * time.Second
	DefaultSoftLimit   = 540 * time.Second
)

// RetryPolicy decides what happens after an attempt. The queue, not the
// policy, re-invokes the task after Delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	HardLimit   time.Duration
	SoftLimit   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
		HardLimit:   DefaultHardLimit,
		SoftLimit:   DefaultSoftLimit,
	}
}

type Decision struct {
	State   State
	Delay   time.Duration
	Attempt int
	Err     error
}

func (d Decision) Terminal() bool {
	return d.State == StateSucceeded || d.State == StateFailedTerminal
}

// Decide classifies the outcome of attempt (1-based).
func (p RetryPolicy) Decide(attempt int, err error) Decision {
	d := Decision{Attempt: attempt, Err: err}

	switch {
	case err == nil:
		d.State = StateSucceeded
	case !Retryable(err):
		d.State = StateFailedTerminal
	case attempt < p.maxAttempts():
		d.State = StateRetryScheduled
		d.Delay = p.Delay
	default:
		d.State = StateFailedTerminal
	}
	return d
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}
