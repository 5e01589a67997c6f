// Package backoff implements the retry schedule for transient request
// failures as an explicit state machine, with the clock injected so the
// schedule is testable without wall-time sleeps.
package backoff

import (
	"context"
	"math/rand/v2"
	"time"
)

// State is the machine's position in the retry lifecycle.
type State uint8

const (
	// StateIdle is the zero state before the first attempt.
	StateIdle State = iota
	// StateAttempting means a request is in flight.
	StateAttempting
	// StateBackoff means the machine is waiting out a delay.
	StateBackoff
	// StateSucceeded is terminal: an attempt completed successfully.
	StateSucceeded
	// StateFailed is terminal: a non-retryable failure was observed.
	StateFailed
	// StateExhausted is terminal: the attempt budget ran out.
	StateExhausted
)

// Clock abstracts time for the machine. Sleep must return early with
// ctx.Err() when the context is cancelled, so a backing-off call never
// outlives its caller.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock returns the wall-time clock used outside tests.
func SystemClock() Clock { return systemClock{} }

// Policy bounds the schedule. Delays double per attempt from Base up to
// Ceiling, with the upper half of each delay randomized to spread
// synchronized retries apart.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Ceiling     time.Duration
}

// Machine tracks one call's retry lifecycle. It is not safe for
// concurrent use; each call owns its own machine.
type Machine struct {
	policy  Policy
	clock   Clock
	state   State
	attempt int
}

// New builds a machine for one call.
func New(policy Policy, clock Clock) *Machine {
	if clock == nil {
		clock = SystemClock()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Base <= 0 {
		policy.Base = 500 * time.Millisecond
	}
	if policy.Ceiling < policy.Base {
		policy.Ceiling = policy.Base
	}
	return &Machine{policy: policy, clock: clock}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Attempts returns how many attempts have begun.
func (m *Machine) Attempts() int { return m.attempt }

// Begin marks the start of an attempt.
func (m *Machine) Begin() {
	m.attempt++
	m.state = StateAttempting
}

// Retryable reports whether the budget allows another attempt after the
// current one.
func (m *Machine) Retryable() bool {
	return m.attempt < m.policy.MaxAttempts
}

// Wait transitions through StateBackoff and sleeps out the delay for
// the attempt that just failed. It must only be called when Retryable
// returned true. Cancellation surfaces as ctx.Err() and leaves the
// machine failed.
func (m *Machine) Wait(ctx context.Context) error {
	m.state = StateBackoff
	if err := m.clock.Sleep(ctx, m.Delay()); err != nil {
		m.state = StateFailed
		return err
	}
	return nil
}

// Delay computes the backoff for the attempt that just failed: Base
// doubled per prior attempt, capped at Ceiling, lower half fixed and
// upper half jittered.
func (m *Machine) Delay() time.Duration {
	d := m.policy.Base << uint(m.attempt-1)
	if d <= 0 || d > m.policy.Ceiling {
		d = m.policy.Ceiling
	}
	half := d / 2
	return half + rand.N(half+1)
}

// Succeed marks terminal success.
func (m *Machine) Succeed() { m.state = StateSucceeded }

// Fail marks a terminal non-retryable failure.
func (m *Machine) Fail() { m.state = StateFailed }

// Exhaust marks the budget as spent.
func (m *Machine) Exhaust() { m.state = StateExhausted }
