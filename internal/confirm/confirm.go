// Package confirm polls a backend status probe until an expected run state
// is observed or the attempt budget runs out. Lifecycle operations report
// through it instead of trusting the exit status of the tool they drove.
package confirm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// State is a project's observed run state.
type State int

const (
	// StateUnknown means the probe could not determine the run state.
	StateUnknown State = iota
	// StateRunning means the project's workload is up.
	StateRunning
	// StateStopped means the project's workload is down.
	StateStopped
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is the result of awaiting a state.
type Outcome int

const (
	// OutcomeConfirmed means the expected state was observed.
	OutcomeConfirmed Outcome = iota
	// OutcomeTimedOut means a definite state other than the expected one
	// was still observed after the last attempt.
	OutcomeTimedOut
	// OutcomeUnknown means the probe never produced a definite state, or
	// the project has no status probe at all.
	OutcomeUnknown
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Probe reports the current run state. Probes are expected to be cheap
// enough to call at the polling interval.
type Probe func(ctx context.Context) (State, error)

const (
	// DefaultInterval is the pause between probe attempts.
	DefaultInterval = 100 * time.Millisecond
	// DefaultMaxAttempts bounds the number of probe attempts.
	DefaultMaxAttempts = 10
)

type settings struct {
	interval    time.Duration
	maxAttempts int
}

// Option configures Await.
type Option func(*settings)

// WithInterval sets the pause between probe attempts.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt budget. Zero means a single immediate
// check with no waiting at all.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		s.maxAttempts = n
	}
}

// Await polls probe until it observes want, the attempt budget is spent,
// or ctx is done. A probe that reports it has no way to determine state
// yields OutcomeUnknown without consuming further attempts; any other
// probe error aborts immediately.
func Await(ctx context.Context, want State, probe Probe, opts ...Option) (Outcome, error) {
	s := settings{interval: DefaultInterval, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(&s)
	}

	var last State
	check := func(ctx context.Context) error {
		state, err := probe(ctx)
		if err != nil {
			return err
		}
		last = state
		if state != want {
			return retry.RetryableError(errNotYet)
		}
		return nil
	}

	var err error
	if s.maxAttempts <= 0 {
		// Single immediate check, no backoff machinery.
		err = check(ctx)
	} else {
		backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.interval))
		err = retry.Do(ctx, backoff, check)
	}

	switch {
	case err == nil:
		return OutcomeConfirmed, nil
	case errors.Is(err, errors.ErrNoStatusProbe):
		return OutcomeUnknown, nil
	case errors.Is(err, errNotYet):
		if last == StateUnknown {
			return OutcomeUnknown, nil
		}
		return OutcomeTimedOut, nil
	case ctx.Err() != nil:
		return OutcomeTimedOut, ctx.Err()
	default:
		return OutcomeUnknown, err
	}
}

// errNotYet marks an attempt where the probe answered but the expected
// state was not observed yet.
var errNotYet = errors.New("expected state not observed")
