package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeredArc/jeredmgr/internal/errors"
)

// sequenceProbe replays a fixed series of states, then repeats the last
// one, counting calls.
func sequenceProbe(states ...State) (Probe, *int) {
	calls := new(int)
	return func(ctx context.Context) (State, error) {
		i := *calls
		*calls++
		if i >= len(states) {
			i = len(states) - 1
		}
		return states[i], nil
	}, calls
}

func TestAwaitConfirmsOnExpectedState(t *testing.T) {
	probe, calls := sequenceProbe(StateUnknown, StateUnknown, StateRunning)

	outcome, err := Await(context.Background(), StateRunning, probe,
		WithInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, 3, *calls, "polling must stop at the first confirming probe")
}

func TestAwaitTimesOutOnDefiniteWrongState(t *testing.T) {
	probe, calls := sequenceProbe(StateStopped)

	outcome, err := Await(context.Background(), StateRunning, probe,
		WithInterval(time.Millisecond), WithMaxAttempts(4))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, 4, *calls)
}

func TestAwaitUnknownWhenStateNeverDetermined(t *testing.T) {
	probe, _ := sequenceProbe(StateUnknown)

	outcome, err := Await(context.Background(), StateRunning, probe,
		WithInterval(time.Millisecond), WithMaxAttempts(3))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
}

func TestAwaitUnknownWhenNoProbeExists(t *testing.T) {
	probe := func(ctx context.Context) (State, error) {
		return StateUnknown, errors.ErrNoStatusProbe
	}

	outcome, err := Await(context.Background(), StateRunning, probe)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
}

func TestAwaitZeroAttemptsIsSingleImmediateCheck(t *testing.T) {
	probe, calls := sequenceProbe(StateStopped, StateRunning)

	start := time.Now()
	outcome, err := Await(context.Background(), StateRunning, probe,
		WithMaxAttempts(0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, 1, *calls)
	assert.Less(t, time.Since(start), DefaultInterval, "zero attempts must not wait")
}

func TestAwaitAbortsOnProbeError(t *testing.T) {
	probeErr := errors.New("docker daemon unreachable")
	probe := func(ctx context.Context) (State, error) {
		return StateUnknown, probeErr
	}

	outcome, err := Await(context.Background(), StateRunning, probe,
		WithInterval(time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, probeErr)
	assert.Equal(t, OutcomeUnknown, outcome)
}

func TestAwaitHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	probe := func(ctx context.Context) (State, error) {
		cancel()
		return StateStopped, nil
	}

	outcome, err := Await(ctx, StateRunning, probe,
		WithInterval(50*time.Millisecond), WithMaxAttempts(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeTimedOut, outcome)
}
