package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSM_HappyPath(t *testing.T) {
	f := NewFSM()
	assert.Equal(t, PhaseInit, f.Current())

	require.NoError(t, f.Transition(PhaseScoping))
	require.NoError(t, f.Transition(PhasePlanningLite))
	require.NoError(t, f.Transition(PhaseExecuting))
	require.NoError(t, f.Transition(PhaseConverging))
	require.NoError(t, f.Transition(PhaseExecuting))
	require.NoError(t, f.Transition(PhaseVerifying))
	require.NoError(t, f.Transition(PhaseReporting))
	require.NoError(t, f.Transition(PhaseCompleted))

	assert.True(t, f.IsTerminal())
}

func TestFSM_DisallowedTransitionErrors(t *testing.T) {
	f := NewFSM()
	err := f.Transition(PhaseCompleted)
	require.Error(t, err)
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, PhaseInit, terr.From)
	assert.Equal(t, PhaseCompleted, terr.To)
}

func TestFSM_TerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	f := NewFSM()
	require.NoError(t, f.Transition(PhaseExecuting))
	require.NoError(t, f.Transition(PhaseReporting))
	require.NoError(t, f.Transition(PhaseFailed))

	assert.True(t, f.IsTerminal())
	assert.Error(t, f.Transition(PhaseExecuting))
}

func TestFSM_DurationsAggregatePerState(t *testing.T) {
	f := NewFSM()
	require.NoError(t, f.Transition(PhaseExecuting))
	require.NoError(t, f.Transition(PhaseConverging))
	require.NoError(t, f.Transition(PhaseExecuting))

	durations := f.Durations()
	// init and the two executing visits should both have accumulated time.
	assert.Contains(t, durations, PhaseInit)
	assert.Contains(t, durations, PhaseExecuting)
	assert.Contains(t, durations, PhaseConverging)
	assert.Len(t, f.History(), 3)
}
