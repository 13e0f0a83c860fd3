package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_HappyPath(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StateUninitialized, s.State)

	require.NoError(t, s.Advance(StateAuthenticating))
	require.NoError(t, s.Advance(StateAuthenticated))
	require.NoError(t, s.Advance(StatePaginating))
	require.NoError(t, s.Advance(StateCompleted))

	assert.Equal(t, StateCompleted, s.State)
	assert.NotNil(t, s.CompletedAt)
	require.Len(t, s.History, 4)
	assert.Equal(t, StatePaginating, s.History[3].From)
}

func TestSession_FailFromAnyActiveState(t *testing.T) {
	for _, steps := range [][]State{
		{},
		{StateAuthenticating},
		{StateAuthenticating, StateAuthenticated},
		{StateAuthenticating, StateAuthenticated, StatePaginating},
	} {
		s := NewSession()
		for _, st := range steps {
			require.NoError(t, s.Advance(st))
		}
		require.NoError(t, s.Advance(StateFailed))
		assert.True(t, s.State.IsTerminal())
	}
}

func TestSession_RejectsSkippedStates(t *testing.T) {
	s := NewSession()
	err := s.Advance(StatePaginating)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot move")
	assert.Equal(t, StateUninitialized, s.State)
}

func TestSession_TerminalIsFinal(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Advance(StateFailed))
	assert.Error(t, s.Advance(StateAuthenticating))
	assert.Error(t, s.Advance(StateFailed))
}
