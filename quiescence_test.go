package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestQuiescence_MostSpecificPrecedence confirms Check returns the most
// specific blocking code, in precedence order: TasksStillActive before
// ObligationsUnresolved before RegionsNotClosed before TimersPending before
// IncompleteChildren (§8 property: "most-specific-error precedence").
func TestQuiescence_MostSpecificPrecedence(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)

	_, err = s.Spawn(region, func(*PollContext) (PollStatus, error) { return Pending, nil })
	require.Nil(t, err)
	_, err = s.ReserveObligation(region)
	require.Nil(t, err)

	// both a live task and an unresolved obligation are present: the task
	// blocks first.
	qerr := s.Check(region)
	require.NotNil(t, qerr)
	assert.Equal(t, TasksStillActive, qerr.Code)
}

func TestQuiescence_ObligationsBeforeChildRegions(t *testing.T) {
	cfg := NewRuntimeConfig(WithLeakResponse(LeakRecover))
	s := NewStore(cfg)
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)
	_, err = s.OpenRegion(region) // child stays Open, never closed
	require.Nil(t, err)
	_, err = s.ReserveObligation(region)
	require.Nil(t, err)

	qerr := s.Check(region)
	require.NotNil(t, qerr)
	assert.Equal(t, ObligationsUnresolved, qerr.Code)
}

func TestQuiescence_RegionsNotClosed(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)
	_, err = s.OpenRegion(region)
	require.Nil(t, err)

	qerr := s.Check(region)
	require.NotNil(t, qerr)
	assert.Equal(t, RegionsNotClosed, qerr.Code)
}

// TestQuiescence_NoNonTerminalDescendants is the "no non-terminal
// descendants of any kind" property (§8 property #6): once every task,
// obligation, child region, timer, and channel reaches a terminal state,
// Check reports Ok.
func TestQuiescence_NoNonTerminalDescendants(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)

	task, err := s.Spawn(region, func(*PollContext) (PollStatus, error) { return Done, nil })
	require.Nil(t, err)
	ob, err := s.ReserveObligation(region)
	require.Nil(t, err)
	th, err := s.ArmTimer(region, 10, NilHandle)
	require.Nil(t, err)
	ch, err := s.OpenChannel(region, 1)
	require.Nil(t, err)

	qerr := s.Check(region)
	require.NotNil(t, qerr) // task still Created/not completed

	// resolve every non-task descendant first so the kernel's quiescence
	// check only has the task left to wait on.
	require.Nil(t, s.CommitObligation(ob))
	require.Nil(t, s.CancelTimer(th))
	require.Nil(t, s.CloseSender(ch))
	require.Nil(t, s.CloseReceiver(ch))

	k := NewKernel(s)
	require.Nil(t, k.Run(region, Budget{Polls: 100, Time: 1e9}))

	td, _ := s.resolveTask("test", task)
	assert.True(t, td.state.isTerminal())

	assert.Nil(t, s.Check(region))
}
