package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLedger_RecordAndOverflow(t *testing.T) {
	l := newErrorLedger(2)
	l.record(1, newError("op1", InvalidArgument))
	l.record(2, newError("op2", WouldBlock))
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Overflow())

	l.record(3, newError("op3", ChannelFull))
	assert.True(t, l.Overflow())
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "op2", l.At(0).Op)
	assert.Equal(t, "op3", l.At(1).Op)
}

func TestErrorLedger_NilSafe(t *testing.T) {
	var l *ErrorLedger
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Overflow())
	l.record(1, newError("op", InvalidArgument)) // must not panic
}

func TestErrorLedger_RecordIgnoresNilError(t *testing.T) {
	l := newErrorLedger(4)
	l.record(1, nil)
	assert.Equal(t, 0, l.Len())
}

func TestStore_PropagateRecordsIntoTaskLedger(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)
	task, err := s.Spawn(region, func(*PollContext) (PollStatus, error) {
		return Done, newError("poll", InvalidState)
	})
	require.Nil(t, err)

	k := NewKernel(s)
	require.Nil(t, k.Run(region, Budget{Polls: 10, Time: 1e9}))

	ledger, lerr := s.TaskLedger(task)
	require.Nil(t, lerr)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, InvalidState, ledger.At(0).Code)
}

func TestStore_PropagateReturnsErrorUnchanged(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)
	task, err := s.Spawn(region, func(*PollContext) (PollStatus, error) { return Done, nil })
	require.Nil(t, err)

	orig := newError("test", ChannelFull)
	got := s.propagate(task, orig)
	assert.Same(t, orig, got)
	assert.Nil(t, s.propagate(task, nil))
}
