package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChannel_CapacityInvariant is the literal "Channel capacity = 4, send
// 4 / recv 1 / send 1" seed scenario (§8): reserve+send four times fills
// the channel, a fifth reserve fails ChannelFull, a recv frees one slot,
// and the invariant |queue|+|reserved| <= capacity holds at every step.
func TestChannel_CapacityInvariant(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, err := s.OpenRegion(NilHandle)
	require.Nil(t, err)

	ch, err := s.OpenChannel(region, 4)
	require.Nil(t, err)

	assertInvariant := func() {
		q, qerr := s.QueueLen(ch)
		require.Nil(t, qerr)
		r, rerr := s.Reserved(ch)
		require.Nil(t, rerr)
		cap_, cerr := s.Capacity(ch)
		require.Nil(t, cerr)
		assert.LessOrEqual(t, q+r, cap_)
	}

	for i := 0; i < 4; i++ {
		p, perr := s.TryReserve(ch)
		require.Nil(t, perr)
		require.Nil(t, s.Send(p, i))
		assertInvariant()
	}

	_, ferr := s.TryReserve(ch)
	require.NotNil(t, ferr)
	assert.Equal(t, ChannelFull, ferr.Code)

	v, rerr := s.TryRecv(ch)
	require.Nil(t, rerr)
	assert.Equal(t, 0, v)
	assertInvariant()

	p, perr := s.TryReserve(ch)
	require.Nil(t, perr)
	require.Nil(t, s.Send(p, 99))
	assertInvariant()
}

func TestChannel_AbortReleasesReservation(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 1)

	p, err := s.TryReserve(ch)
	require.Nil(t, err)
	require.Nil(t, s.Abort(p))

	r, _ := s.Reserved(ch)
	assert.Equal(t, 0, r)

	// abort is exactly-once: resolving the same permit twice fails.
	err2 := s.Abort(p)
	require.NotNil(t, err2)
	assert.Equal(t, ObligationAlreadyResolved, err2.Code)
}

func TestChannel_SenderCloseRejectsNewReserves(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 2)

	p, err := s.TryReserve(ch)
	require.Nil(t, err)

	require.Nil(t, s.CloseSender(ch))

	_, err2 := s.TryReserve(ch)
	require.NotNil(t, err2)
	assert.Equal(t, InvalidState, err2.Code)

	// outstanding permits still resolve after sender-close.
	require.Nil(t, s.Send(p, "late"))
}

func TestChannel_ReceiverCloseDisconnectsPermits(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 2)

	p, err := s.TryReserve(ch)
	require.Nil(t, err)

	require.Nil(t, s.CloseReceiver(ch))

	err2 := s.Send(p, "dropped")
	require.NotNil(t, err2)
	assert.Equal(t, Disconnected, err2.Code)

	_, err3 := s.TryReserve(ch)
	require.NotNil(t, err3)
	assert.Equal(t, Disconnected, err3.Code)
}

func TestChannel_FullyClosed(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 1)

	closed, err := s.FullyClosed(ch)
	require.Nil(t, err)
	assert.False(t, closed)

	require.Nil(t, s.CloseSender(ch))
	require.Nil(t, s.CloseReceiver(ch))

	closed, err = s.FullyClosed(ch)
	require.Nil(t, err)
	assert.True(t, closed)
}

func TestChannel_TryRecvWouldBlock(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 1)

	_, err := s.TryRecv(ch)
	require.NotNil(t, err)
	assert.Equal(t, WouldBlock, err.Code)
}

func TestChannel_WaiterFIFO(t *testing.T) {
	s := NewStore(DefaultRuntimeConfig())
	region, _ := s.OpenRegion(NilHandle)
	ch, _ := s.OpenChannel(region, 1)
	taskA, _ := s.Spawn(region, func(*PollContext) (PollStatus, error) { return Pending, nil })
	taskB, _ := s.Spawn(region, func(*PollContext) (PollStatus, error) { return Pending, nil })

	require.Nil(t, s.ParkReceiver(ch, taskA))
	require.Nil(t, s.ParkReceiver(ch, taskB))

	woken, ok, err := s.WakeOneReceiver(ch)
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, taskA, woken)

	woken, ok, err = s.WakeOneReceiver(ch)
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, taskB, woken)
}
