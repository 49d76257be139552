package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRegionTransitions_LegalTable confirms every legal region edge is
// accepted and every other pair is rejected (§8 property #2).
func TestRegionTransitions_LegalTable(t *testing.T) {
	legal := map[RegionState]RegionState{
		RegionOpen:       RegionClosing,
		RegionClosing:    RegionDraining,
		RegionDraining:   RegionFinalizing,
		RegionFinalizing: RegionClosed,
	}
	states := []RegionState{RegionOpen, RegionClosing, RegionDraining, RegionFinalizing, RegionClosed}
	for _, from := range states {
		for _, to := range states {
			want := legal[from] == to
			assert.Equalf(t, want, canTransitionRegion(from, to), "from=%s to=%s", from, to)
		}
	}
}

// TestTaskTransitions_LegalTable mirrors the above for tasks.
func TestTaskTransitions_LegalTable(t *testing.T) {
	cases := []struct {
		from TaskState
		to   TaskState
		want bool
	}{
		{TaskCreated, TaskRunning, true},
		{TaskCreated, TaskCompleted, false},
		{TaskRunning, TaskCancelRequested, true},
		{TaskRunning, TaskFinalizing, true},
		{TaskRunning, TaskCompleted, true},
		{TaskRunning, TaskCancelling, false},
		{TaskCancelRequested, TaskCancelling, true},
		{TaskCancelRequested, TaskFinalizing, true},
		{TaskCancelRequested, TaskCompleted, false},
		{TaskCancelling, TaskFinalizing, true},
		{TaskCancelling, TaskCompleted, false},
		{TaskFinalizing, TaskCompleted, true},
		{TaskCompleted, TaskRunning, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, canTransitionTask(c.from, c.to), "from=%s to=%s", c.from, c.to)
	}
}

// TestObligationTransitions_LeakedExcludedFromPublicTable confirms Leaked
// is unreachable through the public transition table (it is reachable only
// via the region-close policy path, leakObligation).
func TestObligationTransitions_LeakedExcludedFromPublicTable(t *testing.T) {
	assert.True(t, canTransitionObligation(ObligationReserved, ObligationCommitted))
	assert.True(t, canTransitionObligation(ObligationReserved, ObligationAborted))
	assert.False(t, canTransitionObligation(ObligationReserved, ObligationLeaked))
	assert.False(t, canTransitionObligation(ObligationCommitted, ObligationAborted))
	assert.False(t, canTransitionObligation(ObligationAborted, ObligationCommitted))
}

func TestStateStrings_NonEmpty(t *testing.T) {
	assert.Equal(t, "Open", RegionOpen.String())
	assert.Equal(t, "Unknown", RegionState(255).String())
	assert.Equal(t, "Created", TaskCreated.String())
	assert.Equal(t, "Unknown", TaskState(255).String())
	assert.Equal(t, "Reserved", ObligationReserved.String())
	assert.Equal(t, "Unknown", ObligationState(255).String())
}
