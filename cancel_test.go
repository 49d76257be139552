package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelKind_SeverityOrdering(t *testing.T) {
	assert.Less(t, CancelUser.Severity(), CancelPollQuota.Severity())
	assert.Less(t, CancelPollQuota.Severity(), CancelFailFast.Severity())
	assert.Less(t, CancelFailFast.Severity(), CancelParent.Severity())
	assert.Less(t, CancelParent.Severity(), CancelShutdown.Severity())
	// timeout and deadline share a band.
	assert.Equal(t, CancelTimeout.Severity(), CancelDeadline.Severity())
}

// TestStrengthenReason_SeedScenario is the literal "Cancel strengthening"
// end-to-end scenario from §8: Timeout, then Parent (wins), then User
// (does not weaken it back).
func TestStrengthenReason_SeedScenario(t *testing.T) {
	var reason *CancelReason
	reason = strengthenReason(reason, &CancelReason{Kind: CancelTimeout, At: 1})
	assert.Equal(t, CancelTimeout, reason.Kind)

	reason = strengthenReason(reason, &CancelReason{Kind: CancelParent, At: 2})
	assert.Equal(t, CancelParent, reason.Kind)

	reason = strengthenReason(reason, &CancelReason{Kind: CancelUser, At: 3})
	assert.Equal(t, CancelParent, reason.Kind, "a weaker kind must never displace a stronger one")
}

// TestStrengthenReason_EqualSeverityEarlierTimestampWins confirms the
// tie-break rule: on equal severity, the earlier timestamp is kept.
func TestStrengthenReason_EqualSeverityEarlierTimestampWins(t *testing.T) {
	a := &CancelReason{Kind: CancelTimeout, At: 10}
	b := &CancelReason{Kind: CancelDeadline, At: 5} // same severity band as Timeout
	got := strengthenReason(a, b)
	assert.Equal(t, int64(5), got.At)

	// reversed order: still the earlier timestamp survives.
	got2 := strengthenReason(b, a)
	assert.Equal(t, int64(5), got2.At)
}

func TestStrengthenReason_NilOperands(t *testing.T) {
	r := &CancelReason{Kind: CancelUser, At: 1}
	assert.Equal(t, r, strengthenReason(nil, r))
	assert.Equal(t, r, strengthenReason(r, nil))
	assert.Nil(t, strengthenReason(nil, nil))
}

func TestTruncateCause_BoundedDepth(t *testing.T) {
	var chain *CancelReason
	for i := 0; i < maxCauseDepth+10; i++ {
		chain = &CancelReason{Kind: CancelUser, At: int64(i), Cause: chain}
	}
	out := truncateCause(chain)
	depth := 0
	for cur := out; cur != nil; cur = cur.Cause {
		depth++
	}
	assert.LessOrEqual(t, depth, maxCauseDepth)
}

func TestWitness_PhaseNeverRegresses(t *testing.T) {
	w := &Witness{}
	require.Nil(t, w.advancePhase("test", PhaseCancelling))
	require.Nil(t, w.advancePhase("test", PhaseFinalizing))

	err := w.advancePhase("test", PhaseRequested)
	require.NotNil(t, err)
	assert.Equal(t, WitnessPhaseRegression, err.Code)

	// re-asserting the current phase is a no-op, not a regression.
	assert.Nil(t, w.advancePhase("test", PhaseFinalizing))
}

func TestWitness_StrengthenNeverWeakens(t *testing.T) {
	w := &Witness{}
	w.strengthen(&CancelReason{Kind: CancelParent, At: 1})
	w.strengthen(&CancelReason{Kind: CancelUser, At: 2})
	assert.Equal(t, CancelParent, w.Reason.Kind)
}
