package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultProofSet() []ProofCase {
	return []ProofCase{
		{Used: 10, Capacity: 100, Domain: DomainContext{LatencyBucketNanos: 100}},
		{Used: 85, Capacity: 100, Domain: DomainContext{QueueHeadroom: 15}},
		{Used: 100, Capacity: 100},
	}
}

func TestProveIsomorphism_HFTAdapter(t *testing.T) {
	c := DefaultCatalog()
	policy, ok := c.Policy(ProfileHFT)
	require.True(t, ok)

	a := NewHFTAdapter()
	var observed []Decision
	a.OnDecision = func(_ DomainContext, d Decision) { observed = append(observed, d) }

	failedAt, isomorphic := ProveIsomorphism(a, policy, defaultProofSet())
	assert.Equal(t, -1, failedAt)
	assert.True(t, isomorphic)
	assert.Len(t, observed, len(defaultProofSet()))
}

func TestProveIsomorphism_AutomotiveAndRouterAdapters(t *testing.T) {
	c := DefaultCatalog()

	autoPolicy, ok := c.Policy(ProfileAutomotive)
	require.True(t, ok)
	_, isomorphic := ProveIsomorphism(NewAutomotiveAdapter(), autoPolicy, defaultProofSet())
	assert.True(t, isomorphic)

	routerPolicy, ok := c.Policy(ProfileEmbeddedRouter)
	require.True(t, ok)
	_, isomorphic = ProveIsomorphism(NewRouterAdapter(), routerPolicy, defaultProofSet())
	assert.True(t, isomorphic)
}

// brokenAdapter deliberately lets its domain annotation influence the
// returned Decision, violating §4.11's observability-only requirement.
type brokenAdapter struct {
	catalogAdapter
}

func (b *brokenAdapter) Decide(policy Policy, used, capacity int, domain DomainContext) Decision {
	if domain.LatencyBucketNanos > 0 {
		return DecisionThrottle
	}
	return Evaluate(policy, used, capacity)
}

func TestProveIsomorphism_DetectsAnnotationLeakage(t *testing.T) {
	c := DefaultCatalog()
	policy, ok := c.Policy(ProfileCore)
	require.True(t, ok)

	a := &brokenAdapter{catalogAdapter{name: "broken"}}
	proof := []ProofCase{
		{Used: 10, Capacity: 100, Domain: DomainContext{LatencyBucketNanos: 100}},
	}
	failedAt, isomorphic := ProveIsomorphism(a, policy, proof)
	assert.Equal(t, 0, failedAt)
	assert.False(t, isomorphic)
}

func TestAdapter_NameIdentifiesDomain(t *testing.T) {
	assert.Equal(t, "hft", NewHFTAdapter().Name())
	assert.Equal(t, "automotive", NewAutomotiveAdapter().Name())
	assert.Equal(t, "router", NewRouterAdapter().Name())
}
