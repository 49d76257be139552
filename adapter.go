package asx

// Adapter is a vertical accelerator's pluggable seam: an optional
// domain-specific decision path (Decide) that must be provably isomorphic
// to the catalog fallback (Fallback) before it is allowed to alter what
// gets observed (§4.11). Modeled on the general interface-plus-reference-
// implementation idiom the teacher uses elsewhere for pluggable backends
// (e.g. eventloop.FastPoller, logiface's Logger/Writer seam): a narrow
// interface plus a fallback that must agree with it (see DESIGN.md — no
// single teacher file covers this directly).
type Adapter interface {
	// Name identifies the adapter for telemetry/diagnostics.
	Name() string
	// Decide is the accelerated decision path, optionally annotated with
	// domain context (latency histogram bucket, deadline audit, queue
	// headroom). Annotations are observability-only: they must never
	// influence the returned Decision, only what gets logged alongside it.
	Decide(policy Policy, used, capacity int, domain DomainContext) Decision
	// Fallback is the catalog-only decision path, ignoring domain context
	// entirely.
	Fallback(policy Policy, used, capacity int) Decision
}

// DomainContext carries adapter-specific annotations that must remain
// observability-only. The zero value means "no domain context supplied."
type DomainContext struct {
	LatencyBucketNanos int64 // histogram bucket the triggering event fell into
	DeadlineAuditNanos int64 // margin remaining against the nearest deadline
	QueueHeadroom      int   // capacity - used, snapshotted at decision time
}

// ProofCase is one (used, capacity[, domain]) point in an adapter's
// declared isomorphism proof set.
type ProofCase struct {
	Used     int
	Capacity int
	Domain   DomainContext
}

// ProveIsomorphism checks that a.Decide and a.Fallback agree on every case
// in proofSet for the given policy, returning the first mismatching case's
// index and false on the first disagreement, or (-1, true) if every case
// agrees. This is the adapter's required proof obligation (§4.11): an
// adapter that cannot pass this for its declared proof set must not ship.
func ProveIsomorphism(a Adapter, policy Policy, proofSet []ProofCase) (failedAt int, ok bool) {
	for i, c := range proofSet {
		accelerated := a.Decide(policy, c.Used, c.Capacity, c.Domain)
		fallback := a.Fallback(policy, c.Used, c.Capacity)
		if accelerated != fallback {
			return i, false
		}
	}
	return -1, true
}

// catalogAdapter is the base implementation every vertical adapter
// embeds: Fallback always defers to the pure Evaluate function, so only
// Decide needs to be overridden per domain, and the override is checked
// against exactly this Fallback by ProveIsomorphism.
type catalogAdapter struct {
	name string
}

func (c catalogAdapter) Name() string { return c.name }

func (c catalogAdapter) Fallback(policy Policy, used, capacity int) Decision {
	return Evaluate(policy, used, capacity)
}

// HFTAdapter accelerates the HFT profile's decision with a latency-bucket
// annotation. The decision itself is identical to the catalog fallback;
// only the annotation accompanying it differs, which is exactly what
// ProveIsomorphism is required to confirm.
type HFTAdapter struct {
	catalogAdapter
	// OnDecision, if set, receives the domain annotation for observability
	// (e.g. wiring into a latency histogram). It must never be consulted
	// to compute the returned Decision.
	OnDecision func(domain DomainContext, decision Decision)
}

// NewHFTAdapter constructs an HFTAdapter.
func NewHFTAdapter() *HFTAdapter {
	return &HFTAdapter{catalogAdapter: catalogAdapter{name: "hft"}}
}

func (a *HFTAdapter) Decide(policy Policy, used, capacity int, domain DomainContext) Decision {
	decision := Evaluate(policy, used, capacity)
	if a.OnDecision != nil {
		a.OnDecision(domain, decision)
	}
	return decision
}

// AutomotiveAdapter accelerates the Automotive profile's decision with a
// deadline-audit annotation.
type AutomotiveAdapter struct {
	catalogAdapter
	OnDecision func(domain DomainContext, decision Decision)
}

// NewAutomotiveAdapter constructs an AutomotiveAdapter.
func NewAutomotiveAdapter() *AutomotiveAdapter {
	return &AutomotiveAdapter{catalogAdapter: catalogAdapter{name: "automotive"}}
}

func (a *AutomotiveAdapter) Decide(policy Policy, used, capacity int, domain DomainContext) Decision {
	decision := Evaluate(policy, used, capacity)
	if a.OnDecision != nil {
		a.OnDecision(domain, decision)
	}
	return decision
}

// RouterAdapter accelerates the EmbeddedRouter profile's decision with a
// queue-headroom annotation.
type RouterAdapter struct {
	catalogAdapter
	OnDecision func(domain DomainContext, decision Decision)
}

// NewRouterAdapter constructs a RouterAdapter.
func NewRouterAdapter() *RouterAdapter {
	return &RouterAdapter{catalogAdapter: catalogAdapter{name: "router"}}
}

func (a *RouterAdapter) Decide(policy Policy, used, capacity int, domain DomainContext) Decision {
	decision := Evaluate(policy, used, capacity)
	if a.OnDecision != nil {
		a.OnDecision(domain, decision)
	}
	return decision
}
