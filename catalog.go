package asx

import "fmt"

// OverloadMode is one of the three admission strategies a profile's
// overload policy may select.
type OverloadMode uint8

const (
	ModeReject OverloadMode = iota
	ModeShedOldest
	ModeBackpressure
)

func (m OverloadMode) String() string {
	switch m {
	case ModeReject:
		return "Reject"
	case ModeShedOldest:
		return "ShedOldest"
	case ModeBackpressure:
		return "Backpressure"
	default:
		return "Unknown"
	}
}

// DegradeClass is the observable consequence a policy's mode degrades to
// under sustained overload.
type DegradeClass uint8

const (
	DegradeNone DegradeClass = iota
	DegradeShedTail
	DegradeBackpressure
	DegradeWatchdogTrip
)

func (d DegradeClass) String() string {
	switch d {
	case DegradeNone:
		return "None"
	case DegradeShedTail:
		return "ShedTail"
	case DegradeBackpressure:
		return "Backpressure"
	case DegradeWatchdogTrip:
		return "WatchdogTrip"
	default:
		return "Unknown"
	}
}

// Decision is the pure outcome of evaluating a Policy against current
// usage: Admit (proceed), Shed (the threshold is reached under ModeReject or
// ModeShedOldest; Evaluate returns Shed for both modes), or Throttle (apply
// backpressure to the caller without admitting).
type Decision uint8

const (
	DecisionAdmit Decision = iota
	DecisionShed
	DecisionThrottle
)

func (d Decision) String() string {
	switch d {
	case DecisionAdmit:
		return "Admit"
	case DecisionShed:
		return "Shed"
	case DecisionThrottle:
		return "Throttle"
	default:
		return "Unknown"
	}
}

// Policy is one catalog entry: the overload behavior for a single profile.
// Grounded on catrate.Limiter's per-category rate table shape
// (map[time.Duration]int plus a pure Allow decision) — generalized here
// from a live sliding-window limiter to a pure function of
// (policy, used, capacity), since the kernel must never depend on
// wall-clock event timing for a decision (see DESIGN.md).
type Policy struct {
	Profile        Profile
	Mode           OverloadMode
	ThresholdPct   int // admission threshold, percent of capacity
	ShedMax        int // max items sheddable per evaluation, ShedOldest only
	Degrade        DegradeClass
	ForbiddenFlags []string
	Rationale      string
	FixtureIDs     []string
	ParityGate     bool // true if this entry participates in cross-profile parity proofs
}

// Catalog holds exactly one Policy per Profile.
type Catalog struct {
	entries map[Profile]Policy
}

// validateEntry enforces §4.10's structural rules, panicking on violation —
// matching catrate.NewLimiter's "panics if rates are invalid" contract for
// a table that is wrong by construction, not by runtime condition.
func validateEntry(p Policy) {
	if p.Rationale == "" {
		panic(fmt.Errorf("asx: catalog: profile %s: empty rationale", p.Profile))
	}
	if len(p.FixtureIDs) == 0 {
		panic(fmt.Errorf("asx: catalog: profile %s: no linked fixtures", p.Profile))
	}
	switch p.Mode {
	case ModeReject:
		if p.ShedMax != 0 || p.Degrade != DegradeNone {
			panic(fmt.Errorf("asx: catalog: profile %s: Reject requires shed_max=0, degrade=None", p.Profile))
		}
	case ModeShedOldest:
		if p.ShedMax <= 0 || p.Degrade != DegradeShedTail {
			panic(fmt.Errorf("asx: catalog: profile %s: ShedOldest requires shed_max>0, degrade=ShedTail", p.Profile))
		}
	case ModeBackpressure:
		if p.ShedMax != 0 || (p.Degrade != DegradeBackpressure && p.Degrade != DegradeWatchdogTrip) {
			panic(fmt.Errorf("asx: catalog: profile %s: Backpressure requires shed_max=0, degrade in {Backpressure,WatchdogTrip}", p.Profile))
		}
	default:
		panic(fmt.Errorf("asx: catalog: profile %s: unknown mode %d", p.Profile, p.Mode))
	}
}

// NewCatalog builds a Catalog from entries, validating every entry's
// structural rules and that each Profile appears exactly once. Panics (a
// startup/CI-time check per §4.10, not a runtime error) on violation.
func NewCatalog(entries []Policy) *Catalog {
	c := &Catalog{entries: make(map[Profile]Policy, len(entries))}
	for _, p := range entries {
		validateEntry(p)
		if _, dup := c.entries[p.Profile]; dup {
			panic(fmt.Errorf("asx: catalog: duplicate entry for profile %s", p.Profile))
		}
		c.entries[p.Profile] = p
	}
	return c
}

// Policy returns the catalog entry for p, or ok=false if none registered.
func (c *Catalog) Policy(p Profile) (Policy, bool) {
	entry, ok := c.entries[p]
	return entry, ok
}

// Evaluate is the pure decision function: given a policy and current
// (used, capacity), returns the admission decision. It depends on nothing
// but its three arguments — no wall clock, no live state — so repeated
// calls with identical inputs always agree (§4.10, §8 property coverage).
func Evaluate(policy Policy, used, capacity int) Decision {
	if capacity <= 0 {
		return DecisionAdmit
	}
	pct := used * 100 / capacity
	if pct < policy.ThresholdPct {
		return DecisionAdmit
	}
	switch policy.Mode {
	case ModeReject:
		return DecisionShed
	case ModeShedOldest:
		return DecisionShed
	case ModeBackpressure:
		return DecisionThrottle
	default:
		return DecisionShed
	}
}

// DefaultCatalog returns the built-in one-entry-per-profile catalog this
// kernel ships. EmbeddedRouter and Parallel inherit Core's reject-only
// posture: EmbeddedRouter because freestanding/embedded targets have no
// room for shed/backpressure bookkeeping, Parallel because its lane-level
// ordering is an open question (§9) not yet committed to a richer policy.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Policy{
		{
			Profile: ProfileCore, Mode: ModeReject, ThresholdPct: 100,
			Rationale:  "core profile has no degraded mode: admission ceilings are the sole overload control",
			FixtureIDs: []string{"core.reject.basic"}, ParityGate: true,
		},
		{
			Profile: ProfilePOSIX, Mode: ModeShedOldest, ThresholdPct: 90, ShedMax: 16,
			Degrade:    DegradeShedTail,
			Rationale:  "POSIX hosts have enough headroom to shed the oldest queued work rather than reject outright",
			FixtureIDs: []string{"posix.shed.basic"}, ParityGate: true,
		},
		{
			Profile: ProfileWin32, Mode: ModeShedOldest, ThresholdPct: 90, ShedMax: 16,
			Degrade:    DegradeShedTail,
			Rationale:  "mirrors POSIX: shed-oldest under sustained overload on desktop-class hosts",
			FixtureIDs: []string{"win32.shed.basic"}, ParityGate: true,
		},
		{
			Profile: ProfileFreestanding, Mode: ModeReject, ThresholdPct: 100,
			Rationale:  "freestanding targets have fixed static arenas with no scheduler-level shed path",
			FixtureIDs: []string{"freestanding.reject.basic"}, ParityGate: true,
		},
		{
			Profile: ProfileEmbeddedRouter, Mode: ModeReject, ThresholdPct: 100,
			ForbiddenFlags: []string{"dynamic_heap"},
			Rationale:      "router firmware ceilings are fixed at build time; overload is a hard admission reject",
			FixtureIDs:     []string{"router.reject.basic"}, ParityGate: true,
		},
		{
			Profile: ProfileHFT, Mode: ModeBackpressure, ThresholdPct: 80,
			Degrade:    DegradeWatchdogTrip,
			Rationale:  "latency-sensitive path: throttle admission and trip a watchdog rather than reorder or drop",
			FixtureIDs: []string{"hft.backpressure.basic"}, ParityGate: false,
		},
		{
			Profile: ProfileAutomotive, Mode: ModeBackpressure, ThresholdPct: 85,
			Degrade:    DegradeBackpressure,
			Rationale:  "deadline-audited control loops apply backpressure upstream instead of silently dropping",
			FixtureIDs: []string{"automotive.backpressure.basic"}, ParityGate: false,
		},
		{
			Profile: ProfileParallel, Mode: ModeReject, ThresholdPct: 100,
			Rationale:  "parallel lane ordering vs. Core is an open question (§9); until resolved it inherits Core's reject-only posture",
			FixtureIDs: []string{"parallel.reject.basic"}, ParityGate: true,
		},
	})
}
