package asx

// Profile is an operational parameter set. Profiles never alter
// state-machine legality, cancel protocol, obligation linearity, error
// codes, quiescence, or digest outcome for the shared fixture set — they
// only scale capacities and select the overload policy (§4.10).
type Profile uint8

const (
	ProfileCore Profile = iota
	ProfilePOSIX
	ProfileWin32
	ProfileFreestanding
	ProfileEmbeddedRouter
	ProfileHFT
	ProfileAutomotive
	ProfileParallel
)

func (p Profile) String() string {
	switch p {
	case ProfileCore:
		return "Core"
	case ProfilePOSIX:
		return "POSIX"
	case ProfileWin32:
		return "Win32"
	case ProfileFreestanding:
		return "Freestanding"
	case ProfileEmbeddedRouter:
		return "EmbeddedRouter"
	case ProfileHFT:
		return "HFT"
	case ProfileAutomotive:
		return "Automotive"
	case ProfileParallel:
		return "Parallel"
	default:
		return "Unknown"
	}
}

// ResourceClass scales arena capacities and trace ring size.
type ResourceClass uint8

const (
	ResourceClassR1 ResourceClass = iota // smallest: embedded/freestanding
	ResourceClassR2                      // default: POSIX/Win32/Core
	ResourceClassR3                      // largest: HFT/automotive/router headroom
)

// WaitPolicy governs how the scheduler behaves when there is no ready work
// and a platform adapter is waiting for more (observability only in the
// deterministic core; the core scheduler never actually sleeps/spins).
type WaitPolicy uint8

const (
	WaitBusySpin WaitPolicy = iota
	WaitYield
	WaitSleep
)

// LeakResponse governs what happens to obligations still Reserved when
// their region reaches Finalizing.
type LeakResponse uint8

const (
	// LeakLog accepts Leaked as a terminal state, recording it to the
	// logging facade but not failing the close.
	LeakLog LeakResponse = iota
	// LeakPanic treats any unresolved obligation at close as a programming
	// error and panics.
	LeakPanic
	// LeakSilent accepts Leaked with no log output.
	LeakSilent
	// LeakRecover surfaces UnresolvedObligations from AdvanceRegionClose
	// instead of transitioning to Leaked, letting the caller recover.
	LeakRecover
)

// FinalizerEscalation governs how a cleanup-budget overrun during a
// region's Finalizing phase is surfaced.
type FinalizerEscalation uint8

const (
	EscalationSoft FinalizerEscalation = iota
	EscalationBoundedLog
	EscalationBoundedPanic
)

// Ceilings are the fixed arena capacities and per-region sub-limits that
// bound every allocation in a Store. RESOURCE_EXHAUSTED surfaces whenever
// one is reached; there is no dynamic growth (§1 Non-goals).
type Ceilings struct {
	Regions       int
	Tasks         int
	Obligations   int
	Channels      int
	Witnesses     int
	Timers        int
	TraceCapacity int

	ChildrenPerRegion    int
	TasksPerRegion       int
	ObligationsPerRegion int
	TimersPerRegion      int
	ChannelsPerRegion    int
}

func ceilingsForClass(class ResourceClass) Ceilings {
	switch class {
	case ResourceClassR1:
		return Ceilings{
			Regions: 64, Tasks: 256, Obligations: 256, Channels: 64, Witnesses: 256,
			Timers: 256, TraceCapacity: 1024,
			ChildrenPerRegion: 16, TasksPerRegion: 64, ObligationsPerRegion: 64,
			TimersPerRegion: 64, ChannelsPerRegion: 16,
		}
	case ResourceClassR3:
		return Ceilings{
			Regions: 4096, Tasks: 65536, Obligations: 65536, Channels: 4096, Witnesses: 65536,
			Timers: 65536, TraceCapacity: 262144,
			ChildrenPerRegion: 1024, TasksPerRegion: 8192, ObligationsPerRegion: 8192,
			TimersPerRegion: 8192, ChannelsPerRegion: 1024,
		}
	default: // ResourceClassR2
		return Ceilings{
			Regions: 512, Tasks: 8192, Obligations: 8192, Channels: 512, Witnesses: 8192,
			Timers: 8192, TraceCapacity: 32768,
			ChildrenPerRegion: 128, TasksPerRegion: 1024, ObligationsPerRegion: 1024,
			TimersPerRegion: 1024, ChannelsPerRegion: 128,
		}
	}
}

// RuntimeConfig is the size-versioned runtime configuration struct
// enumerated by §6: profile, wait policy, leak response, finalizer
// budgets/escalation, cancel-chain ceilings, and resource ceilings.
type RuntimeConfig struct {
	// ConfigVersion is bumped whenever this struct's shape changes in a
	// way that affects the external contract.
	ConfigVersion int

	Profile       Profile
	ResourceClass ResourceClass
	WaitPolicy    WaitPolicy
	LeakResponse  LeakResponse

	FinalizerPollBudget int64
	FinalizerTimeBudget int64 // nanoseconds; kept as an integer, not time.Duration, for size-versioned serialization stability
	FinalizerEscalation FinalizerEscalation

	MaxCancelChainDepth  int
	MaxCancelChainMemory int

	// ErrorLedgerCapacity bounds each task's observational propagation
	// ledger (§7); it never affects control flow, only post-mortem depth.
	ErrorLedgerCapacity int

	Ceilings Ceilings

	// Clock, Entropy, and Logger are platform hooks (§6). Validate reports
	// HOOK_MISSING for a nil Clock or Entropy. NewStore does not call
	// Validate: it substitutes a seeded clock and seeded entropy for a nil
	// Clock or Entropy, and NewNoOpLogger for a nil Logger.
	Clock   Clock
	Entropy Entropy
	Logger  Logger
}

const currentConfigVersion = 1

// DefaultRuntimeConfig returns the Core profile's default configuration at
// resource class R2.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		ConfigVersion:        currentConfigVersion,
		Profile:              ProfileCore,
		ResourceClass:        ResourceClassR2,
		WaitPolicy:           WaitYield,
		LeakResponse:         LeakLog,
		FinalizerPollBudget:  64,
		FinalizerTimeBudget:  int64(time250ms),
		FinalizerEscalation:  EscalationBoundedLog,
		MaxCancelChainDepth:  maxCauseDepth,
		MaxCancelChainMemory: 4096,
		ErrorLedgerCapacity:  16,
	}
}

const time250ms = 250_000_000 // nanoseconds

// Option configures a RuntimeConfig, in the teacher's functional-options
// idiom (a typed interface wrapping a closure, rather than a bare func
// type, so future option kinds can carry validation without changing the
// exported signature).
type Option interface {
	apply(*RuntimeConfig)
}

type optionFunc struct{ fn func(*RuntimeConfig) }

func (o *optionFunc) apply(cfg *RuntimeConfig) { o.fn(cfg) }

func WithProfile(p Profile) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.Profile = p }}
}

func WithResourceClass(c ResourceClass) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.ResourceClass = c }}
}

func WithWaitPolicy(w WaitPolicy) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.WaitPolicy = w }}
}

func WithLeakResponse(l LeakResponse) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.LeakResponse = l }}
}

func WithFinalizerBudget(polls int64, nanos int64) Option {
	return &optionFunc{func(cfg *RuntimeConfig) {
		cfg.FinalizerPollBudget = polls
		cfg.FinalizerTimeBudget = nanos
	}}
}

func WithClock(c Clock) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.Clock = c }}
}

func WithEntropy(e Entropy) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.Entropy = e }}
}

func WithLogger(l Logger) Option {
	return &optionFunc{func(cfg *RuntimeConfig) { cfg.Logger = l }}
}

// NewRuntimeConfig builds a RuntimeConfig from DefaultRuntimeConfig plus
// opts, applied in order.
func NewRuntimeConfig(opts ...Option) RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&cfg)
	}
	return cfg
}

// withDefaults fills in Ceilings from Profile/ResourceClass if the caller
// left it zero-valued, and substitutes a deterministic seeded clock/entropy
// plus the no-op logger for any hook left nil.
func (cfg RuntimeConfig) withDefaults() RuntimeConfig {
	if cfg.Ceilings == (Ceilings{}) {
		cfg.Ceilings = ceilingsForClass(cfg.ResourceClass)
	}
	if cfg.Clock == nil {
		cfg.Clock = NewSeededClock(0)
	}
	if cfg.Entropy == nil {
		cfg.Entropy = NewSeededEntropy(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNoOpLogger()
	}
	if cfg.MaxCancelChainDepth == 0 {
		cfg.MaxCancelChainDepth = maxCauseDepth
	}
	if cfg.ErrorLedgerCapacity == 0 {
		cfg.ErrorLedgerCapacity = 16
	}
	return cfg
}

// Validate returns HookMissing if a required platform hook is absent for
// the selected profile, HookInvalid if a hook is present but structurally
// unusable (e.g. a ResourceClass with no matching ceiling table, handled
// internally so this currently never fires — reserved for adapter-supplied
// hooks that fail a self-check).
func (cfg RuntimeConfig) Validate() *Error {
	const op = "Validate"
	if cfg.Clock == nil {
		return newError(op, HookMissing)
	}
	if cfg.Entropy == nil {
		return newError(op, HookMissing)
	}
	return nil
}
