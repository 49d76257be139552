package asx

import "github.com/asx-systems/asx/internal/ring"

// PollStatus is a task poll function's cooperative-yield result.
type PollStatus uint8

const (
	// Pending signals cooperative yield: the task is not yet done.
	Pending PollStatus = iota
	// Done signals the task completed this poll.
	Done
)

// PollContext is passed to a task's poll function on every invocation.
type PollContext struct {
	Task   Handle
	Region Handle
	Store  *Store
}

// PollFunc is a task's cooperatively polled unit of work. Returning
// (Done, nil) completes with OutcomeOk; returning (_, err) promotes err to
// the task's outcome (OutcomeErr, or OutcomeCancelled/Panicked when the
// scheduler itself forces those due to cancellation or a recovered panic).
type PollFunc func(ctx *PollContext) (PollStatus, error)

type regionData struct {
	state       RegionState
	parent      Handle
	depth       int
	children    *ring.Queue[Handle]
	tasks       *ring.Queue[Handle]
	obligations *ring.Queue[Handle]
	timers      *ring.Queue[Handle]
	channels    *ring.Queue[Handle]
	witness     Handle
	leakPolicy  LeakResponse
}

type taskData struct {
	state    TaskState
	region   Handle
	poll     PollFunc
	polls    int64
	outcome  Outcome
	witness  Handle
	seq      uint64
	depth    int
	cleanup  Budget
	ledger   *ErrorLedger
}

type obligationData struct {
	state  ObligationState
	region Handle
}

// Store is the fixed-capacity handle store: one arena per entity type, plus
// the timer wheel (which owns its own internal arena) and channel arena.
// Every external reference into a Store is a Handle; every mutation goes
// through resolve+validate, never raw indexing.
type Store struct {
	cfg RuntimeConfig

	regions     *arena[regionData]
	tasks       *arena[taskData]
	obligations *arena[obligationData]
	channels    *chanArena
	witnesses   *arena[Witness]
	timers      *timerWheel

	nextTaskSeq uint64
	journal     *Journal
}

// NewStore allocates all arenas per cfg's resource ceilings and returns a
// ready Store with an empty telemetry journal.
func NewStore(cfg RuntimeConfig) *Store {
	cfg = cfg.withDefaults()
	s := &Store{
		cfg:         cfg,
		regions:     newArena[regionData](tagRegion, cfg.Ceilings.Regions),
		tasks:       newArena[taskData](tagTask, cfg.Ceilings.Tasks),
		obligations: newArena[obligationData](tagObligation, cfg.Ceilings.Obligations),
		channels:    newChanArena(cfg.Ceilings.Channels),
		witnesses:   newArena[Witness](tagWitness, cfg.Ceilings.Witnesses),
		timers:      newTimerWheel(cfg.Ceilings.Timers),
		journal:     newJournal(cfg.Ceilings.TraceCapacity),
	}
	// Wire the journal's tick source to the configured clock so every
	// recorded Event carries the scheduler's logical tick, not just its
	// monotonic Seq — required for deterministic replay comparisons that
	// key on tick (§4.9).
	s.journal.tickFn = cfg.Clock.Now
	return s
}

// OpenRegion creates a root region (parent == NilHandle) or a child of an
// existing Open-or-Draining region.
func (s *Store) OpenRegion(parent Handle) (Handle, *Error) {
	const op = "OpenRegion"
	depth := 0
	if !parent.IsNil() {
		pd, err := s.regions.resolve(op, parent)
		if err != nil {
			return NilHandle, err
		}
		if pd.state != RegionOpen && pd.state != RegionDraining {
			return NilHandle, newError(op, RegionNotOpen)
		}
		depth = pd.depth + 1
	}
	h, rd, err := s.regions.allocate(op)
	if err != nil {
		return NilHandle, err
	}
	*rd = regionData{
		state:       RegionOpen,
		parent:      parent,
		depth:       depth,
		children:    ring.NewQueue[Handle](s.cfg.Ceilings.ChildrenPerRegion),
		tasks:       ring.NewQueue[Handle](s.cfg.Ceilings.TasksPerRegion),
		obligations: ring.NewQueue[Handle](s.cfg.Ceilings.ObligationsPerRegion),
		timers:      ring.NewQueue[Handle](s.cfg.Ceilings.TimersPerRegion),
		channels:    ring.NewQueue[Handle](s.cfg.Ceilings.ChannelsPerRegion),
		leakPolicy:  s.cfg.LeakResponse,
	}
	if !parent.IsNil() {
		pd, _ := s.regions.resolve(op, parent)
		if !pd.children.PushBack(h) {
			s.regions.release(op, h)
			return NilHandle, newError(op, RegionAtCapacity)
		}
	}
	s.journal.record(Event{Kind: EventRegionTransition, Region: h, To: uint8(RegionOpen)})
	return h, nil
}

func (s *Store) resolveRegion(op string, h Handle) (*regionData, *Error) {
	return s.regions.resolve(op, h)
}

// CloseRegion requests the first step of region teardown: Open→Closing.
// Use AdvanceRegionClose to drive the remaining transitions once the
// subtree is ready (draining complete, etc.) — this core exposes it as an
// explicit step so callers (and the scheduler) can observe each phase via
// telemetry.
func (s *Store) CloseRegion(h Handle) *Error {
	const op = "CloseRegion"
	rd, err := s.resolveRegion(op, h)
	if err != nil {
		return err
	}
	if !canTransitionRegion(rd.state, RegionClosing) {
		return newError(op, InvalidTransition)
	}
	rd.state = RegionClosing
	s.journal.record(Event{Kind: EventRegionTransition, Region: h, To: uint8(RegionClosing)})
	return nil
}

// AdvanceRegionClose attempts to move a region one step further through
// Closing→Draining→Finalizing→Closed, refusing (InvalidTransition) if the
// current state cannot legally advance, and refusing with the quiescence
// code (via Check) if Finalizing→Closed is attempted while descendants are
// still non-terminal — except that unresolved obligations are reported as
// UnresolvedObligations rather than Check's ObligationsUnresolved.
//
// Finalizing→Closed first applies the region's leak policy (§9 Open
// Question: Leaked is an accepted terminal obligation state except under
// LeakRecover, which is pinned here to mean "surface UnresolvedObligations
// and let the caller recover instead of silently leaking" — see
// DESIGN.md). Under LeakLog/LeakSilent/LeakPanic, every still-Reserved
// obligation owned directly by this region is transitioned to Leaked
// before the quiescence check runs, so a region whose only blocker is
// unresolved obligations can still close; LeakRecover leaves them Reserved
// so the close is refused with UnresolvedObligations.
//
// It also retires the region's own cancel witness (advanceWitnessIfDrained)
// before checking, so a region that was cancelled but never driven through
// Kernel.Run again — its subtree having already drained by other means —
// is not blocked forever on a witness stuck at PhaseRequested.
func (s *Store) AdvanceRegionClose(h Handle) *Error {
	const op = "AdvanceRegionClose"
	rd, err := s.resolveRegion(op, h)
	if err != nil {
		return err
	}
	var next RegionState
	switch rd.state {
	case RegionClosing:
		next = RegionDraining
	case RegionDraining:
		next = RegionFinalizing
	case RegionFinalizing:
		if rd.leakPolicy != LeakRecover {
			s.applyLeakPolicy(h, rd)
		}
		s.advanceWitnessIfDrained(h)
		if qerr := s.Check(h); qerr != nil {
			if qerr.Code == ObligationsUnresolved {
				return newError(op, UnresolvedObligations)
			}
			return qerr
		}
		next = RegionClosed
	default:
		return newError(op, InvalidTransition)
	}
	if !canTransitionRegion(rd.state, next) {
		return newError(op, InvalidTransition)
	}
	rd.state = next
	s.journal.record(Event{Kind: EventRegionTransition, Region: h, To: uint8(next)})
	return nil
}

// applyLeakPolicy transitions every still-Reserved obligation directly
// owned by region to Leaked, per rd.leakPolicy: LeakLog/LeakSilent record
// the transition (LeakLog also logs it; LeakSilent does not); LeakPanic
// treats any such obligation as a programming error and panics after
// leaking it, matching §9's "policy exists in config" resolution.
func (s *Store) applyLeakPolicy(region Handle, rd *regionData) {
	const op = "applyLeakPolicy"
	for i := 0; i < rd.obligations.Len(); i++ {
		oh := rd.obligations.At(i)
		od, oerr := s.resolveObligation(op, oh)
		if oerr != nil || od.state != ObligationReserved {
			continue
		}
		if lerr := s.leakObligation(oh); lerr != nil {
			continue
		}
		switch rd.leakPolicy {
		case LeakLog:
			s.log(LevelWarn, "obligation", region, NilHandle, "obligation leaked at region close", nil)
		case LeakPanic:
			panic(&Error{Code: UnresolvedObligations, Op: op})
		}
	}
}

// Spawn creates a task in region, which must be Open; any other state
// (including Draining) returns AdmissionClosed.
func (s *Store) Spawn(region Handle, poll PollFunc) (Handle, *Error) {
	const op = "Spawn"
	if poll == nil {
		return NilHandle, newError(op, InvalidArgument)
	}
	rd, err := s.resolveRegion(op, region)
	if err != nil {
		return NilHandle, err
	}
	if !rd.state.canSpawn() {
		return NilHandle, newError(op, AdmissionClosed)
	}
	h, td, aerr := s.tasks.allocate(op)
	if aerr != nil {
		return NilHandle, aerr
	}
	s.nextTaskSeq++
	*td = taskData{
		state:  TaskCreated,
		region: region,
		poll:   poll,
		seq:    s.nextTaskSeq,
		depth:  rd.depth,
		ledger: newErrorLedger(s.cfg.ErrorLedgerCapacity),
	}
	if !rd.tasks.PushBack(h) {
		s.tasks.release(op, h)
		return NilHandle, newError(op, RegionAtCapacity)
	}
	s.journal.record(Event{Kind: EventTaskTransition, Region: region, Task: h, To: uint8(TaskCreated)})
	return h, nil
}

// ReserveObligation reserves a linear obligation in region.
func (s *Store) ReserveObligation(region Handle) (Handle, *Error) {
	const op = "ReserveObligation"
	rd, err := s.resolveRegion(op, region)
	if err != nil {
		return NilHandle, err
	}
	if !rd.state.canSpawn() {
		return NilHandle, newError(op, AdmissionClosed)
	}
	h, od, aerr := s.obligations.allocate(op)
	if aerr != nil {
		return NilHandle, aerr
	}
	*od = obligationData{state: ObligationReserved, region: region}
	if !rd.obligations.PushBack(h) {
		s.obligations.release(op, h)
		return NilHandle, newError(op, RegionAtCapacity)
	}
	s.journal.record(Event{Kind: EventObligationTransition, Region: region, Obligation: h, To: uint8(ObligationReserved)})
	return h, nil
}

func (s *Store) resolveObligation(op string, h Handle) (*obligationData, *Error) {
	return s.obligations.resolve(op, h)
}

func (s *Store) resolveObligationTransition(op string, h Handle, to ObligationState) (*obligationData, *Error) {
	od, err := s.resolveObligation(op, h)
	if err != nil {
		return nil, err
	}
	if od.state.isResolved() {
		return nil, newError(op, ObligationAlreadyResolved)
	}
	if !canTransitionObligation(od.state, to) {
		return nil, newError(op, InvalidTransition)
	}
	return od, nil
}

// CommitObligation resolves a reservation as Committed.
func (s *Store) CommitObligation(h Handle) *Error {
	const op = "CommitObligation"
	od, err := s.resolveObligationTransition(op, h, ObligationCommitted)
	if err != nil {
		return err
	}
	od.state = ObligationCommitted
	s.journal.record(Event{Kind: EventObligationTransition, Obligation: h, To: uint8(ObligationCommitted)})
	return nil
}

// AbortObligation resolves a reservation as Aborted.
func (s *Store) AbortObligation(h Handle) *Error {
	const op = "AbortObligation"
	od, err := s.resolveObligationTransition(op, h, ObligationAborted)
	if err != nil {
		return err
	}
	od.state = ObligationAborted
	s.journal.record(Event{Kind: EventObligationTransition, Obligation: h, To: uint8(ObligationAborted)})
	return nil
}

// leakObligation is the only path to ObligationLeaked, invoked solely by
// region-close policy (never by user code) when LeakResponse allows it.
func (s *Store) leakObligation(h Handle) *Error {
	const op = "leakObligation"
	od, err := s.resolveObligation(op, h)
	if err != nil {
		return err
	}
	if od.state != ObligationReserved {
		return newError(op, ObligationAlreadyResolved)
	}
	od.state = ObligationLeaked
	s.journal.record(Event{Kind: EventObligationTransition, Obligation: h, To: uint8(ObligationLeaked)})
	return nil
}

func (s *Store) resolveTask(op string, h Handle) (*taskData, *Error) {
	return s.tasks.resolve(op, h)
}
