package asx

import (
	"sort"
	"time"
)

// Kernel is the single-threaded cooperative scheduler driving one Store.
// Grounded structurally on the teacher's Loop.tick() phase ordering
// (eventloop/loop.go): timers → queues → poll → cleanup, generalized to
// this kernel's cancel-lane/timer/ready-lane/outcome phases, but with every
// concurrency primitive (mutexes, atomics, goroutines, OS poller) removed —
// this scheduler runs on the caller's goroutine only, one tick at a time,
// entirely driven by the injected Clock (see DESIGN.md).
type Kernel struct {
	Store *Store
}

// NewKernel wraps a Store in a Kernel.
func NewKernel(s *Store) *Kernel { return &Kernel{Store: s} }

type taskRef struct {
	handle Handle
	depth  int
	seq    uint64
}

// collectSubtree gathers every non-terminal task owned by region or any
// descendant region, in deterministic (region depth, task sequence number)
// order — the scheduler's sole ordering key (§4.7's determinism rules).
func (s *Store) collectSubtree(region Handle) ([]taskRef, *Error) {
	const op = "collectSubtree"
	var refs []taskRef
	var walk func(h Handle) *Error
	walk = func(h Handle) *Error {
		rd, err := s.resolveRegion(op, h)
		if err != nil {
			return err
		}
		for i := 0; i < rd.tasks.Len(); i++ {
			th := rd.tasks.At(i)
			td, terr := s.resolveTask(op, th)
			if terr != nil || td.state.isTerminal() {
				continue
			}
			refs = append(refs, taskRef{handle: th, depth: td.depth, seq: td.seq})
		}
		for i := 0; i < rd.children.Len(); i++ {
			if err := walk(rd.children.At(i)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(region); err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].depth != refs[j].depth {
			return refs[i].depth < refs[j].depth
		}
		return refs[i].seq < refs[j].seq
	})
	return refs, nil
}

// safePoll invokes td.poll, recovering a panic into (Done, err,
// panicked=true) rather than letting it escape — mirrors the teacher's safeExecute /
// safeExecuteFn panic-recovery wrapper around task execution.
func safePoll(poll PollFunc, ctx *PollContext) (status PollStatus, err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			status = Done
			panicked = true
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &Error{Code: DeterminismViolation, Op: "safePoll", Err: nil}
			}
		}
	}()
	status, err = poll(ctx)
	return status, err, false
}

func (s *Store) completeTask(td *taskData, h Handle, outcome Outcome) {
	td.outcome = td.outcome.Join(outcome)
	td.state = TaskFinalizing
	s.journal.record(Event{Kind: EventTaskTransition, Task: h, To: uint8(TaskFinalizing)})
	td.state = TaskCompleted
	s.journal.record(Event{Kind: EventTaskTransition, Task: h, To: uint8(TaskCompleted)})
	if !td.witness.IsNil() {
		if wd, werr := s.witnesses.resolve("completeTask", td.witness); werr == nil {
			_ = wd.advancePhase("completeTask", PhaseFinalizing)
			_ = wd.advancePhase("completeTask", PhaseCompleted)
			s.journal.record(Event{Kind: EventCancelPhase, Task: h, To: uint8(wd.Phase)})
		}
	}
	s.log(LevelDebug, "task", td.region, h, "completed: "+td.outcome.String(), nil)
}

// advanceWitnessIfDrained promotes region's own cancel witness toward
// Completed once every task in its subtree has reached a terminal state.
// A region's witness otherwise sits at PhaseRequested forever once
// RequestCancel ever targets it (directly or via an ancestor), and
// quiescence.go's Check blocks on any non-Completed witness indefinitely —
// this is the step that actually retires it. A region never cancelled has
// a nil witness and this is a no-op.
func (s *Store) advanceWitnessIfDrained(region Handle) {
	const op = "advanceWitnessIfDrained"
	rd, err := s.resolveRegion(op, region)
	if err != nil || rd.witness.IsNil() {
		return
	}
	wd, werr := s.witnesses.resolve(op, rd.witness)
	if werr != nil || wd.Phase == PhaseCompleted {
		return
	}
	refs, serr := s.collectSubtree(region)
	if serr != nil || len(refs) != 0 {
		return
	}
	_ = wd.advancePhase(op, PhaseCancelling)
	_ = wd.advancePhase(op, PhaseFinalizing)
	_ = wd.advancePhase(op, PhaseCompleted)
	s.journal.record(Event{Kind: EventCancelPhase, Region: region, To: uint8(wd.Phase)})
}

// advanceCancelLane drains one step of each cancel-protocol task's
// progression, charging budget. Tasks in CancelRequested step to
// Cancelling; tasks in Cancelling are polled under their per-kind cleanup
// budget and force-completed (outcome Cancelled) if that budget is spent.
func (s *Store) advanceCancelLane(refs []taskRef, budget *Budget) *Error {
	const op = "advanceCancelLane"
	for _, ref := range refs {
		if budget.Exhausted() {
			return nil
		}
		td, err := s.resolveTask(op, ref.handle)
		if err != nil || !td.state.isCancelProtocol() {
			continue
		}
		switch td.state {
		case TaskCancelRequested:
			td.state = TaskCancelling
			if !td.witness.IsNil() {
				if wd, werr := s.witnesses.resolve(op, td.witness); werr == nil {
					_ = wd.advancePhase(op, PhaseCancelling)
					kind := CancelUser
					if wd.Reason != nil {
						kind = wd.Reason.Kind
					}
					td.cleanup = Budget{Polls: kind.CleanupBudget(), Time: budget.Time}
				}
			}
			s.journal.record(Event{Kind: EventTaskTransition, Task: ref.handle, To: uint8(TaskCancelling)})
			*budget = budget.chargePoll()
		case TaskCancelling:
			if td.cleanup.Exhausted() {
				s.completeTask(td, ref.handle, OutcomeCancelled)
				*budget = budget.chargePoll()
				continue
			}
			ctx := &PollContext{Task: ref.handle, Region: td.region, Store: s}
			status, _, panicked := safePoll(td.poll, ctx)
			td.cleanup = td.cleanup.chargePoll()
			*budget = budget.chargePoll()
			td.polls++
			if panicked {
				s.propagate(ref.handle, newError(op, DeterminismViolation))
				s.completeTask(td, ref.handle, OutcomePanicked)
				continue
			}
			if status == Done {
				s.completeTask(td, ref.handle, OutcomeCancelled)
			}
		}
	}
	return nil
}

// advanceTimers steps the clock by one tick, collects and fires every
// timer now due, and charges budget per waker.
func (s *Store) advanceTimers(budget *Budget, clock Clock) {
	now := clock.Advance(1)
	fired := s.timers.AdvanceAndCollect(now, nil)
	for _, th := range fired {
		waker, err := s.timers.Fire("advanceTimers", th)
		if err != nil {
			continue
		}
		s.journal.record(Event{Kind: EventTimerFire, Timer: th, Task: waker})
		*budget = budget.chargePoll()
	}
}

// advanceReadyLane polls every ready (Created or Running) task in refs
// exactly once, in order, promoting poll results to task outcomes.
func (s *Store) advanceReadyLane(refs []taskRef, budget *Budget) {
	const op = "advanceReadyLane"
	for _, ref := range refs {
		if budget.Exhausted() {
			return
		}
		td, err := s.resolveTask(op, ref.handle)
		if err != nil || td.state.isCancelProtocol() || td.state.isTerminal() {
			continue
		}
		if td.state == TaskCreated {
			td.state = TaskRunning
			s.journal.record(Event{Kind: EventTaskTransition, Task: ref.handle, To: uint8(TaskRunning)})
		}
		ctx := &PollContext{Task: ref.handle, Region: td.region, Store: s}
		status, perr, panicked := safePoll(td.poll, ctx)
		td.polls++
		*budget = budget.chargePoll()
		s.journal.record(Event{Kind: EventSchedulerPoll, Task: ref.handle, Region: td.region})
		switch {
		case panicked:
			s.propagate(ref.handle, newError(op, DeterminismViolation))
			s.completeTask(td, ref.handle, OutcomePanicked)
		case perr != nil:
			if ce, ok := perr.(*Error); ok {
				s.propagate(ref.handle, ce)
			} else {
				s.propagate(ref.handle, wrapError(op, InvalidState, perr))
			}
			s.completeTask(td, ref.handle, OutcomeErr)
		case status == Done:
			s.completeTask(td, ref.handle, OutcomeOk)
		}
	}
}

// Run drives region's subtree until it is quiescent (Ok), budget is
// exhausted (PollBudgetExhausted), or a fatal error occurs. Each iteration:
// drain the cancel lane, expire timers, poll the ready lane, advance any
// drained cancel witness, update outcomes/telemetry — exactly the four
// phases of §4.7.
//
// Every iteration charges budget exactly once against the tick's real
// elapsed clock ticks (not a literal zero), and does so unconditionally —
// even when the cancel/timer/ready lanes all turn out to be no-ops because
// nothing in refs is due this tick. Without that unconditional charge, a
// region blocked on something these lanes can never advance (an unresolved
// obligation, an unclosed channel, an unfired cancel witness) would spin
// forever instead of eventually returning PollBudgetExhausted.
func (k *Kernel) Run(region Handle, budget Budget) *Error {
	const op = "Run"
	s := k.Store
	for {
		if err := s.Check(region); err == nil {
			return nil
		}
		if budget.Exhausted() {
			return newError(op, PollBudgetExhausted)
		}

		refs, err := s.collectSubtree(region)
		if err != nil {
			return err
		}

		if cerr := s.advanceCancelLane(refs, &budget); cerr != nil {
			return cerr
		}
		if budget.Exhausted() {
			return newError(op, PollBudgetExhausted)
		}

		before := s.cfg.Clock.Now()
		s.advanceTimers(&budget, s.cfg.Clock)
		if budget.Exhausted() {
			return newError(op, PollBudgetExhausted)
		}

		s.advanceReadyLane(refs, &budget)

		elapsed := time.Duration(s.cfg.Clock.Now() - before)
		if elapsed <= 0 {
			elapsed = 1
		}
		budget = budget.charge(elapsed)

		s.advanceWitnessIfDrained(region)

		s.journal.record(Event{Kind: EventSchedulerComplete, Region: region})
	}
}

// RequestCancel strengthens (or creates) h's cancel witness with reason
// and, for a task, transitions it Running→CancelRequested (a no-op if
// already in or past the cancel protocol). For a region, it propagates to
// every non-terminal descendant task and region, checkpointed: on return,
// every entity visited either received the strengthened reason or the
// caller can resume propagation by calling RequestCancel again (idempotent
// — strengthen never regresses).
func (s *Store) RequestCancel(h Handle, reason *CancelReason) *Error {
	const op = "RequestCancel"
	switch h.tag() {
	case tagTask:
		return s.requestCancelTask(op, h, reason)
	case tagRegion:
		return s.requestCancelRegion(op, h, reason)
	default:
		return newError(op, InvalidArgument)
	}
}

func (s *Store) ensureWitness(op string, owner Handle, isRegion bool) (*Witness, *Error) {
	var existing Handle
	if isRegion {
		rd, err := s.resolveRegion(op, owner)
		if err != nil {
			return nil, err
		}
		existing = rd.witness
		if existing.IsNil() {
			wh, wd, werr := s.witnesses.allocate(op)
			if werr != nil {
				return nil, werr
			}
			*wd = Witness{OwnerRegion: owner}
			rd.witness = wh
			return wd, nil
		}
	} else {
		td, err := s.resolveTask(op, owner)
		if err != nil {
			return nil, err
		}
		existing = td.witness
		if existing.IsNil() {
			wh, wd, werr := s.witnesses.allocate(op)
			if werr != nil {
				return nil, werr
			}
			*wd = Witness{OwnerTask: owner}
			td.witness = wh
			return wd, nil
		}
	}
	return s.witnesses.resolve(op, existing)
}

func (s *Store) requestCancelTask(op string, h Handle, reason *CancelReason) *Error {
	td, err := s.resolveTask(op, h)
	if err != nil {
		return err
	}
	if td.state.isTerminal() {
		return nil
	}
	wd, werr := s.ensureWitness(op, h, false)
	if werr != nil {
		return werr
	}
	wd.strengthen(reason)
	if td.state == TaskRunning || td.state == TaskCreated {
		td.state = TaskCancelRequested
		s.journal.record(Event{Kind: EventTaskTransition, Task: h, To: uint8(TaskCancelRequested)})
	}
	s.journal.record(Event{Kind: EventCancelPhase, Task: h, To: uint8(wd.Phase), Extra: uint64(reason.Kind)})
	return nil
}

// requestCancelRegion applies reason to every non-terminal descendant task;
// task cancel does not escape upward (§4.4 propagation rule).
func (s *Store) requestCancelRegion(op string, h Handle, reason *CancelReason) *Error {
	rd, err := s.resolveRegion(op, h)
	if err != nil {
		return err
	}
	wd, werr := s.ensureWitness(op, h, true)
	if werr != nil {
		return werr
	}
	wd.strengthen(reason)
	for i := 0; i < rd.tasks.Len(); i++ {
		if terr := s.requestCancelTask(op, rd.tasks.At(i), reason); terr != nil {
			return terr
		}
	}
	for i := 0; i < rd.children.Len(); i++ {
		if cerr := s.requestCancelRegion(op, rd.children.At(i), reason); cerr != nil {
			return cerr
		}
	}
	// a region whose subtree is already fully terminal when cancel is
	// requested would otherwise never see its own witness retired, since
	// nothing would ever poll it through Run again.
	s.advanceWitnessIfDrained(h)
	return nil
}
