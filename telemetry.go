package asx

import "github.com/asx-systems/asx/internal/ring"

// EventKind canonicalizes what a telemetry Event records.
type EventKind uint8

const (
	EventRegionTransition EventKind = iota
	EventTaskTransition
	EventObligationTransition
	EventCancelPhase
	EventTimerArm
	EventTimerFire
	EventTimerCancel
	EventChannelReserve
	EventChannelSend
	EventChannelAbort
	EventChannelRecv
	EventChannelClose
	EventSchedulerPoll
	EventSchedulerComplete
)

// Event is the fixed field tuple every telemetry record canonicalizes to.
// Seq is assigned by the journal itself (monotonic, never reused); Tick is
// the scheduler's clock reading at record time; To carries a kind-specific
// "resulting state" (RegionState/TaskState/ObligationState/CancelPhase as
// appropriate); Extra carries a kind-specific auxiliary value (e.g. a
// CancelKind, or a channel op's resulting queue length).
type Event struct {
	Seq        uint64
	Tick       int64
	Kind       EventKind
	Region     Handle
	Task       Handle
	Obligation Handle
	Timer      Handle
	Channel    Handle
	To         uint8
	Extra      uint64
}

// Journal is the append-only, capacity-bounded event ring the digest folds
// over. Grounded on the teacher's registry.go ring-of-IDs container shape,
// here holding canonical Events directly rather than IDs into a side map.
type Journal struct {
	events    *ring.Queue[Event]
	nextSeq   uint64
	overflow  bool
	digest    *rollingDigest
	tickFn    func() int64
}

func newJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 1
	}
	return &Journal{
		events: ring.NewQueue[Event](capacity),
		digest: newRollingDigest(),
	}
}

// record assigns Seq/Tick and appends ev, folding it into the rolling
// digest and evicting the oldest entry (setting the overflow flag) if the
// journal is full. The digest itself never forgets a folded event even
// after its raw Event is evicted from the bounded ring — the ring bounds
// memory for replay inspection, not the fold.
func (j *Journal) record(ev Event) {
	ev.Seq = j.nextSeq
	j.nextSeq++
	if j.tickFn != nil {
		ev.Tick = j.tickFn()
	}
	if j.events.PushBackOverwrite(ev) {
		j.overflow = true
	}
	j.digest.fold(ev)
}

// Len returns the number of events currently retained in the ring.
func (j *Journal) Len() int { return j.events.Len() }

// At returns the i-th retained event (0 = oldest retained).
func (j *Journal) At(i int) Event { return j.events.At(i) }

// Overflow reports whether any event has ever been evicted.
func (j *Journal) Overflow() bool { return j.overflow }

// Digest returns the current rolling digest in the canonical
// "sha256:<64 hex>" form.
func (j *Journal) Digest() string { return j.digest.String() }

// Journal exposes the Store's telemetry journal for replay inspection,
// digest comparison, and post-mortem tooling.
func (s *Store) Journal() *Journal { return s.journal }
