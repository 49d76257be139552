package asx

import "github.com/asx-systems/asx/internal/ring"

// LedgerEntry is one recorded propagation: the operation that produced it,
// the classified code, and the tick at which it was recorded.
type LedgerEntry struct {
	Op   string
	Code Code
	Tick int64
}

// ErrorLedger is a task-local bounded ring of the last N classified-error
// propagations, observational only: it never alters control flow, only
// post-mortem visibility. Grounded on the same ring-buffer idiom as the
// telemetry Journal (internal/ring.Queue with overwrite-on-full), scoped
// per task instead of per Store.
//
// This is the kernel's single shared propagation helper (§9's "macros for
// error propagation" re-architecture): every internal call site that
// produces a classified *Error for a task-owned operation should route it
// through record so the ledger stays complete, rather than returning the
// error directly and bypassing it.
type ErrorLedger struct {
	entries  *ring.Queue[LedgerEntry]
	overflow bool
}

func newErrorLedger(capacity int) *ErrorLedger {
	if capacity <= 0 {
		capacity = 1
	}
	return &ErrorLedger{entries: ring.NewQueue[LedgerEntry](capacity)}
}

// record appends a propagation, evicting the oldest entry (and setting the
// overflow flag) if the ledger is full.
func (l *ErrorLedger) record(tick int64, err *Error) {
	if l == nil || err == nil {
		return
	}
	if l.entries.PushBackOverwrite(LedgerEntry{Op: err.Op, Code: err.Code, Tick: tick}) {
		l.overflow = true
	}
}

// Len returns the number of retained entries.
func (l *ErrorLedger) Len() int {
	if l == nil {
		return 0
	}
	return l.entries.Len()
}

// At returns the i-th retained entry (0 = oldest retained).
func (l *ErrorLedger) At(i int) LedgerEntry { return l.entries.At(i) }

// Overflow reports whether any entry has ever been evicted.
func (l *ErrorLedger) Overflow() bool { return l != nil && l.overflow }

// propagate records err (if it is a classified *Error) into the task's
// ledger and returns err unchanged, so call sites can write
// `return s.propagate(h, err)` instead of a bare `return err`, guaranteeing
// every task-scoped failure path is observable post-mortem without an
// implicit control-transfer macro (§9).
func (s *Store) propagate(task Handle, err *Error) *Error {
	if err == nil {
		return nil
	}
	if td, terr := s.resolveTask("propagate", task); terr == nil {
		td.ledger.record(s.cfg.Clock.Now(), err)
	}
	return err
}

// TaskLedger returns the task's error ledger for inspection (tests,
// post-mortem tooling).
func (s *Store) TaskLedger(task Handle) (*ErrorLedger, *Error) {
	td, err := s.resolveTask("TaskLedger", task)
	if err != nil {
		return nil, err
	}
	return td.ledger, nil
}
