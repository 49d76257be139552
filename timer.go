package asx

// Hierarchical timer wheel. Near wheel plus three cascade levels, 64 slots
// each, classic hashed-wheel layout: bucket index at level L for an
// absolute deadline d is (d >> (6*L)) & 63. Cancel is O(1): a timer handle
// resolves straight to its slot, which carries intrusive prev/next links
// into its current bucket, so unlinking never scans. Grounded conceptually
// on the teacher's container/heap-based timerHeap (eventloop/loop.go) for
// the "collect everything expired as of now" shape, but a min-heap cannot
// give O(1) cancel or bucket-then-insertion-order ties, so the bucket/
// cascade structure replaces it entirely (see DESIGN.md).

const (
	wheelLevels    = 4
	wheelSlotsBits = 6
	wheelSlots     = 1 << wheelSlotsBits // 64
	wheelSlotMask  = wheelSlots - 1
)

type timerState struct {
	armed    bool
	deadline int64
	waker    Handle // task to wake on fire
	level    uint8
	slot     uint16
	prev     int32
	next     int32
}

// bucket is an intrusive doubly-linked list of arena indices, head first
// (insertion order preserved: new entries are appended at tail).
type bucket struct {
	head, tail int32 // arena indices, -1 if empty
}

type wheelLevel struct {
	slots [wheelSlots]bucket
}

// timerWheel owns the timer arena and the bucket structure above it.
type timerWheel struct {
	arena   *arena[timerState]
	levels  [wheelLevels]wheelLevel
	curTick int64
}

func newTimerWheel(capacity int) *timerWheel {
	w := &timerWheel{arena: newArena[timerState](tagTimer, capacity)}
	for l := range w.levels {
		for s := range w.levels[l].slots {
			w.levels[l].slots[s] = bucket{head: -1, tail: -1}
		}
	}
	return w
}

func levelAndSlot(curTick, deadline int64) (level uint8, slot uint16) {
	relative := deadline - curTick
	if relative < 0 {
		relative = 0
	}
	l := 0
	for l < wheelLevels-1 && relative>>uint(wheelSlotsBits*(l+1)) != 0 {
		l++
	}
	s := (deadline >> uint(wheelSlotsBits*l)) & wheelSlotMask
	return uint8(l), uint16(s)
}

func (w *timerWheel) linkInto(level uint8, slot uint16, idx int32) {
	b := &w.levels[level].slots[slot]
	st := &w.arena.slots[idx].value
	st.level, st.slot = level, slot
	st.prev, st.next = b.tail, -1
	if b.tail >= 0 {
		w.arena.slots[b.tail].value.next = idx
	} else {
		b.head = idx
	}
	b.tail = idx
}

func (w *timerWheel) unlink(idx int32) {
	st := &w.arena.slots[idx].value
	b := &w.levels[st.level].slots[st.slot]
	if st.prev >= 0 {
		w.arena.slots[st.prev].value.next = st.next
	} else {
		b.head = st.next
	}
	if st.next >= 0 {
		w.arena.slots[st.next].value.prev = st.prev
	} else {
		b.tail = st.prev
	}
	st.prev, st.next = -1, -1
}

// Arm registers a new timer at the given absolute deadline (tick), waking
// waker when it fires. Returns RESOURCE_EXHAUSTED with no partial mutation
// if the timer arena is full.
func (w *timerWheel) Arm(op string, deadline int64, waker Handle) (Handle, *Error) {
	h, st, err := w.arena.allocate(op)
	if err != nil {
		return NilHandle, err
	}
	st.armed = true
	st.deadline = deadline
	st.waker = waker
	level, slot := levelAndSlot(w.curTick, deadline)
	w.linkInto(level, slot, int32(h.index()))
	return h, nil
}

// Cancel validates generation, unlinks in O(1), and frees the slot, so the
// handle is immediately stale (the slot's generation is bumped on its next
// allocation).
func (w *timerWheel) Cancel(op string, h Handle) *Error {
	st, err := w.arena.resolve(op, h)
	if err != nil {
		return err
	}
	if !st.armed {
		return newError(op, TimerNotFound)
	}
	w.unlink(int32(h.index()))
	return w.arena.release(op, h)
}

// cascade moves every entry out of levels[level]'s current bucket (keyed by
// tick) down into the appropriate lower bucket (or directly into level 0
// if its remaining span now fits there), preserving relative insertion
// order. Recurses upward when the destination level also wraps.
func (w *timerWheel) cascade(level int, tick int64) {
	if level >= wheelLevels {
		return
	}
	slot := uint16((tick >> uint(wheelSlotsBits*level)) & wheelSlotMask)
	b := &w.levels[level].slots[slot]
	idx := b.head
	b.head, b.tail = -1, -1
	for idx >= 0 {
		st := &w.arena.slots[idx].value
		next := st.next
		st.prev, st.next = -1, -1
		newLevel, newSlot := levelAndSlot(tick, st.deadline)
		w.linkInto(newLevel, newSlot, idx)
		idx = next
	}
	if slot == 0 {
		w.cascade(level+1, tick)
	}
}

// AdvanceAndCollect steps the wheel from its current tick to now
// (inclusive) and appends every timer that fires along the way, in
// deterministic (tick order, then insertion order within the tick) order.
// It never fires a timer armed at or before now after the collection point
// for that tick has been fixed (cascading happens strictly before the
// level-0 bucket for a tick is drained).
func (w *timerWheel) AdvanceAndCollect(now int64, out []Handle) []Handle {
	for w.curTick < now {
		w.curTick++
		tick := w.curTick
		if uint16(tick&wheelSlotMask) == 0 {
			w.cascade(1, tick)
		}
		slot := uint16(tick & wheelSlotMask)
		b := &w.levels[0].slots[slot]
		idx := b.head
		b.head, b.tail = -1, -1
		for idx >= 0 {
			st := &w.arena.slots[idx].value
			next := st.next
			h := packHandle(tagTimer, w.arena.slots[idx].generation, uint32(idx))
			out = append(out, h)
			st.armed = false
			st.prev, st.next = -1, -1
			idx = next
		}
	}
	return out
}

// Fire resolves the handle produced by AdvanceAndCollect and frees its
// slot (the entry was already unlinked from its bucket during collection).
func (w *timerWheel) Fire(op string, h Handle) (waker Handle, err *Error) {
	st, e := w.arena.resolve(op, h)
	if e != nil {
		return NilHandle, e
	}
	waker = st.waker
	return waker, w.arena.release(op, h)
}
