package asx

import "github.com/asx-systems/asx/internal/ring"

// permitSlot is one outstanding reservation slot. Like arena slots, it
// carries a generation bumped on every (re)use so a resolved/aborted
// permit cannot be resolved a second time (ObligationAlreadyResolved's
// channel-side analogue).
type permitSlot struct {
	generation uint16
	active     bool
}

type chanState struct {
	capacity       int
	queue          *ring.Queue[any]
	permits        []permitSlot
	freePermits    *ring.Ring[uint32]
	reserved       int
	senderClosed   bool
	receiverClosed bool
	sendWaiters    *ring.Queue[Handle]
	recvWaiters    *ring.Queue[Handle]
}

func newChanState(capacity int) *chanState {
	c := &chanState{
		capacity:    capacity,
		queue:       ring.NewQueue[any](capacity),
		permits:     make([]permitSlot, capacity),
		freePermits: ring.New[uint32](nextPow2(capacity)),
		sendWaiters: ring.NewQueue[Handle](capacity),
		recvWaiters: ring.NewQueue[Handle](capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		c.freePermits.PushBack(uint32(i))
	}
	return c
}

// Permit is a reservation bound to a channel and a permit-slot generation;
// it must be resolved exactly once via Send or Abort.
type Permit struct {
	Channel    Handle
	index      uint32
	generation uint16
}

// chanArena stores one chanState per channel handle.
type chanArena = arena[*chanState]

func newChanArena(capacity int) *chanArena {
	return newArena[*chanState](tagChannel, capacity)
}

// OpenChannel allocates a new Open channel with the given capacity, owned
// by region (which must be Open; any other state returns AdmissionClosed).
// The handle is tracked on the
// region so quiescence (Check) can observe it until fully closed.
func (s *Store) OpenChannel(region Handle, capacity int) (Handle, *Error) {
	const op = "OpenChannel"
	if capacity <= 0 {
		return NilHandle, newError(op, InvalidArgument)
	}
	rd, rerr := s.resolveRegion(op, region)
	if rerr != nil {
		return NilHandle, rerr
	}
	if !rd.state.canSpawn() {
		return NilHandle, newError(op, AdmissionClosed)
	}
	h, slot, err := s.channels.allocate(op)
	if err != nil {
		return NilHandle, err
	}
	*slot = newChanState(capacity)
	if !rd.channels.PushBack(h) {
		s.channels.release(op, h)
		return NilHandle, newError(op, RegionAtCapacity)
	}
	return h, nil
}

func (s *Store) resolveChan(op string, h Handle) (*chanState, *Error) {
	slot, err := s.channels.resolve(op, h)
	if err != nil {
		return nil, err
	}
	return *slot, nil
}

// TryReserve implements the reserve half of reserve→(send|abort): it
// atomically increments the reservation count iff
// queue_len + reserved < capacity, returning a permit. Never partially
// mutates on failure.
func (s *Store) TryReserve(ch Handle) (Permit, *Error) {
	const op = "TryReserve"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return Permit{}, err
	}
	if c.senderClosed {
		return Permit{}, newError(op, InvalidState)
	}
	if c.receiverClosed {
		return Permit{}, newError(op, Disconnected)
	}
	if c.queue.Len()+c.reserved >= c.capacity {
		return Permit{}, newError(op, ChannelFull)
	}
	idx, ok := c.freePermits.PopFront()
	if !ok {
		// invariant violation guard: reserved < capacity implies a free
		// permit slot must exist.
		return Permit{}, newError(op, DeterminismViolation)
	}
	c.permits[idx].generation++
	c.permits[idx].active = true
	c.reserved++
	s.journal.record(Event{Kind: EventChannelReserve, Channel: ch, Extra: uint64(c.reserved)})
	return Permit{Channel: ch, index: idx, generation: c.permits[idx].generation}, nil
}

func (s *Store) resolvePermit(op string, p Permit) (*chanState, *Error) {
	c, err := s.resolveChan(op, p.Channel)
	if err != nil {
		return nil, err
	}
	if int(p.index) >= len(c.permits) {
		return nil, newError(op, InvalidArgument)
	}
	slot := &c.permits[p.index]
	if !slot.active || slot.generation != p.generation {
		return nil, newError(op, ObligationAlreadyResolved)
	}
	return c, nil
}

func (s *Store) releasePermit(c *chanState, p Permit) {
	slot := &c.permits[p.index]
	slot.active = false
	c.reserved--
	c.freePermits.PushBack(p.index)
}

// Send resolves a permit by enqueueing value at the tail and dropping the
// reservation. Fails DISCONNECTED if the receiver has since closed,
// dropping the reservation without enqueueing (matching "permits still
// send unless receiver-closed").
func (s *Store) Send(p Permit, value any) *Error {
	const op = "Send"
	c, err := s.resolvePermit(op, p)
	if err != nil {
		return err
	}
	if c.receiverClosed {
		s.releasePermit(c, p)
		return newError(op, Disconnected)
	}
	if !c.queue.PushBack(value) {
		// unreachable: the reservation guaranteed room.
		return newError(op, DeterminismViolation)
	}
	s.releasePermit(c, p)
	s.journal.record(Event{Kind: EventChannelSend, Channel: p.Channel, Extra: uint64(c.queue.Len())})
	return nil
}

// Abort resolves a permit by dropping the reservation without enqueueing.
// Dropping a permit without explicit resolution is treated as Abort by
// callers that track permit lifetime (e.g. on task cancel).
func (s *Store) Abort(p Permit) *Error {
	const op = "Abort"
	c, err := s.resolvePermit(op, p)
	if err != nil {
		return err
	}
	s.releasePermit(c, p)
	s.journal.record(Event{Kind: EventChannelAbort, Channel: p.Channel})
	return nil
}

// TryRecv pops the queue head, or fails WOULD_BLOCK if empty and the
// channel is not yet fully drained-and-closed, or DISCONNECTED if the
// sender side is closed with nothing left to deliver.
func (s *Store) TryRecv(ch Handle) (any, *Error) {
	const op = "TryRecv"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return nil, err
	}
	if v, ok := c.queue.PopFront(); ok {
		s.journal.record(Event{Kind: EventChannelRecv, Channel: ch, Extra: uint64(c.queue.Len())})
		return v, nil
	}
	if c.senderClosed && c.reserved == 0 {
		return nil, newError(op, Disconnected)
	}
	return nil, newError(op, WouldBlock)
}

// CloseSender transitions the channel's sender side closed: no new
// reserves are accepted, but outstanding permits may still resolve.
func (s *Store) CloseSender(ch Handle) *Error {
	const op = "CloseSender"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return err
	}
	c.senderClosed = true
	s.journal.record(Event{Kind: EventChannelClose, Channel: ch, Extra: 0})
	return nil
}

// CloseReceiver transitions the channel's receiver side closed: existing
// and future permits fail Send/Reserve with DISCONNECTED.
func (s *Store) CloseReceiver(ch Handle) *Error {
	const op = "CloseReceiver"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return err
	}
	c.receiverClosed = true
	s.journal.record(Event{Kind: EventChannelClose, Channel: ch, Extra: 1})
	return nil
}

// FullyClosed reports whether both sides are closed with no outstanding
// reservations or queued messages — the channel's terminal state.
func (s *Store) FullyClosed(ch Handle) (bool, *Error) {
	const op = "FullyClosed"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return false, err
	}
	return c.senderClosed && c.receiverClosed && c.reserved == 0 && c.queue.Len() == 0, nil
}

// ParkSender registers task as waiting for reservation capacity, FIFO.
func (s *Store) ParkSender(ch, task Handle) *Error {
	const op = "ParkSender"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return err
	}
	if !c.sendWaiters.PushBack(task) {
		return newError(op, ResourceExhausted)
	}
	return nil
}

// ParkReceiver registers task as waiting for a message, FIFO.
func (s *Store) ParkReceiver(ch, task Handle) *Error {
	const op = "ParkReceiver"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return err
	}
	if !c.recvWaiters.PushBack(task) {
		return newError(op, ResourceExhausted)
	}
	return nil
}

// WakeOneSender pops and returns the head of the send-waiter FIFO, if any.
func (s *Store) WakeOneSender(ch Handle) (Handle, bool, *Error) {
	const op = "WakeOneSender"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return NilHandle, false, err
	}
	h, ok := c.sendWaiters.PopFront()
	return h, ok, nil
}

// WakeOneReceiver pops and returns the head of the recv-waiter FIFO, if any.
func (s *Store) WakeOneReceiver(ch Handle) (Handle, bool, *Error) {
	const op = "WakeOneReceiver"
	c, err := s.resolveChan(op, ch)
	if err != nil {
		return NilHandle, false, err
	}
	h, ok := c.recvWaiters.PopFront()
	return h, ok, nil
}

// QueueLen and Reserved expose the invariant's two terms for tests.
func (s *Store) QueueLen(ch Handle) (int, *Error) {
	c, err := s.resolveChan("QueueLen", ch)
	if err != nil {
		return 0, err
	}
	return c.queue.Len(), nil
}

func (s *Store) Reserved(ch Handle) (int, *Error) {
	c, err := s.resolveChan("Reserved", ch)
	if err != nil {
		return 0, err
	}
	return c.reserved, nil
}

func (s *Store) Capacity(ch Handle) (int, *Error) {
	c, err := s.resolveChan("Capacity", ch)
	if err != nil {
		return 0, err
	}
	return c.capacity, nil
}
