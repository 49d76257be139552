package asx

// ArmTimer registers a timer owned by region, firing at the given absolute
// tick and waking waker (a task in the same region or a descendant).
// Region must be Open (any other state returns AdmissionClosed); the
// handle is tracked on the region so quiescence (Check) can observe it as
// still pending.
func (s *Store) ArmTimer(region Handle, deadline int64, waker Handle) (Handle, *Error) {
	const op = "ArmTimer"
	rd, err := s.resolveRegion(op, region)
	if err != nil {
		return NilHandle, err
	}
	if !rd.state.canSpawn() {
		return NilHandle, newError(op, AdmissionClosed)
	}
	h, aerr := s.timers.Arm(op, deadline, waker)
	if aerr != nil {
		return NilHandle, aerr
	}
	if !rd.timers.PushBack(h) {
		_ = s.timers.Cancel(op, h)
		return NilHandle, newError(op, RegionAtCapacity)
	}
	s.journal.record(Event{Kind: EventTimerArm, Region: region, Timer: h, Task: waker})
	return h, nil
}

// CancelTimer cancels a previously armed timer, validating its generation
// in O(1). Cancelling an already-fired or already-cancelled handle fails
// with StaleHandle; a timer already collected for firing but not yet
// released by Fire fails with TimerNotFound.
func (s *Store) CancelTimer(h Handle) *Error {
	const op = "CancelTimer"
	if err := s.timers.Cancel(op, h); err != nil {
		return err
	}
	s.journal.record(Event{Kind: EventTimerCancel, Timer: h})
	return nil
}
