package asx

// Check implements the quiescence predicate: Ok iff every descendant task
// is Completed, every obligation is resolved (Committed/Aborted, or Leaked
// when the region's leak policy accepts it), every owned timer is
// cancelled or fired, every owned channel is fully closed, every cancel
// witness is terminal, and every child region is itself quiescent-closed.
// Otherwise returns the most specific code among TasksStillActive,
// ObligationsUnresolved, RegionsNotClosed, TimersPending, IncompleteChildren
// — checked in that precedence order, matching §4.8.
func (s *Store) Check(region Handle) *Error {
	const op = "Check"
	rd, err := s.resolveRegion(op, region)
	if err != nil {
		return err
	}

	for i := 0; i < rd.tasks.Len(); i++ {
		th := rd.tasks.At(i)
		td, terr := s.resolveTask(op, th)
		if terr != nil {
			continue // released/stale entries do not block quiescence
		}
		if !td.state.isTerminal() {
			return newError(op, TasksStillActive)
		}
	}

	for i := 0; i < rd.obligations.Len(); i++ {
		oh := rd.obligations.At(i)
		od, oerr := s.resolveObligation(op, oh)
		if oerr != nil {
			continue
		}
		if !od.state.isResolved() {
			return newError(op, ObligationsUnresolved)
		}
		if od.state == ObligationLeaked && rd.leakPolicy == LeakRecover {
			return newError(op, ObligationsUnresolved)
		}
	}

	for i := 0; i < rd.children.Len(); i++ {
		ch := rd.children.At(i)
		cd, cerr := s.resolveRegion(op, ch)
		if cerr != nil {
			continue
		}
		if !cd.state.isTerminal() {
			return newError(op, RegionsNotClosed)
		}
	}

	for i := 0; i < rd.timers.Len(); i++ {
		// timer handles remain in the region's tracking list even after
		// firing/cancellation frees their arena slot, so a stale resolve
		// here means "already terminal", not an error.
		timerHandle := rd.timers.At(i)
		if _, terr := s.timers.arena.resolve(op, timerHandle); terr == nil {
			return newError(op, TimersPending)
		}
	}

	for i := 0; i < rd.channels.Len(); i++ {
		chHandle := rd.channels.At(i)
		closed, cerr := s.FullyClosed(chHandle)
		if cerr != nil {
			continue
		}
		if !closed {
			return newError(op, IncompleteChildren)
		}
	}

	if !rd.witness.IsNil() {
		wd, werr := s.witnesses.resolve(op, rd.witness)
		if werr == nil && wd.Phase != PhaseCompleted {
			return newError(op, IncompleteChildren)
		}
	}

	return nil
}
