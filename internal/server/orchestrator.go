package server

// maxAutomatedChain caps how many automated actions a single mutation may
// trigger back to back. A full table of bots settles a round well within
// this; hitting the cap means the state machine is cycling.
const maxAutomatedChain = 32

// driveLocked runs automated seats until none owe an action. Caller holds
// the entry lock. With a think delay configured, the next action is
// scheduled on the clock instead so human spectators see bots "think".
func (s *RoomService) driveLocked(e *roomEntry) {
	if s.thinkDelay > 0 {
		s.scheduleDriveLocked(e)
		return
	}

	for i := 0; i < maxAutomatedChain; i++ {
		seat := e.room.PendingAutomated()
		if seat == nil {
			return
		}
		if err := e.agent.Act(e.room, seat.ID); err != nil {
			s.logger.Error("Automated action rejected", "room", e.id, "seat", seat.ID, "error", err)
			return
		}
	}
	s.logger.Warn("Automation chain cap reached", "room", e.id, "cap", maxAutomatedChain)
}

// scheduleDriveLocked arms a single deferred automation step. Caller holds
// the entry lock. At most one step is in flight per room; each fired step
// re-arms itself while automated seats still owe actions.
func (s *RoomService) scheduleDriveLocked(e *roomEntry) {
	if e.driveQueued || e.room.PendingAutomated() == nil {
		return
	}
	e.driveQueued = true
	s.clock.AfterFunc(s.thinkDelay, func() {
		s.runScheduledDrive(e)
	})
}

func (s *RoomService) runScheduledDrive(e *roomEntry) {
	e.mu.Lock()
	e.driveQueued = false
	seat := e.room.PendingAutomated()
	if seat == nil {
		e.mu.Unlock()
		return
	}
	if err := e.agent.Act(e.room, seat.ID); err != nil {
		s.logger.Error("Automated action rejected", "room", e.id, "seat", seat.ID, "error", err)
		e.mu.Unlock()
		return
	}
	s.scheduleDriveLocked(e)
	snap := e.room.Snapshot()
	e.mu.Unlock()

	s.broadcastState(e.id, snap)
}
