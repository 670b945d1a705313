package core

// Timer represents a scheduled event. WakeTime is in bridge ticks
// (milliseconds); a handler that returns SF_RESCHEDULE must advance it.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by wake time
type Scheduler struct {
	timerList *Timer
	now       uint32
}

// timerBefore compares wake times across uint32 wrap-around
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule adds a timer to the schedule. A timer already scheduled is moved.
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
	s.insertTimer(t)
}

// Cancel removes a timer if it is scheduled
func (s *Scheduler) Cancel(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || timerBefore(t.WakeTime, s.timerList.WakeTime) {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && !timerBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func (s *Scheduler) remove(t *Timer) {
	for p := &s.timerList; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			t.Next = nil
			return
		}
	}
}

// Dispatch runs every timer due at now and returns how many ran. Handlers
// run with interrupts enabled so they may block on I/O.
func (s *Scheduler) Dispatch(now uint32) int {
	s.now = now
	ran := 0
	for {
		state := disableInterrupts()
		timer := s.timerList
		if timer == nil || timerBefore(now, timer.WakeTime) {
			restoreInterrupts(state)
			return ran
		}
		s.timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references
		restoreInterrupts(state)

		ran++
		if timer.Handler(timer) == SF_RESCHEDULE {
			if !timerBefore(now, timer.WakeTime) {
				// Never run the same timer twice in one pass
				timer.WakeTime = now + 1
			}
			s.Schedule(timer)
		}
	}
}

// Now returns the time of the last Dispatch
func (s *Scheduler) Now() uint32 {
	return s.now
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.timerList; t != nil; t = t.Next {
		n++
	}
	return n
}
