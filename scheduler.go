package genie

import (
	"sort"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it more than once, or after
// the callback has run, is a no-op.
type CancelFunc func()

// Scheduler runs continuations on the frame loop. Nothing blocks: waiting is
// expressed as a callback that fires later on the same goroutine.
type Scheduler interface {
	// After runs fn once, delay after the current time.
	After(delay time.Duration, fn func()) CancelFunc
	// EveryFrame runs fn once per frame with the frame's delta until canceled.
	EveryFrame(fn func(dt time.Duration)) CancelFunc
}

// Clock reports monotonic time since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the process monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose origin is the moment of the call.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

type timerTask struct {
	id       uint64
	deadline time.Duration
	fn       func()
}

type frameTask struct {
	id uint64
	fn func(dt time.Duration)
}

// FrameScheduler is a tick-driven Scheduler. Advance moves its clock forward,
// fires timers whose deadline has passed (earliest first, ties in scheduling
// order), then runs every frame callback. Callbacks scheduled while a tick is
// running are picked up from the next tick. FrameScheduler is also a Clock.
type FrameScheduler struct {
	now    time.Duration
	nextID uint64
	timers []timerTask
	frames []frameTask
	frame  uint64
}

// NewFrameScheduler creates a scheduler at time zero.
func NewFrameScheduler() *FrameScheduler {
	return &FrameScheduler{}
}

// Now returns the scheduler's current time.
func (s *FrameScheduler) Now() time.Duration { return s.now }

// Frame returns the number of completed ticks.
func (s *FrameScheduler) Frame() uint64 { return s.frame }

// Pending returns the number of live timers and frame callbacks.
func (s *FrameScheduler) Pending() (timers, frames int) {
	return len(s.timers), len(s.frames)
}

// After implements Scheduler.
func (s *FrameScheduler) After(delay time.Duration, fn func()) CancelFunc {
	s.nextID++
	id := s.nextID
	s.timers = append(s.timers, timerTask{id: id, deadline: s.now + max(delay, 0), fn: fn})
	return func() { s.cancelTimer(id) }
}

// EveryFrame implements Scheduler.
func (s *FrameScheduler) EveryFrame(fn func(dt time.Duration)) CancelFunc {
	s.nextID++
	id := s.nextID
	s.frames = append(s.frames, frameTask{id: id, fn: fn})
	return func() { s.cancelFrame(id) }
}

// Advance moves time forward by dt and runs due work.
func (s *FrameScheduler) Advance(dt time.Duration) {
	s.now += dt
	s.frame++

	// Only work registered before this tick runs in it.
	lastID := s.nextID

	due := make([]timerTask, 0, len(s.timers))
	for _, t := range s.timers {
		if t.id <= lastID && t.deadline <= s.now {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		// An earlier callback may have canceled this one.
		if s.cancelTimer(t.id) {
			t.fn()
		}
	}

	frames := make([]frameTask, len(s.frames))
	copy(frames, s.frames)
	for _, f := range frames {
		if f.id <= lastID && s.hasFrame(f.id) {
			f.fn(dt)
		}
	}
}

// cancelTimer removes a timer and reports whether it was still pending.
func (s *FrameScheduler) cancelTimer(id uint64) bool {
	for i, t := range s.timers {
		if t.id == id {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return true
		}
	}
	return false
}

func (s *FrameScheduler) cancelFrame(id uint64) {
	for i, f := range s.frames {
		if f.id == id {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return
		}
	}
}

func (s *FrameScheduler) hasFrame(id uint64) bool {
	for _, f := range s.frames {
		if f.id == id {
			return true
		}
	}
	return false
}
