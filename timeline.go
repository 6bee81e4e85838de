package genie

import (
	"fmt"
	"math"
	"time"
)

// Keyframes is the set of fields one playback animates together.
type Keyframes []Track

// validate checks that every track has a field and finite endpoints.
func (k Keyframes) validate(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrTimeline, d)
	}
	for i, tr := range k {
		if tr.Field == nil {
			return fmt.Errorf("%w: track %d has no field", ErrTimeline, i)
		}
		if !isFinite(tr.From) || !isFinite(tr.To) {
			return fmt.Errorf("%w: track %d has non-finite keyframes %v -> %v", ErrTimeline, i, tr.From, tr.To)
		}
	}
	return nil
}

// ownerDisposed reports whether any track's owner node has been disposed.
func (k Keyframes) ownerDisposed() bool {
	for _, tr := range k {
		if tr.Owner != nil && tr.Owner.IsDisposed() {
			return true
		}
	}
	return false
}

// Playback is a running timeline. Cancel stops it where it is; done is not
// called afterwards.
type Playback interface {
	Cancel()
}

// Timeline plays keyframes with ease-in timing, holding the final values
// when done (fill mode "forwards"). done runs once, from a frame callback,
// after every field holds exactly its To value, or as soon as a track's
// Owner is found disposed. In the latter case the fields are left as they
// were.
type Timeline interface {
	Play(k Keyframes, d time.Duration, done func()) (Playback, error)
}

// --- NativeTimeline ---

// NativeTimeline drives a gween TweenGroup from the scheduler's frame deltas.
type NativeTimeline struct {
	Scheduler Scheduler
}

type nativePlayback struct {
	group  *TweenGroup
	cancel CancelFunc
}

func (p *nativePlayback) Cancel() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Play implements Timeline.
func (t *NativeTimeline) Play(k Keyframes, d time.Duration, done func()) (Playback, error) {
	if err := k.validate(d); err != nil {
		return nil, err
	}
	p := &nativePlayback{
		group: NewTweenGroup(k, float32(d.Seconds()), EaseIn),
	}
	p.cancel = t.Scheduler.EveryFrame(func(dt time.Duration) {
		p.group.Update(float32(dt.Seconds()))
		if !p.group.Done {
			return
		}
		p.Cancel()
		if done != nil {
			done()
		}
	})
	return p, nil
}

// --- ManualTimeline ---

// ManualTimeline interpolates every frame from a monotonic clock instead of
// accumulating frame deltas. It is the fallback for hosts whose native
// timeline cannot be trusted alongside the displacement filter.
type ManualTimeline struct {
	Scheduler Scheduler
	Clock     Clock
}

type manualPlayback struct {
	cancel CancelFunc
}

func (p *manualPlayback) Cancel() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Play implements Timeline.
func (t *ManualTimeline) Play(k Keyframes, d time.Duration, done func()) (Playback, error) {
	if err := k.validate(d); err != nil {
		return nil, err
	}
	start := t.Clock.Now()
	for _, tr := range k {
		*tr.Field = tr.From
	}
	p := &manualPlayback{}
	p.cancel = t.Scheduler.EveryFrame(func(time.Duration) {
		if k.ownerDisposed() {
			p.Cancel()
			if done != nil {
				done()
			}
			return
		}
		elapsed := t.Clock.Now() - start
		if elapsed >= d {
			for _, tr := range k {
				*tr.Field = tr.To
			}
			p.Cancel()
			if done != nil {
				done()
			}
			return
		}
		progress := easeInCurve.at(float64(elapsed) / float64(d))
		for _, tr := range k {
			*tr.Field = tr.From + (tr.To-tr.From)*progress
		}
	})
	return p, nil
}

// --- Capabilities ---

// DefaultPhaseSplit is the share of the duration the two-phase policy spends
// ramping the displacement up before the element moves.
const DefaultPhaseSplit = 0.3

// Capabilities describes what the host can do. Choose it once at startup and
// pass it to every RunExit call.
type Capabilities struct {
	// FilterDuringTransform reports that a filter may stay active while its
	// element is being translated. Without it the filter is ramped up first
	// and the element moves afterwards (two-phase policy).
	FilterDuringTransform bool
	// TrustNativeTimeline selects NativeTimeline; otherwise ManualTimeline.
	TrustNativeTimeline bool
}

// DefaultCapabilities returns the capabilities of an Ebitengine host.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		FilterDuringTransform: true,
		TrustNativeTimeline:   true,
	}
}

// PhaseSplit returns the share of the duration given to the filter ramp.
// Zero means single-phase.
func (c Capabilities) PhaseSplit() float64 {
	if c.FilterDuringTransform {
		return 0
	}
	return DefaultPhaseSplit
}

// Timeline returns the timeline strategy for these capabilities.
func (c Capabilities) Timeline(s Scheduler, clock Clock) Timeline {
	if c.TrustNativeTimeline {
		return &NativeTimeline{Scheduler: s}
	}
	return &ManualTimeline{Scheduler: s, Clock: clock}
}

// splitDuration divides d into the filter ramp and the motion phase.
func splitDuration(d time.Duration, split float64) (phase1, phase2 time.Duration) {
	phase1 = time.Duration(math.Round(float64(d) * split))
	return phase1, d - phase1
}
