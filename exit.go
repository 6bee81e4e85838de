package genie

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// State is the lifecycle stage of an Animation.
type State uint8

const (
	StateIdle     State = iota // geometry not yet captured
	StatePrepared              // wrapper mounted, filter attached
	StateRunning               // timeline playing
	StateComplete              // torn down; Err reports why
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Animation is one running exit effect. It exclusively owns the wrapper node,
// the displacement image, the filter and the timeline, and releases all of
// them together exactly once.
type Animation struct {
	id      FilterID
	host    Host
	sched   Scheduler
	opts    ExitOptions
	element *Node

	state  State
	funnel *Funnel
	field  *Field
	spec   FilterSpec
	filter *GenieFilter

	wrapper  *Node
	mapImg   *ebiten.Image
	overlay  *Node
	attached bool
	restore  bool

	phase1, phase2 time.Duration
	ramp           Playback
	motion         Playback
	cancelTimer    CancelFunc

	err  error
	done chan struct{}
}

// RunExit starts the genie exit of element into target. The element must be
// part of host's scene; on completion it is detached with its position and
// alpha restored.
//
// Errors found before the timeline starts are returned directly, after
// every resource created so far has been released and the element put back
// in its former slot; the returned error wraps ErrPrecondition, ErrAttach or
// ErrTimeline. Later outcomes are reported by
// Animation.Done, Animation.Err and ExitOptions.OnComplete.
func RunExit(host Host, sched Scheduler, element, target *Node, opts ExitOptions) (*Animation, error) {
	o, err := opts.resolve(sched)
	if err != nil {
		return nil, err
	}
	src, err := host.Bounds(element)
	if err != nil {
		return nil, wrapErr(ErrPrecondition, "element bounds", err)
	}
	dst, err := host.Bounds(target)
	if err != nil {
		return nil, wrapErr(ErrPrecondition, "target bounds", err)
	}
	funnel, err := NewFunnel(src, dst, o.Margin)
	if err != nil {
		return nil, err
	}

	a := &Animation{
		id:      nextFilterID(),
		host:    host,
		sched:   sched,
		opts:    o,
		element: element,
		state:   StateIdle,
		funnel:  funnel,
		done:    make(chan struct{}),
	}
	if err := a.prepare(); err != nil {
		return nil, a.abort(err)
	}
	if err := a.start(); err != nil {
		return nil, a.abort(err)
	}
	return a, nil
}

// abort tears down a start that failed before RunExit returned. The caller
// receives the error directly, so OnComplete is not run, and the element goes
// back where it was.
func (a *Animation) abort(err error) error {
	a.opts.OnComplete = nil
	a.restore = true
	a.finish(err)
	return err
}

// prepare mounts the wrapper, synthesizes the field and attaches the filter.
func (a *Animation) prepare() error {
	wrapper, err := a.host.Mount(a.element, a.funnel.Container, a.funnel.ContentOffset())
	if err != nil {
		return wrapErr(ErrAttach, "mount wrapper", err)
	}
	a.wrapper = wrapper
	wrapper.Name = fmt.Sprintf("genie-%d", a.id)

	a.field = Synthesize(a.funnel)
	raw, err := a.host.Rasterize(a.field.Encode())
	if err != nil {
		return wrapErr(ErrAttach, "rasterize field", err)
	}
	a.mapImg = raw
	a.spec = NewFilterSpec(a.field, a.id)
	a.filter = NewGenieFilter(a.spec, raw)

	if a.opts.Debug {
		if err := a.mountOverlay(); err != nil {
			return err
		}
		a.logParameters()
	}

	if err := a.host.AttachFilter(wrapper, a.filter); err != nil {
		return wrapErr(ErrAttach, "attach filter", err)
	}
	a.attached = true
	a.state = StatePrepared
	return nil
}

// mountOverlay places the debug rendering of the field just behind the
// wrapper, over the same frame, where the filter does not reach it.
func (a *Animation) mountOverlay() error {
	img, err := a.host.Rasterize(DebugOverlay(a.field))
	if err != nil {
		return wrapErr(ErrAttach, "rasterize overlay", err)
	}
	a.overlay = NewSprite(fmt.Sprintf("genie-%d.overlay", a.id), img)
	a.overlay.X, a.overlay.Y = a.wrapper.X, a.wrapper.Y
	parent := a.wrapper.Parent
	if parent == nil {
		return fmt.Errorf("%w: wrapper %q has no parent for the overlay", ErrAttach, a.wrapper.Name)
	}
	parent.AddChildAt(a.overlay, parent.ChildIndex(a.wrapper))
	return nil
}

// start begins the timeline. With a non-zero phase split the filter first
// ramps from zero to full scale while the element holds still.
func (a *Animation) start() error {
	caps := *a.opts.Capabilities
	a.phase1, a.phase2 = splitDuration(a.opts.Duration, caps.PhaseSplit())
	timeline := caps.Timeline(a.sched, a.opts.Clock)
	a.state = StateRunning

	if a.phase1 <= 0 {
		return a.startMotion(timeline)
	}

	ramp, err := timeline.Play(Keyframes{
		{Field: a.filter.scalePtr(), From: 0, To: a.spec.Scale},
	}, a.phase1, nil)
	if err != nil {
		return wrapErr(ErrTimeline, "filter ramp", err)
	}
	a.ramp = ramp
	a.cancelTimer = a.sched.After(a.phase1, func() {
		a.cancelTimer = nil
		if err := a.startMotion(timeline); err != nil {
			a.finish(err)
		}
	})
	return nil
}

// startMotion runs the second phase: the element rises by the container
// height and fades out with the filter held at full scale.
func (a *Animation) startMotion(timeline Timeline) error {
	if a.ramp != nil {
		a.ramp.Cancel()
		a.ramp = nil
	}
	a.filter.SetScale(a.spec.Scale)

	el := a.element
	y := el.Y
	motion, err := timeline.Play(Keyframes{
		{Field: &el.Y, From: y, To: y - a.funnel.Container.Height, Owner: el},
		{Field: &el.Alpha, From: el.Alpha, To: 0, Owner: el},
	}, a.phase2, func() {
		if el.IsDisposed() {
			a.finish(fmt.Errorf("%w: element %q disposed mid-exit", ErrCanceled, el.Name))
			return
		}
		a.finish(nil)
	})
	if err != nil {
		return wrapErr(ErrTimeline, "motion", err)
	}
	a.motion = motion
	return nil
}

// Cancel stops the animation immediately and releases its resources. The
// rest of the visual timeline is not played. Err reports ErrCanceled.
// Calling Cancel on a completed animation is a no-op.
func (a *Animation) Cancel() {
	a.finish(ErrCanceled)
}

// finish tears everything down exactly once.
func (a *Animation) finish(err error) {
	if a.state == StateComplete {
		return
	}
	a.state = StateComplete
	a.err = err

	if a.cancelTimer != nil {
		a.cancelTimer()
		a.cancelTimer = nil
	}
	if a.ramp != nil {
		a.ramp.Cancel()
		a.ramp = nil
	}
	if a.motion != nil {
		a.motion.Cancel()
		a.motion = nil
	}
	if a.attached {
		a.host.DetachFilter(a.wrapper, a.filter)
		a.attached = false
	}
	if a.filter != nil {
		a.filter.Dispose()
	}
	if a.overlay != nil {
		if a.overlay.Image != nil {
			a.overlay.Image.Deallocate()
		}
		a.overlay.Dispose()
		a.overlay = nil
	}
	if a.mapImg != nil {
		a.mapImg.Deallocate()
		a.mapImg = nil
	}
	if a.wrapper != nil {
		if a.restore {
			a.host.Restore(a.wrapper)
		} else {
			a.host.Unmount(a.wrapper)
		}
		a.wrapper = nil
	}

	log := Logger()
	switch {
	case err == nil:
		log.Debug("genie: exit complete", slog.Uint64("id", uint64(a.id)))
	case errors.Is(err, ErrCanceled):
		log.Debug("genie: exit canceled", slog.Uint64("id", uint64(a.id)))
	default:
		log.Warn("genie: exit failed", slog.Uint64("id", uint64(a.id)), slog.Any("err", err))
	}

	close(a.done)
	if a.opts.OnComplete != nil {
		a.opts.OnComplete(err)
	}
}

func (a *Animation) logParameters() {
	f := a.funnel
	st := a.field.Stats()
	Logger().Debug("genie: exit prepared",
		slog.Uint64("id", uint64(a.id)),
		slog.Any("container", f.Container),
		slog.Int("contentTop", f.ContentTop),
		slog.Float64("maxDisplacementRight", f.MaxDisplacementRight),
		slog.Float64("maxDisplacementLeft", f.MaxDisplacementLeft),
		slog.Int("zeroValue", int(f.ZeroValue)),
		slog.Float64("zeroPoint", a.spec.ZeroPoint),
		slog.Float64("slope", a.spec.Slope),
		slog.Float64("intercept", a.spec.Intercept),
		slog.Float64("scale", a.spec.Scale),
		slog.Int("saturated", st.Saturated),
		slog.Int("inFunnelSaturated", st.InFunnelSaturated),
	)
}

// ID returns the animation's identifier, shared by its filter spec.
func (a *Animation) ID() FilterID { return a.id }

// State returns the lifecycle stage.
func (a *Animation) State() State { return a.state }

// Funnel returns the geometry captured at start.
func (a *Animation) Funnel() *Funnel { return a.funnel }

// Field returns the synthesized displacement field.
func (a *Animation) Field() *Field { return a.field }

// Spec returns the filter graph description.
func (a *Animation) Spec() FilterSpec { return a.spec }

// Filter returns the attached filter.
func (a *Animation) Filter() *GenieFilter { return a.filter }

// Wrapper returns the positioning wrapper, or nil once torn down.
func (a *Animation) Wrapper() *Node { return a.wrapper }

// Phase1 returns the duration of the filter ramp. Zero in single-phase mode.
func (a *Animation) Phase1() time.Duration { return a.phase1 }

// Phase2 returns the duration of the motion phase.
func (a *Animation) Phase2() time.Duration { return a.phase2 }

// Done is closed when the animation has been torn down.
func (a *Animation) Done() <-chan struct{} { return a.done }

// Err returns nil while running or after normal completion, ErrCanceled
// after Cancel, or the failure that ended the animation.
func (a *Animation) Err() error { return a.err }

// wrapErr wraps err with sentinel unless it already carries it.
func wrapErr(sentinel error, op string, err error) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, op, err)
}
