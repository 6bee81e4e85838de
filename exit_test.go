package genie

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// testHost is a SceneHost that keeps rasters on the CPU and can be told to
// fail individual steps.
type testHost struct {
	*SceneHost
	failRasterize bool
	failAttach    bool
	rasters       []*image.RGBA
	unmounts      int
	restores      int
}

func (h *testHost) Rasterize(img *image.RGBA) (*ebiten.Image, error) {
	h.rasters = append(h.rasters, img)
	if h.failRasterize {
		return nil, errors.New("no GPU")
	}
	return nil, nil
}

func (h *testHost) AttachFilter(wrapper *Node, f Filter) error {
	if h.failAttach {
		return errors.New("filter rejected")
	}
	return h.SceneHost.AttachFilter(wrapper, f)
}

func (h *testHost) Unmount(wrapper *Node) {
	h.unmounts++
	h.SceneHost.Unmount(wrapper)
}

func (h *testHost) Restore(wrapper *Node) {
	h.restores++
	h.SceneHost.Restore(wrapper)
}

// recordingScheduler records every delay passed to After.
type recordingScheduler struct {
	*FrameScheduler
	delays []time.Duration
}

func (r *recordingScheduler) After(d time.Duration, fn func()) CancelFunc {
	r.delays = append(r.delays, d)
	return r.FrameScheduler.After(d, fn)
}

type exitFixture struct {
	scene   *Scene
	host    *testHost
	sched   *recordingScheduler
	element *Node
	target  *Node
}

// newExitFixture places a card below a dock slot, the way a window sits
// below the bar it minimizes into.
func newExitFixture() *exitFixture {
	s := NewScene()
	el := NewContainer("card")
	el.X, el.Y = 100, 400
	el.Width, el.Height = 200, 40
	dock := NewContainer("dock")
	dock.X, dock.Y = 150, 50
	dock.Width, dock.Height = 50, 20
	s.Root().AddChild(el)
	s.Root().AddChild(dock)
	return &exitFixture{
		scene:   s,
		host:    &testHost{SceneHost: s.Host()},
		sched:   &recordingScheduler{FrameScheduler: NewFrameScheduler()},
		element: el,
		target:  dock,
	}
}

func (fx *exitFixture) run(t *testing.T, opts ExitOptions) *Animation {
	t.Helper()
	a, err := RunExit(fx.host, fx.sched, fx.element, fx.target, opts)
	if err != nil {
		t.Fatalf("RunExit: %v", err)
	}
	return a
}

// drive advances 10ms ticks until a finishes.
func (fx *exitFixture) drive(t *testing.T, a *Animation) {
	t.Helper()
	for i := 0; i < 500; i++ {
		select {
		case <-a.Done():
			return
		default:
		}
		fx.sched.Advance(10 * time.Millisecond)
	}
	t.Fatalf("animation still %v after 5s", a.State())
}

func (fx *exitFixture) assertTornDown(t *testing.T) {
	t.Helper()
	if fx.host.Mounted() != 0 {
		t.Errorf("%d wrappers still mounted", fx.host.Mounted())
	}
	if fx.element.Parent != nil {
		t.Error("element should be detached after the exit")
	}
	if fx.element.X != 100 || fx.element.Y != 400 || fx.element.Alpha != 1 {
		t.Errorf("element = (%v, %v, alpha %v), want restored (100, 400, 1)", fx.element.X, fx.element.Y, fx.element.Alpha)
	}
	if timers, frames := fx.sched.Pending(); timers != 0 || frames != 0 {
		t.Errorf("scheduler still has %d timers and %d frame callbacks", timers, frames)
	}
	if fx.scene.Root().NumChildren() != 1 {
		t.Errorf("root has %d children, want only the dock", fx.scene.Root().NumChildren())
	}
}

// assertRestored checks that a failed RunExit left the scene as it found it.
func (fx *exitFixture) assertRestored(t *testing.T) {
	t.Helper()
	if fx.host.Mounted() != 0 {
		t.Errorf("%d wrappers still mounted", fx.host.Mounted())
	}
	if fx.element.Parent != fx.scene.Root() || fx.scene.Root().ChildIndex(fx.element) != 0 {
		t.Errorf("element parent = %v, index %d; want back in slot 0 of the root",
			fx.element.Parent, fx.scene.Root().ChildIndex(fx.element))
	}
	if fx.element.X != 100 || fx.element.Y != 400 {
		t.Errorf("element = (%v, %v), want restored (100, 400)", fx.element.X, fx.element.Y)
	}
	if fx.scene.Root().NumChildren() != 2 {
		t.Errorf("root has %d children, want element and dock", fx.scene.Root().NumChildren())
	}
	if timers, frames := fx.sched.Pending(); timers != 0 || frames != 0 {
		t.Errorf("scheduler still has %d timers and %d frame callbacks", timers, frames)
	}
}

func TestRunExitSinglePhase(t *testing.T) {
	fx := newExitFixture()
	var results []error
	a := fx.run(t, ExitOptions{OnComplete: func(err error) { results = append(results, err) }})

	if a.State() != StateRunning {
		t.Fatalf("State = %v, want running", a.State())
	}
	if a.Phase1() != 0 || a.Phase2() != DefaultDuration {
		t.Errorf("phases = %v/%v, want 0/%v", a.Phase1(), a.Phase2(), DefaultDuration)
	}
	if len(fx.sched.delays) != 0 {
		t.Errorf("single-phase scheduled timers %v", fx.sched.delays)
	}

	w := a.Wrapper()
	if w == nil || !w.ClipChildren {
		t.Fatal("expected a clipping wrapper")
	}
	if w.Name != fmt.Sprintf("genie-%d", a.ID()) {
		t.Errorf("wrapper name = %q", w.Name)
	}
	if w.X != 100 || w.Y != 70 || w.Width != 200 || w.Height != 370 {
		t.Errorf("wrapper = (%v, %v, %vx%v), want (100, 70, 200x370)", w.X, w.Y, w.Width, w.Height)
	}
	if fx.element.Parent != w || fx.element.X != 0 || fx.element.Y != 330 {
		t.Errorf("element seated at (%v, %v), want (0, 330) inside the wrapper", fx.element.X, fx.element.Y)
	}
	if got := fx.element.WorldPosition(); got != (Vec2{100, 400}) {
		t.Errorf("element world position = %+v, want unchanged {100 400}", got)
	}
	if len(w.Filters) != 1 || w.Filters[0] != a.Filter() {
		t.Fatal("filter should be attached to the wrapper")
	}
	if a.Filter().Scale() != a.Spec().Scale {
		t.Errorf("single-phase scale = %v, want full %v", a.Filter().Scale(), a.Spec().Scale)
	}

	fx.sched.Advance(200 * time.Millisecond)
	if !(fx.element.Y < 330 && fx.element.Y > -40) || !(fx.element.Alpha < 1 && fx.element.Alpha > 0) {
		t.Errorf("midway element = (y %v, alpha %v)", fx.element.Y, fx.element.Alpha)
	}

	fx.drive(t, a)
	if a.State() != StateComplete || a.Err() != nil {
		t.Fatalf("State = %v, Err = %v", a.State(), a.Err())
	}
	if len(results) != 1 || results[0] != nil {
		t.Errorf("OnComplete results = %v, want [nil]", results)
	}
	if a.Wrapper() != nil || !w.IsDisposed() {
		t.Error("wrapper should be disposed")
	}
	if len(w.Filters) != 0 {
		t.Error("filter should be detached")
	}
	fx.assertTornDown(t)
}

func TestRunExitTwoPhase(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
	}{
		{"native", Capabilities{TrustNativeTimeline: true}},
		{"manual", Capabilities{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newExitFixture()
			caps := tt.caps
			a := fx.run(t, ExitOptions{Duration: 400 * time.Millisecond, Capabilities: &caps})

			if a.Phase1() != 120*time.Millisecond || a.Phase2() != 280*time.Millisecond {
				t.Fatalf("phases = %v/%v, want 120ms/280ms", a.Phase1(), a.Phase2())
			}
			if len(fx.sched.delays) != 1 || fx.sched.delays[0] != 120*time.Millisecond {
				t.Fatalf("scheduled delays = %v, want [120ms]", fx.sched.delays)
			}
			if a.Filter().Scale() != 0 {
				t.Errorf("initial scale = %v, want 0", a.Filter().Scale())
			}

			full := a.Spec().Scale
			fx.sched.Advance(60 * time.Millisecond)
			if s := a.Filter().Scale(); !(math.Abs(s) > 0 && math.Abs(s) < math.Abs(full)) {
				t.Errorf("scale during ramp = %v, want strictly between 0 and %v", s, full)
			}
			if fx.element.Y != 330 || fx.element.Alpha != 1 {
				t.Errorf("element moved during ramp: (y %v, alpha %v)", fx.element.Y, fx.element.Alpha)
			}

			fx.sched.Advance(60 * time.Millisecond)
			if a.Filter().Scale() != full {
				t.Errorf("scale at phase boundary = %v, want exactly %v", a.Filter().Scale(), full)
			}
			fx.sched.Advance(100 * time.Millisecond)
			if fx.element.Y >= 330 || fx.element.Alpha >= 1 {
				t.Errorf("element not moving in phase 2: (y %v, alpha %v)", fx.element.Y, fx.element.Alpha)
			}
			if a.Filter().Scale() != full {
				t.Errorf("scale in phase 2 = %v, want %v", a.Filter().Scale(), full)
			}

			fx.drive(t, a)
			if a.Err() != nil {
				t.Fatal(a.Err())
			}
			fx.assertTornDown(t)
		})
	}
}

func TestRunExitCancel(t *testing.T) {
	for _, split := range []bool{false, true} {
		fx := newExitFixture()
		caps := Capabilities{FilterDuringTransform: !split, TrustNativeTimeline: true}
		var results []error
		a := fx.run(t, ExitOptions{
			Capabilities: &caps,
			OnComplete:   func(err error) { results = append(results, err) },
		})
		fx.sched.Advance(50 * time.Millisecond)

		a.Cancel()
		a.Cancel()

		if !errors.Is(a.Err(), ErrCanceled) {
			t.Errorf("two-phase=%v: Err = %v, want ErrCanceled", split, a.Err())
		}
		if len(results) != 1 || !errors.Is(results[0], ErrCanceled) {
			t.Errorf("two-phase=%v: OnComplete results = %v", split, results)
		}
		select {
		case <-a.Done():
		default:
			t.Errorf("two-phase=%v: Done not closed", split)
		}
		fx.sched.Advance(time.Second)
		if len(results) != 1 {
			t.Errorf("two-phase=%v: OnComplete ran again", split)
		}
		fx.assertTornDown(t)
	}
}

func TestRunExitElementDisposedMidExit(t *testing.T) {
	for _, native := range []bool{true, false} {
		fx := newExitFixture()
		caps := Capabilities{FilterDuringTransform: true, TrustNativeTimeline: native}
		var results []error
		a := fx.run(t, ExitOptions{
			Capabilities: &caps,
			OnComplete:   func(err error) { results = append(results, err) },
		})
		fx.sched.Advance(50 * time.Millisecond)
		fx.element.Dispose()
		fx.sched.Advance(10 * time.Millisecond)

		if a.State() != StateComplete || !errors.Is(a.Err(), ErrCanceled) {
			t.Errorf("native=%v: State = %v, Err = %v; want complete with ErrCanceled", native, a.State(), a.Err())
		}
		if len(results) != 1 || !errors.Is(results[0], ErrCanceled) {
			t.Errorf("native=%v: OnComplete results = %v", native, results)
		}
		if fx.host.Mounted() != 0 || fx.host.unmounts != 1 {
			t.Errorf("native=%v: Mounted = %d, unmounts = %d", native, fx.host.Mounted(), fx.host.unmounts)
		}
		if timers, frames := fx.sched.Pending(); timers != 0 || frames != 0 {
			t.Errorf("native=%v: pending %d/%d after disposal", native, timers, frames)
		}
		if fx.scene.Root().NumChildren() != 1 {
			t.Errorf("native=%v: root has %d children, want only the dock", native, fx.scene.Root().NumChildren())
		}
	}
}

func TestRunExitIndependentAnimations(t *testing.T) {
	fx := newExitFixture()
	second := NewContainer("card2")
	second.X, second.Y = 400, 300
	second.Width, second.Height = 120, 80
	fx.scene.Root().AddChild(second)

	a := fx.run(t, ExitOptions{})
	b, err := RunExit(fx.host, fx.sched, second, fx.target, ExitOptions{Duration: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if a.ID() == b.ID() || a.Spec().ID == b.Spec().ID {
		t.Errorf("shared IDs: %d / %d", a.ID(), b.ID())
	}
	if a.Wrapper() == b.Wrapper() || a.Wrapper().Name == b.Wrapper().Name {
		t.Error("animations share a wrapper")
	}
	if a.Spec().ID != a.ID() || b.Spec().ID != b.ID() {
		t.Error("spec ID should match the animation ID")
	}
	if fx.host.Mounted() != 2 {
		t.Fatalf("Mounted = %d, want 2", fx.host.Mounted())
	}

	fx.drive(t, a)
	if b.State() != StateRunning {
		t.Fatalf("second animation state = %v after first finished", b.State())
	}
	if fx.host.Mounted() != 1 || second.Parent != b.Wrapper() {
		t.Error("second animation should keep its wrapper")
	}

	fx.drive(t, b)
	if a.Err() != nil || b.Err() != nil {
		t.Errorf("errors: %v / %v", a.Err(), b.Err())
	}
	if fx.host.Mounted() != 0 || fx.host.unmounts != 2 {
		t.Errorf("Mounted = %d, unmounts = %d", fx.host.Mounted(), fx.host.unmounts)
	}
}

func TestRunExitLiveGeometry(t *testing.T) {
	fx := newExitFixture()
	a := fx.run(t, ExitOptions{})

	f := a.Funnel()
	if want := (Rect{X: 100, Y: 70, Width: 200, Height: 370}); f.Container != want {
		t.Errorf("Container = %+v, want %+v", f.Container, want)
	}
	if a.Field().Funnel() != f {
		t.Error("field should be built from the captured funnel")
	}
	if a.Spec().ZeroValue != f.ZeroValue {
		t.Errorf("spec zero %d != funnel zero %d", a.Spec().ZeroValue, f.ZeroValue)
	}
	if len(fx.host.rasters) != 1 {
		t.Fatalf("rasterized %d images, want 1", len(fx.host.rasters))
	}
	if b := fx.host.rasters[0].Bounds(); b.Dx() != 200 || b.Dy() != 370 {
		t.Errorf("raster = %v, want 200x370", b)
	}
	a.Cancel()
}

func TestRunExitAttachFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testHost)
	}{
		{"rasterize", func(h *testHost) { h.failRasterize = true }},
		{"attach", func(h *testHost) { h.failAttach = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newExitFixture()
			tt.setup(fx.host)
			called := false
			a, err := RunExit(fx.host, fx.sched, fx.element, fx.target, ExitOptions{
				OnComplete: func(error) { called = true },
			})
			if a != nil {
				t.Error("expected nil animation on failure")
			}
			if !errors.Is(err, ErrAttach) {
				t.Fatalf("err = %v, want ErrAttach", err)
			}
			if called {
				t.Error("OnComplete should not run for synchronous failures")
			}
			if fx.host.restores != 1 || fx.host.unmounts != 0 {
				t.Errorf("restores = %d, unmounts = %d; want 1, 0", fx.host.restores, fx.host.unmounts)
			}
			if fx.element.Alpha != 1 {
				t.Errorf("element alpha = %v, want 1", fx.element.Alpha)
			}
			fx.assertRestored(t)
		})
	}
}

func TestRunExitTimelineFailures(t *testing.T) {
	t.Run("single-phase", func(t *testing.T) {
		fx := newExitFixture()
		fx.element.Alpha = math.NaN()
		_, err := RunExit(fx.host, fx.sched, fx.element, fx.target, ExitOptions{})
		if !errors.Is(err, ErrTimeline) {
			t.Fatalf("err = %v, want ErrTimeline", err)
		}
		if fx.host.restores != 1 {
			t.Errorf("restores = %d, want 1", fx.host.restores)
		}
		fx.assertRestored(t)
	})

	t.Run("two-phase", func(t *testing.T) {
		fx := newExitFixture()
		fx.element.Alpha = math.NaN()
		caps := Capabilities{TrustNativeTimeline: true}
		var got error
		a := fx.run(t, ExitOptions{Capabilities: &caps, OnComplete: func(err error) { got = err }})
		fx.drive(t, a)
		if !errors.Is(a.Err(), ErrTimeline) || !errors.Is(got, ErrTimeline) {
			t.Errorf("Err = %v, OnComplete = %v, want ErrTimeline", a.Err(), got)
		}
		if fx.host.unmounts != 1 || fx.host.Mounted() != 0 {
			t.Errorf("wrapper not unmounted (unmounts %d)", fx.host.unmounts)
		}
		if timers, frames := fx.sched.Pending(); timers != 0 || frames != 0 {
			t.Errorf("pending %d/%d after failure", timers, frames)
		}
	})
}

func TestRunExitPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*exitFixture, *ExitOptions)
	}{
		{"zero-size element", func(fx *exitFixture, _ *ExitOptions) { fx.element.Width = 0 }},
		{"disposed target", func(fx *exitFixture, _ *ExitOptions) { fx.target.Dispose() }},
		{"nil element", func(fx *exitFixture, _ *ExitOptions) { fx.element = nil }},
		{"negative duration", func(_ *exitFixture, o *ExitOptions) { o.Duration = -time.Second }},
		{"negative margin", func(_ *exitFixture, o *ExitOptions) { o.Margin = -1 }},
		{"NaN margin", func(_ *exitFixture, o *ExitOptions) { o.Margin = math.NaN() }},
		{"shared bottom edge", func(fx *exitFixture, _ *ExitOptions) {
			fx.target.X, fx.target.Y = 400, 420
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newExitFixture()
			var opts ExitOptions
			tt.mutate(fx, &opts)
			_, err := RunExit(fx.host, fx.sched, fx.element, fx.target, opts)
			if !errors.Is(err, ErrPrecondition) {
				t.Fatalf("err = %v, want ErrPrecondition", err)
			}
			if fx.host.unmounts != 0 || fx.host.restores != 0 || fx.host.Mounted() != 0 {
				t.Error("precondition failures must not touch the scene")
			}
			if fx.element != nil && fx.element.Parent != fx.scene.Root() {
				t.Error("element should stay under its original parent")
			}
		})
	}
}

func TestRunExitDebug(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	fx := newExitFixture()
	a := fx.run(t, ExitOptions{Debug: true})

	w := a.Wrapper()
	if w.NumChildren() != 1 {
		t.Fatalf("wrapper children = %d, want only the element", w.NumChildren())
	}
	root := fx.scene.Root()
	i := root.ChildIndex(w)
	if i < 1 {
		t.Fatalf("wrapper index = %d, want an overlay in front of it", i)
	}
	overlay := root.Children()[i-1]
	if !strings.HasSuffix(overlay.Name, ".overlay") {
		t.Errorf("sibling behind the wrapper = %q, want the overlay", overlay.Name)
	}
	if overlay.X != w.X || overlay.Y != w.Y {
		t.Errorf("overlay at (%v, %v), want the wrapper frame (%v, %v)", overlay.X, overlay.Y, w.X, w.Y)
	}
	if len(overlay.Filters) != 0 {
		t.Error("overlay should not be filtered")
	}
	if len(fx.host.rasters) != 2 {
		t.Errorf("rasters = %d, want field and overlay", len(fx.host.rasters))
	}

	out := buf.String()
	for _, want := range []string{"exit prepared", fmt.Sprintf("zeroValue=%d", a.Spec().ZeroValue), "slope=", "scale="} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}

	fx.drive(t, a)
	if !overlay.IsDisposed() {
		t.Error("overlay should be disposed on teardown")
	}
	if !strings.Contains(buf.String(), "exit complete") {
		t.Error("teardown not logged")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle: "idle", StatePrepared: "prepared", StateRunning: "running",
		StateComplete: "complete", State(9): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
