package genie

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Scene owns the node tree, the frame scheduler that drives every exit
// animation, and the render buffers.
type Scene struct {
	root  *Node
	sched *FrameScheduler
	host  *SceneHost
	debug bool

	// ClearColor fills the screen before drawing. A zero alpha leaves the
	// screen as Ebitengine provides it.
	ClearColor Color

	updateFunc func() error

	// Render state
	rtPool renderTexturePool
	imgOp  ebiten.DrawImageOptions
}

// NewScene creates a new scene with a pre-created root container.
func NewScene() *Scene {
	s := &Scene{
		root:  NewContainer("root"),
		sched: NewFrameScheduler(),
	}
	s.host = NewSceneHost(s)
	return s
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// Scheduler returns the scheduler advanced by Update.
func (s *Scene) Scheduler() *FrameScheduler {
	return s.sched
}

// Host returns the Host that mounts exit wrappers into this scene.
func (s *Scene) Host() *SceneHost {
	return s.host
}

// SetUpdateFunc registers a callback run at the start of every Update.
func (s *Scene) SetUpdateFunc(fn func() error) {
	s.updateFunc = fn
}

// RunExit starts a genie exit of element into target using the scene's host
// and scheduler.
func (s *Scene) RunExit(element, target *Node, opts ExitOptions) (*Animation, error) {
	return RunExit(s.host, s.sched, element, target, opts)
}

// Update runs the update callback and advances the scheduler by one tick.
func (s *Scene) Update() error {
	if s.updateFunc != nil {
		if err := s.updateFunc(); err != nil {
			return err
		}
	}
	s.sched.Advance(tickDelta(ebiten.TPS(), ebiten.ActualTPS()))
	return nil
}

// tickDelta returns the scheduler step for one Update. With a fixed TPS the
// step is exact; with ebiten.SyncWithFPS it follows the measured rate, and it
// is zero until a rate has been measured.
func tickDelta(tps int, actual float64) time.Duration {
	if tps > 0 {
		return time.Second / time.Duration(tps)
	}
	if actual > 0 {
		return time.Duration(float64(time.Second) / actual)
	}
	return 0
}

// Draw renders the node tree onto screen.
func (s *Scene) Draw(screen *ebiten.Image) {
	if s.ClearColor.A > 0 {
		screen.Fill(s.ClearColor.toRGBA())
	}

	var stats debugStats
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}

	s.drawNode(s.root, screen, Vec2{}, 1, &stats)

	if s.debug {
		stats.drawTime = time.Since(t0)
		stats.timers, stats.frameCallbacks = s.sched.Pending()
		s.debugLog(stats)
	}
}

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics and per-frame timing stats are logged to stderr.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
}

// globalDebug mirrors the most recently set Scene debug flag so that node
// operations (which lack a Scene pointer) can check it cheaply. Only valid
// with a single Scene; multiple Scenes with differing debug modes will
// reflect whichever called SetDebugMode last.
var globalDebug bool
