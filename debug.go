package genie

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"golang.org/x/image/draw"
)

// debugStats holds per-frame timing and draw-call metrics.
// Only populated when Scene.debug is true.
type debugStats struct {
	drawTime       time.Duration
	nodeCount      int
	drawCallCount  int
	offscreenCount int
	timers         int
	frameCallbacks int
}

// debugLog prints timing and draw-call stats to stderr.
func (s *Scene) debugLog(stats debugStats) {
	if !s.debug {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr,
		"[genie] draw: %v | nodes: %d | draw calls: %d | offscreen: %d\n",
		stats.drawTime, stats.nodeCount, stats.drawCallCount, stats.offscreenCount)
	_, _ = fmt.Fprintf(os.Stderr,
		"[genie] pending timers: %d | frame callbacks: %d\n",
		stats.timers, stats.frameCallbacks)
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Only called in debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("genie debug: %s on disposed node %q (ID was %d)", op, n.Name, n.ID))
	}
}

// overlayAlpha is the opacity of the field preview.
const overlayAlpha = 128

// DebugOverlay renders the encoded field at half opacity, red channel only,
// for display behind the animated element.
func DebugOverlay(f *Field) *image.RGBA {
	src := f.Encode()
	dst := image.NewRGBA(src.Bounds())
	mask := image.NewUniform(color.Alpha{A: overlayAlpha})
	draw.DrawMask(dst, dst.Bounds(), src, image.Point{}, mask, image.Point{}, draw.Over)
	return dst
}
