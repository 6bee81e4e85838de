package genie

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Track animates one float64 field from From to To. When Owner is set and
// gets disposed, the playback holding the track stops without further writes.
type Track struct {
	Field    *float64
	From, To float64
	Owner    *Node
}

// TweenGroup animates any number of float64 fields over the same duration.
// Call Update(dt) each frame. When the group finishes each field holds
// exactly its track's To value. If a track's Owner is disposed, the group
// stops immediately and Interrupted is set.
//
// There is no global animation manager. Users call Update themselves or let
// NativeTimeline drive it from a Scheduler.
type TweenGroup struct {
	tweens      []*gween.Tween
	tracks      []Track
	Done        bool
	Interrupted bool
}

// NewTweenGroup creates a group over tracks. The fields are set to their
// From values immediately.
func NewTweenGroup(tracks []Track, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := &TweenGroup{
		tweens: make([]*gween.Tween, len(tracks)),
		tracks: tracks,
	}
	for i, tr := range tracks {
		g.tweens[i] = gween.New(float32(tr.From), float32(tr.To), duration, fn)
		*tr.Field = tr.From
	}
	return g
}

// Update advances all tweens by dt seconds and writes values to the target
// fields. If an owner node has been disposed, Done and Interrupted are set
// and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}

	if Keyframes(g.tracks).ownerDisposed() {
		g.Done = true
		g.Interrupted = true
		return
	}

	allDone := true
	for i, tw := range g.tweens {
		val, finished := tw.Update(dt)
		if finished {
			*g.tracks[i].Field = g.tracks[i].To
		} else {
			*g.tracks[i].Field = float64(val)
			allDone = false
		}
	}
	g.Done = allDone
}
