package genie

import (
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Host is everything the exit animation needs from the surrounding scene.
// RunExit calls it in order: Bounds, Mount, Rasterize, AttachFilter, and on
// teardown DetachFilter and then Unmount or Restore. Every wrapper that Mount
// returned is released by exactly one of the two.
type Host interface {
	// Bounds returns n's rect in scene coordinates, reflecting current layout.
	Bounds(n *Node) (Rect, error)
	// Mount moves element into a new clipping wrapper covering frame, with
	// the element's origin at content inside the wrapper.
	Mount(element *Node, frame Rect, content Vec2) (*Node, error)
	// Unmount removes the wrapper and releases the element from it.
	Unmount(wrapper *Node)
	// Restore undoes Mount: the wrapper is removed and the element returns to
	// its former parent and slot. Used when RunExit fails before returning.
	Restore(wrapper *Node)
	// Rasterize uploads an RGBA raster as a filter input image.
	Rasterize(img *image.RGBA) (*ebiten.Image, error)
	// AttachFilter applies f to the wrapper's rendered output.
	AttachFilter(wrapper *Node, f Filter) error
	// DetachFilter removes f from the wrapper.
	DetachFilter(wrapper *Node, f Filter)
}

// mountState remembers where an element lived before it was wrapped.
type mountState struct {
	element *Node
	parent  *Node
	index   int
	x, y    float64
	alpha   float64
}

// SceneHost implements Host over a Scene's node tree.
type SceneHost struct {
	scene  *Scene
	mounts map[*Node]mountState
}

// NewSceneHost creates a host for s.
func NewSceneHost(s *Scene) *SceneHost {
	return &SceneHost{scene: s, mounts: make(map[*Node]mountState)}
}

// Bounds implements Host.
func (h *SceneHost) Bounds(n *Node) (Rect, error) {
	if n == nil {
		return Rect{}, fmt.Errorf("%w: nil node", ErrPrecondition)
	}
	if n.IsDisposed() {
		return Rect{}, fmt.Errorf("%w: node %q is disposed", ErrPrecondition, n.Name)
	}
	return n.WorldBounds(), nil
}

// Mount implements Host. The wrapper takes the element's slot under its
// former parent (or the scene root) and is positioned at frame in scene
// coordinates.
func (h *SceneHost) Mount(element *Node, frame Rect, content Vec2) (*Node, error) {
	if element.IsDisposed() {
		return nil, fmt.Errorf("%w: node %q is disposed", ErrAttach, element.Name)
	}
	parent := element.Parent
	if parent == nil {
		parent = h.scene.Root()
	}
	st := mountState{
		element: element,
		parent:  element.Parent,
		index:   -1,
		x:       element.X,
		y:       element.Y,
		alpha:   element.Alpha,
	}
	if element.Parent != nil {
		st.index = element.Parent.ChildIndex(element)
	}

	wrapper := NewContainer(element.Name + ".genie")
	wrapper.Width, wrapper.Height = frame.Width, frame.Height
	wrapper.ClipChildren = true
	origin := parent.WorldPosition()
	wrapper.X, wrapper.Y = frame.X-origin.X, frame.Y-origin.Y

	parent.AddChildAt(wrapper, st.index)
	wrapper.AddChild(element)
	element.X, element.Y = content.X, content.Y

	h.mounts[wrapper] = st
	return wrapper, nil
}

// Unmount implements Host. The element's position and alpha are restored and
// it is left detached: the exit has finished and the caller decides whether
// it comes back.
func (h *SceneHost) Unmount(wrapper *Node) {
	st, ok := h.mounts[wrapper]
	if !ok {
		return
	}
	delete(h.mounts, wrapper)
	if st.element.Parent == wrapper {
		wrapper.RemoveChild(st.element)
	}
	st.element.X, st.element.Y = st.x, st.y
	st.element.Alpha = st.alpha
	wrapper.Dispose()
}

// Restore implements Host. An element that had no parent before Mount is
// left detached.
func (h *SceneHost) Restore(wrapper *Node) {
	st, ok := h.mounts[wrapper]
	if !ok {
		return
	}
	h.Unmount(wrapper)
	if st.parent == nil || st.parent.IsDisposed() || st.element.IsDisposed() {
		return
	}
	st.parent.AddChildAt(st.element, st.index)
}

// Mounted returns the number of wrappers currently installed.
func (h *SceneHost) Mounted() int {
	return len(h.mounts)
}

// Rasterize implements Host.
func (h *SceneHost) Rasterize(img *image.RGBA) (*ebiten.Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty raster %v", ErrAttach, b)
	}
	out := ebiten.NewImage(b.Dx(), b.Dy())
	out.WritePixels(img.Pix)
	return out, nil
}

// AttachFilter implements Host.
func (h *SceneHost) AttachFilter(wrapper *Node, f Filter) error {
	if _, ok := h.mounts[wrapper]; !ok {
		return fmt.Errorf("%w: node %q is not a mounted wrapper", ErrAttach, wrapper.Name)
	}
	wrapper.Filters = append(wrapper.Filters, f)
	return nil
}

// DetachFilter implements Host.
func (h *SceneHost) DetachFilter(wrapper *Node, f Filter) {
	wrapper.RemoveFilter(f)
}
