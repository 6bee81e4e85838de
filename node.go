package genie

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// nodeIDCounter is a plain counter (single-threaded, no atomic).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is a scene graph element. Nodes are translation-only: X and Y offset a
// node from its parent's origin. A node with an Image draws it at its origin;
// a node with Filters or ClipChildren renders its subtree offscreen first.
type Node struct {
	// Identity
	ID   uint32
	Name string

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local)
	X, Y float64

	// Width and Height are the node's layout size. Zero means "use the image
	// size" for sprites and "no size" for containers.
	Width, Height float64

	// Visibility
	Alpha   float64
	Visible bool

	// Image is drawn at the node's origin when non-nil.
	Image *ebiten.Image
	Color Color

	// ClipChildren clips the subtree to (0, 0, Width, Height).
	ClipChildren bool

	// Filters run over the node's rendered subtree.
	Filters []Filter

	// Metadata
	UserData any

	disposed bool
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.Alpha = 1
	n.Color = ColorWhite
	n.Visible = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name}
	nodeDefaults(n)
	return n
}

// NewSprite creates a node that draws img at its origin.
func NewSprite(name string, img *ebiten.Image) *Node {
	n := &Node{Name: name, Image: img}
	nodeDefaults(n)
	return n
}

// Size returns the node's layout size, falling back to its image size.
func (n *Node) Size() (w, h float64) {
	w, h = n.Width, n.Height
	if n.Image != nil {
		b := n.Image.Bounds()
		if w == 0 {
			w = float64(b.Dx())
		}
		if h == 0 {
			h = float64(b.Dy())
		}
	}
	return w, h
}

// WorldPosition returns the node's origin in scene coordinates.
func (n *Node) WorldPosition() Vec2 {
	var p Vec2
	for c := n; c != nil; c = c.Parent {
		p.X += c.X
		p.Y += c.Y
	}
	return p
}

// WorldBounds returns the node's layout rect in scene coordinates.
func (n *Node) WorldBounds() Rect {
	p := n.WorldPosition()
	w, h := n.Size()
	return Rect{X: p.X, Y: p.Y, Width: w, Height: h}
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	n.AddChildAt(child, -1)
}

// AddChildAt inserts child at the given index; -1 appends.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("genie: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("genie: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	if index < 0 || index > len(n.children) {
		index = len(n.children)
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("genie: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildIndex returns the index of child among n's children, or -1.
func (n *Node) ChildIndex(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// RemoveFilter removes the first occurrence of f from n.Filters.
func (n *Node) RemoveFilter(f Filter) {
	for i, c := range n.Filters {
		if c == f {
			n.Filters = append(n.Filters[:i], n.Filters[i+1:]...)
			return
		}
	}
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants. Images are not deallocated.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	n.Filters = nil
	n.Image = nil
	n.UserData = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}
