// Package scene holds the renderable state handed to sensors on each
// simulation tick. It is a deliberately small model: sensors only need a
// named collection of renderable nodes and an optional debug overlay node.
package scene

import "sync"

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add returns the component-wise sum of v and o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns the component-wise difference of v and o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Color is an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

// Node is a renderable element of the scene. Visibility is mutable at
// runtime; renderers must skip invisible nodes.
type Node struct {
	Name    string
	Visible bool

	// Sphere primitive; the reference renderer supports nothing else.
	Center Vec3
	Radius float64
	Color  Color

	mu sync.Mutex
}

// SetVisible flips node visibility.
func (n *Node) SetVisible(v bool) {
	n.mu.Lock()
	n.Visible = v
	n.mu.Unlock()
}

// IsVisible reports current visibility.
func (n *Node) IsVisible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.Visible
}

// Scene is a named set of renderable nodes.
type Scene struct {
	Name  string
	Nodes []*Node
}

// NewScene creates an empty scene with the given name.
func NewScene(name string) *Scene {
	return &Scene{Name: name}
}

// Add appends a node to the scene and returns it for further configuration.
func (s *Scene) Add(n *Node) *Node {
	s.Nodes = append(s.Nodes, n)
	return n
}

// VisibleNodes returns the nodes a renderer should draw.
func (s *Scene) VisibleNodes() []*Node {
	out := make([]*Node, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.IsVisible() {
			out = append(out, n)
		}
	}
	return out
}
