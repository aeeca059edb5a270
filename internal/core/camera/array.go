package camera

import "github.com/simoptic/simoptic/internal/core/scene"

// Array is a camera composed of multiple sub-views rendered side by side
// into one combined framebuffer. Sub-views are laid out in a single row:
// Shape is [rows, cols] and ImageShape is the combined pixel size.
type Array struct {
	Cameras []*Perspective

	// Shape is the view layout as [rows, cols].
	Shape [2]int
	// ImageShape is the combined framebuffer size as [width, height].
	ImageShape [2]int

	name string
}

// ArrayConfig describes one array camera.
type ArrayConfig struct {
	Positions    []scene.Vec3
	Orientations []scene.Vec3 // optional; paired 1:1 with Positions when set
	FOV          float64
	Near         float64 // scene units
	Far          float64 // scene units
	ViewWidth    int     // per-view pixel size
	ViewHeight   int
}

// NewArray builds an array camera with one sub-camera per position, laid
// out in a single row. Each sub-view keeps the per-view resolution, so the
// combined image is viewCount*width x height.
func NewArray(cfg ArrayConfig) *Array {
	n := len(cfg.Positions)
	a := &Array{
		Cameras:    make([]*Perspective, 0, n),
		Shape:      [2]int{1, n},
		ImageShape: [2]int{cfg.ViewWidth * n, cfg.ViewHeight},
	}
	aspect := float64(cfg.ViewWidth) / float64(cfg.ViewHeight)
	for i, pos := range cfg.Positions {
		sub := NewPerspective(cfg.FOV, aspect, cfg.Near, cfg.Far)
		sub.Position = pos
		if i < len(cfg.Orientations) {
			sub.LookAt(pos.Add(cfg.Orientations[i]))
		}
		sub.UpdateMatrix()
		sub.UpdateProjectionMatrix()
		a.Cameras = append(a.Cameras, sub)
	}
	return a
}

func (a *Array) Name() string        { return a.name }
func (a *Array) SetName(name string) { a.name = name }

// Resize propagates a new combined framebuffer size to every sub-camera.
// Each sub-view receives an equal share of the width.
func (a *Array) Resize(width, height int) {
	cols := a.Shape[1]
	if cols == 0 {
		return
	}
	a.ImageShape = [2]int{width, height}
	viewW := width / cols
	for _, sub := range a.Cameras {
		sub.Resize(viewW, height)
	}
}
