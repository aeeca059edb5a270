// Package camera provides the projection objects owned by camera sensors:
// a single perspective camera and an array camera stitching several
// sub-views into one framebuffer.
package camera

import (
	"math"

	"github.com/simoptic/simoptic/internal/core/scene"
)

// MetersToUnits converts configured distances (meters) into scene units.
// Scene space is centimeter-scaled, so near/far planes supplied in meters
// are multiplied by this before reaching a camera.
const MetersToUnits = 100.0

// Camera is the common contract sensors hold their projection object by.
type Camera interface {
	// Name returns the owning sensor's tag.
	Name() string
	// SetName tags the camera with the owning sensor's name.
	SetName(name string)
	// Resize updates aspect ratio from a new pixel size and recomputes
	// the projection.
	Resize(width, height int)
}

// Perspective is a single-view pinhole camera.
type Perspective struct {
	FOV    float64 // vertical field of view, degrees
	Aspect float64 // width / height
	Near   float64 // scene units
	Far    float64 // scene units

	Position scene.Vec3

	// Equirectangular marks the camera for 360° projection. It is consumed
	// by renderers, never interpreted here.
	Equirectangular bool

	name   string
	target scene.Vec3
	hasTgt bool

	// view basis, valid after UpdateMatrix
	forward, right, up scene.Vec3

	// projection scale factors, valid after UpdateProjectionMatrix
	tanHalfFOV float64
}

// NewPerspective creates a camera with the given projection parameters.
// Near and far are in scene units. The view basis and projection are
// computed immediately.
func NewPerspective(fov, aspect, near, far float64) *Perspective {
	c := &Perspective{
		FOV:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
	}
	c.UpdateMatrix()
	c.UpdateProjectionMatrix()
	return c
}

func (c *Perspective) Name() string        { return c.name }
func (c *Perspective) SetName(name string) { c.name = name }

// LookAt orients the camera toward target. The new orientation takes
// effect on the next UpdateMatrix call.
func (c *Perspective) LookAt(target scene.Vec3) {
	c.target = target
	c.hasTgt = true
}

// UpdateMatrix recomputes the view basis from position and look-at target.
// Without a target the camera looks down negative Z.
func (c *Perspective) UpdateMatrix() {
	fwd := scene.Vec3{X: 0, Y: 0, Z: -1}
	if c.hasTgt {
		fwd = normalize(c.target.Sub(c.Position))
	}
	worldUp := scene.Vec3{X: 0, Y: 1, Z: 0}
	right := normalize(cross(fwd, worldUp))
	if lengthSq(right) == 0 {
		// looking straight up or down; pick an arbitrary horizontal right
		right = scene.Vec3{X: 1, Y: 0, Z: 0}
	}
	up := cross(right, fwd)

	c.forward, c.right, c.up = fwd, right, up
}

// UpdateProjectionMatrix recomputes the projection scale from FOV.
func (c *Perspective) UpdateProjectionMatrix() {
	c.tanHalfFOV = math.Tan(c.FOV * math.Pi / 360.0)
}

// Resize sets the aspect ratio from a pixel size and recomputes projection.
func (c *Perspective) Resize(width, height int) {
	c.Aspect = float64(width) / float64(height)
	c.UpdateProjectionMatrix()
}

// Ray returns origin and direction of the view ray through normalized
// screen coordinates u, v in [0, 1] (v grows downward).
func (c *Perspective) Ray(u, v float64) (origin, dir scene.Vec3) {
	sx := (2*u - 1) * c.tanHalfFOV * c.Aspect
	sy := (1 - 2*v) * c.tanHalfFOV
	d := c.forward.Add(c.right.Scale(sx)).Add(c.up.Scale(sy))
	return c.Position, normalize(d)
}

func cross(a, b scene.Vec3) scene.Vec3 {
	return scene.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func lengthSq(v scene.Vec3) float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func normalize(v scene.Vec3) scene.Vec3 {
	l := math.Sqrt(lengthSq(v))
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}
