package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/simoptic/simoptic/internal/core/camera"
	"github.com/simoptic/simoptic/internal/core/scene"
	"github.com/simoptic/simoptic/pkg/generic"
)

// MaxTextureSize is the largest dimension the software renderer accepts.
// Requests beyond it are clamped, so a sensor must re-read the actual size
// after construction.
const MaxTextureSize = 4096

var pngBufPool = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })

var _ Renderer = (*Software)(nil)

// Software is a CPU raytracer over the sphere primitives in a scene. It
// exists so the suite is runnable and testable without a GPU backend;
// sensors treat it like any other renderer.
type Software struct {
	width  int
	height int
}

// NewSoftware creates a software renderer of the given size, clamped to
// [1, MaxTextureSize] per dimension.
func NewSoftware(width, height int) *Software {
	r := &Software{}
	r.SetSize(width, height)
	return r
}

func (r *Software) Width() int  { return r.width }
func (r *Software) Height() int { return r.height }

func (r *Software) SetSize(width, height int) {
	r.width = clampDim(width)
	r.height = clampDim(height)
}

func clampDim(d int) int {
	if d < 1 {
		return 1
	}
	if d > MaxTextureSize {
		return MaxTextureSize
	}
	return d
}

// RenderRawPixels draws the scene into a fresh RGBA buffer. Array cameras
// are stitched column by column into the combined framebuffer.
func (r *Software) RenderRawPixels(sc *scene.Scene, cam camera.Camera) ([]byte, error) {
	buf := make([]byte, 4*r.width*r.height)
	nodes := visibleSpheres(sc)

	switch c := cam.(type) {
	case *camera.Perspective:
		r.renderView(buf, nodes, c, 0, r.width)
	case *camera.Array:
		cols := c.Shape[1]
		if cols == 0 {
			return buf, nil
		}
		viewW := r.width / cols
		for i, sub := range c.Cameras {
			r.renderView(buf, nodes, sub, i*viewW, viewW)
		}
	default:
		return nil, fmt.Errorf("software renderer: unsupported camera type %T", cam)
	}
	return buf, nil
}

// RenderToBuffer draws the scene and PNG-encodes it in memory.
func (r *Software) RenderToBuffer(sc *scene.Scene, cam camera.Camera) ([]byte, error) {
	raw, err := r.RenderRawPixels(sc, cam)
	if err != nil {
		return nil, err
	}
	buf := pngBufPool.Get()
	defer func() {
		buf.Reset()
		pngBufPool.Put(buf)
	}()
	if err := png.Encode(buf, r.wrapRGBA(raw)); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// RenderToPNG draws the scene into a PNG file.
func (r *Software) RenderToPNG(sc *scene.Scene, cam camera.Camera, filename string) error {
	raw, err := r.RenderRawPixels(sc, cam)
	if err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer f.Close()
	if err := png.Encode(f, r.wrapRGBA(raw)); err != nil {
		return fmt.Errorf("png encode %s: %w", filename, err)
	}
	return nil
}

// Render has no presentation surface on the software renderer; it hands
// back the raw pixel buffer.
func (r *Software) Render(sc *scene.Scene, cam camera.Camera) (any, error) {
	raw, err := r.RenderRawPixels(sc, cam)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *Software) wrapRGBA(raw []byte) *image.RGBA {
	return &image.RGBA{
		Pix:    raw,
		Stride: 4 * r.width,
		Rect:   image.Rect(0, 0, r.width, r.height),
	}
}

// renderView raytraces one camera into the horizontal band
// [x0, x0+viewW) of the framebuffer.
func (r *Software) renderView(buf []byte, nodes []*scene.Node, cam *camera.Perspective, x0, viewW int) {
	for y := 0; y < r.height; y++ {
		v := (float64(y) + 0.5) / float64(r.height)
		for x := 0; x < viewW; x++ {
			u := (float64(x) + 0.5) / float64(viewW)
			var origin, dir scene.Vec3
			if cam.Equirectangular {
				origin, dir = equirectRay(cam, u, v)
			} else {
				origin, dir = cam.Ray(u, v)
			}
			cr, cg, cb := shade(nodes, origin, dir, v)
			o := 4 * ((y * r.width) + x0 + x)
			buf[o+0] = cr
			buf[o+1] = cg
			buf[o+2] = cb
			buf[o+3] = 0xFF
		}
	}
}

// shade returns the color of the nearest sphere hit, or a vertical
// gradient background.
func shade(nodes []*scene.Node, origin, dir scene.Vec3, v float64) (byte, byte, byte) {
	const tMax = math.MaxFloat64
	closest := tMax
	var hit *scene.Node
	for _, n := range nodes {
		if t, ok := hitSphere(origin, dir, n.Center, n.Radius); ok && t < closest {
			closest = t
			hit = n
		}
	}
	if hit == nil {
		// sky gradient, dark at the bottom
		g := 1 - v
		return byte(80 * g), byte(110 * g), byte(160 * g)
	}
	p := origin.Add(dir.Scale(closest))
	normal := p.Sub(hit.Center).Scale(1 / hit.Radius)
	// headlight shading: light arrives along the view ray
	lambert := -(normal.X*dir.X + normal.Y*dir.Y + normal.Z*dir.Z)
	if lambert < 0.1 {
		lambert = 0.1
	}
	return clampColor(hit.Color.R * lambert), clampColor(hit.Color.G * lambert), clampColor(hit.Color.B * lambert)
}

func clampColor(c float64) byte {
	c *= 255
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return byte(c)
}

// hitSphere solves the quadratic ray/sphere intersection and returns the
// nearest positive root.
func hitSphere(origin, dir, center scene.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.X*dir.X + oc.Y*dir.Y + oc.Z*dir.Z
	c := (oc.X*oc.X + oc.Y*oc.Y + oc.Z*oc.Z) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t > 1e-6 {
		return t, true
	}
	if t := -b + sq; t > 1e-6 {
		return t, true
	}
	return 0, false
}

// equirectRay maps normalized screen coordinates onto the full sphere
// around the camera position, for 360° captures.
func equirectRay(cam *camera.Perspective, u, v float64) (scene.Vec3, scene.Vec3) {
	lon := (u - 0.5) * 2 * math.Pi
	lat := (0.5 - v) * math.Pi
	dir := scene.Vec3{
		X: math.Cos(lat) * math.Sin(lon),
		Y: math.Sin(lat),
		Z: -math.Cos(lat) * math.Cos(lon),
	}
	return cam.Position, dir
}

func visibleSpheres(sc *scene.Scene) []*scene.Node {
	if sc == nil {
		return nil
	}
	return sc.VisibleNodes()
}
