// Package render defines the drawing surface contract camera sensors hold
// their renderer by, plus a named factory registry and the reference
// implementations shipped with the suite.
package render

import (
	"fmt"
	"sync"

	"github.com/simoptic/simoptic/internal/core/camera"
	"github.com/simoptic/simoptic/internal/core/scene"
)

// Renderer is an opaque drawing surface with a size. A renderer is owned
// by exactly one sensor and is authoritative over its final dimensions:
// SetSize may clamp or round, and callers must re-read Width/Height after
// construction and resizes.
type Renderer interface {
	Width() int
	Height() int
	SetSize(width, height int)

	// RenderRawPixels draws the scene and returns the raw RGBA buffer,
	// 4 bytes per pixel, row-major.
	RenderRawPixels(sc *scene.Scene, cam camera.Camera) ([]byte, error)

	// RenderToBuffer draws the scene and returns an in-memory encoded PNG.
	RenderToBuffer(sc *scene.Scene, cam camera.Camera) ([]byte, error)

	// RenderToPNG draws the scene into a PNG file at filename.
	RenderToPNG(sc *scene.Scene, cam camera.Camera, filename string) error

	// Render draws the scene to the renderer's presentation surface and
	// returns whatever that surface hands back.
	Render(sc *scene.Scene, cam camera.Camera) (any, error)
}

// Config is the renderer-facing slice of a sensor's configuration. It is
// what a sensor passes to the factory when requesting its surface.
type Config struct {
	// Name is the owning sensor's name, used in diagnostics.
	Name string
	// Width and Height are the requested pixel dimensions.
	Width  int
	Height int
	// Renderer selects a registered renderer type. Empty selects the
	// default. "main" is reserved for the shared interactive display
	// surface.
	Renderer string
	// Equirectangular requests 360° projection from renderers that
	// support it.
	Equirectangular bool
}

// Factory produces a renderer for a sensor's configuration.
type Factory func(cfg Config) (Renderer, error)

// MainRenderer is the reserved hint for the shared display surface.
const MainRenderer = "main"

// DefaultRenderer is used when a config carries no hint.
const DefaultRenderer = "software"

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a factory under a renderer type name. Later
// registrations replace earlier ones.
func Register(name string, f Factory) {
	registryMu.Lock()
	registry[name] = f
	registryMu.Unlock()
}

// Create builds a renderer from the registry. An empty hint falls through
// to the default renderer type.
func Create(cfg Config) (Renderer, error) {
	name := cfg.Renderer
	if name == "" {
		name = DefaultRenderer
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown renderer type %q", name)
	}
	return f(cfg)
}

func init() {
	Register(DefaultRenderer, func(cfg Config) (Renderer, error) {
		return NewSoftware(cfg.Width, cfg.Height), nil
	})
}
