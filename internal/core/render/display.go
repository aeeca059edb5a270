package render

import (
	"github.com/simoptic/simoptic/internal/core/camera"
	"github.com/simoptic/simoptic/internal/core/scene"
)

// FrameSink receives presented frames from display renderers. The stream
// server implements it; tests use in-memory sinks.
type FrameSink interface {
	PublishFrame(sensor string, data []byte, width, height int)
}

var _ Renderer = (*Display)(nil)

// Display is the "main" renderer: a software surface whose Render call
// also presents the frame to an attached sink. It stands in for the
// interactive on-screen surface of a windowed build.
type Display struct {
	*Software
	sensor string
	sink   FrameSink
}

// NewDisplay creates a display renderer presenting to sink.
func NewDisplay(cfg Config, sink FrameSink) *Display {
	return &Display{
		Software: NewSoftware(cfg.Width, cfg.Height),
		sensor:   cfg.Name,
		sink:     sink,
	}
}

// Render draws the scene, presents the encoded frame to the sink, and
// hands the encoded frame back.
func (d *Display) Render(sc *scene.Scene, cam camera.Camera) (any, error) {
	data, err := d.RenderToBuffer(sc, cam)
	if err != nil {
		return nil, err
	}
	if d.sink != nil {
		d.sink.PublishFrame(d.sensor, data, d.Width(), d.Height())
	}
	return data, nil
}

// RegisterMain installs the shared display surface under the "main"
// renderer type, presenting to sink.
func RegisterMain(sink FrameSink) {
	Register(MainRenderer, func(cfg Config) (Renderer, error) {
		return NewDisplay(cfg, sink), nil
	})
}
