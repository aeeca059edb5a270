// Package sensor implements the perception layer of the simulator: virtual
// sensors that turn scene state into tagged frame records once per tick.
package sensor

import (
	"github.com/simoptic/simoptic/internal/core/observability/log"
	"github.com/simoptic/simoptic/internal/core/render"
	"github.com/simoptic/simoptic/internal/core/scene"
)

// Frame is the record a sensor produces per capture. Data holds the
// encoding-specific payload: a raw or encoded byte buffer for most
// encodings, whatever the presentation surface hands back for "screen",
// and nil for file encodings and for an unrecognized encoding.
type Frame struct {
	Type     string
	Data     any
	Encoding string
	// Shape is [width, height, channels] at the renderer's size at call
	// time, not the config-declared resolution.
	Shape [3]int
}

// Metadata describes a sensor to simulation consumers.
type Metadata struct {
	Name      string
	Type      string
	Shape     [3]int
	DataType  string
	DataRange [2]int
}

// Sensor is the capability shared by all virtual sensors: identity plus
// per-tick frame production.
type Sensor interface {
	Name() string
	GetFrame(st *scene.State) (Frame, error)
	GetMetadata() Metadata
	GetShape() [3]int
}

// Options is the collaborator bag handed to sensor constructors.
type Options struct {
	// GetRenderer builds the sensor's drawing surface. Required.
	GetRenderer render.Factory

	// DebugVisible is the visibility forced onto the scene's debug node
	// for the duration of each capture.
	DebugVisible bool

	// Interactive marks the presence of an interactive display context.
	// Outside of one, array cameras must not reuse the main renderer.
	Interactive bool

	Logger log.Log
}
