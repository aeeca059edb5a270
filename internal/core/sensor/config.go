package sensor

import (
	"fmt"

	"github.com/simoptic/simoptic/internal/core/scene"
)

// Encoding selects the output representation of a camera sensor.
type Encoding string

const (
	EncodingRGBA    Encoding = "rgba"    // raw RGBA pixel buffer
	EncodingGray    Encoding = "gray"    // BT.709 luma, single channel
	EncodingPNGBuf  Encoding = "pngbuf"  // in-memory encoded PNG
	EncodingPNGFile Encoding = "pngfile" // PNG file per capture
	EncodingPNGSeq  Encoding = "pngseq"  // numbered PNG file sequence
	EncodingScreen  Encoding = "screen"  // presentation surface
)

// Defaults applied to camera sensor configs.
const (
	DefaultFOV      = 45.0  // degrees
	DefaultNear     = 0.001 // meters
	DefaultFar      = 20.0  // meters
	DefaultDataType = "uint8"
)

// Config describes one camera sensor. Position holds one entry for a
// single camera and several for an array camera; Orientation entries, when
// present, pair 1:1 with Position entries as view directions. Fields left
// zero take the package defaults.
type Config struct {
	Name        string       `json:"name" yaml:"name"`
	Type        string       `json:"type,omitempty" yaml:"type,omitempty"`
	Position    []scene.Vec3 `json:"position" yaml:"position"`
	Orientation []scene.Vec3 `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Resolution  [2]int       `json:"resolution" yaml:"resolution"`
	Encoding    Encoding     `json:"encoding" yaml:"encoding"`

	FOV  float64 `json:"fov,omitempty" yaml:"fov,omitempty"`   // degrees
	Near float64 `json:"near,omitempty" yaml:"near,omitempty"` // meters
	Far  float64 `json:"far,omitempty" yaml:"far,omitempty"`   // meters

	Equirectangular bool   `json:"equirectangular,omitempty" yaml:"equirectangular,omitempty"`
	Renderer        string `json:"renderer,omitempty" yaml:"renderer,omitempty"`
	DataType        string `json:"datatype,omitempty" yaml:"datatype,omitempty"`
}

// withDefaults returns a private working copy with defaults filled in.
// The caller's original config is never mutated.
func (c Config) withDefaults() Config {
	if c.Type == "" {
		c.Type = "camera"
	}
	if c.FOV == 0 {
		c.FOV = DefaultFOV
	}
	if c.Near == 0 {
		c.Near = DefaultNear
	}
	if c.Far == 0 {
		c.Far = DefaultFar
	}
	if c.DataType == "" {
		c.DataType = DefaultDataType
	}
	return c
}

// Validate checks the caller contract. Sensors do not guard against
// malformed configs at capture time; this is the one place violations are
// surfaced.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sensor config: name is required")
	}
	if len(c.Position) == 0 {
		return fmt.Errorf("sensor %s: position list is empty", c.Name)
	}
	if c.Resolution[0] <= 0 || c.Resolution[1] <= 0 {
		return fmt.Errorf("sensor %s: invalid resolution %dx%d", c.Name, c.Resolution[0], c.Resolution[1])
	}
	if len(c.Orientation) > 0 && len(c.Orientation) != len(c.Position) {
		return fmt.Errorf("sensor %s: %d orientations for %d positions", c.Name, len(c.Orientation), len(c.Position))
	}
	return nil
}
