package sensor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simoptic/simoptic/internal/core/scene"
)

func TestConfigDefaults(t *testing.T) {
	c := Config{Name: "cam0"}.withDefaults()
	require.Equal(t, "camera", c.Type)
	require.Equal(t, 45.0, c.FOV)
	require.Equal(t, 0.001, c.Near)
	require.Equal(t, 20.0, c.Far)
	require.Equal(t, "uint8", c.DataType)

	// explicit values survive defaulting
	c = Config{Name: "cam0", FOV: 90, Far: 5}.withDefaults()
	require.Equal(t, 90.0, c.FOV)
	require.Equal(t, 5.0, c.Far)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Name:       "cam0",
		Position:   []scene.Vec3{{Z: 1}},
		Resolution: [2]int{640, 480},
		Encoding:   EncodingRGBA,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Name = "" }},
		{"empty position", func(c *Config) { c.Position = nil }},
		{"zero resolution", func(c *Config) { c.Resolution = [2]int{0, 480} }},
		{"orientation mismatch", func(c *Config) {
			c.Position = []scene.Vec3{{}, {}}
			c.Orientation = []scene.Vec3{{}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestLoadYAML(t *testing.T) {
	doc := `
suppress_duplicates: true
listen: "127.0.0.1:9000"
transport: quic
sensors:
  - name: cam0
    position:
      - {x: 0, y: 1.5, z: 4}
    resolution: [320, 240]
    encoding: rgba
  - name: ring
    position:
      - {x: -1}
      - {x: 0}
      - {x: 1}
    resolution: [160, 120]
    encoding: pngbuf
    renderer: main
`
	cfg, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.True(t, cfg.SuppressDuplicates)
	require.Equal(t, "quic", cfg.Transport)
	require.Len(t, cfg.Sensors, 2)
	require.Equal(t, scene.Vec3{X: 0, Y: 1.5, Z: 4}, cfg.Sensors[0].Position[0])
	require.Equal(t, [2]int{320, 240}, cfg.Sensors[0].Resolution)
	require.Equal(t, EncodingPNGBuf, cfg.Sensors[1].Encoding)
}

func TestLoadJSON(t *testing.T) {
	doc := `{
		"sensors": [
			{
				"name": "cam0",
				"position": [{"x": 0, "y": 0, "z": 2}],
				"resolution": [64, 64],
				"encoding": "gray"
			}
		]
	}`
	cfg, err := LoadJSON(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Sensors, 1)
	require.Equal(t, EncodingGray, cfg.Sensors[0].Encoding)
}

func TestLoadYAMLRejectsBadConfigs(t *testing.T) {
	t.Run("duplicate sensor name", func(t *testing.T) {
		doc := `
sensors:
  - {name: cam0, position: [{z: 1}], resolution: [64, 64], encoding: rgba}
  - {name: cam0, position: [{z: 2}], resolution: [64, 64], encoding: rgba}
`
		_, err := LoadYAML(strings.NewReader(doc))
		require.Error(t, err)
	})

	t.Run("unknown transport", func(t *testing.T) {
		doc := "transport: carrier-pigeon\nsensors: []\n"
		_, err := LoadYAML(strings.NewReader(doc))
		require.Error(t, err)
	})
}
