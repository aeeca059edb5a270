package render

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simoptic/simoptic/internal/core/camera"
	"github.com/simoptic/simoptic/internal/core/scene"
)

func testScene() *scene.Scene {
	sc := scene.NewScene("test")
	sc.Add(&scene.Node{
		Name: "ball", Visible: true,
		Center: scene.Vec3{Z: -100}, Radius: 30,
		Color: scene.Color{R: 1, G: 0.5, B: 0.25},
	})
	return sc
}

func testCamera() *camera.Perspective {
	c := camera.NewPerspective(45, 1, 0.1, 2000)
	return c
}

func TestSoftwareSizing(t *testing.T) {
	t.Run("clamps out-of-range requests", func(t *testing.T) {
		r := NewSoftware(0, MaxTextureSize+1)
		require.Equal(t, 1, r.Width())
		require.Equal(t, MaxTextureSize, r.Height())
	})

	t.Run("keeps ordinary requests", func(t *testing.T) {
		r := NewSoftware(640, 480)
		require.Equal(t, 640, r.Width())
		require.Equal(t, 480, r.Height())
	})
}

func TestSoftwareRenderRawPixels(t *testing.T) {
	r := NewSoftware(32, 32)
	raw, err := r.RenderRawPixels(testScene(), testCamera())
	require.NoError(t, err)
	require.Len(t, raw, 4*32*32)

	// the sphere sits dead ahead; the center pixel must be lit red-ish
	// and fully opaque
	center := 4 * (16*32 + 16)
	require.Greater(t, raw[center], byte(raw[center+2]), "red dominates blue on the sphere")
	require.Equal(t, byte(0xFF), raw[center+3])
}

func TestSoftwareRenderInvisibleNodes(t *testing.T) {
	sc := testScene()
	sc.Nodes[0].SetVisible(false)

	r := NewSoftware(8, 8)
	raw, err := r.RenderRawPixels(sc, testCamera())
	require.NoError(t, err)

	withBall := NewSoftware(8, 8)
	lit, err := withBall.RenderRawPixels(testScene(), testCamera())
	require.NoError(t, err)
	require.NotEqual(t, lit, raw, "hiding the node must change the image")
}

func TestSoftwareRenderToBuffer(t *testing.T) {
	r := NewSoftware(16, 16)
	buf, err := r.RenderToBuffer(testScene(), testCamera())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, 16, img.Bounds().Dx())
	require.Equal(t, 16, img.Bounds().Dy())
}

func TestSoftwareRenderToPNG(t *testing.T) {
	r := NewSoftware(16, 16)
	name := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, r.RenderToPNG(testScene(), testCamera(), name))

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err)
}

func TestSoftwareArrayStitching(t *testing.T) {
	arr := camera.NewArray(camera.ArrayConfig{
		Positions:    []scene.Vec3{{X: -50}, {X: 50}},
		Orientations: []scene.Vec3{{Z: -1}, {Z: -1}},
		FOV:          45,
		Near:         0.1,
		Far:          2000,
		ViewWidth:    16,
		ViewHeight:   16,
	})

	r := NewSoftware(arr.ImageShape[0], arr.ImageShape[1])
	raw, err := r.RenderRawPixels(testScene(), arr)
	require.NoError(t, err)
	require.Len(t, raw, 4*32*16)

	// the two views look at the sphere from opposite sides; the stitched
	// halves must differ
	left := make([]byte, 0, 4*16*16)
	right := make([]byte, 0, 4*16*16)
	for y := 0; y < 16; y++ {
		row := raw[4*y*32 : 4*(y+1)*32]
		left = append(left, row[:4*16]...)
		right = append(right, row[4*16:]...)
	}
	require.NotEqual(t, left, right)
}

func TestRegistry(t *testing.T) {
	t.Run("empty hint falls through to the default", func(t *testing.T) {
		r, err := Create(Config{Width: 8, Height: 8})
		require.NoError(t, err)
		require.IsType(t, &Software{}, r)
	})

	t.Run("unknown hint errors", func(t *testing.T) {
		_, err := Create(Config{Width: 8, Height: 8, Renderer: "vulkan"})
		require.Error(t, err)
	})
}

type captureSink struct {
	sensor string
	data   []byte
	w, h   int
}

func (s *captureSink) PublishFrame(sensor string, data []byte, w, h int) {
	s.sensor, s.data, s.w, s.h = sensor, data, w, h
}

func TestDisplayPresentsToSink(t *testing.T) {
	sink := &captureSink{}
	d := NewDisplay(Config{Name: "cam0", Width: 8, Height: 8}, sink)

	out, err := d.Render(testScene(), testCamera())
	require.NoError(t, err)

	require.Equal(t, "cam0", sink.sensor)
	require.Equal(t, out, sink.data)
	require.Equal(t, 8, sink.w)

	_, err = png.Decode(bytes.NewReader(sink.data))
	require.NoError(t, err)
}

func TestRegisterMain(t *testing.T) {
	sink := &captureSink{}
	RegisterMain(sink)
	r, err := Create(Config{Name: "cam0", Width: 8, Height: 8, Renderer: MainRenderer})
	require.NoError(t, err)
	require.IsType(t, &Display{}, r)
}
