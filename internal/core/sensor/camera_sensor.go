package sensor

import (
	"fmt"

	"github.com/simoptic/simoptic/internal/core/camera"
	"github.com/simoptic/simoptic/internal/core/observability/log"
	"github.com/simoptic/simoptic/internal/core/render"
	"github.com/simoptic/simoptic/internal/core/scene"
)

// FrameTypeColor tags frames produced by camera sensors.
const FrameTypeColor = "color"

var _ Sensor = (*CameraSensor)(nil)

// CameraSensor renders the scene through an owned camera and renderer and
// post-processes raw pixels into the configured encoding. One instance is
// owned by exactly one caller context; GetFrame and SetSize are not
// reentrant-safe.
type CameraSensor struct {
	cfg  Config // working copy, defaults applied
	opts Options

	cam      camera.Camera
	renderer render.Renderer

	width  int
	height int

	frameCount uint64

	logger log.Log
}

// NewCamera builds a camera sensor from config and collaborators.
//
// The config is copied and defaulted; near and far arrive in meters and are
// converted to scene units here. A multi-position config produces an array
// camera whose combined image shape overrides the renderer-facing
// resolution. The factory-returned renderer is authoritative over final
// dimensions: when its size differs from the request, the sensor
// immediately resizes itself to match.
func NewCamera(cfg Config, opts Options) (*CameraSensor, error) {
	if opts.GetRenderer == nil {
		return nil, fmt.Errorf("sensor %s: options carry no renderer factory", cfg.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	cfg = cfg.withDefaults()
	near := cfg.Near * camera.MetersToUnits
	far := cfg.Far * camera.MetersToUnits
	width, height := cfg.Resolution[0], cfg.Resolution[1]

	s := &CameraSensor{
		cfg:    cfg,
		opts:   opts,
		width:  width,
		height: height,
		logger: logger.With(log.String("sensor", cfg.Name)),
	}

	rcfg := render.Config{
		Name:            cfg.Name,
		Width:           width,
		Height:          height,
		Renderer:        cfg.Renderer,
		Equirectangular: cfg.Equirectangular,
	}

	if len(cfg.Position) > 1 {
		arr := camera.NewArray(camera.ArrayConfig{
			Positions:    cfg.Position,
			Orientations: cfg.Orientation,
			FOV:          cfg.FOV,
			Near:         near,
			Far:          far,
			ViewWidth:    width,
			ViewHeight:   height,
		})
		for _, sub := range arr.Cameras {
			sub.Equirectangular = cfg.Equirectangular
		}
		s.cam = arr

		// The combined image shape, not the per-view resolution, is what
		// the renderer must be sized to.
		s.width, s.height = arr.ImageShape[0], arr.ImageShape[1]
		rcfg.Width, rcfg.Height = s.width, s.height

		// Main-renderer reuse with array cameras is known to mis-size
		// outside an interactive display context; drop the hint and let
		// the factory fall through to its default renderer type.
		if !opts.Interactive && rcfg.Renderer == render.MainRenderer {
			rcfg.Renderer = ""
		}
	} else {
		cam := camera.NewPerspective(cfg.FOV, float64(width)/float64(height), near, far)
		cam.Position = cfg.Position[0]
		if len(cfg.Orientation) > 0 {
			cam.LookAt(cfg.Position[0].Add(cfg.Orientation[0]))
		}
		cam.UpdateMatrix()
		cam.UpdateProjectionMatrix()
		cam.Equirectangular = cfg.Equirectangular
		s.cam = cam
	}
	s.cam.SetName(cfg.Name)

	renderer, err := opts.GetRenderer(rcfg)
	if err != nil {
		return nil, fmt.Errorf("sensor %s: renderer factory: %w", cfg.Name, err)
	}
	s.renderer = renderer

	// One-time reconciliation: the renderer may have clamped or rounded
	// the requested size.
	if renderer.Width() != s.width || renderer.Height() != s.height {
		s.SetSize(renderer.Width(), renderer.Height())
	}

	return s, nil
}

// Name returns the sensor's unique name.
func (s *CameraSensor) Name() string { return s.cfg.Name }

// FrameCount returns how many captures have completed.
func (s *CameraSensor) FrameCount() uint64 { return s.frameCount }

// GetFrame captures one frame of the given scene state.
//
// The debug node's visibility is overridden for the duration of the
// capture and restored on every exit path. The frame counter advances on
// every completed capture, including ones with an unrecognized encoding;
// renderer failures propagate as errors and leave the counter untouched.
func (s *CameraSensor) GetFrame(st *scene.State) (Frame, error) {
	restore := overrideDebugVisibility(st, s.opts.DebugVisible)
	defer restore()

	frame, err := s.capture(st)
	if err != nil {
		return Frame{}, err
	}
	s.frameCount++
	return frame, nil
}

// capture is the encoding-specific render step. Embedders can layer their
// own dispatch on top of GetFrame; the visibility override and counter
// bookkeeping stay in GetFrame so they hold for every encoding.
func (s *CameraSensor) capture(st *scene.State) (Frame, error) {
	sc := st.Renderable()
	w, h := s.renderer.Width(), s.renderer.Height()

	var (
		data     any
		channels int
	)

	switch s.cfg.Encoding {
	case EncodingRGBA:
		raw, err := s.renderer.RenderRawPixels(sc, s.cam)
		if err != nil {
			return Frame{}, err
		}
		data, channels = raw, 4

	case EncodingGray:
		raw, err := s.renderer.RenderRawPixels(sc, s.cam)
		if err != nil {
			return Frame{}, err
		}
		data, channels = grayscale(raw), 1

	case EncodingPNGBuf:
		buf, err := s.renderer.RenderToBuffer(sc, s.cam)
		if err != nil {
			return Frame{}, err
		}
		data, channels = buf, 4

	case EncodingPNGFile:
		name := fmt.Sprintf("%s_%s.png", sc.Name, s.cfg.Name)
		if err := s.renderer.RenderToPNG(sc, s.cam, name); err != nil {
			return Frame{}, err
		}
		channels = 4

	case EncodingPNGSeq:
		name := fmt.Sprintf("%s_%s_%05d.png", sc.Name, s.cfg.Name, s.frameCount)
		if err := s.renderer.RenderToPNG(sc, s.cam, name); err != nil {
			return Frame{}, err
		}
		channels = 4

	case EncodingScreen:
		out, err := s.renderer.Render(sc, s.cam)
		if err != nil {
			return Frame{}, err
		}
		data, channels = out, 4

	default:
		// Recoverable: the caller gets a well-formed record with a nil
		// payload and must check it, not an error.
		s.logger.Error("invalid encoding", log.String("encoding", string(s.cfg.Encoding)))
	}

	return Frame{
		Type:     FrameTypeColor,
		Data:     data,
		Encoding: string(s.cfg.Encoding),
		Shape:    [3]int{w, h, channels},
	}, nil
}

// SetSize resizes the sensor: camera aspect and projection are recomputed
// (array cameras propagate to every sub-view) and the renderer is resized
// only when its size actually differs. Idempotent when sizes match.
func (s *CameraSensor) SetSize(width, height int) {
	s.width, s.height = width, height
	s.cam.Resize(width, height)
	if s.renderer.Width() != width || s.renderer.Height() != height {
		s.renderer.SetSize(width, height)
	}
	s.logger.Info("sensor resized", log.Int("width", width), log.Int("height", height))
}

// GetShape reports [width, height, 4] at the renderer's current size.
// The channel count is always 4, even for the gray encoding whose payload
// carries one channel; callers must not assume it matches the last frame's
// shape field.
func (s *CameraSensor) GetShape() [3]int {
	return [3]int{s.renderer.Width(), s.renderer.Height(), 4}
}

// GetDataRange reports the fixed 8-bit payload range.
func (s *CameraSensor) GetDataRange() [2]int {
	return [2]int{0, 255}
}

// GetMetadata describes the sensor to simulation consumers.
func (s *CameraSensor) GetMetadata() Metadata {
	return Metadata{
		Name:      s.cfg.Name,
		Type:      s.cfg.Type,
		Shape:     s.GetShape(),
		DataType:  s.cfg.DataType,
		DataRange: s.GetDataRange(),
	}
}

// CreatePixelBuffer allocates a zeroed scratch buffer sized for one RGBA
// frame at the renderer's current size.
func (s *CameraSensor) CreatePixelBuffer() []byte {
	return make([]byte, 4*s.renderer.Width()*s.renderer.Height())
}

// grayscale converts an RGBA buffer to BT.709 luma in place, packing the
// single-channel values into the first quarter of the buffer and
// truncating to that length.
func grayscale(raw []byte) []byte {
	n := len(raw) / 4
	for i := 0; i < n; i++ {
		r := float64(raw[4*i])
		g := float64(raw[4*i+1])
		b := float64(raw[4*i+2])
		raw[i] = byte(0.2126*r + 0.7152*g + 0.0722*b)
	}
	return raw[:n]
}
