package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/scene"
)

type stubSensor struct {
	name     string
	data     any
	err      error
	captures int
}

func (s *stubSensor) Name() string { return s.name }

func (s *stubSensor) GetFrame(st *scene.State) (Frame, error) {
	s.captures++
	if s.err != nil {
		return Frame{}, s.err
	}
	return Frame{
		Type:     FrameTypeColor,
		Data:     s.data,
		Encoding: string(EncodingRGBA),
		Shape:    [3]int{2, 2, 4},
	}, nil
}

func (s *stubSensor) GetMetadata() Metadata { return Metadata{Name: s.name} }
func (s *stubSensor) GetShape() [3]int      { return [3]int{2, 2, 4} }

func TestManagerRegistration(t *testing.T) {
	m := NewManager(nil, nil)

	require.NoError(t, m.Add(&stubSensor{name: "cam0"}))
	require.NoError(t, m.Add(&stubSensor{name: "cam1"}))
	require.Error(t, m.Add(&stubSensor{name: "cam0"}), "duplicate names are rejected")

	sensors := m.Sensors()
	require.Len(t, sensors, 2)
	require.Equal(t, "cam0", sensors[0].Name())
	require.Equal(t, "cam1", sensors[1].Name())

	require.NoError(t, m.Remove("cam0"))
	require.Error(t, m.Remove("cam0"))
	require.Len(t, m.Sensors(), 1)
}

func TestManagerTick(t *testing.T) {
	bus := framebus.New(framebus.Config{})
	ch, err := bus.Subscribe("viewer", 8, framebus.DropNew)
	require.NoError(t, err)

	m := NewManager(bus, nil)
	a := &stubSensor{name: "cam0", data: []byte{1, 2, 3, 4}}
	b := &stubSensor{name: "cam1", data: []byte{5, 6, 7, 8}}
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))

	st := &scene.State{Scene: scene.NewScene("world")}
	frames, err := m.Tick(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, []byte{1, 2, 3, 4}, frames["cam0"].Data)

	got := map[string]framebus.Frame{}
	for i := 0; i < 2; i++ {
		f := <-ch
		got[f.Sensor] = f
	}
	require.Equal(t, []byte{5, 6, 7, 8}, got["cam1"].Data)
	require.Equal(t, 2, got["cam0"].Width)
	require.Equal(t, 4, got["cam0"].Channels)
}

func TestManagerTickError(t *testing.T) {
	m := NewManager(nil, nil)
	boom := errors.New("capture failed")
	require.NoError(t, m.Add(&stubSensor{name: "cam0", data: []byte{1}}))
	require.NoError(t, m.Add(&stubSensor{name: "bad", err: boom}))

	_, err := m.Tick(context.Background(), &scene.State{Scene: scene.NewScene("world")})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "bad")
}

func TestManagerSkipsUnpublishableFrames(t *testing.T) {
	bus := framebus.New(framebus.Config{})
	ch, err := bus.Subscribe("viewer", 8, framebus.DropNew)
	require.NoError(t, err)

	m := NewManager(bus, nil)
	// "screen" captures return a surface handle, not bytes; the bus only
	// carries byte payloads
	require.NoError(t, m.Add(&stubSensor{name: "screen0", data: "presented"}))
	require.NoError(t, m.Add(&stubSensor{name: "cam0", data: []byte{9}}))

	_, err = m.Tick(context.Background(), &scene.State{Scene: scene.NewScene("world")})
	require.NoError(t, err)

	f := <-ch
	require.Equal(t, "cam0", f.Sensor)
	select {
	case f := <-ch:
		t.Fatalf("unexpected frame from %s", f.Sensor)
	default:
	}
}

func TestManagerRun(t *testing.T) {
	m := NewManager(nil, nil)
	s := &stubSensor{name: "cam0", data: []byte{1}}
	require.NoError(t, m.Add(s))

	st := &scene.State{Scene: scene.NewScene("world")}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := m.Run(ctx, 10*time.Millisecond, func() *scene.State { return st })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, s.captures, 2)
}
