package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/observability/log"
	"github.com/simoptic/simoptic/internal/core/scene"
)

// Manager drives a set of mutually independent sensors. Each tick it
// captures every sensor concurrently (sensors own separate cameras and
// renderers, so this is safe) and publishes byte-payload frames to the bus.
type Manager struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
	order   []string

	bus    *framebus.Bus
	logger log.Log
}

// NewManager creates a manager publishing to bus. A nil bus disables
// publishing; frames are still captured and returned from Tick.
func NewManager(bus *framebus.Bus, logger log.Log) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{
		sensors: make(map[string]Sensor),
		bus:     bus,
		logger:  logger,
	}
}

// Add registers a sensor. Sensor names are unique per manager.
func (m *Manager) Add(s Sensor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sensors[s.Name()]; exists {
		return fmt.Errorf("sensor %s already registered", s.Name())
	}
	m.sensors[s.Name()] = s
	m.order = append(m.order, s.Name())
	return nil
}

// Remove unregisters a sensor by name.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sensors[name]; !exists {
		return fmt.Errorf("sensor %s not registered", name)
	}
	delete(m.sensors, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Sensors returns the registered sensors in registration order.
func (m *Manager) Sensors() []Sensor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sensor, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.sensors[name])
	}
	return out
}

// Tick captures one frame from every sensor and returns them keyed by
// sensor name. The first capture error cancels the remaining captures.
func (m *Manager) Tick(ctx context.Context, st *scene.State) (map[string]Frame, error) {
	sensors := m.Sensors()

	var (
		framesMu sync.Mutex
		frames   = make(map[string]Frame, len(sensors))
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sensors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frame, err := s.GetFrame(st)
			if err != nil {
				return fmt.Errorf("sensor %s: %w", s.Name(), err)
			}
			framesMu.Lock()
			frames[s.Name()] = frame
			framesMu.Unlock()
			m.publish(s.Name(), frame)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// Run ticks the manager at the given interval until the context ends.
// stateFn resolves the current scene state per tick. Capture errors are
// logged, not fatal; the loop keeps going.
func (m *Manager) Run(ctx context.Context, interval time.Duration, stateFn func() *scene.State) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Tick(ctx, stateFn()); err != nil {
				m.logger.Error("tick failed", log.Error(err))
			}
		}
	}
}

func (m *Manager) publish(name string, frame Frame) {
	if m.bus == nil {
		return
	}
	data, ok := frame.Data.([]byte)
	if !ok || len(data) == 0 {
		return
	}
	err := m.bus.Publish(framebus.Frame{
		Sensor:   name,
		Encoding: frame.Encoding,
		Data:     data,
		Width:    frame.Shape[0],
		Height:   frame.Shape[1],
		Channels: frame.Shape[2],
	})
	if err != nil {
		m.logger.Warn("frame publish failed", log.String("sensor", name), log.Error(err))
	}
}
