// Package framebus distributes captured frames to in-process subscribers
// with per-subscriber buffering and drop policies, decoupling sensor tick
// rate from consumer speed.
package framebus

import (
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DropPolicy defines how the bus behaves when a subscriber's buffer is full.
type DropPolicy int

const (
	// DropNew drops the incoming frame (backpressure on the producer side).
	DropNew DropPolicy = iota
	// DropOld evicts the oldest buffered frame to make room (latest-only).
	DropOld
)

var (
	ErrBusClosed          = errors.New("framebus: bus closed")
	ErrSubscriberExists   = errors.New("framebus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("framebus: subscriber not found")
)

// Frame is one captured sensor frame in flight on the bus.
type Frame struct {
	Sensor    string
	Seq       uint64
	Encoding  string
	Data      []byte
	Width     int
	Height    int
	Channels  int
	Digest    uint64
	Timestamp time.Time
}

// SubscriberStats tracks delivery counters for one subscriber.
type SubscriberStats struct {
	Delivered uint64
	Dropped   uint64
}

type subscriber struct {
	ch     chan Frame
	policy DropPolicy
	stats  SubscriberStats
}

// Config controls bus-wide behavior.
type Config struct {
	// SuppressDuplicates skips publishing a frame whose payload digest
	// matches the previous frame from the same sensor.
	SuppressDuplicates bool
}

// Bus fans frames out to subscribers.
type Bus struct {
	mu         sync.Mutex
	subs       map[string]*subscriber
	lastDigest map[string]uint64
	seq        map[string]uint64
	cfg        Config
	closed     bool
	suppressed uint64
}

// New creates an empty bus.
func New(cfg Config) *Bus {
	return &Bus{
		subs:       make(map[string]*subscriber),
		lastDigest: make(map[string]uint64),
		seq:        make(map[string]uint64),
		cfg:        cfg,
	}
}

// Subscribe registers a subscriber and returns its receive channel.
func (b *Bus) Subscribe(id string, buffer int, policy DropPolicy) (<-chan Frame, error) {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.subs[id]; ok {
		return nil, ErrSubscriberExists
	}
	sub := &subscriber{ch: make(chan Frame, buffer), policy: policy}
	b.subs[id] = sub
	return sub.ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	delete(b.subs, id)
	close(sub.ch)
	return nil
}

// Publish delivers a frame to every subscriber according to its drop
// policy. The frame's Seq and Digest are assigned here.
func (b *Bus) Publish(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	f.Digest = xxhash.Sum64(f.Data)
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	if b.cfg.SuppressDuplicates {
		if last, ok := b.lastDigest[f.Sensor]; ok && last == f.Digest {
			b.suppressed++
			return nil
		}
	}
	b.lastDigest[f.Sensor] = f.Digest

	b.seq[f.Sensor]++
	f.Seq = b.seq[f.Sensor]

	for _, sub := range b.subs {
		select {
		case sub.ch <- f:
			sub.stats.Delivered++
		default:
			switch sub.policy {
			case DropOld:
				// evict the oldest buffered frame, then retry once
				select {
				case <-sub.ch:
					sub.stats.Dropped++
				default:
				}
				select {
				case sub.ch <- f:
					sub.stats.Delivered++
				default:
					sub.stats.Dropped++
				}
			default: // DropNew
				sub.stats.Dropped++
			}
		}
	}
	return nil
}

// PublishFrame adapts the bus to the render.FrameSink contract for frames
// presented by display renderers.
func (b *Bus) PublishFrame(sensor string, data []byte, width, height int) {
	_ = b.Publish(Frame{
		Sensor:   sensor,
		Encoding: "pngbuf",
		Data:     data,
		Width:    width,
		Height:   height,
		Channels: 4,
	})
}

// Stats returns delivery counters for one subscriber.
func (b *Bus) Stats(id string) (SubscriberStats, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return SubscriberStats{}, false
	}
	return sub.stats, true
}

// Suppressed reports how many duplicate frames were skipped.
func (b *Bus) Suppressed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suppressed
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	return nil
}
