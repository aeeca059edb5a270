// Package server streams captured frames to viewer clients over WebSocket
// or QUIC. It is the presentation surface behind the "screen" encoding and
// a tap for any other encoding published on the frame bus.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/observability/log"
)

// Transport names accepted by Config.
const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

const busSubscriberID = "stream-server"

// Config holds stream server configuration.
type Config struct {
	ListenAddr string
	Transport  string

	// SendBuffer is the per-client frame queue length.
	SendBuffer int
	// WriteTimeout bounds a single frame write to one client.
	WriteTimeout time.Duration
	// BusBuffer is the server's subscription depth on the frame bus.
	BusBuffer int
}

// DefaultConfig returns a sensible local-viewer configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8090",
		Transport:    TransportWebSocket,
		SendBuffer:   8,
		WriteTimeout: 5 * time.Second,
		BusBuffer:    16,
	}
}

// envelope is the per-frame header written ahead of the binary payload.
type envelope struct {
	Sensor   string `json:"sensor"`
	Seq      uint64 `json:"seq"`
	Encoding string `json:"encoding"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Digest   uint64 `json:"digest"`
}

func frameEnvelope(f framebus.Frame) ([]byte, error) {
	return json.Marshal(envelope{
		Sensor:   f.Sensor,
		Seq:      f.Seq,
		Encoding: f.Encoding,
		Width:    f.Width,
		Height:   f.Height,
		Channels: f.Channels,
		Digest:   f.Digest,
	})
}

// client is one connected viewer, transport-independent.
type client struct {
	id     string
	frames chan framebus.Frame
	close  func()
}

// Server fans bus frames out to connected viewers.
type Server struct {
	cfg    Config
	bus    *framebus.Bus
	logger log.Log

	clients     sync.Map // map[string]*client
	clientCount int64

	transport transport

	running  int32
	stopChan chan struct{}
	workers  sync.WaitGroup
}

// transport is the listener side of one stream protocol.
type transport interface {
	// Start begins accepting viewers and registering them on the server.
	Start(ctx context.Context) error
	// Stop tears the listener down.
	Stop() error
	// Addr reports the bound listen address, nil before Start.
	Addr() net.Addr
}

// NewServer creates a stream server reading from bus.
func NewServer(cfg Config, bus *framebus.Bus, logger log.Log) (*Server, error) {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Server{
		cfg:      cfg,
		bus:      bus,
		logger:   logger.With(log.String("component", "stream-server")),
		stopChan: make(chan struct{}),
	}
	switch cfg.Transport {
	case "", TransportWebSocket:
		s.transport = newWebSocketTransport(s)
	case TransportQUIC:
		s.transport = newQUICTransport(s)
	default:
		return nil, fmt.Errorf("unknown stream transport %q", cfg.Transport)
	}
	return s, nil
}

// Start subscribes to the bus and begins accepting viewers.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return fmt.Errorf("stream server already running")
	}

	frames, err := s.bus.Subscribe(busSubscriberID, s.cfg.BusBuffer, framebus.DropOld)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return fmt.Errorf("bus subscribe: %w", err)
	}

	if err := s.transport.Start(ctx); err != nil {
		_ = s.bus.Unsubscribe(busSubscriberID)
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	s.workers.Add(1)
	go s.fanOut(ctx, frames)

	s.logger.Info("stream server started",
		log.String("addr", s.cfg.ListenAddr),
		log.String("transport", s.cfg.Transport))
	return nil
}

// Stop disconnects every viewer and stops the listener.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return nil
	}
	close(s.stopChan)
	_ = s.bus.Unsubscribe(busSubscriberID)
	err := s.transport.Stop()

	s.clients.Range(func(_, v any) bool {
		v.(*client).close()
		return true
	})
	s.workers.Wait()
	s.logger.Info("stream server stopped")
	return err
}

// ClientCount reports connected viewers.
func (s *Server) ClientCount() int {
	return int(atomic.LoadInt64(&s.clientCount))
}

// Addr reports the bound listen address, nil before Start. Useful when
// listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.transport.Addr()
}

func (s *Server) addClient(c *client) {
	s.clients.Store(c.id, c)
	atomic.AddInt64(&s.clientCount, 1)
	s.logger.Info("viewer connected", log.String("client", c.id))
}

func (s *Server) removeClient(c *client) {
	if _, loaded := s.clients.LoadAndDelete(c.id); loaded {
		atomic.AddInt64(&s.clientCount, -1)
		s.logger.Info("viewer disconnected", log.String("client", c.id))
	}
}

// fanOut forwards bus frames into per-client queues, dropping the oldest
// queued frame for a slow client rather than stalling the rest.
func (s *Server) fanOut(ctx context.Context, frames <-chan framebus.Frame) {
	defer s.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			s.clients.Range(func(_, v any) bool {
				c := v.(*client)
				select {
				case c.frames <- f:
				default:
					select {
					case <-c.frames:
					default:
					}
					select {
					case c.frames <- f:
					default:
					}
				}
				return true
			})
		}
	}
}
