package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Viewers are local tooling; origin checks are the deployment's job.
	CheckOrigin: func(*http.Request) bool { return true },
}

// webSocketTransport serves viewers over HTTP at /stream. Each frame is
// written as a JSON text message (the envelope) followed by one binary
// message (the payload).
type webSocketTransport struct {
	srv      *Server
	httpSrv  *http.Server
	addr     net.Addr
	stopping int32
}

func newWebSocketTransport(s *Server) *webSocketTransport {
	return &webSocketTransport{srv: s}
}

func (t *webSocketTransport) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", t.handleStream)

	t.httpSrv = &http.Server{
		Addr:        t.srv.cfg.ListenAddr,
		Handler:     mux,
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", t.srv.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", t.srv.cfg.ListenAddr)
	}
	t.addr = ln.Addr()

	t.srv.workers.Add(1)
	go func() {
		defer t.srv.workers.Done()
		if err := t.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			if atomic.LoadInt32(&t.stopping) == 0 {
				t.srv.logger.Error("websocket serve failed", log.Error(err))
			}
		}
	}()
	return nil
}

func (t *webSocketTransport) Addr() net.Addr { return t.addr }

func (t *webSocketTransport) Stop() error {
	atomic.StoreInt32(&t.stopping, 1)
	if t.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return t.httpSrv.Shutdown(shutdownCtx)
}

func (t *webSocketTransport) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.srv.logger.Warn("upgrade failed", log.Error(err))
		return
	}

	c := &client{
		id:     uuid.New().String(),
		frames: make(chan framebus.Frame, t.srv.cfg.SendBuffer),
	}
	done := make(chan struct{})
	var closeOnce sync.Once
	c.close = func() { closeOnce.Do(func() { close(done) }) }
	t.srv.addClient(c)

	// read pump: viewers send nothing meaningful; this just surfaces
	// disconnects
	go func() {
		defer c.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go t.writePump(conn, c, done)
}

func (t *webSocketTransport) writePump(conn *websocket.Conn, c *client, done chan struct{}) {
	defer func() {
		t.srv.removeClient(c)
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case f := <-c.frames:
			header, err := frameEnvelope(f)
			if err != nil {
				t.srv.logger.Error("envelope encode failed", log.Error(err))
				continue
			}
			deadline := time.Now().Add(t.srv.cfg.WriteTimeout)
			_ = conn.SetWriteDeadline(deadline)
			if err := conn.WriteMessage(websocket.TextMessage, header); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, f.Data); err != nil {
				return
			}
		}
	}
}
