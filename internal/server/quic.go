package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/simoptic/simoptic/internal/core/framebus"
	"github.com/simoptic/simoptic/internal/core/observability/log"
)

const quicProto = "simoptic-stream"

// quicTransport serves viewers over QUIC. The server opens one
// unidirectional stream per viewer and writes length-prefixed records:
// uint32 envelope length, envelope JSON, uint32 payload length, payload.
type quicTransport struct {
	srv      *Server
	listener *quic.Listener
}

func newQUICTransport(s *Server) *quicTransport {
	return &quicTransport{srv: s}
}

func (t *quicTransport) Start(ctx context.Context) error {
	listener, err := quic.ListenAddr(t.srv.cfg.ListenAddr, generateTLSConfig(), &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 15 * time.Second,
	})
	if err != nil {
		return errors.Wrapf(err, "quic listen %s", t.srv.cfg.ListenAddr)
	}
	t.listener = listener

	t.srv.workers.Add(1)
	go t.acceptLoop(ctx)
	return nil
}

func (t *quicTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *quicTransport) Stop() error {
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

func (t *quicTransport) acceptLoop(ctx context.Context) {
	defer t.srv.workers.Done()
	for {
		conn, err := t.listener.Accept(ctx)
		if err != nil {
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

		go t.writePump(ctx, conn, c, done)
	}
}

func (t *quicTransport) writePump(ctx context.Context, conn *quic.Conn, c *client, done chan struct{}) {
	defer func() {
		t.srv.removeClient(c)
		_ = conn.CloseWithError(0, "server closing")
	}()

	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		t.srv.logger.Warn("quic stream open failed", log.Error(err))
		return
	}
	defer stream.Close()

	for {
		select {
		case <-done:
			return
		case <-conn.Context().Done():
			return
		case f := <-c.frames:
			header, err := frameEnvelope(f)
			if err != nil {
				t.srv.logger.Error("envelope encode failed", log.Error(err))
				continue
			}
			_ = stream.SetWriteDeadline(time.Now().Add(t.srv.cfg.WriteTimeout))
			if err := writeRecord(stream, header, f.Data); err != nil {
				return
			}
		}
	}
}

func writeRecord(s *quic.SendStream, header, payload []byte) error {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(header)))
	if _, err := s.Write(size[:]); err != nil {
		return err
	}
	if _, err := s.Write(header); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
	if _, err := s.Write(size[:]); err != nil {
		return err
	}
	_, err := s.Write(payload)
	return err
}

// generateTLSConfig builds a self-signed certificate for the stream
// listener. Viewers are expected to skip verification; this transport
// carries rendered frames, not secrets.
func generateTLSConfig() *tls.Config {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"simoptic"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		panic(err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicProto},
	}
}
