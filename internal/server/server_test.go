package server

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"

	"github.com/simoptic/simoptic/internal/core/framebus"
)

func testConfig(transport string) Config {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Transport = transport
	return cfg
}

func TestNewServerUnknownTransport(t *testing.T) {
	_, err := NewServer(testConfig("carrier-pigeon"), framebus.New(framebus.Config{}), nil)
	require.Error(t, err)
}

func TestFrameEnvelope(t *testing.T) {
	header, err := frameEnvelope(framebus.Frame{
		Sensor:   "cam0",
		Seq:      3,
		Encoding: "pngbuf",
		Width:    640,
		Height:   480,
		Channels: 4,
		Digest:   0xABCD,
	})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(header, &env))
	require.Equal(t, "cam0", env.Sensor)
	require.Equal(t, uint64(3), env.Seq)
	require.Equal(t, 640, env.Width)
	require.Equal(t, uint64(0xABCD), env.Digest)
}

func TestWebSocketStreaming(t *testing.T) {
	bus := framebus.New(framebus.Config{})
	srv, err := NewServer(testConfig(TransportWebSocket), bus, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	url := "ws://" + srv.Addr().String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	payload := []byte{0x89, 0x50, 0x4E, 0x47}
	require.NoError(t, bus.Publish(framebus.Frame{
		Sensor:   "cam0",
		Encoding: "pngbuf",
		Data:     payload,
		Width:    2,
		Height:   2,
		Channels: 4,
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	mt, header, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)

	var env envelope
	require.NoError(t, json.Unmarshal(header, &env))
	require.Equal(t, "cam0", env.Sensor)
	require.Equal(t, uint64(1), env.Seq)
	require.Equal(t, "pngbuf", env.Encoding)

	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	require.Equal(t, payload, data)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	bus := framebus.New(framebus.Config{})
	srv, err := NewServer(testConfig(TransportWebSocket), bus, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	url := "ws://" + srv.Addr().String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return srv.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestQUICStreaming(t *testing.T) {
	bus := framebus.New(framebus.Config{})
	srv, err := NewServer(testConfig(TransportQUIC), bus, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := quic.DialAddr(ctx, srv.Addr().String(), &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{quicProto},
	}, nil)
	require.NoError(t, err)
	defer conn.CloseWithError(0, "done")

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	payload := []byte{1, 2, 3, 4, 5}
	require.NoError(t, bus.Publish(framebus.Frame{
		Sensor:   "cam0",
		Encoding: "rgba",
		Data:     payload,
		Width:    1,
		Height:   1,
		Channels: 4,
	}))

	stream, err := conn.AcceptUniStream(ctx)
	require.NoError(t, err)

	header := readLenPrefixed(t, stream)
	var env envelope
	require.NoError(t, json.Unmarshal(header, &env))
	require.Equal(t, "cam0", env.Sensor)

	require.Equal(t, payload, readLenPrefixed(t, stream))
}

func readLenPrefixed(t *testing.T, r io.Reader) []byte {
	t.Helper()
	var size [4]byte
	_, err := io.ReadFull(r, size[:])
	require.NoError(t, err)
	buf := make([]byte, binary.BigEndian.Uint32(size[:]))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	return buf
}
