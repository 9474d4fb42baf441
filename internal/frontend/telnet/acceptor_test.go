package telnet

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/mosaic/internal/config"
)

// echoHandler is a test SessionHandler that echoes lines back to the client.
type echoHandler struct {
	sessionCount atomic.Int32
}

func (h *echoHandler) HandleSession(ctx context.Context, conn *Conn) error {
	h.sessionCount.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			_, _ = conn.Write([]byte("bye\n"))
			return nil
		}
		_, _ = conn.Write([]byte("echo: " + line + "\n"))
	}
}

func testConfig(maxSessions int) config.TelnetConfig {
	return config.TelnetConfig{
		Enabled:      true,
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxSessions:  maxSessions,
	}
}

func startAcceptor(t *testing.T, acc *Acceptor) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- acc.Start() }()

	deadline := time.After(2 * time.Second)
	for !acc.IsRunning() || acc.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("acceptor did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	return errCh
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	return conn
}

func readSome(conn net.Conn) string {
	buf := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _ := conn.Read(buf)
	return string(buf[:n])
}

func TestAcceptorStartAndStop(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(4), handler, zaptest.NewLogger(t))
	errCh := startAcceptor(t, acc)

	conn := dial(t, acc.Addr())
	readSome(conn) // negotiation

	_, err := conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	assert.Contains(t, readSome(conn), "echo: hello\r\n")

	_, _ = conn.Write([]byte("quit\r\n"))
	assert.Contains(t, readSome(conn), "bye")
	conn.Close()

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop in time")
	}
	assert.Equal(t, int32(1), handler.sessionCount.Load())
	assert.False(t, acc.IsRunning())
}

func TestAcceptorMultipleClients(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(4), handler, zaptest.NewLogger(t))
	startAcceptor(t, acc)

	const numClients = 3
	conns := make([]net.Conn, numClients)
	for i := range conns {
		conns[i] = dial(t, acc.Addr())
		readSome(conns[i])
	}
	for _, conn := range conns {
		_, _ = conn.Write([]byte("quit\r\n"))
		readSome(conn)
		conn.Close()
	}

	acc.Stop()
	assert.Equal(t, int32(numClients), handler.sessionCount.Load())
}

func TestAcceptorRefusesBeyondMaxSessions(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(1), handler, zaptest.NewLogger(t))
	startAcceptor(t, acc)
	defer acc.Stop()

	first := dial(t, acc.Addr())
	defer first.Close()
	readSome(first)
	_, _ = first.Write([]byte("ping\r\n"))
	require.Contains(t, readSome(first), "echo: ping")

	second := dial(t, acc.Addr())
	defer second.Close()
	assert.Contains(t, readSome(second), "too many sessions")
	assert.Equal(t, int32(1), handler.sessionCount.Load())
}

func TestAcceptorStopClosesActiveSessions(t *testing.T) {
	handler := &echoHandler{}
	acc := NewAcceptor(testConfig(2), handler, zaptest.NewLogger(t))
	errCh := startAcceptor(t, acc)

	conn := dial(t, acc.Addr())
	defer conn.Close()
	readSome(conn)
	_, _ = conn.Write([]byte("ping\r\n"))
	require.Contains(t, readSome(conn), "echo: ping")

	stopped := make(chan struct{})
	go func() {
		acc.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on an idle session")
	}
	assert.NoError(t, <-errCh)
}

func TestAcceptorStopBeforeStart(t *testing.T) {
	acc := NewAcceptor(testConfig(1), &echoHandler{}, zaptest.NewLogger(t))
	acc.Stop()
	assert.NoError(t, acc.Start())
	assert.False(t, acc.IsRunning())
}
