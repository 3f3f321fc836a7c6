package admin

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pigato/broker/internal/broker"
	"github.com/pigato/broker/internal/transport"
	"github.com/pigato/broker/internal/wire"
)

func waitForServer(t *testing.T, s *Server, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		addr := s.Addr()
		if addr != s.addr {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("admin server did not start in time")
	return ""
}

func startAdminServer(t *testing.T) (*Server, *broker.Broker, *transport.Hub) {
	t.Helper()
	hub := transport.NewHub()
	b := broker.New(broker.DefaultConfig(), hub.Broker(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	s := NewServer("127.0.0.1:0", b, "test")
	go s.Start()

	t.Cleanup(func() {
		s.Stop()
		cancel()
		hub.Close()
	})
	waitForServer(t, s, 2*time.Second)
	return s, b, hub
}

func sendCommand(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial admin server: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write command: %v", err)
	}

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return string(buf[:n])
}

func TestAdminPing(t *testing.T) {
	s, _, _ := startAdminServer(t)
	resp := sendCommand(t, s.Addr(), "*1\r\n$4\r\nPING\r\n")
	if resp != "+PONG\r\n" {
		t.Errorf("expected +PONG\\r\\n, got %q", resp)
	}
}

func TestAdminUnknownCommand(t *testing.T) {
	s, _, _ := startAdminServer(t)
	resp := sendCommand(t, s.Addr(), "*1\r\n$7\r\nBOGUSOP\r\n")
	if len(resp) == 0 || resp[0] != '-' {
		t.Errorf("expected an error response, got %q", resp)
	}
}

func TestAdminWorkersReflectsRegisteredWorker(t *testing.T) {
	s, _, hub := startAdminServer(t)

	w := hub.Peer([]byte("W1"))
	if err := w.Send(context.Background(), nil, [][]byte{wire.WorkerTag, {wire.CmdReady}, []byte("echo")}); err != nil {
		t.Fatalf("send READY: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the event loop register the worker

	resp := sendCommand(t, s.Addr(), "*1\r\n$7\r\nWORKERS\r\n")
	if !strings.Contains(resp, "W1") || !strings.Contains(resp, "echo") {
		t.Errorf("expected WORKERS response to contain the registered worker, got %q", resp)
	}
}

func TestAdminStats(t *testing.T) {
	s, _, _ := startAdminServer(t)
	resp := sendCommand(t, s.Addr(), "*1\r\n$5\r\nSTATS\r\n")
	if !strings.Contains(resp, "workers:") {
		t.Errorf("expected STATS response to contain workers count, got %q", resp)
	}
}
