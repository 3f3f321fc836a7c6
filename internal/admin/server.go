// Package admin implements the broker's read-only operational console:
// a RESP server (tidwall/redcon) exposing PING, INFO, WORKERS,
// SERVICES, and STATS against a running broker.Broker. The console
// never mutates broker state; every command that reports broker state
// (WORKERS, SERVICES, STATS) answers from a Broker.Query snapshot taken
// on the broker's own event-loop goroutine.
package admin

import (
	"bytes"
	"context"
	"log"
	"net"
	"sync"

	"github.com/tidwall/redcon"

	"github.com/pigato/broker/internal/broker"
	pkgbytes "github.com/pigato/broker/pkg/bytes"
)

type Server struct {
	addr    string
	handler *Handler
	cmds    *cmdMap

	mu       sync.RWMutex
	server   *redcon.Server
	listener net.Listener
}

func NewServer(addr string, b *broker.Broker, version string) *Server {
	h := NewHandler(b, version)
	return &Server{
		addr:    addr,
		handler: h,
		cmds:    newCmdMap(h),
	}
}

func (s *Server) Start() error {
	log.Printf("admin: console listening on %s", s.addr)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	srv := redcon.NewServer(s.addr,
		s.handleCommand,
		s.handleAccept,
		s.handleClose,
	)

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()

	return srv.Serve(ln)
}

func (s *Server) Stop() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

func (s *Server) Addr() string {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln != nil {
		return ln.Addr().String()
	}
	return s.addr
}

func (s *Server) handleAccept(conn redcon.Conn) bool {
	log.Printf("admin: client connected: %s", conn.RemoteAddr())
	return true
}

func (s *Server) handleClose(conn redcon.Conn, err error) {
	log.Printf("admin: client disconnected: %s", conn.RemoteAddr())
}

func (s *Server) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	if len(cmd.Args) == 0 {
		conn.WriteError("ERR empty command")
		return
	}

	ctx := context.Background()
	// ToUpper allocates a fresh buffer per call; BytesToString avoids a
	// second copy for the map lookup below. name is otherwise only
	// concatenated into the error reply, which copies it — it is never
	// retained past this call.
	name := pkgbytes.BytesToString(bytes.ToUpper(cmd.Args[0]))

	handler := s.cmds.Lookup(name)
	if handler == nil {
		conn.WriteError("ERR unknown command '" + name + "'")
		return
	}
	handler(ctx, conn, cmd.Args[1:])
}
