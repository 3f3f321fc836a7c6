package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed Hub or its channels.
var ErrClosed = errors.New("transport: channel closed")

type hubMsg struct {
	peer   []byte
	frames [][]byte
}

// Hub is an in-process stand-in for a ROUTER socket: one broker-side
// Channel multiplexed against any number of named peer-side Channels.
// It is used by package tests and by embedders that want a broker
// without a real network socket; the production binding is
// NewZMQRouter.
type Hub struct {
	mu      sync.Mutex
	inbox   chan hubMsg // peer -> broker
	peerCh  map[string]chan hubMsg
	closed  chan struct{}
	once    sync.Once
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		inbox:  make(chan hubMsg, 1024),
		peerCh: make(map[string]chan hubMsg),
		closed: make(chan struct{}),
	}
}

// Broker returns the Channel the broker should read frames from and
// send dispatches through.
func (h *Hub) Broker() Channel { return &hubBrokerChannel{h: h} }

// Peer returns a Channel representing the peer identified by id. Many
// independent peer Channels can coexist on one Hub, each with its own
// identity, mirroring distinct clients/workers dialing one ROUTER
// socket.
func (h *Hub) Peer(id []byte) Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(id)
	if _, ok := h.peerCh[key]; !ok {
		h.peerCh[key] = make(chan hubMsg, 256)
	}
	return &hubPeerChannel{h: h, id: append([]byte(nil), id...)}
}

func (h *Hub) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

type hubBrokerChannel struct{ h *Hub }

func (c *hubBrokerChannel) Recv(ctx context.Context) ([]byte, [][]byte, error) {
	select {
	case m := <-c.h.inbox:
		return m.peer, m.frames, nil
	case <-c.h.closed:
		return nil, nil, ErrClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (c *hubBrokerChannel) Send(ctx context.Context, to []byte, frames [][]byte) error {
	c.h.mu.Lock()
	ch, ok := c.h.peerCh[string(to)]
	c.h.mu.Unlock()
	if !ok {
		// No registered peer: mirrors a real ROUTER socket silently
		// dropping a send to an unknown/disconnected identity.
		return nil
	}
	select {
	case ch <- hubMsg{peer: to, frames: frames}:
		return nil
	case <-c.h.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *hubBrokerChannel) Close() error { return c.h.Close() }

type hubPeerChannel struct {
	h  *Hub
	id []byte
}

func (c *hubPeerChannel) Send(ctx context.Context, _ []byte, frames [][]byte) error {
	select {
	case c.h.inbox <- hubMsg{peer: c.id, frames: frames}:
		return nil
	case <-c.h.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *hubPeerChannel) Recv(ctx context.Context) ([]byte, [][]byte, error) {
	c.h.mu.Lock()
	ch := c.h.peerCh[string(c.id)]
	c.h.mu.Unlock()
	select {
	case m := <-ch:
		return m.peer, m.frames, nil
	case <-c.h.closed:
		return nil, nil, ErrClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (c *hubPeerChannel) Close() error { return nil }
