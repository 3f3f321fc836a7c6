// Package transport defines the broker's opaque frame channel: a
// router-style asynchronous transport treated as an external
// collaborator. The broker core depends only on the Channel
// interface; internal/transport provides a production implementation
// backed by a ZeroMQ ROUTER socket and an in-process loopback
// implementation used by tests and embedders.
package transport

import "context"

// Channel delivers ordered multi-part frame messages to and from
// peers, identified by an opaque transport-level identity. Recv
// strips the sender identity and, if present, a single empty
// delimiter frame; Send re-adds identity framing for delivery through
// a ROUTER-style socket.
//
// Implementations must preserve per-peer FIFO ordering: frames from
// the same sender are delivered to Recv callers in the order they were
// sent.
type Channel interface {
	Recv(ctx context.Context) (from []byte, frames [][]byte, err error)
	Send(ctx context.Context, to []byte, frames [][]byte) error
	Close() error
}
