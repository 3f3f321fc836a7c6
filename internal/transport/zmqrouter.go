package transport

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"

	"github.com/pigato/broker/pkg/protocolbuf"
)

// ZMQRouter is the production Channel: a bound ZeroMQ ROUTER socket.
// Clients and workers dial it with DEALER or REQ sockets speaking the
// frame formats in internal/wire.
type ZMQRouter struct {
	sock zmq4.Socket
}

// NewZMQRouter binds a ROUTER socket at endpoint (e.g. "tcp://*:5555"
// or "inproc://broker").
func NewZMQRouter(ctx context.Context, endpoint string) (*ZMQRouter, error) {
	sock := zmq4.NewRouter(ctx)
	if err := sock.Listen(endpoint); err != nil {
		return nil, fmt.Errorf("transport: bind router at %s: %w", endpoint, err)
	}
	return &ZMQRouter{sock: sock}, nil
}

// Recv blocks until a message arrives. The ROUTER socket always
// prepends the sender identity as the first frame; a single empty
// delimiter frame, if present, is stripped here so the caller only
// ever sees application frames.
func (r *ZMQRouter) Recv(ctx context.Context) ([]byte, [][]byte, error) {
	msg, err := r.sock.Recv()
	if err != nil {
		return nil, nil, err
	}
	if len(msg.Frames) < 1 {
		return nil, nil, fmt.Errorf("transport: empty message from router socket")
	}

	from := msg.Frames[0]
	rest := msg.Frames[1:]
	if len(rest) > 0 && len(rest[0]) == 0 {
		rest = rest[1:]
	}
	return from, rest, nil
}

// Send prepends the destination identity and an empty delimiter frame
// before writing, matching the wire format peers expect from a
// ROUTER socket talking to REQ-compatible clients.
func (r *ZMQRouter) Send(ctx context.Context, to []byte, frames [][]byte) error {
	all := protocolbuf.GetArgs(len(frames) + 2)
	defer protocolbuf.PutArgs(all)

	all = append(all, to, nil)
	all = append(all, frames...)
	return r.sock.Send(zmq4.NewMsgFrom(all...))
}

func (r *ZMQRouter) Close() error { return r.sock.Close() }
