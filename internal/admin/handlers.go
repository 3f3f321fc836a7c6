package admin

import (
	"context"
	"strconv"
	"time"

	"github.com/tidwall/redcon"

	"github.com/pigato/broker/internal/broker"
	"github.com/pigato/broker/pkg/protocolbuf"
)

// Handler implements the admin console's fixed command set against a
// running Broker, querying it exclusively through Broker.Query so
// the console never touches event-loop state directly.
type Handler struct {
	b         *broker.Broker
	version   string
	startedAt time.Time
}

func NewHandler(b *broker.Broker, version string) *Handler {
	return &Handler{b: b, version: version, startedAt: time.Now()}
}

func (h *Handler) cmdPing(ctx context.Context, conn redcon.Conn, args [][]byte) {
	if len(args) == 0 {
		conn.WriteString("PONG")
		return
	}
	conn.WriteBulk(args[0])
}

func (h *Handler) cmdInfo(ctx context.Context, conn redcon.Conn, args [][]byte) {
	uptime := time.Since(h.startedAt).Round(time.Second)

	buf := protocolbuf.GetBuffer()
	defer protocolbuf.PutBuffer(buf)

	buf.WriteString("version:")
	buf.WriteString(h.version)
	buf.WriteString("\r\nuptime_seconds:")
	buf.WriteString(strconv.Itoa(int(uptime.Seconds())))

	conn.WriteBulkString(buf.String())
}

func (h *Handler) cmdWorkers(ctx context.Context, conn redcon.Conn, args [][]byte) {
	snap, err := h.b.Query(ctx)
	if err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}
	conn.WriteArray(len(snap.Workers))
	for _, w := range snap.Workers {
		conn.WriteArray(5)
		conn.WriteBulkString(w.ID)
		conn.WriteBulkString(w.Service)
		conn.WriteInt(w.Liveness)
		conn.WriteInt(w.InFlight)
		conn.WriteInt(w.Concurrency)
	}
}

func (h *Handler) cmdServices(ctx context.Context, conn redcon.Conn, args [][]byte) {
	snap, err := h.b.Query(ctx)
	if err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}
	conn.WriteArray(len(snap.Services))
	for _, s := range snap.Services {
		conn.WriteArray(3)
		conn.WriteBulkString(s.Name)
		conn.WriteInt(s.WorkerCount)
		conn.WriteInt(s.QueueDepth)
	}
}

func (h *Handler) cmdStats(ctx context.Context, conn redcon.Conn, args [][]byte) {
	snap, err := h.b.Query(ctx)
	if err != nil {
		conn.WriteError("ERR " + err.Error())
		return
	}

	workerCount, queued := len(snap.Workers), 0
	for _, s := range snap.Services {
		queued += s.QueueDepth
	}

	conn.WriteArray(3)
	conn.WriteBulkString("workers:" + strconv.Itoa(workerCount))
	conn.WriteBulkString("in_flight:" + strconv.Itoa(snap.RequestCount))
	conn.WriteBulkString("queued:" + strconv.Itoa(queued))
}
