package broker

import (
	"fmt"
	"log"

	errs "github.com/pigato/broker/pkg/errors"

	"github.com/pigato/broker/internal/wire"
)

// handleFrame classifies one inbound message by protocol tag and
// dispatches to the client or worker handler. Every inbound frame
// also triggers the rate-limited liveness sweep of §4.7 (resolving
// the shared-timestamp open question documented in DESIGN.md).
func (b *Broker) handleFrame(from []byte, frames [][]byte) {
	env := wire.Envelope{From: from, Frames: frames}
	tag := env.Tag()

	b.workersCheck(false)

	switch {
	case wire.IsClientTag(tag):
		b.handleClientFrame(string(from), env.Command(), env.Args())
	case wire.IsWorkerTag(tag):
		b.handleWorkerFrame(string(from), env.Command(), env.Args())
	default:
		log.Printf("broker: %v", fmt.Errorf("%w: from %x", errs.ErrUnknownTag, from))
	}
}

func (b *Broker) handleClientFrame(clientID string, cmd byte, args [][]byte) {
	switch cmd {
	case wire.CmdRequest:
		b.onClientRequest(clientID, args)
	case wire.CmdHeartbeat:
		b.onClientHeartbeat(args)
	default:
		log.Printf("broker: unrecognized client command %s from %q", wire.CommandName(cmd), clientID)
	}
}

// onClientRequest implements §4.1's W_REQUEST handler: build a
// request record from frames, compute its cache fingerprint if
// caching applies, and enqueue via the dispatcher.
func (b *Broker) onClientRequest(clientID string, args [][]byte) {
	service := string(wire.FrameAt(args, 0))
	rid := string(wire.FrameAt(args, 1))
	payload := wire.FrameAt(args, 2)
	optsRaw := wire.FrameAt(args, 3)
	opts := wire.ParseOpts(optsRaw)

	req := newRequest(rid, service, clientID, [][]byte{payload, optsRaw}, b.now())
	req.TimeoutMS = opts.Int64("timeout", defaultRequestTimeout)
	req.Retry = opts.Int("retry", 0)
	req.Persist = opts.Bool("persist", false)
	if b.cfg.Cache && opts.Has("cache") {
		req.Hash = fingerprint(service, payload)
	}

	svc := b.service(service)
	svc.pushQueue(req)
	if req.Persist {
		b.persistSet(req)
	}
	b.metricQueued()
	b.metrics.QueueDepth(service, len(svc.Q))

	b.requestDispatch(service)
}

// onClientHeartbeat implements §4.1's client W_HEARTBEAT handler: if
// the rid is currently assigned, forward a heartbeat to the assigned
// worker carrying the original client identity.
func (b *Broker) onClientHeartbeat(args [][]byte) {
	rid := string(wire.FrameAt(args, 0))
	req, ok := b.requests[rid]
	if !ok || req.WorkerID == "" {
		return
	}
	b.sendWorker(req.WorkerID, wireClientHeartbeatToWorker(req.ClientID, rid))
}

func (b *Broker) handleWorkerFrame(workerID string, cmd byte, args [][]byte) {
	w, known := b.workers[workerID]

	if cmd != wire.CmdReady && !known {
		b.sendWorker(workerID, wireDisconnect())
		return
	}

	switch cmd {
	case wire.CmdReady:
		b.onWorkerReady(workerID, known, args)
		return
	case wire.CmdHeartbeat:
		b.onWorkerHeartbeat(w, args)
	case wire.CmdReply, wire.CmdReplyPartial:
		w.Liveness = 3
		b.onWorkerReply(w, cmd, args)
	case wire.CmdReplyReject:
		w.Liveness = 3
		b.onWorkerReject(w, args)
	case wire.CmdDisconnect:
		b.deleteWorker(workerID, false)
	default:
		log.Printf("broker: unrecognized worker command %s from %q", wire.CommandName(cmd), workerID)
		b.deleteWorker(workerID, true)
	}
}

// onWorkerReady implements §4.1's W_READY handler. A duplicate READY
// from an already-registered worker, or an empty service name, is a
// protocol violation: the worker is purged with a rude disconnect.
func (b *Broker) onWorkerReady(workerID string, known bool, args [][]byte) {
	service := string(wire.FrameAt(args, 0))

	if known {
		b.deleteWorker(workerID, true)
		return
	}
	if service == "" {
		b.sendWorker(workerID, wireDisconnect())
		return
	}

	w := newWorker(workerID, service)
	b.registerWorker(w)
	b.requestDispatch(service)
}

func (b *Broker) onWorkerHeartbeat(w *Worker, args [][]byte) {
	opts := wire.ParseOpts(wire.FrameAt(args, 0))
	if opts.Has("concurrency") {
		w.Concurrency = opts.Int("concurrency", w.Concurrency)
	}
	w.Liveness = 3
}

// onWorkerReply implements §4.1/§4.2's W_REPLY / W_REPLY_PARTIAL
// handler: validate the rid is actually assigned to this worker,
// forward the payload to the client, and on a final reply free the
// worker's slot, mirror the cache, and re-enter the dispatcher.
func (b *Broker) onWorkerReply(w *Worker, cmd byte, args [][]byte) {
	clientID := string(wire.FrameAt(args, 0))
	rid := string(wire.FrameAt(args, 2))
	payload := wire.FrameAt(args, 3)
	replyOptsRaw := wire.FrameAt(args, 4)

	req, ok := b.requests[rid]
	if !ok || !w.hasRID(rid) {
		log.Printf("broker: %v", fmt.Errorf("%w: worker %q rid %q", errs.ErrRIDMismatch, w.WorkerID, rid))
		b.deleteWorker(w.WorkerID, true)
		return
	}

	b.sendClient(clientID, wireReplyFrame(cmd, rid, [][]byte{payload}))

	if cmd == wire.CmdReplyPartial {
		return
	}

	w.removeRID(rid)
	delete(b.requests, rid)
	b.persistDelete(rid)

	if b.cfg.Cache && req.Hash != "" {
		replyOpts := wire.ParseOpts(replyOptsRaw)
		if replyOpts.Has("cache") {
			b.cache.Set(req.Hash, payload, replyOpts.Int64("cache", 0))
		}
	}

	b.requestDispatch(req.Service)
}

// onWorkerReject implements §4.1's W_REPLY_REJECT handler: record the
// reject, unassign and requeue the request, and dispatch once more
// with the selection policy forced to rand so the same worker is not
// immediately re-picked under load-based selection.
func (b *Broker) onWorkerReject(w *Worker, args [][]byte) {
	rid := string(wire.FrameAt(args, 2))

	req, ok := b.requests[rid]
	if !ok || !w.hasRID(rid) {
		log.Printf("broker: %v", fmt.Errorf("%w: worker %q rid %q", errs.ErrRIDMismatch, w.WorkerID, rid))
		b.deleteWorker(w.WorkerID, true)
		return
	}

	req.Rejects[w.WorkerID] = struct{}{}
	w.removeRID(rid)
	delete(b.requests, rid)
	req.WorkerID = ""

	b.service(req.Service).pushQueue(req)
	b.metricRejected()

	b.dispatch(req.Service, ModeRand)
}
