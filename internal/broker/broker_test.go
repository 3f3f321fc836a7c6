package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/pigato/broker/internal/broker"
	"github.com/pigato/broker/internal/cache"
	"github.com/pigato/broker/internal/transport"
	"github.com/pigato/broker/internal/wire"
)

func startTestBroker(t *testing.T, cfg broker.Config, cacheImpl cache.Cache) (*broker.Broker, *transport.Hub) {
	t.Helper()
	hub := transport.NewHub()
	b := broker.New(cfg, hub.Broker(), cacheImpl, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Close()
	})
	return b, hub
}

func send(t *testing.T, ch transport.Channel, frames [][]byte) {
	t.Helper()
	if err := ch.Send(context.Background(), nil, frames); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func recv(t *testing.T, ch transport.Channel, timeout time.Duration) [][]byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, frames, err := ch.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	return frames
}

func ready(t *testing.T, ch transport.Channel, service string) {
	send(t, ch, [][]byte{wire.WorkerTag, {wire.CmdReady}, []byte(service)})
}

func request(t *testing.T, ch transport.Channel, service, rid, payload, opts string) {
	send(t, ch, [][]byte{wire.ClientTag, {wire.CmdRequest}, []byte(service), []byte(rid), []byte(payload), []byte(opts)})
}

func reply(t *testing.T, ch transport.Channel, clientID, rid, payload string) {
	send(t, ch, [][]byte{wire.WorkerTag, {wire.CmdReply}, []byte(clientID), nil, []byte(rid), []byte(payload)})
}

func reject(t *testing.T, ch transport.Channel, clientID, rid string) {
	send(t, ch, [][]byte{wire.WorkerTag, {wire.CmdReplyReject}, []byte(clientID), nil, []byte(rid)})
}

func TestBasicRoundTrip(t *testing.T) {
	_, hub := startTestBroker(t, broker.DefaultConfig(), nil)

	w := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w, "echo")
	request(t, c, "echo", "1", "hi", "{}")

	dispatch := recv(t, w, time.Second)
	if len(dispatch) < 4 || string(dispatch[0]) != string(wire.WorkerTag) {
		t.Fatalf("unexpected dispatch frames: %v", dispatch)
	}
	if string(dispatch[1]) != string([]byte{wire.CmdRequest}) {
		t.Fatalf("expected REQUEST dispatch, got cmd %v", dispatch[1])
	}
	if string(dispatch[2]) != "C1" {
		t.Fatalf("expected clientID C1, got %q", dispatch[2])
	}

	reply(t, w, "C1", "1", "hi")

	got := recv(t, c, time.Second)
	if len(got) < 5 {
		t.Fatalf("unexpected reply frames: %v", got)
	}
	if string(got[1]) != string([]byte{wire.CmdReply}) {
		t.Fatalf("expected REPLY, got cmd %v", got[1])
	}
	if string(got[3]) != "1" {
		t.Fatalf("expected rid 1, got %q", got[3])
	}
	if string(got[4]) != "hi" {
		t.Fatalf("expected payload hi, got %q", got[4])
	}
}

func TestWildcardRouting(t *testing.T) {
	_, hub := startTestBroker(t, broker.DefaultConfig(), nil)

	w := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w, "audio.*")
	request(t, c, "audio.transcode", "9", "clip", "{}")

	dispatch := recv(t, w, time.Second)
	if string(dispatch[3]) != "audio.transcode" {
		t.Fatalf("expected dispatch service audio.transcode, got %q", dispatch[3])
	}
}

func TestConcurrencyCap(t *testing.T) {
	_, hub := startTestBroker(t, broker.DefaultConfig(), nil)

	w := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w, "sum")
	send(t, w, [][]byte{wire.WorkerTag, {wire.CmdHeartbeat}, []byte(`{"concurrency":1}`)})

	request(t, c, "sum", "1", "a", "{}")
	first := recv(t, w, time.Second)
	if string(first[5]) != "1" {
		t.Fatalf("expected first dispatch rid 1, got %v", first)
	}

	request(t, c, "sum", "2", "b", "{}")

	// second request must not be dispatched while the worker is at its
	// concurrency limit.
	select {
	case <-timeAfterRecv(w, 150*time.Millisecond):
		t.Fatalf("worker received a second dispatch before freeing its slot")
	case <-time.After(200 * time.Millisecond):
	}

	reply(t, w, "C1", "1", "a-done")
	recv(t, c, time.Second) // reply for rid 1

	second := recv(t, w, time.Second)
	if string(second[3]) != "sum" {
		t.Fatalf("expected second dispatch for service sum, got %v", second)
	}
}

// timeAfterRecv starts a Recv in the background and signals on the
// returned channel if a frame arrives within window, used to assert
// something does NOT happen within a window. The Recv gives up when the
// window ends, so it does not consume a frame that arrives later.
func timeAfterRecv(ch transport.Channel, window time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), window)
		defer cancel()
		if _, _, err := ch.Recv(ctx); err == nil {
			close(done)
		}
	}()
	return done
}

func TestCacheHit(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.Cache = true
	mem := cache.NewMemory()
	t.Cleanup(func() { mem.Close() })

	_, hub := startTestBroker(t, cfg, mem)

	w := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w, "sum")
	request(t, c, "sum", "1", "1,2", `{"cache":1000}`)

	dispatch := recv(t, w, time.Second)
	if len(dispatch) == 0 {
		t.Fatalf("expected dispatch to worker")
	}
	send(t, w, [][]byte{wire.WorkerTag, {wire.CmdReply}, []byte("C1"), nil, []byte("1"), []byte("3"), []byte(`{"cache":1000}`)})
	recv(t, c, time.Second)

	request(t, c, "sum", "2", "1,2", `{"cache":1000}`)
	got := recv(t, c, time.Second)
	if string(got[4]) != "3" {
		t.Fatalf("expected cached reply 3, got %q", got[4])
	}

	select {
	case <-timeAfterRecv(w, 150*time.Millisecond):
		t.Fatalf("worker should not have been re-dispatched on a cache hit")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestRejectAndRebalance covers scenario 2 ("reject and rebalance")
// end to end over the wire, for the case where the rejecter has gone
// ineligible by the time the redispatch runs. W1 signals zero capacity
// over its next heartbeat right after the dispatch (a legitimate
// "draining" heartbeat), which keeps it permanently ineligible so the
// redispatch triggered by its own reject deterministically lands on
// W2. This is a narrower claim than "never redelivered to the
// rejecter": when the rejecter is still eligible, redelivery is a
// ModeRand draw over every eligible worker including the rejecter
// itself — see internal/broker's handler_test.go and DESIGN.md for the
// unconstrained case.
func TestRejectAndRebalance(t *testing.T) {
	_, hub := startTestBroker(t, broker.DefaultConfig(), nil)

	w1 := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w1, "echo")
	request(t, c, "echo", "1", "hi", "{}")
	recv(t, w1, time.Second) // initial dispatch to W1

	send(t, w1, [][]byte{wire.WorkerTag, {wire.CmdHeartbeat}, []byte(`{"concurrency":0}`)})

	w2 := hub.Peer([]byte("W2"))
	ready(t, w2, "echo")

	reject(t, w1, "C1", "1")

	redispatch := recv(t, w2, time.Second)
	if string(redispatch[5]) != "1" {
		t.Fatalf("expected the rejected rid 1 redelivered to W2, got %v", redispatch)
	}

	select {
	case <-timeAfterRecv(w1, 150*time.Millisecond):
		t.Fatalf("the rejecting worker should not receive its own rejected request back")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHeartbeatPurgeWithRetry(t *testing.T) {
	cfg := broker.DefaultConfig()
	cfg.HeartbeatMS = 20
	_, hub := startTestBroker(t, cfg, nil)

	w1 := hub.Peer([]byte("W1"))
	c := hub.Peer([]byte("C1"))

	ready(t, w1, "sum")
	send(t, w1, [][]byte{wire.WorkerTag, {wire.CmdHeartbeat}, []byte(`{"concurrency":1}`)})
	request(t, c, "sum", "1", "a", "{}")
	// first dispatch consumes W1's only slot; with a 20ms tick, broker
	// heartbeats to W1 may arrive before it and are skipped.
	first := recv(t, w1, time.Second)
	for first[1][0] == wire.CmdHeartbeat {
		first = recv(t, w1, time.Second)
	}

	request(t, c, "sum", "2", "b", `{"retry":1}`)

	// W1 goes silent; the broker keeps sending it heartbeats until, after
	// ~3 missed heartbeat ticks, it is purged and a DISCONNECT sent.
	disc := recv(t, w1, time.Second)
	for disc[1][0] == wire.CmdHeartbeat {
		disc = recv(t, w1, time.Second)
	}
	if string(disc[1]) != string([]byte{wire.CmdDisconnect}) {
		t.Fatalf("expected DISCONNECT, got cmd %v", disc[1])
	}

	w2 := hub.Peer([]byte("W2"))
	ready(t, w2, "sum")

	// rid 2 was never assigned to W1 (W1 was at its concurrency limit), so
	// it is still queued after the purge and is now dispatched to the
	// newly registered worker.
	redispatch := recv(t, w2, 2*time.Second)
	if string(redispatch[5]) != "2" {
		t.Fatalf("expected requeued rid 2 dispatched to W2, got %v", redispatch)
	}
}
