package broker

import "testing"

func TestRequestExpired(t *testing.T) {
	r := newRequest("1", "echo", "C1", nil, 1000)
	r.TimeoutMS = 500

	if r.expired(1400) {
		t.Fatalf("request should not be expired before its deadline")
	}
	if !r.expired(1600) {
		t.Fatalf("request should be expired past its deadline")
	}
}

func TestRequestNoDeadline(t *testing.T) {
	r := newRequest("1", "echo", "C1", nil, 1000)
	if r.expired(1 << 40) {
		t.Fatalf("a request with TimeoutMS -1 should never expire")
	}
}

func TestRequestRejectedBy(t *testing.T) {
	r := newRequest("1", "echo", "C1", nil, 0)
	if r.rejectedBy("W1") {
		t.Fatalf("expected no rejections initially")
	}
	r.Rejects["W1"] = struct{}{}
	if !r.rejectedBy("W1") {
		t.Fatalf("expected W1 to be recorded as a rejecter")
	}
	if r.rejectedBy("W2") {
		t.Fatalf("did not expect W2 to be recorded as a rejecter")
	}
}

func TestWorkerEligible(t *testing.T) {
	w := newWorker("W1", "echo")
	w.Concurrency = 2

	if !w.eligible() {
		t.Fatalf("freshly registered worker should be eligible")
	}
	w.RIDs = []string{"1", "2"}
	if w.eligible() {
		t.Fatalf("worker at its concurrency limit should not be eligible")
	}
}

func TestWorkerEligibleUnboundedConcurrency(t *testing.T) {
	w := newWorker("W1", "echo")
	w.Concurrency = -1
	w.RIDs = []string{"1", "2", "3"}
	if !w.eligible() {
		t.Fatalf("a worker with negative concurrency should always be eligible")
	}
}

func TestWorkerRIDTracking(t *testing.T) {
	w := newWorker("W1", "echo")
	w.RIDs = append(w.RIDs, "1", "2")

	if !w.hasRID("1") {
		t.Fatalf("expected hasRID(1) to be true")
	}
	w.removeRID("1")
	if w.hasRID("1") {
		t.Fatalf("expected rid 1 to be removed")
	}
	if !w.hasRID("2") {
		t.Fatalf("expected rid 2 to remain after removing rid 1")
	}
}

func TestServiceWildcardMatching(t *testing.T) {
	wc := newService("audio.*")
	if !wc.isWildcard() {
		t.Fatalf("expected audio.* to be a wildcard service")
	}
	if wc.prefix() != "audio." {
		t.Fatalf("expected prefix audio., got %q", wc.prefix())
	}
	if !wc.matchesWildcard("audio.transcode") {
		t.Fatalf("expected audio.* to match audio.transcode")
	}
	if wc.matchesWildcard("video.transcode") {
		t.Fatalf("did not expect audio.* to match video.transcode")
	}

	concrete := newService("echo")
	if concrete.isWildcard() {
		t.Fatalf("did not expect echo to be a wildcard service")
	}
	if concrete.matchesWildcard("echo") {
		t.Fatalf("a non-wildcard service never matches via matchesWildcard")
	}
}

func TestServiceQueueFIFO(t *testing.T) {
	s := newService("echo")
	if s.popQueue() != nil {
		t.Fatalf("expected nil pop from empty queue")
	}

	r1 := newRequest("1", "echo", "C1", nil, 0)
	r2 := newRequest("2", "echo", "C1", nil, 0)
	s.pushQueue(r1)
	s.pushQueue(r2)

	if got := s.popQueue(); got != r1 {
		t.Fatalf("expected FIFO order: rid 1 first, got %v", got)
	}
	if got := s.popQueue(); got != r2 {
		t.Fatalf("expected FIFO order: rid 2 second, got %v", got)
	}
	if s.popQueue() != nil {
		t.Fatalf("expected nil pop once queue drains")
	}
}

func TestServiceWorkerRemoval(t *testing.T) {
	s := newService("echo")
	s.Workers = []string{"W1", "W2", "W3"}
	s.removeWorker("W2")
	if len(s.Workers) != 2 || s.Workers[0] != "W1" || s.Workers[1] != "W3" {
		t.Fatalf("unexpected workers after removal: %v", s.Workers)
	}
	// removing an absent worker is a no-op.
	s.removeWorker("W9")
	if len(s.Workers) != 2 {
		t.Fatalf("expected no change removing an absent worker, got %v", s.Workers)
	}
}
