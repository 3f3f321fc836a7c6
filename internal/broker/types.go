// Package broker implements the service-oriented request/reply broker
// core: service and worker registries, the global request table, the
// worker-selection dispatcher, the protocol handler, and the
// heartbeat-driven liveness loop. All state lives on a single
// goroutine (see Broker.Run); nothing in this package is safe for
// concurrent use from outside that goroutine.
package broker

import "strings"

// defaultConcurrency is the assignment ceiling applied to a worker
// that never sent an explicit concurrency value over heartbeat opts.
const defaultConcurrency = 100

// Mode selects how the dispatcher picks among eligible workers for a
// service.
type Mode int

const (
	// ModeLoad sorts eligible workers by ascending in-flight count and
	// picks the first; the default.
	ModeLoad Mode = iota
	// ModeRand picks uniformly among eligible workers.
	ModeRand
)

// Request is a single client submission tracked from arrival to
// final reply, timeout, or abandonment.
type Request struct {
	RID      string
	Service  string
	ClientID string

	Attempts int
	Rejects  map[string]struct{}

	Hash string // cache fingerprint; empty when caching is not in play

	TS        int64 // submission timestamp, unix ms
	TimeoutMS int64 // -1 means no deadline

	Retry   int  // nonzero: requeue on worker loss
	Persist bool // mirror to the persistence controller

	WorkerID string // assigned worker, or "" while queued

	// Payload holds the frame fragments needed to reconstruct the
	// dispatch frame to a worker: [payload, optsJSON].
	Payload [][]byte
}

func newRequest(rid, service, clientID string, payload [][]byte, ts int64) *Request {
	return &Request{
		RID:       rid,
		Service:   service,
		ClientID:  clientID,
		Rejects:   make(map[string]struct{}),
		TimeoutMS: -1,
		Payload:   payload,
		TS:        ts,
	}
}

func (r *Request) expired(now int64) bool {
	return r.TimeoutMS >= 0 && now > r.TS+r.TimeoutMS
}

func (r *Request) rejectedBy(workerID string) bool {
	_, ok := r.Rejects[workerID]
	return ok
}

// Worker is a registered worker process, identified by its transport
// identity.
type Worker struct {
	WorkerID string
	Service  string

	Liveness int

	// RIDs is the ordered sequence of currently assigned request ids.
	RIDs []string

	Concurrency int
}

func newWorker(workerID, service string) *Worker {
	return &Worker{
		WorkerID:    workerID,
		Service:     service,
		Liveness:    3,
		Concurrency: defaultConcurrency,
	}
}

func (w *Worker) eligible() bool {
	if w.Concurrency < 0 {
		return true
	}
	return len(w.RIDs) < w.Concurrency
}

func (w *Worker) hasRID(rid string) bool {
	for _, id := range w.RIDs {
		if id == rid {
			return true
		}
	}
	return false
}

func (w *Worker) removeRID(rid string) {
	for i, id := range w.RIDs {
		if id == rid {
			w.RIDs = append(w.RIDs[:i], w.RIDs[i+1:]...)
			return
		}
	}
}

// Service is a named queue of pending requests plus the pool of
// workers registered to serve it. A trailing "*" on name marks a
// wildcard: a prefix pattern eligible to serve any concrete service
// name sharing that prefix when no exact-name worker exists.
type Service struct {
	Name    string
	Workers []string // worker ids, registration order
	Q       []*Request
}

func newService(name string) *Service {
	return &Service{Name: name}
}

func (s *Service) isWildcard() bool {
	return strings.HasSuffix(s.Name, "*")
}

func (s *Service) prefix() string {
	return strings.TrimSuffix(s.Name, "*")
}

// matchesWildcard reports whether concrete service name matches this
// wildcard service's prefix.
func (s *Service) matchesWildcard(name string) bool {
	return s.isWildcard() && strings.HasPrefix(name, s.prefix())
}

func (s *Service) removeWorker(workerID string) {
	for i, id := range s.Workers {
		if id == workerID {
			s.Workers = append(s.Workers[:i], s.Workers[i+1:]...)
			return
		}
	}
}

func (s *Service) popQueue() *Request {
	if len(s.Q) == 0 {
		return nil
	}
	req := s.Q[0]
	s.Q = s.Q[1:]
	return req
}

func (s *Service) pushQueue(req *Request) {
	s.Q = append(s.Q, req)
}
