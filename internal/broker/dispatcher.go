package broker

import (
	"math/rand"

	"github.com/pigato/broker/internal/wire"
)

// validate outcomes (spec §4.4).
const (
	validOK            = 1
	validGoneOrExpired = -1
	validRetryCeiling  = -2
)

// selectPair implements §4.3 select(service, mode): it returns the
// concrete service name and worker id of a pairing to dispatch, or
// ok=false if no pairing currently exists.
func (b *Broker) selectPair(serviceName string, mode Mode) (svcName, workerID string, ok bool) {
	svc, exists := b.services[serviceName]
	if !exists {
		svc = newService(serviceName)
	}

	hasWorkers := len(svc.Workers) > 0
	hasQueue := len(svc.Q) > 0

	if hasWorkers && hasQueue {
		wid, found := b.pickWorker(svc, mode)
		if !found {
			return "", "", false
		}
		return svc.Name, wid, true
	}

	if svc.isWildcard() {
		if !hasWorkers {
			return "", "", false
		}
		for _, other := range b.services {
			if other.Name == svc.Name {
				continue
			}
			if !other.isWildcard() && len(other.Q) > 0 && svc.matchesWildcard(other.Name) {
				wid, found := b.pickWorker(svc, mode)
				if !found {
					continue
				}
				return other.Name, wid, true
			}
		}
		return "", "", false
	}

	if !hasQueue {
		return "", "", false
	}
	for _, wc := range b.wildcardServicesMatching(serviceName) {
		if len(wc.Workers) == 0 {
			continue
		}
		wid, found := b.pickWorker(wc, mode)
		if !found {
			continue
		}
		return svc.Name, wid, true
	}
	return "", "", false
}

// pickWorker implements the `load`/`rand` selection strategies,
// restricted to workers under their concurrency limit.
func (b *Broker) pickWorker(svc *Service, mode Mode) (string, bool) {
	var eligible []*Worker
	for _, id := range svc.Workers {
		w, ok := b.workers[id]
		if !ok || !w.eligible() {
			continue
		}
		eligible = append(eligible, w)
	}
	if len(eligible) == 0 {
		return "", false
	}

	switch mode {
	case ModeRand:
		return eligible[rand.Intn(len(eligible))].WorkerID, true
	default: // ModeLoad
		best := eligible[0]
		for _, w := range eligible[1:] {
			if len(w.RIDs) < len(best.RIDs) {
				best = w
			}
		}
		return best.WorkerID, true
	}
}

// validateRequest implements §4.4 validate(worker, req).
func (b *Broker) validateRequest(w *Worker, req *Request, now int64) int {
	if req.expired(now) {
		return validGoneOrExpired
	}
	if req.rejectedBy(w.WorkerID) && req.Attempts >= b.cfg.RAttempts {
		return validRetryCeiling
	}
	return validOK
}

// dispatch drains as many (request, worker) pairings as possible for
// serviceName under mode. A single validate outcome of -2 stops the
// loop and schedules one deferred re-entry with mode forced to rand,
// bounding synchronous work per call (§5).
func (b *Broker) dispatch(serviceName string, mode Mode) {
	for {
		svcName, workerID, ok := b.selectPair(serviceName, mode)
		if !ok {
			return
		}

		svc, ok := b.services[svcName]
		if !ok {
			return
		}
		req := svc.popQueue()
		if req == nil {
			return
		}
		req.Attempts++

		w, ok := b.workers[workerID]
		if !ok {
			// worker vanished between select and pop; requeue and retry.
			svc.pushQueue(req)
			continue
		}

		switch b.validateRequest(w, req, b.now()) {
		case validOK:
			b.assign(svc, w, req)
		case validGoneOrExpired:
			b.persistDelete(req.RID)
			b.metricTimedOut()
		case validRetryCeiling:
			svc.pushQueue(req)
			b.metricRequeued()
			b.scheduleRedispatch(serviceName)
			return
		}
	}
}

// requestDispatch invokes the dispatcher for serviceName using the
// broker's default selection mode; callers that need the rand
// downgrade (reject handling, deferred re-entries) call dispatch
// directly.
func (b *Broker) requestDispatch(serviceName string) {
	b.dispatch(serviceName, b.cfg.DMode)
}

// assign implements §4.5. It first checks the cache short-circuit: a
// hit answers the client directly and drops req without consuming a
// worker slot.
func (b *Broker) assign(svc *Service, w *Worker, req *Request) {
	if b.cfg.Cache && req.Hash != "" {
		if payload, ok := b.cache.Get(req.Hash); ok {
			b.sendClient(req.ClientID, wireReplyFrame(wire.CmdReply, req.RID, [][]byte{payload}))
			b.persistDelete(req.RID)
			b.metricCacheHit()
			return
		}
		b.metricCacheMiss()
	}

	b.requests[req.RID] = req
	req.WorkerID = w.WorkerID
	w.RIDs = append(w.RIDs, req.RID)

	if req.Persist {
		b.persistSet(req)
	}

	b.sendWorker(w.WorkerID, wireDispatchFrame(req.ClientID, req.Service, req.RID, req.Payload))
	b.metricDispatched()
	b.metricDispatchDuration(req)
}
