package broker

// service returns the named service, creating it lazily on first
// reference (spec: "lazily created on first reference, never destroyed
// during a broker lifetime").
func (b *Broker) service(name string) *Service {
	if svc, ok := b.services[name]; ok {
		return svc
	}
	svc := newService(name)
	b.services[name] = svc
	return svc
}

// wildcardServicesMatching returns every registered wildcard service
// whose prefix matches name, in map iteration order, which is not
// defined (the dispatcher only needs "some" match, not a specific
// priority).
func (b *Broker) wildcardServicesMatching(name string) []*Service {
	var out []*Service
	for _, svc := range b.services {
		if svc.matchesWildcard(name) {
			out = append(out, svc)
		}
	}
	return out
}

// registerWorker adds w to its service's worker pool.
func (b *Broker) registerWorker(w *Worker) {
	b.workers[w.WorkerID] = w
	svc := b.service(w.Service)
	svc.Workers = append(svc.Workers, w.WorkerID)
}

// deleteWorker removes a worker from the broker entirely. If rude, a
// DISCONNECT frame is sent first. Every request the worker held is
// unassigned; requests whose Retry is set are pushed back to their
// service queue and the dispatcher is invoked for it, others are
// dropped and removed from persistence.
func (b *Broker) deleteWorker(workerID string, rude bool) {
	w, ok := b.workers[workerID]
	if !ok {
		return
	}

	if rude {
		b.sendWorker(workerID, wireDisconnect())
	}

	if svc, ok := b.services[w.Service]; ok {
		svc.removeWorker(workerID)
	}

	for _, rid := range append([]string(nil), w.RIDs...) {
		req, ok := b.requests[rid]
		if !ok {
			continue
		}
		delete(b.requests, rid)
		req.WorkerID = ""

		if req.Retry != 0 {
			svc := b.service(req.Service)
			svc.pushQueue(req)
			b.requestDispatch(req.Service)
		} else {
			b.persistDelete(req.RID)
		}
	}

	delete(b.workers, workerID)
}
