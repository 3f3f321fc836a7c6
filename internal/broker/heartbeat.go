package broker

// heartbeatTick is the periodic timer's entry point (§4.7): always
// runs the liveness sweep regardless of when it last ran.
func (b *Broker) heartbeatTick() {
	b.workersCheck(true)
}

// workersCheck implements the liveness sweep shared by the heartbeat
// ticker and every inbound frame. Per DESIGN.md's resolution of the
// source's rate-limiting ambiguity, both triggers consult the same
// lastWorkersCheck timestamp: the ticker always runs (force=true) and
// updates it; a frame-triggered call only runs if a full heartbeat
// interval has elapsed since the last sweep, from either trigger.
func (b *Broker) workersCheck(force bool) {
	now := b.now()
	if !force && now-b.lastWorkersCheck < b.cfg.HeartbeatMS {
		return
	}
	b.lastWorkersCheck = now

	ids := make([]string, 0, len(b.workers))
	for id := range b.workers {
		ids = append(ids, id)
	}

	for _, id := range ids {
		w, ok := b.workers[id]
		if !ok {
			continue // already purged earlier in this sweep via cascading delete
		}
		w.Liveness--
		if w.Liveness < 0 {
			b.deleteWorker(w.WorkerID, true)
			continue
		}
		b.sendWorker(w.WorkerID, wireWorkerHeartbeat())
	}

	b.metrics.WorkersActive(len(b.workers))
}
