package broker

import "context"

// WorkerSnapshot is a read-only view of one registered worker, for
// the admin console's WORKERS command.
type WorkerSnapshot struct {
	ID          string
	Service     string
	Liveness    int
	InFlight    int
	Concurrency int
}

// ServiceSnapshot is a read-only view of one service, for the admin
// console's SERVICES command.
type ServiceSnapshot struct {
	Name        string
	WorkerCount int
	QueueDepth  int
}

// Snapshot is the full point-in-time state the admin console renders.
type Snapshot struct {
	Workers      []WorkerSnapshot
	Services     []ServiceSnapshot
	RequestCount int
}

type snapshotQuery struct {
	reply chan Snapshot
}

// Query asks the event loop for a consistent snapshot of broker
// state. It is the only way code outside the event-loop goroutine
// (the admin console) may observe broker state — it never races with
// handler execution because it is answered from inside the loop.
func (b *Broker) Query(ctx context.Context) (Snapshot, error) {
	q := snapshotQuery{reply: make(chan Snapshot, 1)}
	select {
	case b.snapshotCh <- q:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-q.reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (b *Broker) buildSnapshot() Snapshot {
	snap := Snapshot{RequestCount: len(b.requests)}

	for _, w := range b.workers {
		snap.Workers = append(snap.Workers, WorkerSnapshot{
			ID:          w.WorkerID,
			Service:     w.Service,
			Liveness:    w.Liveness,
			InFlight:    len(w.RIDs),
			Concurrency: w.Concurrency,
		})
	}

	for _, svc := range b.services {
		snap.Services = append(snap.Services, ServiceSnapshot{
			Name:        svc.Name,
			WorkerCount: len(svc.Workers),
			QueueDepth:  len(svc.Q),
		})
	}

	return snap
}
