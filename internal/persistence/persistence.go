// Package persistence implements the broker's pluggable persistence
// controller (spec §4.6): an optional durable mirror of in-flight
// requests, consulted once at startup to repopulate service queues and
// kept in sync with rset/rdel as requests are enqueued, reassigned,
// and completed.
package persistence

import "context"

// Record is a serializable snapshot of a request, independent of the
// broker's in-memory Request type so this package never imports
// internal/broker (the broker imports this package instead, and
// converts to/from Record at its call sites).
type Record struct {
	RID       string
	Service   string
	ClientID  string
	Payload   []byte
	Opts      []byte
	TS        int64
	TimeoutMS int64
	Retry     int
}

// Controller is the pluggable persistence capability set. All
// operations may be asynchronous internally; the broker always treats
// their completion as happening on its own event-loop goroutine.
type Controller interface {
	Rset(ctx context.Context, rec Record) error
	Rdel(ctx context.Context, rid string) error
	Rget(ctx context.Context, rid string) (Record, bool, error)
	Rgetall(ctx context.Context) ([]Record, error)
	Close() error
}
