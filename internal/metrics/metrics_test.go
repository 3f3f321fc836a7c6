package metrics

import (
	"testing"
	"time"
)

// TestCollectorRecording exercises every broker.Metrics method the
// Collector implements. Prometheus collectors live in a package-level
// registry that can't easily be reset between tests, so this just
// calls each recording method and makes sure nothing panics.
func TestCollectorRecording(t *testing.T) {
	c := NewCollector()

	c.RequestQueued()
	c.RequestDispatched()
	c.RequestCacheHit()
	c.RequestCacheMiss()
	c.RequestTimedOut()
	c.RequestRejected()
	c.RequestRequeued()
	c.WorkersActive(3)
	c.QueueDepth("echo", 2)
	c.DispatchDuration(5 * time.Millisecond)
}

func TestInitInfo(t *testing.T) {
	InitInfo("0.1.0", "go1.23", "linux", "amd64")
}
