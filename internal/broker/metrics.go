package broker

import "time"

// Metrics is the narrow observability sink the broker reports to.
// internal/metrics provides a Prometheus-backed implementation;
// tests and embedders that don't care about metrics use noopMetrics.
type Metrics interface {
	RequestQueued()
	RequestDispatched()
	RequestCacheHit()
	RequestCacheMiss()
	RequestTimedOut()
	RequestRejected()
	RequestRequeued()
	WorkersActive(n int)
	QueueDepth(service string, n int)
	DispatchDuration(d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RequestQueued()                 {}
func (noopMetrics) RequestDispatched()             {}
func (noopMetrics) RequestCacheHit()               {}
func (noopMetrics) RequestCacheMiss()              {}
func (noopMetrics) RequestTimedOut()               {}
func (noopMetrics) RequestRejected()               {}
func (noopMetrics) RequestRequeued()               {}
func (noopMetrics) WorkersActive(int)              {}
func (noopMetrics) QueueDepth(string, int)         {}
func (noopMetrics) DispatchDuration(time.Duration) {}

func (b *Broker) metricDispatched() { b.metrics.RequestDispatched() }
func (b *Broker) metricCacheHit()   { b.metrics.RequestCacheHit() }
func (b *Broker) metricCacheMiss()  { b.metrics.RequestCacheMiss() }
func (b *Broker) metricQueued()     { b.metrics.RequestQueued() }
func (b *Broker) metricTimedOut()   { b.metrics.RequestTimedOut() }
func (b *Broker) metricRejected()   { b.metrics.RequestRejected() }
func (b *Broker) metricRequeued()   { b.metrics.RequestRequeued() }

// metricDispatchDuration reports the time elapsed between a request's
// enqueue (req.TS) and the moment it is handed to a worker in assign().
func (b *Broker) metricDispatchDuration(req *Request) {
	elapsedMS := b.now() - req.TS
	if elapsedMS < 0 {
		elapsedMS = 0
	}
	b.metrics.DispatchDuration(time.Duration(elapsedMS) * time.Millisecond)
}
