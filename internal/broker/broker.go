package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"time"

	"github.com/pigato/broker/internal/cache"
	"github.com/pigato/broker/internal/persistence"
	"github.com/pigato/broker/internal/transport"
)

// Broker is the single-goroutine request/reply broker core. All of
// its state is mutated exclusively from the goroutine running Run;
// every other method documented as a broker API call is only safe to
// call from within a handler running on that goroutine.
type Broker struct {
	cfg Config

	channel     transport.Channel
	cache       cache.Cache
	persistence persistence.Controller
	metrics     Metrics

	services map[string]*Service
	workers  map[string]*Worker
	requests map[string]*Request

	inbox        chan inboundFrame
	redispatchCh chan string
	snapshotCh   chan snapshotQuery

	onError func(error)
	clock   func() int64

	lastWorkersCheck int64
}

type inboundFrame struct {
	from   []byte
	frames [][]byte
}

// New builds a Broker. channel is the frame transport (real ZMQ
// router or an in-process loopback); cacheImpl and persist may be
// nil, in which case caching is forced off and a volatile in-memory
// controller is used respectively.
func New(cfg Config, channel transport.Channel, cacheImpl cache.Cache, persist persistence.Controller) *Broker {
	if persist == nil {
		persist = persistence.NewMemory()
	}
	cfg = cfg.withDefaults()
	if cacheImpl == nil {
		cfg.Cache = false
	}
	if !cfg.Cache {
		cacheImpl = nil
	}

	return &Broker{
		cfg:          cfg,
		channel:      channel,
		cache:        cacheImpl,
		persistence:  persist,
		metrics:      noopMetrics{},
		services:     make(map[string]*Service),
		workers:      make(map[string]*Worker),
		requests:     make(map[string]*Request),
		inbox:        make(chan inboundFrame, 256),
		redispatchCh: make(chan string, 256),
		snapshotCh:   make(chan snapshotQuery),
		clock:        func() int64 { return time.Now().UnixMilli() },
	}
}

// SetMetrics installs a metrics sink. Must be called before Run.
func (b *Broker) SetMetrics(m Metrics) {
	if m != nil {
		b.metrics = m
	}
}

// OnError registers a hook invoked for unexpected conditions (spec
// §7's "error event"). Routine protocol violations are logged at
// debug level only and do not reach this hook.
func (b *Broker) OnError(fn func(error)) {
	b.onError = fn
}

func (b *Broker) reportError(err error) {
	if b.onError != nil {
		b.onError(err)
	}
}

func (b *Broker) now() int64 { return b.clock() }

// Restore repopulates service queues from whatever the configured
// persistence controller retained, per §4.6: rgetall() is consulted
// once at startup. Call before Run.
func (b *Broker) Restore(ctx context.Context) error {
	records, err := b.persistence.Rgetall(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		req := &Request{
			RID:       rec.RID,
			Service:   rec.Service,
			ClientID:  rec.ClientID,
			Rejects:   make(map[string]struct{}),
			TS:        rec.TS,
			TimeoutMS: rec.TimeoutMS,
			Retry:     rec.Retry,
			Persist:   true,
			Payload:   [][]byte{rec.Payload, rec.Opts},
		}
		b.service(req.Service).pushQueue(req)
	}
	return nil
}

// Run drives the event loop until ctx is canceled. It owns all
// broker state for its entire lifetime; nothing else may touch it
// concurrently.
func (b *Broker) Run(ctx context.Context) error {
	go b.readLoop(ctx)

	ticker := time.NewTicker(time.Duration(b.cfg.HeartbeatMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-b.inbox:
			b.handleFrame(msg.from, msg.frames)

		case name := <-b.redispatchCh:
			b.dispatch(name, ModeRand)

		case <-ticker.C:
			b.heartbeatTick()

		case q := <-b.snapshotCh:
			q.reply <- b.buildSnapshot()
		}
	}
}

func (b *Broker) readLoop(ctx context.Context) {
	for {
		from, frames, err := b.channel.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("broker: transport recv error: %v", err)
			b.reportError(err)
			continue
		}
		select {
		case b.inbox <- inboundFrame{from: from, frames: frames}:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) scheduleRedispatch(serviceName string) {
	select {
	case b.redispatchCh <- serviceName:
	default:
		// the redispatch buffer is full; this re-entry is dropped and the
		// requeued request waits for the next dispatch of its service.
	}
}

func (b *Broker) sendWorker(workerID string, frames [][]byte) {
	if err := b.channel.Send(context.Background(), []byte(workerID), frames); err != nil {
		log.Printf("broker: send to worker %s failed: %v", workerID, err)
	}
}

func (b *Broker) sendClient(clientID string, frames [][]byte) {
	if err := b.channel.Send(context.Background(), []byte(clientID), frames); err != nil {
		log.Printf("broker: send to client %s failed: %v", clientID, err)
	}
}

func (b *Broker) persistSet(req *Request) {
	var payload, opts []byte
	if len(req.Payload) > 0 {
		payload = req.Payload[0]
	}
	if len(req.Payload) > 1 {
		opts = req.Payload[1]
	}
	rec := persistence.Record{
		RID:       req.RID,
		Service:   req.Service,
		ClientID:  req.ClientID,
		Payload:   payload,
		Opts:      opts,
		TS:        req.TS,
		TimeoutMS: req.TimeoutMS,
		Retry:     req.Retry,
	}
	if err := b.persistence.Rset(context.Background(), rec); err != nil {
		log.Printf("broker: persist rset %s failed: %v", req.RID, err)
	}
}

func (b *Broker) persistDelete(rid string) {
	if err := b.persistence.Rdel(context.Background(), rid); err != nil {
		log.Printf("broker: persist rdel %s failed: %v", rid, err)
	}
}

// fingerprint implements §3's cache hash: service name concatenated
// with a cryptographic digest of the payload.
func fingerprint(service string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return service + ":" + hex.EncodeToString(sum[:])
}
