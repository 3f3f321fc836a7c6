package cache

import (
	"sync"
	"time"

	"github.com/pigato/broker/pkg/protocolbuf"
)

const (
	shardCount         = 16
	expireScanInterval = 100 * time.Millisecond
	expireScanCount    = 20
	expireThreshold    = 0.25
)

type entry struct {
	payload  []byte
	expireAt int64 // unix ms, -1 means no expiry
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// Memory is the default response cache: a sharded in-memory map with
// lazy expiry on lookup and a background sweep that evicts expired
// entries proactively.
type Memory struct {
	shards [shardCount]*shard

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMemory creates an in-memory cache and starts its active-expire
// loop.
func NewMemory() *Memory {
	m := &Memory{stopCh: make(chan struct{})}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string]entry)}
	}
	m.wg.Add(1)
	go m.activeExpireLoop()
	return m
}

func (m *Memory) shardFor(hash string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(hash); i++ {
		h ^= uint32(hash[i])
		h *= 16777619
	}
	return m.shards[h%shardCount]
}

func (m *Memory) Get(hash string) ([]byte, bool) {
	s := m.shardFor(hash)
	s.mu.RLock()
	e, ok := s.entries[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expireAt >= 0 && time.Now().UnixMilli() > e.expireAt {
		s.mu.Lock()
		delete(s.entries, hash)
		s.mu.Unlock()
		protocolbuf.PutSlice(e.payload)
		return nil, false
	}
	// the pooled buffer stays owned by the shard map; callers get a copy.
	return append([]byte(nil), e.payload...), true
}

// Set copies payload into a pooled buffer owned by the shard map. The
// buffer returns to the pool when the entry is dropped: on expiry
// (lazily in Get or by sweepShard) or on overwrite. An entry stored
// without a TTL keeps its buffer until it is overwritten.
func (m *Memory) Set(hash string, payload []byte, ttlMS int64) {
	expireAt := int64(-1)
	if ttlMS >= 0 {
		expireAt = time.Now().UnixMilli() + ttlMS
	}

	buf := protocolbuf.GetSlice(len(payload))
	copy(buf, payload)

	s := m.shardFor(hash)
	s.mu.Lock()
	if old, ok := s.entries[hash]; ok {
		protocolbuf.PutSlice(old.payload)
	}
	s.entries[hash] = entry{payload: buf, expireAt: expireAt}
	s.mu.Unlock()
}

func (m *Memory) Close() error {
	close(m.stopCh)
	m.wg.Wait()
	return nil
}

func (m *Memory) activeExpireLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(expireScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			for _, s := range m.shards {
				m.sweepShard(s)
			}
		}
	}
}

// sweepShard repeatedly samples and evicts expired entries from s,
// continuing while the expired fraction of each sample stays above
// expireThreshold, then stops — an adaptive-stop rule that keeps the
// sweep from scanning a mostly-live shard to exhaustion.
func (m *Memory) sweepShard(s *shard) {
	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			return
		}
		now := time.Now().UnixMilli()
		sampled, expired := 0, 0
		for hash, e := range s.entries {
			if sampled >= expireScanCount {
				break
			}
			sampled++
			if e.expireAt >= 0 && now > e.expireAt {
				delete(s.entries, hash)
				protocolbuf.PutSlice(e.payload)
				expired++
			}
		}
		s.mu.Unlock()

		if sampled == 0 || float64(expired)/float64(sampled) < expireThreshold {
			return
		}
	}
}
