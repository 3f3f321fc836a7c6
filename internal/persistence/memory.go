package persistence

import (
	"context"
	"sync"
)

// Memory is the default persistence controller: a process-local map,
// lost on restart. Useful when durability is not required or for
// tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Rset(ctx context.Context, rec Record) error {
	m.mu.Lock()
	m.records[rec.RID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Rdel(ctx context.Context, rid string) error {
	m.mu.Lock()
	delete(m.records, rid)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Rget(ctx context.Context, rid string) (Record, bool, error) {
	m.mu.RLock()
	rec, ok := m.records[rid]
	m.mu.RUnlock()
	return rec, ok, nil
}

func (m *Memory) Rgetall(ctx context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
