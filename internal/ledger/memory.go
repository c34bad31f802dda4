package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger. Each promotion has its own mutex so
// unrelated promotions never contend.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu    sync.Mutex
	count int
	limit *int
}

// Register declares a promotion with its limit and current count.
func (m *Memory) Register(id string, limit *int, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	var l *int
	if limit != nil {
		v := *limit
		l = &v
	}
	m.entries[id] = &entry{count: count, limit: l}
}

// Count returns the current usage count of id.
func (m *Memory) Count(id string) int {
	e := m.lookup(id)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Consume increments the usage count of promotionID when it is below the limit.
func (m *Memory) Consume(ctx context.Context, promotionID string) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	e := m.lookup(promotionID)
	if e == nil {
		err := notFound()
		record(err)
		return Usage{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.limit != nil && e.count >= *e.limit {
		err := limitReached()
		record(err)
		return Usage{}, err
	}
	e.count++
	record(nil)
	return Usage{Count: e.count, Limit: e.limit}, nil
}

func (m *Memory) lookup(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}
