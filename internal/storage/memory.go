package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is a map-backed Store. A single mutex serializes all access, which
// matches the "one logical writer" semantics the engine expects.
type Memory struct {
	mu       sync.Mutex
	users    map[int64]Recipient
	notified map[string]time.Time
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[int64]Recipient{},
		notified: map[string]time.Time{},
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetRecipient(ctx context.Context, chatID int64) (Recipient, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Recipient{}, false, ErrClosed
	}
	r, ok := m.users[chatID]
	return r, ok, nil
}

func (m *Memory) SaveRecipient(ctx context.Context, r Recipient) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.users[r.ChatID] = r
	return nil
}

func (m *Memory) RecipientsBySubgroup(ctx context.Context, subgroupKey string) ([]int64, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []int64
	for id, r := range m.users {
		if r.Verified && r.SubgroupKey == subgroupKey {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) IsNotified(ctx context.Context, key string) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.notified[key]
	return ok, nil
}

func (m *Memory) MarkNotified(ctx context.Context, key string, at time.Time) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if key == "" {
		return nil
	}
	if _, ok := m.notified[key]; !ok {
		if at.IsZero() {
			at = time.Now()
		}
		m.notified[key] = at
	}
	return nil
}
