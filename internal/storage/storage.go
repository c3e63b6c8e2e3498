// Package storage persists subscriptions and the notified-interval set.
//
// Two drivers:
//   - "sqlite": SQLite database file (production)
//   - "memory": in-process map store (tests, throwaway runs)
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"zapbot/pkg/logx"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Recipient is one registered chat. The zero SubgroupKey means the chat is
// known but has no subscription yet.
type Recipient struct {
	ChatID      int64
	DisplayName string
	GroupID     string
	SubgroupKey string
	Verified    bool
}

// Store is the persistence API consumed by the engine.
//
// MarkNotified is an idempotent upsert: once a key is marked it stays marked,
// and re-marking is observationally a no-op.
type Store interface {
	GetRecipient(ctx context.Context, chatID int64) (Recipient, bool, error)
	SaveRecipient(ctx context.Context, r Recipient) error
	RecipientsBySubgroup(ctx context.Context, subgroupKey string) ([]int64, error)

	IsNotified(ctx context.Context, key string) (bool, error)
	MarkNotified(ctx context.Context, key string, at time.Time) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
