// Package register implements the subscription state machine: first-time
// registration is immediate, re-registration goes through an ephemeral
// confirm/cancel step so a typo cannot silently overwrite a subscription.
package register

import (
	"context"
	"fmt"
	"sync"

	"zapbot/internal/schedule"
	"zapbot/internal/storage"
	"zapbot/pkg/logx"
)

type Status int

const (
	// StatusRegistered: recipient had no subscription; the key was persisted.
	StatusRegistered Status = iota
	// StatusPendingConfirm: recipient already has a subscription; the
	// proposed key is parked until Confirm or Cancel.
	StatusPendingConfirm
	// StatusConfirmed: the pending key was persisted as the new subscription.
	StatusConfirmed
	// StatusCancelled: a pending proposal existed and was discarded.
	StatusCancelled
	// StatusNothingPending: Confirm/Cancel arrived with no pending proposal
	// (stale button press). Surfaced to the user, never an error.
	StatusNothingPending
)

type Result struct {
	Status Status
	Key    string // the key the status refers to (new/proposed), if any
	OldKey string // previous subscription on StatusPendingConfirm
}

// Manager owns the pending-proposal table. Durable recipient state lives
// only in the store; the manager holds no copy across calls.
type Manager struct {
	store storage.Store
	log   logx.Logger

	mu      sync.Mutex
	pending map[int64]string // chat id -> proposed canonical key
}

func New(store storage.Store, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		store:   store,
		log:     log,
		pending: map[int64]string{},
	}
}

// Register parses raw input into a canonical subgroup key and either
// persists it (fresh registration) or parks it pending confirmation
// (the recipient already has a subscription, even an identical one).
// Returns schedule.ErrInvalidFormat for malformed input.
func (m *Manager) Register(ctx context.Context, chatID int64, displayName, raw string) (Result, error) {
	canonical, err := schedule.FormatSubgroup(raw)
	if err != nil {
		return Result{}, err
	}

	rec, found, err := m.store.GetRecipient(ctx, chatID)
	if err != nil {
		return Result{}, fmt.Errorf("register: %w", err)
	}

	if found && rec.SubgroupKey != "" {
		m.setPending(chatID, canonical)
		m.log.Debug("re-registration pending",
			logx.Int64("chat_id", chatID),
			logx.String("old", rec.SubgroupKey),
			logx.String("proposed", canonical))
		return Result{Status: StatusPendingConfirm, Key: canonical, OldKey: rec.SubgroupKey}, nil
	}

	if err := m.save(ctx, chatID, displayName, canonical); err != nil {
		return Result{}, err
	}
	m.log.Info("recipient registered",
		logx.Int64("chat_id", chatID),
		logx.String("subgroup", canonical))
	return Result{Status: StatusRegistered, Key: canonical}, nil
}

// Confirm applies the pending proposal, overwriting the stored subscription.
// With no pending proposal it reports StatusNothingPending.
func (m *Manager) Confirm(ctx context.Context, chatID int64, displayName string) (Result, error) {
	key, ok := m.takePending(chatID)
	if !ok {
		return Result{Status: StatusNothingPending}, nil
	}
	if err := m.save(ctx, chatID, displayName, key); err != nil {
		// Put the proposal back so the user can retry the button.
		m.setPending(chatID, key)
		return Result{}, err
	}
	m.log.Info("subscription changed",
		logx.Int64("chat_id", chatID),
		logx.String("subgroup", key))
	return Result{Status: StatusConfirmed, Key: key}, nil
}

// Cancel discards the pending proposal, if any. Idempotent.
func (m *Manager) Cancel(chatID int64) Result {
	if _, ok := m.takePending(chatID); !ok {
		return Result{Status: StatusNothingPending}
	}
	return Result{Status: StatusCancelled}
}

// Lookup returns the recipient's durable state.
func (m *Manager) Lookup(ctx context.Context, chatID int64) (storage.Recipient, bool, error) {
	return m.store.GetRecipient(ctx, chatID)
}

func (m *Manager) save(ctx context.Context, chatID int64, displayName, key string) error {
	err := m.store.SaveRecipient(ctx, storage.Recipient{
		ChatID:      chatID,
		DisplayName: displayName,
		GroupID:     schedule.GroupOf(key),
		SubgroupKey: key,
		Verified:    true,
	})
	if err != nil {
		return fmt.Errorf("save recipient: %w", err)
	}
	return nil
}

func (m *Manager) setPending(chatID int64, key string) {
	m.mu.Lock()
	m.pending[chatID] = key
	m.mu.Unlock()
}

func (m *Manager) takePending(chatID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.pending[chatID]
	if ok {
		delete(m.pending, chatID)
	}
	return key, ok
}
