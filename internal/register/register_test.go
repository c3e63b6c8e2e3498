package register

import (
	"context"
	"errors"
	"testing"

	"zapbot/internal/schedule"
	"zapbot/internal/storage"
	"zapbot/pkg/logx"
)

func newManager(t *testing.T) (*Manager, *storage.Memory) {
	t.Helper()
	st := storage.NewMemory()
	t.Cleanup(func() { st.Close() })
	return New(st, logx.Nop()), st
}

func TestRegisterFresh(t *testing.T) {
	t.Parallel()
	m, st := newManager(t)
	ctx := context.Background()

	res, err := m.Register(ctx, 100, "oksana", " 1 . 2 ")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Status != StatusRegistered || res.Key != "1.2" {
		t.Fatalf("Register = %+v, want Registered 1.2", res)
	}

	rec, ok, err := st.GetRecipient(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("GetRecipient: ok=%v err=%v", ok, err)
	}
	if rec.SubgroupKey != "1.2" || rec.GroupID != "1" || !rec.Verified {
		t.Fatalf("stored recipient = %+v", rec)
	}
}

func TestRegisterInvalidFormat(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)

	_, err := m.Register(context.Background(), 100, "oksana", "abc")
	if !errors.Is(err, schedule.ErrInvalidFormat) {
		t.Fatalf("Register(abc) error = %v, want ErrInvalidFormat", err)
	}
}

func TestReregisterConfirm(t *testing.T) {
	t.Parallel()
	m, st := newManager(t)
	ctx := context.Background()

	if _, err := m.Register(ctx, 100, "oksana", "1.2"); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	res, err := m.Register(ctx, 100, "oksana", "2.1")
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if res.Status != StatusPendingConfirm || res.Key != "2.1" || res.OldKey != "1.2" {
		t.Fatalf("second Register = %+v, want PendingConfirm 2.1 (old 1.2)", res)
	}

	// The proposal is not durable until confirmed.
	rec, _, _ := st.GetRecipient(ctx, 100)
	if rec.SubgroupKey != "1.2" {
		t.Fatalf("subscription changed before confirm: %+v", rec)
	}

	res, err = m.Confirm(ctx, 100, "oksana")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.Status != StatusConfirmed || res.Key != "2.1" {
		t.Fatalf("Confirm = %+v, want Confirmed 2.1", res)
	}
	rec, _, _ = st.GetRecipient(ctx, 100)
	if rec.SubgroupKey != "2.1" || rec.GroupID != "2" {
		t.Fatalf("stored recipient after confirm = %+v", rec)
	}
}

func TestReregisterSameKeyStillConfirms(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.Register(ctx, 100, "oksana", "1.2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := m.Register(ctx, 100, "oksana", "1.2")
	if err != nil {
		t.Fatalf("repeat Register: %v", err)
	}
	if res.Status != StatusPendingConfirm {
		t.Fatalf("repeat Register with identical key = %+v, want PendingConfirm", res)
	}
}

func TestCancelSequence(t *testing.T) {
	t.Parallel()
	m, st := newManager(t)
	ctx := context.Background()

	if _, err := m.Register(ctx, 100, "oksana", "1.2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := m.Register(ctx, 100, "oksana", "3.3"); err != nil {
		t.Fatalf("re-Register: %v", err)
	}

	if res := m.Cancel(100); res.Status != StatusCancelled {
		t.Fatalf("first Cancel = %+v, want Cancelled", res)
	}
	if res := m.Cancel(100); res.Status != StatusNothingPending {
		t.Fatalf("second Cancel = %+v, want NothingPending", res)
	}

	rec, _, _ := st.GetRecipient(ctx, 100)
	if rec.SubgroupKey != "1.2" {
		t.Fatalf("cancel changed subscription: %+v", rec)
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)

	res, err := m.Confirm(context.Background(), 100, "oksana")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if res.Status != StatusNothingPending {
		t.Fatalf("Confirm with no pending = %+v, want NothingPending", res)
	}
}
