package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"zapbot/internal/config"
	"zapbot/internal/storage"
	kit "zapbot/internal/transport"
	"zapbot/pkg/logx"
)

type fakeSource struct {
	text string
	err  error
}

func (s *fakeSource) FetchText(ctx context.Context) (string, error) { return s.text, s.err }
func (s *fakeSource) URL() string                                   { return "https://example.test/schedule" }

type fakeSender struct {
	mu      sync.Mutex
	sent    map[int64][]string
	failFor map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[int64][]string{}, failFor: map[int64]bool{}}
}

func (s *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[to.ChatID] {
		return kit.MessageRef{}, errors.New("chat unreachable")
	}
	s.sent[to.ChatID] = append(s.sent[to.ChatID], text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (s *fakeSender) countFor(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[chatID])
}

var testLoc = time.FixedZone("EET", 2*3600)

func testSettings() config.Settings {
	return config.Settings{
		SourceURL:    "https://example.test/schedule",
		NotifyAhead:  30 * time.Minute,
		PollInterval: 5 * time.Minute,
		FetchTimeout: 15 * time.Second,
		Location:     testLoc,
	}
}

func newCycle(t *testing.T, src *fakeSource, snd *fakeSender, now time.Time) (*Cycle, *storage.Memory) {
	t.Helper()
	st := storage.NewMemory()
	t.Cleanup(func() { st.Close() })
	c := NewCycle(testSettings(), src, st, snd, logx.Nop())
	c.now = func() time.Time { return now }
	return c, st
}

func subscribe(t *testing.T, st *storage.Memory, chatID int64, subgroup string) {
	t.Helper()
	err := st.SaveRecipient(context.Background(), storage.Recipient{
		ChatID:      chatID,
		SubgroupKey: subgroup,
		GroupID:     subgroup[:strings.IndexByte(subgroup, '.')],
		Verified:    true,
	})
	if err != nil {
		t.Fatalf("SaveRecipient: %v", err)
	}
}

func TestRunDispatchesUpcomingInterval(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 6, 45, 0, 0, testLoc)
	src := &fakeSource{text: "1.1 07:00–09:00\n1.2 10:00–12:00"}
	snd := newFakeSender()
	c, st := newCycle(t, src, snd, now)
	subscribe(t, st, 100, "1.1")
	subscribe(t, st, 200, "1.2")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := snd.countFor(100); got != 1 {
		t.Fatalf("chat 100 got %d alerts, want 1", got)
	}
	// 10:00 is beyond the 30 minute horizon.
	if got := snd.countFor(200); got != 0 {
		t.Fatalf("chat 200 got %d alerts, want 0", got)
	}

	notified, err := st.IsNotified(context.Background(), "2025-11-02_1.1_0700")
	if err != nil || !notified {
		t.Fatalf("interval not marked notified: ok=%v err=%v", notified, err)
	}

	msg := snd.sent[100][0]
	for _, want := range []string{"1.1", "02.11.2025", "07:00", "09:00", src.URL()} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert text missing %q:\n%s", want, msg)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 6, 45, 0, 0, testLoc)
	src := &fakeSource{text: "1.1 07:00–09:00"}
	snd := newFakeSender()
	c, st := newCycle(t, src, snd, now)
	subscribe(t, st, 100, "1.1")

	for i := 0; i < 3; i++ {
		if err := c.Run(context.Background()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	if got := snd.countFor(100); got != 1 {
		t.Fatalf("chat 100 got %d alerts over 3 runs, want 1", got)
	}
}

func TestRunSkipsStartedInterval(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 7, 30, 0, 0, testLoc)
	src := &fakeSource{text: "1.1 07:00–09:00"}
	snd := newFakeSender()
	c, st := newCycle(t, src, snd, now)
	subscribe(t, st, 100, "1.1")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := snd.countFor(100); got != 0 {
		t.Fatalf("alert sent for an interval already underway: %d", got)
	}
}

func TestRunFetchErrorAbandons(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 6, 45, 0, 0, testLoc)
	fetchErr := errors.New("source down")
	src := &fakeSource{err: fetchErr}
	snd := newFakeSender()
	c, st := newCycle(t, src, snd, now)
	subscribe(t, st, 100, "1.1")

	if err := c.Run(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("Run error = %v, want %v", err, fetchErr)
	}
	if got := snd.countFor(100); got != 0 {
		t.Fatalf("alerts sent despite fetch failure: %d", got)
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 6, 45, 0, 0, testLoc)
	src := &fakeSource{text: "1.1 07:00–09:00"}
	snd := newFakeSender()
	snd.failFor[200] = true
	c, st := newCycle(t, src, snd, now)
	subscribe(t, st, 100, "1.1")
	subscribe(t, st, 200, "1.1")
	subscribe(t, st, 300, "1.1")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snd.countFor(100) != 1 || snd.countFor(300) != 1 {
		t.Fatalf("healthy chats missed the alert: 100=%d 300=%d", snd.countFor(100), snd.countFor(300))
	}
	if snd.countFor(200) != 0 {
		t.Fatalf("failing chat recorded a delivery")
	}

	// The key is marked even though one delivery failed; the next run must
	// not re-dispatch to anyone.
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if snd.countFor(100) != 1 || snd.countFor(300) != 1 {
		t.Fatalf("re-dispatch after partial failure")
	}
}

func TestRunNoRecipients(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 11, 2, 6, 45, 0, 0, testLoc)
	src := &fakeSource{text: "1.1 07:00–09:00"}
	snd := newFakeSender()
	c, st := newCycle(t, src, snd, now)

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// No subscribers: nothing is dispatched and nothing is marked, so a
	// later subscriber can still be alerted by a following run.
	notified, _ := st.IsNotified(context.Background(), "2025-11-02_1.1_0700")
	if notified {
		t.Fatalf("interval marked with zero recipients")
	}
}
