package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"zapbot/internal/config"
	"zapbot/internal/register"
	"zapbot/internal/resolver"
	"zapbot/internal/storage"
	kit "zapbot/internal/transport"
	"zapbot/pkg/logx"
)

type fakeAdapter struct {
	mu    sync.Mutex
	texts []string
	acks  []string
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(a.texts)}, nil
}

func (a *fakeAdapter) AnswerCallback(ctx context.Context, callbackID, text string) error {
	a.mu.Lock()
	a.acks = append(a.acks, callbackID)
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) lastText(t *testing.T) string {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.texts) == 0 {
		t.Fatal("no messages were sent")
	}
	return a.texts[len(a.texts)-1]
}

type staticSource struct{ text string }

func (s *staticSource) FetchText(ctx context.Context) (string, error) { return s.text, nil }

func newRouter(t *testing.T, pageText string) (*Router, *fakeAdapter, *storage.Memory) {
	t.Helper()
	st := storage.NewMemory()
	t.Cleanup(func() { st.Close() })
	ad := &fakeAdapter{}
	reg := register.New(st, logx.Nop())
	res := resolver.New(&staticSource{text: pageText}, logx.Nop())
	settings := config.Settings{QueueInfoURL: "https://example.test/queues"}
	return New(ad, reg, res, settings, logx.Nop()), ad, st
}

func msg(chatID int64, text string) *kit.Message {
	return &kit.Message{ChatID: chatID, FromID: chatID, FromUsername: "oksana", Text: text}
}

func cb(chatID int64, data string) *kit.Callback {
	return &kit.Callback{ID: "cb1", ChatID: chatID, FromID: chatID, FromUsername: "oksana", Data: data}
}

func TestRegisterCommand(t *testing.T) {
	t.Parallel()
	r, ad, st := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register 1.2"))

	rec, ok, _ := st.GetRecipient(ctx, 100)
	if !ok || rec.SubgroupKey != "1.2" {
		t.Fatalf("recipient after /register: ok=%v %+v", ok, rec)
	}
	found := false
	for _, txt := range ad.texts {
		if strings.Contains(txt, "1.2") {
			found = true
		}
	}
	if !found {
		t.Fatalf("confirmation not sent: %v", ad.texts)
	}
}

func TestRegisterCommandBotSuffix(t *testing.T) {
	t.Parallel()
	r, _, st := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register@zap_bot 2.1"))

	rec, ok, _ := st.GetRecipient(ctx, 100)
	if !ok || rec.SubgroupKey != "2.1" {
		t.Fatalf("recipient: ok=%v %+v", ok, rec)
	}
}

func TestRegisterBadFormat(t *testing.T) {
	t.Parallel()
	r, ad, st := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register abc"))

	if _, ok, _ := st.GetRecipient(ctx, 100); ok {
		t.Fatal("recipient saved from malformed input")
	}
	if got := ad.lastText(t); got != msgBadFormat {
		t.Fatalf("reply = %q, want bad-format message", got)
	}
}

func TestAwaitingFlow(t *testing.T) {
	t.Parallel()
	r, ad, st := newRouter(t, "")
	ctx := context.Background()

	// Pressing Register arms the awaiting state; next bare text registers.
	r.handleCallback(ctx, cb(100, cbRegister))
	if got := ad.lastText(t); !strings.Contains(got, "підчергу") {
		t.Fatalf("prompt = %q", got)
	}
	r.handleMessage(ctx, msg(100, "1.1"))

	rec, ok, _ := st.GetRecipient(ctx, 100)
	if !ok || rec.SubgroupKey != "1.1" {
		t.Fatalf("recipient: ok=%v %+v", ok, rec)
	}

	// The state is one-shot: another bare text is just a menu hint.
	r.handleMessage(ctx, msg(100, "hello"))
	if got := ad.lastText(t); got != msgUseMenu {
		t.Fatalf("reply after consumed state = %q", got)
	}
}

func TestBackCallbackDisarmsAwaiting(t *testing.T) {
	t.Parallel()
	r, _, st := newRouter(t, "")
	ctx := context.Background()

	r.handleCallback(ctx, cb(100, cbRegister))
	r.handleCallback(ctx, cb(100, cbBack))
	r.handleMessage(ctx, msg(100, "1.1"))

	if _, ok, _ := st.GetRecipient(ctx, 100); ok {
		t.Fatal("registered after Back cancelled the prompt")
	}
}

func TestReregisterConfirmFlow(t *testing.T) {
	t.Parallel()
	r, ad, st := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register 1.2"))
	r.handleMessage(ctx, msg(100, "/register 2.1"))
	if got := ad.lastText(t); !strings.Contains(got, "1.2") || !strings.Contains(got, "2.1") {
		t.Fatalf("confirm prompt = %q", got)
	}

	r.handleCallback(ctx, cb(100, cbReregYes))
	rec, _, _ := st.GetRecipient(ctx, 100)
	if rec.SubgroupKey != "2.1" {
		t.Fatalf("after confirm: %+v", rec)
	}

	// Stale confirm press after the pending entry is consumed.
	r.handleCallback(ctx, cb(100, cbReregYes))
	if got := ad.lastText(t); got != msgNothingPending {
		t.Fatalf("stale confirm reply = %q", got)
	}
}

func TestReregisterCancelFlow(t *testing.T) {
	t.Parallel()
	r, ad, st := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register 1.2"))
	r.handleMessage(ctx, msg(100, "/register 3.3"))

	r.handleCallback(ctx, cb(100, cbReregNo))
	if got := ad.lastText(t); got != msgUnchanged {
		t.Fatalf("cancel reply = %q", got)
	}
	rec, _, _ := st.GetRecipient(ctx, 100)
	if rec.SubgroupKey != "1.2" {
		t.Fatalf("subscription changed by cancel: %+v", rec)
	}

	r.handleCallback(ctx, cb(100, cbReregNo))
	if got := ad.lastText(t); got != msgCancelNoPend {
		t.Fatalf("second cancel reply = %q", got)
	}
}

func TestGetGroup(t *testing.T) {
	t.Parallel()
	r, ad, _ := newRouter(t, "")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/getgroup"))
	if got := ad.lastText(t); got != msgNotRegistered {
		t.Fatalf("unregistered /getgroup reply = %q", got)
	}

	r.handleMessage(ctx, msg(100, "/register 1.2"))
	r.handleMessage(ctx, msg(100, "/getgroup"))
	if got := ad.lastText(t); !strings.Contains(got, "1.2") {
		t.Fatalf("/getgroup reply = %q", got)
	}
}

func TestNextExact(t *testing.T) {
	t.Parallel()
	r, ad, _ := newRouter(t, "1.2 07:00–09:00")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register 1.2"))
	r.handleMessage(ctx, msg(100, "/next"))
	got := ad.lastText(t)
	for _, want := range []string{"1.2", "07:00", "09:00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("/next reply missing %q: %q", want, got)
		}
	}
}

func TestNextGroupFallback(t *testing.T) {
	t.Parallel()
	r, ad, _ := newRouter(t, "1.2 07:00–09:00")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/register 1.1"))
	r.handleMessage(ctx, msg(100, "/next"))
	got := ad.lastText(t)
	if !strings.Contains(got, "черги 1") || !strings.Contains(got, "1.2") {
		t.Fatalf("/next group-fallback reply = %q", got)
	}
}

func TestNextWithoutSubscription(t *testing.T) {
	t.Parallel()
	r, ad, _ := newRouter(t, "1.2 07:00–09:00")
	ctx := context.Background()

	r.handleMessage(ctx, msg(100, "/next"))
	if got := ad.lastText(t); got != msgNoSubgroupNext {
		t.Fatalf("/next without subscription reply = %q", got)
	}
}

func TestCallbackAlwaysAcked(t *testing.T) {
	t.Parallel()
	r, ad, _ := newRouter(t, "")
	ctx := context.Background()

	r.handleCallback(ctx, cb(100, "bogus:action"))
	if len(ad.acks) != 1 || ad.acks[0] != "cb1" {
		t.Fatalf("acks = %v", ad.acks)
	}
	if got := ad.lastText(t); got != msgUnknownAction {
		t.Fatalf("unknown action reply = %q", got)
	}
}
