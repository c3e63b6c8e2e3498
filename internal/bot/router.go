// Package bot is the Telegram front-end: it turns transport updates into
// registration, lookup and query actions, and renders the results back as
// messages. All engine state lives elsewhere; the router only tracks which
// chats are currently expected to type a subgroup.
package bot

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"zapbot/internal/config"
	"zapbot/internal/register"
	"zapbot/internal/resolver"
	kit "zapbot/internal/transport"
	"zapbot/pkg/logx"
)

// A stuck handler (slow fetch, slow Telegram) gets cut off here.
const handlerTimeout = 30 * time.Second

type Router struct {
	adapter  kit.Adapter
	reg      *register.Manager
	res      *resolver.Resolver
	settings config.Settings
	log      logx.Logger

	// awaiting marks chats whose next plain-text message is a subgroup
	// (the user pressed "Register" and was prompted for input).
	mu       sync.Mutex
	awaiting map[int64]bool
}

func New(adapter kit.Adapter, reg *register.Manager, res *resolver.Resolver, settings config.Settings, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter:  adapter,
		reg:      reg,
		res:      res,
		settings: settings,
		log:      log,
		awaiting: map[int64]bool{},
	}
}

// Run consumes updates until ctx is cancelled. Each update is handled in its
// own goroutine so a slow /next fetch cannot block registrations.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			go r.handle(ctx, up)
		}
	}
}

func (r *Router) handle(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panicked",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(hctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.handleCallback(hctx, up.Callback)
		}
	}
}

func (r *Router) setAwaiting(chatID int64, v bool) {
	r.mu.Lock()
	if v {
		r.awaiting[chatID] = true
	} else {
		delete(r.awaiting, chatID)
	}
	r.mu.Unlock()
}

func (r *Router) takeAwaiting(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.awaiting[chatID] {
		delete(r.awaiting, chatID)
		return true
	}
	return false
}

// displayName picks a human-readable name for storage: username, full name,
// then the chat id as a last resort.
func displayName(username, fullName string, chatID int64) string {
	if username != "" {
		return username
	}
	if fullName != "" {
		return fullName
	}
	return strconv.FormatInt(chatID, 10)
}

// reply sends HTML-formatted text to one chat; delivery failures are logged,
// never propagated (the update is already consumed).
func (r *Router) reply(ctx context.Context, chatID int64, text string, markup any) {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: false}
	if markup != nil {
		opt.ReplyMarkupAdapter = markup
	}
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
