// Package notify implements the periodic fetch → extract → match → dispatch
// → mark-notified cycle.
package notify

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"zapbot/internal/config"
	"zapbot/internal/schedule"
	"zapbot/internal/storage"
	kit "zapbot/internal/transport"
	"zapbot/pkg/logx"
)

// Telegram allows ~30 messages/sec bot-wide; stay under it.
const sendRatePerSec = 25

// How many deliveries may be in flight at once within one dispatch batch.
const sendConcurrency = 8

// An unresponsive chat must not hold up the rest of the batch longer than this.
const sendTimeout = 10 * time.Second

// Sender delivers one text message to one chat.
type Sender interface {
	SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error)
}

// TextSource produces the plain-text schedule document.
type TextSource interface {
	FetchText(ctx context.Context) (string, error)
	URL() string
}

// Cycle is one full notification pass. It holds no mutable state of its own;
// all idempotency lives in the store's notified-key set, so re-running a
// cycle on unchanged input dispatches nothing new.
type Cycle struct {
	settings config.Settings
	source   TextSource
	store    storage.Store
	sender   Sender
	log      logx.Logger
	limiter  *rate.Limiter

	// now is a clock hook for tests.
	now func() time.Time
}

func NewCycle(settings config.Settings, source TextSource, store storage.Store, sender Sender, log logx.Logger) *Cycle {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cycle{
		settings: settings,
		source:   source,
		store:    store,
		sender:   sender,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(sendRatePerSec), sendRatePerSec),
		now:      time.Now,
	}
}

// Run executes one cycle. A fetch failure abandons the whole run (the caller
// logs it and waits for the next tick); everything past the fetch degrades
// per-subgroup or per-recipient instead of failing the run.
func (c *Cycle) Run(ctx context.Context) error {
	text, err := c.source.FetchText(ctx)
	if err != nil {
		return err
	}

	loc := c.settings.Location
	now := c.now().In(loc)
	threshold := now.Add(c.settings.NotifyAhead)

	entries := schedule.Extract(text)
	intervals := schedule.ResolveDay(entries, now, loc)
	if len(intervals) == 0 {
		c.log.Debug("no intervals on page", logx.Int("entries", len(entries)))
		return nil
	}

	// Group by subgroup, preserving first-seen order.
	bySubgroup := map[string][]schedule.Interval{}
	var order []string
	for _, iv := range intervals {
		if _, ok := bySubgroup[iv.Subgroup]; !ok {
			order = append(order, iv.Subgroup)
		}
		bySubgroup[iv.Subgroup] = append(bySubgroup[iv.Subgroup], iv)
	}

	for _, sg := range order {
		recipients, err := c.store.RecipientsBySubgroup(ctx, sg)
		if err != nil {
			c.log.Error("recipient lookup failed", logx.String("subgroup", sg), logx.Err(err))
			continue
		}
		if len(recipients) == 0 {
			continue
		}

		for _, iv := range bySubgroup[sg] {
			if iv.Start.Before(now) || iv.Start.After(threshold) {
				continue
			}
			key := iv.Key()
			notified, err := c.store.IsNotified(ctx, key)
			if err != nil {
				c.log.Error("notified lookup failed", logx.String("key", key), logx.Err(err))
				continue
			}
			if notified {
				continue
			}

			c.dispatch(ctx, iv, recipients)

			// Mark after the batch regardless of individual delivery
			// failures: at-most-once dispatch attempt per interval.
			if err := c.store.MarkNotified(ctx, key, c.now()); err != nil {
				c.log.Error("mark notified failed", logx.String("key", key), logx.Err(err))
			}
		}
	}
	return nil
}

// dispatch fans the alert out to every recipient of the interval's subgroup.
// One recipient's failure or latency never blocks the others beyond its own
// send timeout.
func (c *Cycle) dispatch(ctx context.Context, iv schedule.Interval, recipients []int64) {
	text := c.formatAlert(iv)
	opt := &kit.SendOptions{ParseMode: "HTML"}

	var g errgroup.Group
	g.SetLimit(sendConcurrency)

	var sent, failed atomic.Int64
	for _, chatID := range recipients {
		g.Go(func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil
			}
			sctx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			if _, err := c.sender.SendText(sctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
				failed.Add(1)
				c.log.Warn("alert delivery failed",
					logx.Int64("chat_id", chatID),
					logx.String("key", iv.Key()),
					logx.Err(err))
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	c.log.Info("alert dispatched",
		logx.String("key", iv.Key()),
		logx.String("subgroup", iv.Subgroup),
		logx.Int64("sent", sent.Load()),
		logx.Int64("failed", failed.Load()))
}

func (c *Cycle) formatAlert(iv schedule.Interval) string {
	return fmt.Sprintf(
		"⚡️ <b>Увага!</b>\n"+
			"Наближається відключення для підчерги <b>%s</b>\n"+
			"Дата: %s\n"+
			"Час: %s — %s\n\n"+
			"Джерело: %s",
		iv.Subgroup,
		iv.Start.Format("02.01.2006"),
		iv.Start.Format("15:04"),
		iv.End.Format("15:04"),
		c.source.URL(),
	)
}
