package bot

import (
	"context"
	"errors"
	"strings"

	"zapbot/internal/register"
	"zapbot/internal/schedule"
	kit "zapbot/internal/transport"
	"zapbot/pkg/logx"
)

func (r *Router) handleMessage(ctx context.Context, m *kit.Message) {
	text := strings.TrimSpace(m.Text)
	name := displayName(m.FromUsername, m.FromFullName, m.ChatID)

	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		// "/register@zap_bot 1.1" -> "/register"
		cmd := strings.SplitN(fields[0], "@", 2)[0]
		args := fields[1:]
		r.handleCommand(ctx, m.ChatID, name, cmd, args)
		return
	}

	// A bare text message right after the Register prompt is the subgroup.
	if r.takeAwaiting(m.ChatID) {
		if text == "" {
			r.reply(ctx, m.ChatID, msgEmptyInput, nil)
			return
		}
		r.doRegister(ctx, m.ChatID, name, text)
		return
	}

	r.reply(ctx, m.ChatID, msgUseMenu, mainMenu())
}

func (r *Router) handleCommand(ctx context.Context, chatID int64, name, cmd string, args []string) {
	switch cmd {
	case "/start":
		r.reply(ctx, chatID, startText(r.settings.QueueInfoURL), mainMenu())
	case "/menu", "/cancel":
		r.setAwaiting(chatID, false)
		r.reply(ctx, chatID, msgMainMenu, mainMenu())
	case "/register":
		if len(args) == 0 {
			r.reply(ctx, chatID, registerUsageText(r.settings.QueueInfoURL), nil)
			return
		}
		r.doRegister(ctx, chatID, name, strings.Join(args, " "))
	case "/getgroup":
		r.doGetGroup(ctx, chatID)
	case "/next":
		r.doNext(ctx, chatID)
	default:
		r.reply(ctx, chatID, msgUseMenu, mainMenu())
	}
}

func (r *Router) handleCallback(ctx context.Context, cb *kit.Callback) {
	// Ack first so the button stops spinning even if the action is slow.
	if err := r.adapter.AnswerCallback(ctx, cb.ID, ""); err != nil {
		r.log.Debug("callback ack failed", logx.Err(err))
	}

	name := displayName(cb.FromUsername, cb.FromFullName, cb.ChatID)

	switch cb.Data {
	case cbRegister:
		r.setAwaiting(cb.ChatID, true)
		r.reply(ctx, cb.ChatID, registerPromptText(r.settings.QueueInfoURL), backMenu())
	case cbBack:
		r.setAwaiting(cb.ChatID, false)
		r.reply(ctx, cb.ChatID, msgBackToMenu, mainMenu())
	case cbGetGroup:
		r.doGetGroup(ctx, cb.ChatID)
	case cbNext:
		r.doNext(ctx, cb.ChatID)
	case cbReregYes:
		r.doConfirm(ctx, cb.ChatID, name)
	case cbReregNo:
		r.doCancelPending(ctx, cb.ChatID)
	default:
		r.reply(ctx, cb.ChatID, msgUnknownAction, nil)
	}
}

func (r *Router) doRegister(ctx context.Context, chatID int64, name, raw string) {
	res, err := r.reg.Register(ctx, chatID, name, raw)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidFormat) {
			r.reply(ctx, chatID, msgBadFormat, nil)
			return
		}
		r.log.Error("register failed", logx.Int64("chat_id", chatID), logx.Err(err))
		r.reply(ctx, chatID, msgSaveFailed, nil)
		return
	}

	switch res.Status {
	case register.StatusPendingConfirm:
		r.reply(ctx, chatID, confirmChangeText(res.OldKey, res.Key), confirmReregMenu())
	default:
		r.reply(ctx, chatID, registeredText(res.Key), nil)
		r.reply(ctx, chatID, msgBackToMenu, mainMenu())
	}
}

func (r *Router) doConfirm(ctx context.Context, chatID int64, name string) {
	res, err := r.reg.Confirm(ctx, chatID, name)
	if err != nil {
		r.log.Error("confirm failed", logx.Int64("chat_id", chatID), logx.Err(err))
		r.reply(ctx, chatID, msgSaveFailed, nil)
		return
	}
	if res.Status == register.StatusNothingPending {
		r.reply(ctx, chatID, msgNothingPending, mainMenu())
		return
	}
	r.reply(ctx, chatID, changedText(res.Key), mainMenu())
}

func (r *Router) doCancelPending(ctx context.Context, chatID int64) {
	res := r.reg.Cancel(chatID)
	if res.Status == register.StatusNothingPending {
		r.reply(ctx, chatID, msgCancelNoPend, mainMenu())
		return
	}
	r.reply(ctx, chatID, msgUnchanged, mainMenu())
}

func (r *Router) doGetGroup(ctx context.Context, chatID int64) {
	rec, found, err := r.reg.Lookup(ctx, chatID)
	if err != nil {
		r.log.Error("lookup failed", logx.Int64("chat_id", chatID), logx.Err(err))
		r.reply(ctx, chatID, msgSaveFailed, nil)
		return
	}
	switch {
	case !found:
		r.reply(ctx, chatID, msgNotRegistered, nil)
	case rec.SubgroupKey == "":
		r.reply(ctx, chatID, msgNoSubgroup, nil)
	default:
		r.reply(ctx, chatID, mySubgroupText(rec.SubgroupKey), nil)
	}
}

func (r *Router) doNext(ctx context.Context, chatID int64) {
	rec, found, err := r.reg.Lookup(ctx, chatID)
	if err != nil {
		r.log.Error("lookup failed", logx.Int64("chat_id", chatID), logx.Err(err))
		r.reply(ctx, chatID, msgSaveFailed, nil)
		return
	}
	if !found || rec.SubgroupKey == "" {
		r.reply(ctx, chatID, msgNoSubgroupNext, nil)
		return
	}

	res, err := r.res.Next(ctx, rec.SubgroupKey, rec.GroupID)
	if err != nil {
		r.log.Error("next lookup failed",
			logx.Int64("chat_id", chatID),
			logx.String("subgroup", rec.SubgroupKey),
			logx.Err(err))
		r.reply(ctx, chatID, msgFetchFailed, nil)
		return
	}

	groupID := rec.GroupID
	if groupID == "" {
		groupID = schedule.GroupOf(rec.SubgroupKey)
	}
	r.reply(ctx, chatID, nextText(rec.SubgroupKey, groupID, res), nil)
}
