package bot

import (
	tele "gopkg.in/telebot.v4"

	"zapbot/pkg/tgui"
)

// Callback data, "scope:action" form.
const (
	cbRegister = "menu:register"
	cbGetGroup = "menu:getgroup"
	cbNext     = "menu:next"
	cbBack     = "menu:back"
	cbReregYes = "rereg:yes"
	cbReregNo  = "rereg:no"
)

func mainMenu() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("🔔 Зареєструватися", cbRegister)).
		Row(
			tgui.Btn("ℹ️ Моя підчерга", cbGetGroup),
			tgui.Btn("➡️ Наступне", cbNext),
		).
		Markup()
}

func backMenu() *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("🔙 Назад", cbBack)).Markup()
}

func confirmReregMenu() *tele.ReplyMarkup {
	return tgui.ConfirmInline(
		tgui.Btn("✅ Так, змінити підчергу", cbReregYes),
		tgui.Btn("❌ Ні, залишити як є", cbReregNo),
	).Markup()
}
