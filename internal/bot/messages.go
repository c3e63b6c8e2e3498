package bot

import (
	"fmt"
	"strings"

	"zapbot/internal/resolver"
)

// User-facing texts. The bot speaks Ukrainian to its audience; keep all
// copy in one place so the handlers stay readable.

func startText(queueInfoURL string) string {
	return "Привіт! Я надсилатиму повідомлення про заплановані відключення.\n\n" +
		"1️⃣ Дізнайтесь свою чергу та підчергу тут:\n" +
		queueInfoURL + "\n\n" +
		"2️⃣ Потім поверніться сюди та введіть свою підчергу у форматі <b>1.1</b>, <b>2.3</b> тощо."
}

func registerPromptText(queueInfoURL string) string {
	return "Щоб отримувати сповіщення, введіть свою <b>підчергу</b> у форматі <b>1.1</b>, <b>2.3</b> тощо.\n\n" +
		"Як дізнатись свою чергу?\n" +
		"➡️ Скористайтесь сервісом: " + queueInfoURL
}

func registerUsageText(queueInfoURL string) string {
	return "Щоб зареєструватись, введіть <b>підчергу</b> у форматі <b>1.1</b>.\n\n" +
		"Як дізнатись свою чергу?\n" +
		"➡️ " + queueInfoURL
}

const (
	msgMainMenu       = "Головне меню — оберіть дію:"
	msgBackToMenu     = "Повернулись у головне меню."
	msgUseMenu        = "Скористайтесь меню нижче:"
	msgBadFormat      = "Невірний формат. Введіть підчергу у вигляді <b>1.1</b>, <b>2.3</b> тощо."
	msgEmptyInput     = "Порожнє повідомлення. Введіть підчергу у форматі 1.1 або натисніть /menu."
	msgNotRegistered  = "Ви не зареєстровані. Використайте /register або кнопку '🔔 Зареєструватися'."
	msgNoSubgroup     = "Ваша підчерга не встановлена."
	msgNoSubgroupNext = "Підчерга не встановлена. Використайте /register або кнопку 'Зареєструватися'."
	msgNothingPending = "Немає нової підчерги для збереження. Спробуйте зареєструватися знову."
	msgCancelNoPend   = "Немає активного запиту на зміну підчерги."
	msgUnchanged      = "Підчерга залишилась без змін."
	msgFetchFailed    = "Помилка отримання розкладу. Спробуйте пізніше."
	msgUnknownAction  = "Невідома дія."
	msgSaveFailed     = "Не вдалося зберегти. Спробуйте ще раз пізніше."
)

func registeredText(key string) string {
	return fmt.Sprintf("Готово — вас призначено у підчергу <b>%s</b>.", key)
}

func confirmChangeText(oldKey, newKey string) string {
	return fmt.Sprintf(
		"Ви вже зареєстровані з підчергою <b>%s</b>.\n\n"+
			"Нова підчерга: <b>%s</b>.\n\n"+
			"Чи впевнені ви що хочете знову зареєструватися і змінити свою підчергу?",
		oldKey, newKey)
}

func changedText(key string) string {
	return fmt.Sprintf("Підчергу змінено. Нова підчерга: <b>%s</b>.", key)
}

func mySubgroupText(key string) string {
	return "Ваша підчерга: " + key
}

func nextText(subgroupKey, groupID string, res resolver.Result) string {
	switch res.Kind {
	case resolver.MatchExact:
		return fmt.Sprintf("Наступне (приблизно) відключення для підчерги %s: %s — %s",
			subgroupKey, res.Start, res.End)
	case resolver.MatchGroup:
		return fmt.Sprintf(
			"Не знайдено окремого запису саме для підчерги %s, але для черги %s є інтервал (%s): %s — %s",
			subgroupKey, groupID, res.Subgroup, res.Start, res.End)
	default:
		seen := strings.Join(res.SeenSubgroups, ", ")
		if seen == "" {
			seen = "немає розпізнаних підчерг"
		}
		return "Не знайдено записів для вашої підчерги на сторінці.\n" +
			"Ваша підчерга: " + subgroupKey + "\n" +
			"Підчерги на сторінці: " + seen
	}
}
