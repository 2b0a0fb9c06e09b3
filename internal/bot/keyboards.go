package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Israelshecktar/IMS/internal/domain/users"
)

// replyKeyboard is the bottom panel of one-tap report commands for role.
func replyKeyboard(role users.Role) *tgbotapi.ReplyKeyboardMarkup {
	var kb tgbotapi.ReplyKeyboardMarkup
	switch role {
	case users.RoleAdmin:
		kb = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/low"),
				tgbotapi.NewKeyboardButton("/expiring"),
				tgbotapi.NewKeyboardButton("/levels"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/list"),
				tgbotapi.NewKeyboardButton("/archive"),
				tgbotapi.NewKeyboardButton("/users"),
				tgbotapi.NewKeyboardButton("/scan"),
			),
		)
	case users.RoleMember:
		kb = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/low"),
				tgbotapi.NewKeyboardButton("/expiring"),
				tgbotapi.NewKeyboardButton("/levels"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/list"),
				tgbotapi.NewKeyboardButton("/help"),
			),
		)
	default:
		return nil
	}
	kb.ResizeKeyboard = true
	return &kb
}
