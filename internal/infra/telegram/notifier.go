// Package telegram delivers alert notifications to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Israelshecktar/IMS/internal/alerts"
)

// Telegram rejects longer messages.
const maxMessageLen = 4096

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	api  Sender
	log  *slog.Logger
	chat int64
}

var _ alerts.Notifier = (*Notifier)(nil)

// NewNotifier sends to fallbackChat when a notification carries no recipient.
func NewNotifier(api Sender, log *slog.Logger, fallbackChat int64) *Notifier {
	return &Notifier{api: api, log: log, chat: fallbackChat}
}

// Notify posts the subject and body as one message, then the attachment as
// a document.
func (n *Notifier) Notify(ctx context.Context, msg alerts.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID := msg.Recipient
	if chatID == 0 {
		chatID = n.chat
	}
	if chatID == 0 {
		return fmt.Errorf("notify %q: no recipient chat configured", msg.Subject)
	}

	text := msg.Subject + "\n\n" + msg.Body
	if len([]rune(text)) > maxMessageLen {
		text = string([]rune(text)[:maxMessageLen-1]) + "…"
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}

	if msg.Attachment != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  msg.Attachment.Name,
			Bytes: msg.Attachment.Data,
		})
		doc.Caption = msg.Subject
		if _, err := n.api.Send(doc); err != nil {
			return fmt.Errorf("send %s to %d: %w", msg.Attachment.Name, chatID, err)
		}
	}
	n.log.Debug("notification sent", "chat_id", chatID, "subject", msg.Subject)
	return nil
}
