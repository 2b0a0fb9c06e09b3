// Package bot exposes the ledger as Telegram commands.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/alerts"
	"github.com/Israelshecktar/IMS/internal/authz"
	"github.com/Israelshecktar/IMS/internal/domain/users"
	"github.com/Israelshecktar/IMS/internal/ledger"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// Trigger runs one guarded alert scan.
type Trigger interface {
	Trigger(ctx context.Context) (alerts.Result, error)
}

type Bot struct {
	api     API
	log     *slog.Logger
	ledger  *ledger.Ledger
	users   *users.Directory
	policy  authz.Policy
	reports alerts.ReportBuilder
	scan    Trigger

	threshold  decimal.Decimal
	expiryDays int
	loc        *time.Location
	now        func() time.Time
}

// Config holds the defaults for /low and /expiring. Location is the zone
// /taken dates are read in; nil means UTC.
type Config struct {
	Threshold  decimal.Decimal
	ExpiryDays int
	Location   *time.Location
}

func New(api API, log *slog.Logger, l *ledger.Ledger, dir *users.Directory,
	policy authz.Policy, reports alerts.ReportBuilder, scan Trigger, cfg Config) *Bot {

	if cfg.Threshold.IsZero() {
		cfg.Threshold = decimal.NewFromInt(alerts.DefaultThreshold)
	}
	if cfg.ExpiryDays <= 0 {
		cfg.ExpiryDays = 90
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Bot{
		api: api, log: log, ledger: l, users: dir, policy: policy,
		reports: reports, scan: scan,
		threshold: cfg.Threshold, expiryDays: cfg.ExpiryDays,
		loc: cfg.Location, now: time.Now,
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message != nil {
				b.onMessage(ctx, upd)
			}
		}
	}
}

func (b *Bot) onMessage(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if !msg.IsCommand() || msg.From == nil {
		return
	}
	u := b.users.Resolve(users.Telegram{ID: msg.From.ID, Username: msg.From.UserName})
	r := b.Handle(ctx, u, msg.Command(), msg.CommandArguments())
	b.deliver(msg.Chat.ID, r)
}

func (b *Bot) deliver(chatID int64, r Reply) {
	if r.Text != "" {
		msg := tgbotapi.NewMessage(chatID, r.Text)
		if r.Keyboard != nil {
			msg.ReplyMarkup = *r.Keyboard
		}
		b.send(msg)
	}
	if r.Document != nil {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  r.Document.Name,
			Bytes: r.Document.Data,
		})
		doc.Caption = r.Caption
		b.send(doc)
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}
