package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/Israelshecktar/IMS/internal/alerts"
	"github.com/Israelshecktar/IMS/internal/authz"
	"github.com/Israelshecktar/IMS/internal/bot"
	"github.com/Israelshecktar/IMS/internal/config"
	"github.com/Israelshecktar/IMS/internal/domain/users"
	"github.com/Israelshecktar/IMS/internal/infra/db"
	httpx "github.com/Israelshecktar/IMS/internal/infra/http"
	"github.com/Israelshecktar/IMS/internal/infra/lock"
	"github.com/Israelshecktar/IMS/internal/infra/logger"
	"github.com/Israelshecktar/IMS/internal/infra/metrics"
	"github.com/Israelshecktar/IMS/internal/infra/report"
	"github.com/Israelshecktar/IMS/internal/infra/telegram"
	"github.com/Israelshecktar/IMS/internal/ledger"
	"github.com/Israelshecktar/IMS/internal/store/memory"
	"github.com/Israelshecktar/IMS/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "config/example.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store ledger.Store
		ready httpx.Pinger
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store = memory.New()
		log.Warn("using in-memory storage, data is lost on restart")
	default:
		if err := db.Migrate(cfg.Postgres.DSN, log); err != nil {
			log.Error("migrations failed", "err", err)
			return
		}
		pool, err := db.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Error("db connect failed", "err", err)
			return
		}
		defer pool.Close()
		log.Info("db connected")
		store, ready = postgres.New(pool), pool
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	l := ledger.New(store, log, ledger.WithRecorder(m))
	reports := report.NewExcel()

	var api *tgbotapi.BotAPI
	if cfg.Telegram.Token != "" {
		api, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			log.Error("telegram init failed", "err", err)
			return
		}
		log.Info("telegram authorized", "bot", api.Self.UserName)
	} else {
		log.Warn("telegram.token is empty, commands and notifications are disabled")
	}

	var scheduler *alerts.Scheduler
	if cfg.Alerts.Enabled && api != nil {
		scheduler, err = newScheduler(ctx, cfg, l, api, reports, m, log)
		if err != nil {
			log.Error("alert scheduler init failed", "err", err)
			return
		}
		go func() {
			if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("alert scheduler stopped", "err", err)
			}
		}()
	}

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, ready)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	if api != nil {
		var trigger bot.Trigger
		if scheduler != nil {
			trigger = scheduler
		}
		b := bot.New(api, log, l,
			users.NewDirectory(cfg.Telegram.AdminIDs, cfg.Telegram.MemberIDs),
			authz.DefaultPolicy(), reports, trigger,
			bot.Config{
				Threshold:  decimal.NewFromFloat(cfg.Alerts.Threshold),
				ExpiryDays: int(cfg.Alerts.ExpiryWindow / (24 * time.Hour)),
				Location:   cfg.Location(),
			})
		go func() {
			if err := b.Run(ctx, cfg.Telegram.PollTimeout); err != nil && ctx.Err() == nil {
				log.Error("telegram loop stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	if api != nil {
		api.StopReceivingUpdates()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}

func newScheduler(ctx context.Context, cfg config.Config, l *ledger.Ledger, api *tgbotapi.BotAPI,
	reports alerts.ReportBuilder, m *metrics.Metrics, log *slog.Logger) (*alerts.Scheduler, error) {

	schedule, err := alerts.ParseSchedule(cfg.Alerts.Schedule, cfg.Alerts.Weekday, cfg.Alerts.At,
		cfg.Alerts.Interval, cfg.Location())
	if err != nil {
		return nil, err
	}

	recipient := cfg.Alerts.Recipient
	if recipient == 0 {
		recipient = cfg.Telegram.AdminChatID
	}
	scanner := alerts.NewScanner(l, telegram.NewNotifier(api, log, cfg.Telegram.AdminChatID), reports, m, log,
		alerts.Config{
			Threshold:    decimal.NewFromFloat(cfg.Alerts.Threshold),
			ExpiryWindow: cfg.Alerts.ExpiryWindow,
			Recipient:    recipient,
			Header:       report.MaterialHeader,
			Rows:         report.MaterialRows,
		})

	var locker alerts.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := lock.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		locker = lock.NewRedis(rdb, "stockguard:alert-scan", 10*time.Minute)
		log.Info("alert scans coordinated through redis", "addr", cfg.Redis.Addr)
	}
	return alerts.NewScheduler(scanner, schedule, locker, log), nil
}
