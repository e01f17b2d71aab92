package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"mkwab/internal/bot"
	"mkwab/internal/config"
	"mkwab/internal/db"
	"mkwab/internal/logging"
	"mkwab/internal/metrics"
	"mkwab/internal/scheduler"
	"mkwab/internal/teams"
	"mkwab/internal/version"
)

func main() {
	_ = godotenv.Load()
	testMode := flag.Bool("test", false, "test mode: no daily reset, results sweep every 5s")
	tokenFlag := flag.String("token", "", "bot token (overrides TELEGRAM_BOT_TOKEN)")
	onceReset := flag.Bool("once-reset", false, "clear participation flags now and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println("mkwab version", version.Version)
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *tokenFlag != "" {
		cfg.Token = *tokenFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *testMode, *onceReset); err != nil {
		log.Fatal("exit", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, testMode, onceReset bool) error {
	log.Info("startup", zap.String("version", version.Version), zap.Int("pid", os.Getpid()))
	st, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.EnsureSettings(cfg.DailyReset); err != nil {
		return err
	}
	var jm string
	_ = st.DB.Get(&jm, "PRAGMA journal_mode;")
	daily, _ := st.GetDailyReset()
	chats, _ := st.ChatIDs()
	log.Info("database ready",
		zap.String("path", cfg.DatabasePath),
		zap.String("journal", jm),
		zap.String("daily_reset", daily),
		zap.Int("chats", len(chats)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	opts := teams.DefaultOptions()
	opts.MaxPlayers = cfg.MaxPlayers
	opts.MaxPasses = cfg.MaxPasses
	opts.DefaultMultiplier = cfg.DefaultMultiplier
	opts.RandomMin = cfg.RandomMin
	opts.RandomMax = cfg.RandomMax
	svc := teams.New(st, opts, log.Named("teams"), m)

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	api.Debug = false
	log.Info("authorized", zap.String("bot", api.Self.UserName))

	b := bot.New(api, st, svc, log.Named("bot"))
	if onceReset {
		b.DailyReset(ctx)
		log.Info("manual reset done; exiting")
		return nil
	}

	sch := scheduler.New(st, log.Named("scheduler"))
	sch.OnDailyReset = b.DailyReset
	sch.OnSweep = func(ctx context.Context, now time.Time) {
		if cfg.ResultTTL > 0 {
			b.ExpireResults(ctx, now.Add(-cfg.ResultTTL))
		}
	}
	if testMode {
		sch.DisableDaily = true
		sch.SweepInterval = 5 * time.Second
	}
	sch.Start(ctx)

	updates := api.GetUpdatesChan(tgbotapi.UpdateConfig{Timeout: 30})
	b.Start(ctx, updates)
	api.StopReceivingUpdates()
	return nil
}
