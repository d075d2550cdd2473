package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	apiPkg "github.com/SpaceTimerAPI-Admin/christmastech/internal/api"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/config"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/logbuf"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/metrics"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier/groupme"
	slackn "github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier/slack"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/notifier/telegram"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/objstore"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/scheduler"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/ticket"
	"github.com/SpaceTimerAPI-Admin/christmastech/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("ctd starting", "data_dir", cfg.Tracker.DataDir)

	// 1. Ticket store + photo store
	os.MkdirAll(cfg.Tracker.DataDir, 0o755)
	dbPath := filepath.Join(cfg.Tracker.DataDir, "tickets.db")
	store, err := ticket.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error("failed to open ticket store", "path", dbPath, "error", err)
		os.Exit(1)
	}
	// store will be cleaned up when the process exits

	photosDir := filepath.Join(cfg.Tracker.DataDir, "photos")
	objects, err := objstore.NewFSStore(photosDir, cfg.Tracker.SiteBaseURL)
	if err != nil {
		logger.Error("failed to open photo store", "path", photosDir, "error", err)
		os.Exit(1)
	}

	// 2. Notifier backends
	var backends []notifier.Notifier
	if gm := cfg.Notifiers.GroupMe; gm != nil {
		n, err := groupme.New(groupme.Config{BotID: gm.BotID, PostURL: gm.PostURL}, logger.With("notifier", "groupme"))
		if err != nil {
			logger.Error("failed to init groupme notifier", "error", err)
			os.Exit(1)
		}
		backends = append(backends, n)
		logger.Info("groupme notifier initialized")
	}
	if sl := cfg.Notifiers.Slack; sl != nil {
		n, err := slackn.New(slackn.Config{BotToken: sl.BotToken, Channel: sl.Channel}, logger.With("notifier", "slack"))
		if err != nil {
			logger.Error("failed to init slack notifier", "error", err)
			os.Exit(1)
		}
		backends = append(backends, n)
		logger.Info("slack notifier initialized")
	}
	if tg := cfg.Notifiers.Telegram; tg != nil {
		n, err := telegram.New(telegram.Config{Token: tg.Token, ChatID: tg.ChatID}, logger.With("notifier", "telegram"))
		if err != nil {
			logger.Error("failed to init telegram notifier", "error", err)
			os.Exit(1)
		}
		backends = append(backends, n)
		logger.Info("telegram notifier initialized")
	}

	var notify notifier.Notifier
	switch len(backends) {
	case 0:
		logger.Warn("no notifier configured, announcements disabled")
		notify = notifier.Nop{}
	case 1:
		notify = backends[0]
	default:
		notify = &notifier.Multi{Backends: backends, Logger: logger.With("component", "notifier")}
	}

	// 3. Metrics + tracker
	m := metrics.New()
	trk := tracker.New(store, objects, notify, m, tracker.Config{
		SiteBaseURL:     cfg.Tracker.SiteBaseURL,
		DupRadiusMeters: cfg.Tracker.DupRadiusMeters,
		DupLookback:     cfg.DupLookback(),
		BackfillBefore:  cfg.BackfillBefore(),
		BackfillAfter:   cfg.BackfillAfter(),
	}, logger.With("component", "tracker"))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Scheduled jobs
	sched := scheduler.New(logger.With("component", "scheduler"))
	if err := sched.AddJob("daily-report", cfg.Tracker.ReportSchedule, trk.SendDailyReport); err != nil {
		logger.Error("failed to schedule daily report", "error", err)
		os.Exit(1)
	}
	if cfg.Tracker.BackfillSchedule != "" {
		backfillJob := func(ctx context.Context) error {
			_, err := trk.RunBackfill(ctx, false)
			return err
		}
		if err := sched.AddJob("backfill", cfg.Tracker.BackfillSchedule, backfillJob); err != nil {
			logger.Error("failed to schedule backfill", "error", err)
			os.Exit(1)
		}
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 5. API server
	apiSrv := apiPkg.NewServer(trk, apiPkg.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		Key:            cfg.API.Key,
		BackfillSecret: cfg.Tracker.BackfillSecret,
		PhotosDir:      photosDir,
	}, logger.With("component", "api"), logBuf, m.Handler())

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 6. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("ctd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
