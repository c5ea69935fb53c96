package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"contentcal/api/internal/app"
	"contentcal/api/internal/config"
	"contentcal/api/internal/history"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/lock"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/metrics"
	"contentcal/api/internal/notify"
	"contentcal/api/internal/reconcile"
	"contentcal/api/internal/scheduler"
	"contentcal/api/internal/search"
	"contentcal/api/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if len(applied) > 0 {
		log.Info("Applied migrations", logger.Strings("versions", applied))
	}

	kv, err := localstore.NewRedisKV(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer kv.Close()

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	items := store.NewPlanItemStore(db, log)
	websites := store.NewWebsiteStore(db)
	locks := lock.NewManager(store.NewLockStore(db), lock.WithTTL(cfg.LockTTL), lock.WithLogger(log))

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), log)
	defer searchService.Close()

	recorder := history.New(cfg.HistoryDir)
	local := func(sessionID string) reconcile.LocalStore {
		return localstore.NewPlanStore(kv.ForSession(sessionID), log)
	}
	engine := reconcile.NewEngine(items, local, log,
		app.HistoryHook(recorder),
		app.SearchHook(searchService),
		app.MetricsHook(m),
	)

	var dispatcher notify.Dispatcher = notify.NewLogDispatcher(log)
	smtpConfig := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	if smtpConfig.IsConfigured() {
		dispatcher = notify.NewSMTPDispatcher(smtpConfig)
	} else {
		log.Warn("SMTP not configured, notification emails are logged only")
	}
	notifier := notify.NewNotifier(localstore.NewSubscriptions(kv), items, kv, dispatcher, log, notify.Options{
		SummaryWeekday: cfg.SummaryWeekday,
		Observer:       m,
	})

	sched := scheduler.New(log)
	jobs := func() []scheduler.Job {
		return notifier.Jobs(cfg.ReminderSchedule, cfg.SummarySchedule)
	}
	if err := sched.Rearm(jobs()...); err != nil {
		return fmt.Errorf("schedule notifications: %w", err)
	}
	defer sched.Stop()

	service := app.New(cfg, app.Deps{
		Items:     items,
		Websites:  websites,
		Engine:    engine,
		Locks:     locks,
		KV:        kv,
		Scheduler: sched,
		Jobs:      jobs,
		Search:    searchService,
		History:   recorder,
		Metrics:   m,
		Log:       log,
	})

	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Contentcal API listening", logger.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown error", logger.Error(err))
	}
	return nil
}
