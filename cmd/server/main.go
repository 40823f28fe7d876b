package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hkim-dev/autopress/internal/ai"
	"github.com/hkim-dev/autopress/internal/config"
	"github.com/hkim-dev/autopress/internal/db"
	"github.com/hkim-dev/autopress/internal/event"
	"github.com/hkim-dev/autopress/internal/httpapi"
	"github.com/hkim-dev/autopress/internal/httpapi/handlers"
	"github.com/hkim-dev/autopress/internal/job"
	"github.com/hkim-dev/autopress/internal/settings"
	"github.com/hkim-dev/autopress/internal/site"
	"github.com/hkim-dev/autopress/internal/store/redisstore"
	"github.com/hkim-dev/autopress/internal/wordpress"
)

func main() {
	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, slog.LevelInfo)
	defer closeLog()

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	if err := gdb.AutoMigrate(&job.Job{}, &job.Row{}, &site.Site{}, &settings.Setting{}); err != nil {
		logger.Error("automigrate failed", "error", err)
		os.Exit(1)
	}

	jobRepo := job.NewRepo(gdb)
	siteRepo := site.NewRepo(gdb)
	settingsStore := settings.NewStore(gdb)

	var notifier event.Notifier = event.Noop{}
	if cfg.RabbitURL != "" {
		rn, err := event.NewRabbitNotifier(cfg.RabbitURL, cfg.RabbitQueue, logger)
		if err != nil {
			logger.Warn("rabbit unavailable, events disabled", "error", err)
		} else {
			notifier = rn
			defer rn.Close()
		}
	}

	var locker *redisstore.Store
	if cfg.RedisAddr != "" {
		locker = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer locker.Close()
	}

	provider := ai.NewGeminiProvider(settingsStore, settings.KeyGeminiAPIKey, cfg.GeminiAPIKey, logger)
	publisher := wordpress.NewClient(cfg.RemoteTimeout)

	dispatcher := job.NewDispatcher(jobRepo, notifier, logger)
	processor := job.NewProcessor(jobRepo, siteRepo, provider, publisher, notifier, logger, cfg.ClaimTTL, cfg.RemoteTimeout)

	h := handlers.NewHandler(cfg, dispatcher, processor, jobRepo, siteRepo, settingsStore, locker, logger)
	router := httpapi.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server started", "addr", cfg.Addr, "db_driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
