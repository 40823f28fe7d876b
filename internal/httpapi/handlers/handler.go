package handlers

import (
	"log/slog"

	"github.com/hkim-dev/autopress/internal/config"
	"github.com/hkim-dev/autopress/internal/job"
	"github.com/hkim-dev/autopress/internal/settings"
	"github.com/hkim-dev/autopress/internal/site"
	"github.com/hkim-dev/autopress/internal/store/redisstore"
)

type Handler struct {
	Cfg        config.Config
	Dispatcher *job.Dispatcher
	Processor  *job.Processor
	Jobs       *job.Repo
	Sites      *site.Repo
	Settings   *settings.Store
	Locker     *redisstore.Store // nil when Redis is not configured
	Logger     *slog.Logger
}

func NewHandler(cfg config.Config, dispatcher *job.Dispatcher, processor *job.Processor, jobs *job.Repo, sites *site.Repo, st *settings.Store, locker *redisstore.Store, logger *slog.Logger) *Handler {
	return &Handler{
		Cfg:        cfg,
		Dispatcher: dispatcher,
		Processor:  processor,
		Jobs:       jobs,
		Sites:      sites,
		Settings:   st,
		Locker:     locker,
		Logger:     logger,
	}
}
