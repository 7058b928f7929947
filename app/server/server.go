// Package server wires the research agent components behind a fiber app.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"ragagent/app/agent"
	"ragagent/app/api"
	"ragagent/app/middleware"
	"ragagent/app/tools"
	"ragagent/config"
	"ragagent/model"
	"ragagent/retriever"
	"ragagent/store"
)

var fiberConfig = fiber.Config{
	ErrorHandler:          api.ErrorHandler,
	DisableStartupMessage: true,
}

// Deps are the components the HTTP surface is built from.
type Deps struct {
	Config   *config.Config
	Turns    api.Turns
	Index    api.IndexStater
	Sessions store.SessionStorer
	Tools    []string
}

type Server struct {
	listenAddr string
	app        *fiber.App
	backends   *store.Backends
	logger     *slog.Logger
}

// NewApp builds the fiber app and its routes.
func NewApp(d Deps) *fiber.App {
	var (
		app           = fiber.New(fiberConfig)
		locks         = store.NewThreadLocks()
		checkHandler  = api.NewCheckHandler(d.Index)
		chatHandler   = api.NewChatHandler(d.Turns, locks)
		threadHandler = api.NewThreadHandler(d.Sessions, locks)
		configHandler = api.NewConfigHandler(d.Config, d.Tools)
		check         = app.Group("/check")
		apiv1         = app.Group("/api/v1")
	)

	app.Use(middleware.RequestLog(slog.Default(), "/check"))
	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/index", checkHandler.HandleIndex)
	app.Post("/chat", chatHandler.HandleChat)
	app.Delete("/threads/:id", threadHandler.HandleDelete)
	apiv1.Get("/config", configHandler.HandleGetConfig)
	return app
}

// New connects backends and providers for cfg. Online mode without a web search
// credential fails here with types.ErrConfiguration.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger := slog.Default()

	backends, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := model.NewEmbedder(ctx, cfg)
	if err != nil {
		backends.Close()
		return nil, err
	}
	llm, err := model.NewLLM(ctx, cfg)
	if err != nil {
		backends.Close()
		return nil, err
	}

	docs := retriever.New(backends.Index, embedder)
	var web tools.Searcher
	if cfg.IsOnline() {
		web = tools.NewTavilySearch(cfg.TavilyURL, cfg.TavilyAPIKey)
	}
	gateway, err := tools.NewGateway(cfg, docs, web)
	if err != nil {
		backends.Close()
		return nil, err
	}

	stats, err := docs.Stats(ctx)
	switch {
	case err != nil:
		logger.Warn("index unavailable", "err", err)
	case !stats.Exists():
		logger.Warn("index is empty, run the loader first", "data_dir", cfg.DataDir, "backend", cfg.IndexBackend)
	default:
		logger.Info("index ready", "parents", stats.Parents, "children", stats.Children)
	}

	controller := agent.NewController(llm, gateway, backends.Sessions, cfg.Mode, cfg.MaxIterations)
	app := NewApp(Deps{
		Config:   cfg,
		Turns:    controller,
		Index:    docs,
		Sessions: backends.Sessions,
		Tools:    gateway.Names(),
	})

	logger.Info("agent configured", "mode", cfg.Mode, "tools", gateway.Names(), "max_iterations", cfg.MaxIterations)
	return &Server{
		listenAddr: cfg.ServerAddr,
		app:        app,
		backends:   backends,
		logger:     logger,
	}, nil
}

func (s *Server) Stop() {
	if err := s.app.Shutdown(); err != nil {
		s.logger.Error("error to stop server", "error", err.Error())
	}
	s.backends.Close()
	s.logger.Info("server stopped")
}

func (s *Server) Run() error {
	s.logger.Info("server listening", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}
