package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/zhouzirui/trailblazer/backend/internal/config"
	"github.com/zhouzirui/trailblazer/backend/internal/handler"
	"github.com/zhouzirui/trailblazer/backend/internal/metrics"
	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
	"github.com/zhouzirui/trailblazer/backend/internal/service/ai"
	"github.com/zhouzirui/trailblazer/backend/internal/service/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/service/session"
)

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	personaStore, err := loadPersonas(cfg.Personas.File)
	if err != nil {
		return err
	}

	sessionStore := session.NewStore(personaStore, session.Options{
		MaxTurns: cfg.Session.MaxTurns,
		TTL:      cfg.Session.TTL,
	})
	m := metrics.New(sessionStore.Len)

	aiService, err := ai.NewService(ctx, cfg.LLM, m)
	if err != nil {
		return fmt.Errorf("failed to initialize AI service: %w", err)
	}
	log.Printf("AI service initialized (model %s at %s)", cfg.LLM.Model, cfg.LLM.BaseURL)

	chatService := chat.NewService(sessionStore, personaStore, aiService, m)

	if cfg.Session.TTL > 0 {
		janitor, err := session.NewJanitor(sessionStore, cfg.Session.SweepSchedule, m.SessionsEvicted)
		if err != nil {
			return err
		}
		janitor.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			janitor.Stop(stopCtx)
		}()
		log.Printf("session TTL %s, sweeping %s", cfg.Session.TTL, cfg.Session.SweepSchedule)
	} else {
		log.Println("session TTL disabled, sessions live until restart")
	}

	router := handler.NewRouter(personaStore, chatService, m)

	return startServer(ctx, cfg.Server, router)
}

// loadConfig reads the environment and lets command line flags win.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.host != "" || opts.port != "" {
		host, port := opts.host, opts.port
		if host == "" {
			host = envHost()
		}
		if port == "" {
			port = envPort()
		}
		server, err := config.ResolveAddr(host, port)
		if err != nil {
			return nil, err
		}
		cfg.Server = server
	}
	if opts.personas != "" {
		cfg.Personas.File = opts.personas
	}
	return cfg, nil
}

func loadPersonas(path string) (*persona.MemoryStore, error) {
	if path == "" {
		return persona.NewSeedStore(), nil
	}

	items, defaultKey, err := persona.LoadFile(path)
	if err != nil {
		return nil, err
	}
	store, err := persona.NewMemoryStore(items, defaultKey)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded %d personas from %s", len(items), path)
	return store, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Trailblazer backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
