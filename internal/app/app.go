package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-feed/internal/auth"
	"github.com/vovakirdan/wirechat-feed/internal/config"
	"github.com/vovakirdan/wirechat-feed/internal/core"
	"github.com/vovakirdan/wirechat-feed/internal/store"
	"github.com/vovakirdan/wirechat-feed/internal/store/memory"
	"github.com/vovakirdan/wirechat-feed/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-feed/internal/transport/http"
)

// App wires the store, the live feed and the HTTP transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	healthInterval  time.Duration
	feed            *core.Feed
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Str("db_path", cfg.Storage.DatabasePath).Msg("store initialized")

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      cfg.Auth.TokenTTL,
	})

	feed := core.NewFeed(st, logger, cfg.Feed.ReplayBatchSize)
	server := transporthttp.NewServer(feed, authService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		healthInterval:  cfg.Feed.HealthInterval,
		feed:            feed,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite, "":
		return sqlite.New(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.feed.Run(ctx, a.healthInterval)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		a.feed.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the feed and the store.
func (a *App) cleanup() {
	a.feed.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
