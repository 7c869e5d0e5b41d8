package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/auth"
	"github.com/natuspati/jeopardy-api/internal/cache"
	"github.com/natuspati/jeopardy-api/internal/config"
	"github.com/natuspati/jeopardy-api/internal/store"
	"github.com/natuspati/jeopardy-api/internal/store/sqlite"
	transporthttp "github.com/natuspati/jeopardy-api/internal/transport/http"
	"github.com/natuspati/jeopardy-api/internal/ws"
)

// App wires together storage, auth, cache and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	cache           *cache.Cache
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var entityCache *cache.Cache
	if cfg.RedisAddr != "" {
		entityCache, err = cache.New(ctx, cfg.RedisAddr, cfg.RedisNamespace, cfg.CacheTTL, logger)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("lobby cache enabled")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	manager := ws.NewConnectionManager(logger)
	server := transporthttp.NewServer(cfg, logger, authService, st, entityCache, manager)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		cache:           entityCache,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
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
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and cache resources.
func (a *App) cleanup() {
	if err := a.cache.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close cache")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
