package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/access"
	"github.com/stafflink/stafflink-chat/internal/audit"
	"github.com/stafflink/stafflink-chat/internal/auth"
	"github.com/stafflink/stafflink-chat/internal/config"
	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/service/chat"
	"github.com/stafflink/stafflink-chat/internal/store"
	"github.com/stafflink/stafflink-chat/internal/store/sqlite"
	transporthttp "github.com/stafflink/stafflink-chat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.NewWithSetup(cfg.DatabasePath, sqlite.ApplySchema)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	// Channels are provisioned once from the code-defined set, never by
	// user action.
	if err := st.EnsureChannels(context.Background(), access.Channels()); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed channels: %w", err)
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = ephemeralSecret()
		logger.Warn().Msg("jwt_secret not configured, using ephemeral secret; tokens will not survive restarts")
	}
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(secret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	auditSink := audit.NewLogSink(logger)
	chatService := chat.New(st, nil, auditSink, logger, cfg.HistoryPageSize)
	hub := core.NewHub(chatService, logger)
	chatService.SetPublisher(hub)

	server := transporthttp.NewServer(hub, authService, chatService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
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

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
