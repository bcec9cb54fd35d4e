package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/galvanai/portal/internal/backend"
	"github.com/galvanai/portal/internal/config"
	"github.com/galvanai/portal/internal/crypto"
	"github.com/galvanai/portal/internal/session"
	"github.com/galvanai/portal/internal/store"
	"github.com/galvanai/portal/internal/telemetry"
)

const janitorInterval = 5 * time.Minute

type App struct {
	config            *config.Config
	logger            *slog.Logger
	store             store.Store
	sessions          *session.Manager
	backend           *backend.Client
	pictureBase       *url.URL
	shutdownTelemetry func(context.Context) error
}

func (app *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.shutdownTelemetry(ctx); err != nil {
		slog.Warn("telemetry: shutdown", "err", err)
	}
	if err := app.store.Close(); err != nil {
		slog.Warn("store: close", "err", err)
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	shutdownTelemetry := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "galvan-portal",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})

	st, err := openStore(ctx, cfg)
	if err != nil {
		_ = shutdownTelemetry(ctx)
		return nil, fmt.Errorf("open session store: %w", err)
	}

	crypter, err := crypto.FromSecret(cfg.SessionSecret)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("session key: %w", err)
	}
	sessions := session.NewManager(st, crypter, session.Options{
		TTL:    cfg.SessionTTL,
		Secure: cfg.SecureCookies,
	})

	client, err := backend.New(cfg.BackendURL, backend.WithTimeout(cfg.BackendTimeout))
	if err != nil {
		st.Close()
		return nil, err
	}
	pictureBase, err := url.Parse(cfg.BackendPublicURL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("parse BACKEND_PUBLIC_URL: %w", err)
	}

	return &App{
		config:            cfg,
		logger:            logger,
		store:             st,
		sessions:          sessions,
		backend:           client,
		pictureBase:       pictureBase,
		shutdownTelemetry: shutdownTelemetry,
	}, nil
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: app.config.BackendTimeout + 15*time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "session_store", app.config.SessionStore, "backend", app.config.BackendURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.runJanitor(gctx, janitorInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

// runJanitor sweeps expired session records until ctx is done.
func (app *App) runJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := app.store.DeleteExpired(ctx); err != nil && ctx.Err() == nil {
				app.logger.Warn("janitor: sweep failed", "err", err)
			}
		}
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.SessionStore {
	case config.StoreSQLite:
		return store.OpenSQLite(ctx, cfg.DatabaseURL)
	case config.StorePostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.StoreRedis:
		return store.OpenRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
