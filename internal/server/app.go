// Package server initializes and runs the auth server: it opens the
// database, applies migrations, wires the services and serves the HTTP API
// until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sessionworks/authd/internal/logging"
	"github.com/sessionworks/authd/internal/server/config"
	"github.com/sessionworks/authd/internal/server/hashing"
	"github.com/sessionworks/authd/internal/server/httpapi"
	"github.com/sessionworks/authd/internal/server/repositories/repomanager"
	"github.com/sessionworks/authd/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	auth   *services.AuthService
	users  *services.UserService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	hasher := hashing.NewBcryptHasher(cfg.BcryptCost)
	us := services.NewUserService(db, repos, hasher)
	as := services.NewAuthService(db, repos, us, hasher, cfg)

	return &App{config: cfg, logger: logger, db: db, auth: as, users: us}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	handler := httpapi.NewHandler(app.auth, app.users, app.config, app.logger)
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: httpapi.NewRouter(handler),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "closing database", "error", err)
	}

	app.logger.Info(ctx, "server stopped")
	return nil
}
