// Package server wires configuration, storage, mail delivery and the
// credential services together and runs the HTTP and gRPC transports
// until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/dmitrijs2005/credkeeper/internal/timex"

	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
}

// NewApp validates c and builds every dependency of the servers. Log output
// goes to out.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := logging.NewJSONLogger(out, level)
	clock := timex.SystemClock{}

	db, rm, err := OpenStorage(ctx, c, clock)
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	hasher, err := cryptox.NewPasswordHasher(c.PasswordHasher)
	if err != nil {
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	notifier, err := newNotifier(ctx, c, logger, clock)
	if err != nil {
		return nil, err
	}

	as := services.NewAuthService(db, rm, issuer, hasher, notifier, clock, logger, c)

	return &App{config: c, logger: logger, db: db, authService: as}, nil
}

// OpenStorage returns the repository manager for c.StorageKind. For
// postgres it also opens the pool and applies pending migrations; for
// memory the returned *sql.DB is nil.
func OpenStorage(ctx context.Context, c *config.Config, clock timex.Clock) (*sql.DB, repomanager.RepositoryManager, error) {
	if c.StorageKind == config.StorageMemory {
		return nil, repomanager.NewInMemoryRepositoryManager(clock), nil
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager(clock)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, rm, nil
}

func newNotifier(ctx context.Context, c *config.Config, logger logging.Logger, clock timex.Clock) (notify.Notifier, error) {
	if c.Notifier != config.NotifierS3 {
		return notify.NewLogNotifier(logger), nil
	}
	m, err := notify.NewS3Maildrop(ctx, notify.S3Settings{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	}, c.MailFrom, clock)
	if err != nil {
		return nil, fmt.Errorf("s3 maildrop init error: %w", err)
	}
	return m, nil
}

// AuthService exposes the wired service to in-process callers such as the
// admin CLI.
func (app *App) AuthService() *services.AuthService {
	return app.authService
}

// Close releases the database pool, if any.
func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService, app.config.AppBaseURL)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	h := httpapi.NewHandler(app.authService, app.config.AppBaseURL, app.logger)
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves both transports until ctx is cancelled, a signal arrives or
// either server fails, then closes the database.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageKind, "notifier", app.config.Notifier)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
