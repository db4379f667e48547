// Package server initializes and runs the tentech backend: it opens the
// database, applies migrations, wires services and serves the gRPC API next
// to the HTTP activation endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tentech/internal/logging"
	"github.com/dmitrijs2005/tentech/internal/server/config"
	"github.com/dmitrijs2005/tentech/internal/server/httpapi"
	"github.com/dmitrijs2005/tentech/internal/server/metrics"
	"github.com/dmitrijs2005/tentech/internal/server/notify"
	"github.com/dmitrijs2005/tentech/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tentech/internal/server/services"
	"github.com/dmitrijs2005/tentech/internal/server/tokens"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/tentech/internal/server/grpc"
)

type runner interface {
	Run(ctx context.Context) error
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	grpcServer  runner
	httpServer  runner
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(c, logger, db, repomanager.NewPostgresRepositoryManager(), prometheus.NewRegistry())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager, reg *prometheus.Registry) (*App, error) {

	ts, err := tokens.NewService(c.ActivationKey())
	if err != nil {
		return nil, fmt.Errorf("activation tokens: %w", err)
	}

	notifier, err := newNotifier(c, logger)
	if err != nil {
		return nil, fmt.Errorf("notifier init error: %w", err)
	}

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	us := services.NewUserService(db, rm, c, ts, notifier, logger, rec)
	cs := services.NewCatalogService(db, rm, logger, rec)
	ms := services.NewMediaService(c)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		grpcServer:  gs.NewGRPCServer(c.EndpointAddrGRPC, logger, us, cs, ms, c.SecretKey),
		httpServer:  httpapi.NewHTTPServer(c.EndpointAddrHTTP, httpapi.NewRouter(us, metrics.Handler(reg), logger), logger),
	}, nil
}

// newNotifier mails activation links through SMTP when a relay is
// configured and logs them otherwise.
func newNotifier(c *config.Config, logger logging.Logger) (notify.Notifier, error) {
	if c.SMTPAddr == "" {
		return notify.NewLogNotifier(logger, c.ActivationBaseURL), nil
	}
	return notify.NewSMTPNotifier(c.SMTPAddr, c.SMTPUser, c.SMTPPassword, c.SMTPFrom, c.ActivationBaseURL)
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startServer(ctx context.Context, cancelFunc context.CancelFunc, name string, s runner) {
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "server stopped", "server", name, "error", err)
		cancelFunc()
	}
}

// Run applies migrations and serves until ctx is cancelled, a signal
// arrives, or one of the servers fails. The database is closed on return.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.db.Close()

	app.logger.Info(ctx, "Starting app...")

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "grpc", app.grpcServer)
	}()
	go func() {
		defer wg.Done()
		app.startServer(ctx, cancelFunc, "http", app.httpServer)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return nil
}
