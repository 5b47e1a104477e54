// Package server wires the provisioner: the job ledger, the broker
// consumer pool, the reconciler, the admin HTTP API and the gRPC health
// endpoint. It handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/server/config"
	"github.com/dmitrijs2005/secnexus/internal/server/httpapi"
	"github.com/dmitrijs2005/secnexus/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/secnexus/internal/server/services"
	"github.com/dmitrijs2005/secnexus/internal/server/worker"

	gs "github.com/dmitrijs2005/secnexus/internal/server/grpc"
)

// seams for tests
var (
	openDB         = repomanager.OpenPostgres
	newRepoManager = repomanager.NewPostgresRepositoryManager
	openBroker     = broker.Open
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	broker     broker.Broker
	jobService *services.JobService
	pool       *worker.Pool
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(os.Stdout, "json", c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	b, err := openBroker(c.BrokerURL, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("broker init error: %w", err)
	}

	admin := appwrite.NewAdminClient(appwrite.Config{Endpoint: c.StoreEndpoint, Project: c.StoreProject}, c.StoreAPIKey)
	ps := services.NewProvisioningService(admin, services.ProvisioningConfig{
		RegistrationDatabaseID: c.RegistrationDatabaseID,
		SponsorDatabaseID:      c.SponsorDatabaseID,
		PollInterval:           c.AttributePollInterval,
		PollTimeout:            c.AttributePollTimeout,
	}, logger)

	js := services.NewJobService(db, rm, ps, b, services.JobPolicy{
		MaxAttempts:   c.MaxAttempts,
		RetryBase:     c.RetryBase,
		StaleAfter:    c.StaleAfter,
		MaxDispatches: c.MaxReconcileAttempts,
	}, logger)

	pool := worker.NewPool(b, js, js, worker.Config{
		Workers:           c.Workers,
		ReconcileInterval: c.ReconcileInterval,
	}, logger)

	hs := httpapi.NewServer(httpapi.Config{
		Address:           c.EndpointAddrHTTP,
		SecretKey:         []byte(c.SecretKey),
		TokenValidity:     c.AdminTokenValidity,
		AdminPasswordHash: c.AdminPasswordHash,
	}, js, db.PingContext, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		broker:     b,
		jobService: js,
		pool:       pool,
		httpServer: hs,
		grpcServer: gs.NewGRPCServer(c.EndpointAddrGRPC, logger),
	}, nil
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
	if err := app.grpcServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startWorkers(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		select {
		case <-app.pool.Started():
			app.grpcServer.SetServing(true)
		case <-ctx.Done():
		}
	}()

	if err := app.pool.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
	app.grpcServer.SetServing(false)
}

// Run blocks until ctx is cancelled, a signal arrives or a component fails.
// Workers finish their current task before the broker and the database are
// closed.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startWorkers(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	return errors.Join(app.broker.Close(), app.db.Close())
}
