package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/secnexus/internal/broker"
	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/dbx"
	"github.com/dmitrijs2005/secnexus/internal/logging"
	"github.com/dmitrijs2005/secnexus/internal/server/config"
	"github.com/dmitrijs2005/secnexus/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/secnexus/internal/server/repositories/repomanager"
)

type stubManager struct{ migrateErr error }

func (m stubManager) RunMigrations(context.Context, *sql.DB) error { return m.migrateErr }
func (m stubManager) Jobs(db dbx.DBTX) jobs.Repository             { return jobs.NewPostgresRepository(db) }

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.StoreProject = "proj"
	c.StoreAPIKey = "key"
	c.RegistrationDatabaseID = "regdb"
	c.SponsorDatabaseID = "spodb"
	c.BrokerURL = "mem://"
	c.ReconcileInterval = time.Hour
	c.LogLevel = "error"
	return c
}

// withSeams swaps the constructors for the duration of the test. Tests using
// it must not run in parallel.
func withSeams(t *testing.T, m repomanager.RepositoryManager) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	oldDB, oldRM, oldBroker := openDB, newRepoManager, openBroker
	t.Cleanup(func() { openDB, newRepoManager, openBroker = oldDB, oldRM, oldBroker })

	openDB = func(context.Context, string) (*sql.DB, error) { return db, nil }
	newRepoManager = func() repomanager.RepositoryManager { return m }
	openBroker = func(string, logging.Logger) (broker.Broker, error) { return broker.NewMemory(logging.Nop{}), nil }
	return mock
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.StoreAPIKey = ""

	_, err := NewApp(context.Background(), c)
	var ce *common.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "store_api_key", ce.Field)
}

func TestNewApp_MigrationFailureClosesDB(t *testing.T) {
	mock := withSeams(t, stubManager{migrateErr: errors.New("no schema")})
	mock.ExpectClose()

	_, err := NewApp(context.Background(), testConfig())
	require.ErrorContains(t, err, "no schema")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_DBFailure(t *testing.T) {
	withSeams(t, stubManager{})
	openDB = func(context.Context, string) (*sql.DB, error) { return nil, errors.New("refused") }

	_, err := NewApp(context.Background(), testConfig())
	require.ErrorContains(t, err, "db init error")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	mock := withSeams(t, stubManager{})
	mock.ExpectClose()

	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-app.pool.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not start")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
