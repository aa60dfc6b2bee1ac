// Copyright (C) 2025 Stixview Authors.
// See LICENSE for copying information.

// Package arangodb is the boundary to the backing ArangoDB deployment: the
// injected client handle, the objects.Store implementation and the
// search-view lifecycle manager.
package arangodb

import (
	"context"

	driver "github.com/arangodb/go-driver"
	"github.com/arangodb/go-driver/http"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	mon = monkit.Package()

	// Error is the default error class for the arangodb package.
	Error = errs.Class("arangodb")
)

// Config holds the connection settings for the ArangoDB deployment. Database
// and view names are derived from the base name the way the ingest pipeline
// derives them, so both sides agree without coordination.
type Config struct {
	URL      string
	Username string
	Password string
	// Database is the base name; the physical database is
	// <Database>_database and the default view <Database>_view.
	Database string
	// View overrides the derived view name when set.
	View string
}

// DatabaseName returns the physical database name.
func (config Config) DatabaseName() string {
	return config.Database + "_database"
}

// ViewName returns the search view name.
func (config Config) ViewName() string {
	if config.View != "" {
		return config.View
	}
	return config.Database + "_view"
}

// DB is an open handle to the service database. It is constructed once at
// startup and injected into every component that needs it.
type DB struct {
	log    *zap.Logger
	client driver.Client
	db     driver.Database
}

// Open connects to ArangoDB and ensures the service database exists.
func Open(ctx context.Context, log *zap.Logger, config Config) (*DB, error) {
	conn, err := http.NewConnection(http.ConnectionConfig{
		Endpoints: []string{config.URL},
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	client, err := driver.NewClient(driver.ClientConfig{
		Connection:     conn,
		Authentication: driver.BasicAuthentication(config.Username, config.Password),
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	db, err := EnsureDatabase(ctx, log, client, config.DatabaseName())
	if err != nil {
		return nil, err
	}

	return &DB{log: log, client: client, db: db}, nil
}

// Database returns the underlying driver database handle.
func (db *DB) Database() driver.Database {
	return db.db
}

// EnsureDatabase creates the named database if absent. An already-existing
// database is logged and reused.
func EnsureDatabase(ctx context.Context, log *zap.Logger, client driver.Client, name string) (driver.Database, error) {
	log.Info("creating database", zap.String("database", name))
	_, err := client.CreateDatabase(ctx, name, nil)
	switch {
	case err == nil:
	case driver.IsConflict(err):
		log.Info("database already exists", zap.String("database", name))
	default:
		return nil, Error.Wrap(err)
	}

	db, err := client.Database(ctx, name)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return db, nil
}
