// Package store provides climate.Store backends: PostgreSQL, SQLite and in-memory.
package store

import (
	"context"
	"fmt"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

// Backend is a climate.Store with a schema and a lifecycle.
type Backend interface {
	climate.Store
	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Open connects to the backend named by driver and applies its schema.
func Open(ctx context.Context, driver, dsn string) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch driver {
	case DriverPostgres:
		b, err = NewPostgres(ctx, dsn, nil)
	case DriverSQLite:
		b, err = NewSQLite(dsn)
	case DriverMemory:
		b = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := b.Migrate(ctx); err != nil {
		b.Close() //nolint:errcheck
		return nil, err
	}
	return b, nil
}
