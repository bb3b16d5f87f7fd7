// Package store selects and opens the configured marketplace.Store.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workmatch/api/internal/config"
	"github.com/workmatch/api/internal/db"
	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/store/memstore"
	"github.com/workmatch/api/internal/store/mongostore"
	"github.com/workmatch/api/internal/store/pgstore"
)

// Open connects to the store named by cfg.Store.Driver. Postgres schema
// migrations run first when cfg.Postgres.Migrate is set; Mongo indexes
// are always ensured.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (marketplace.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), nil

	case config.DriverPostgres:
		dsn := cfg.Postgres.DSN()
		if cfg.Postgres.Migrate {
			if err := db.Migrate(dsn, logger); err != nil {
				return nil, err
			}
		}
		pool, err := db.ConnectPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return pgstore.New(pool), nil

	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI, logger)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(client, cfg.Mongo.Database)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
