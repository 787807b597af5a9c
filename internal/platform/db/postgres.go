package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions tunes the ledger's connection pool. Zero values keep the pgx
// defaults or whatever the DSN sets.
type PoolOptions struct {
	MaxConns        int32
	ApplicationName string
}

func (o PoolOptions) apply(config *pgxpool.Config) {
	if o.MaxConns > 0 {
		config.MaxConns = o.MaxConns
	}
	if o.ApplicationName != "" {
		if _, set := config.ConnConfig.RuntimeParams["application_name"]; !set {
			config.ConnConfig.RuntimeParams["application_name"] = o.ApplicationName
		}
	}
}

// New opens the pool backing the postgres document store and checks it is
// reachable.
func New(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	opts.apply(config)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}
	return pool, nil
}
