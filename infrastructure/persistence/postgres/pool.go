// Package postgres implements the relational application/ports stores
// (vocabulary registry, source embeddings, scheduled tasks, annealing
// proposals, config/secrets, and the durable job table) over
// jackc/pgx/v5's connection pool. Grounded on the pack's RAG-orchestrator
// DI wiring (pgxpool.New + a pool-holding repository struct per
// concern) rather than the teacher, which is DynamoDB-only — the teacher
// names pgx nowhere, so this whole package's idiom comes from the wider
// example pack instead.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a connection pool against dsn, applying connectTimeout to
// the initial ping so a misconfigured database fails fast at startup
// rather than on the first query.
func NewPool(ctx context.Context, dsn string, maxConnections int, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = int32(maxConnections)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
