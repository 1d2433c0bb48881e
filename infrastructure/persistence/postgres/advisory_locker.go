package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/apperr"
)

// AdvisoryLocker grants the scheduler's leader lock via Postgres's session
// advisory lock functions: pg_try_advisory_lock acquires without
// blocking, and the lock is released either explicitly or when the
// holding connection closes — so a crashed leader never wedges the lock
// (spec.md invariant 7, "at-most-one-instance execution").
type AdvisoryLocker struct {
	pool *pgxpool.Pool
}

func NewAdvisoryLocker(pool *pgxpool.Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

var _ ports.AdvisoryLocker = (*AdvisoryLocker)(nil)

func lockKeyHash(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key string) (func(context.Context), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, "acquire pool connection for advisory lock", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockKeyHash(key)).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, apperr.Wrap(apperr.Internal, "try advisory lock", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release := func(releaseCtx context.Context) {
		conn.QueryRow(releaseCtx, `SELECT pg_advisory_unlock($1)`, lockKeyHash(key))
		conn.Release()
	}
	return release, true, nil
}
