package postgres

import (
	"time"

	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// SkippedRelationshipStore persists the skipped_relationships table: the
// append-only curation surface for relationship types the extractor saw
// but that did not resolve to a known active VocabType (spec.md §4.6 stage
// 3, open question 3).
type SkippedRelationshipStore struct {
	pool *pgxpool.Pool
}

func NewSkippedRelationshipStore(pool *pgxpool.Pool) *SkippedRelationshipStore {
	return &SkippedRelationshipStore{pool: pool}
}

var _ ports.SkippedRelationshipStore = (*SkippedRelationshipStore)(nil)

func (s *SkippedRelationshipStore) Record(ctx context.Context, r ports.SkippedRelationship) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO skipped_relationships (type_name, source_id, ontology, context, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, string(r.TypeName), string(r.SourceID), r.Ontology, r.Context, r.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "record skipped relationship", err)
	}
	return nil
}

func (s *SkippedRelationshipStore) CountsByType(ctx context.Context) (map[valueobjects.VocabTypeName]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT type_name, count(*) FROM skipped_relationships GROUP BY type_name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count skipped relationships", err)
	}
	defer rows.Close()

	out := make(map[valueobjects.VocabTypeName]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan skipped relationship count", err)
		}
		out[valueobjects.VocabTypeName(name)] = count
	}
	return out, rows.Err()
}
