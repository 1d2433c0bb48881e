package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// SourceEmbeddingStore persists the source_embeddings table, one row per
// (source, chunk_index, strategy) triple (spec.md §4.2, §6.3).
type SourceEmbeddingStore struct {
	pool *pgxpool.Pool
}

func NewSourceEmbeddingStore(pool *pgxpool.Pool) *SourceEmbeddingStore {
	return &SourceEmbeddingStore{pool: pool}
}

var _ ports.SourceEmbeddingStore = (*SourceEmbeddingStore)(nil)

const sourceEmbeddingColumns = `source_id, chunk_index, strategy, start_offset, end_offset,
	chunk_text, chunk_hash, source_hash, embedding_vector, embedding_model, embedding_dimension, generated_at`

func (s *SourceEmbeddingStore) Save(ctx context.Context, se entities.SourceEmbedding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_embeddings (`+sourceEmbeddingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (source_id, chunk_index, strategy) DO UPDATE SET
			start_offset = EXCLUDED.start_offset, end_offset = EXCLUDED.end_offset,
			chunk_text = EXCLUDED.chunk_text, chunk_hash = EXCLUDED.chunk_hash,
			source_hash = EXCLUDED.source_hash, embedding_vector = EXCLUDED.embedding_vector,
			embedding_model = EXCLUDED.embedding_model, embedding_dimension = EXCLUDED.embedding_dimension,
			generated_at = EXCLUDED.generated_at
	`,
		se.SourceID.String(), se.ChunkIndex, string(se.Strategy), se.StartOffset, se.EndOffset,
		se.ChunkText, se.ChunkHash, se.SourceHash, float32SliceToFloat64(se.Embedding.Vector),
		se.Embedding.Model, se.Embedding.Dimension, se.GeneratedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save source embedding", err)
	}
	return nil
}

func (s *SourceEmbeddingStore) Get(ctx context.Context, sourceID valueobjects.SourceID, chunkIndex int, strategy entities.ChunkStrategy) (*entities.SourceEmbedding, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sourceEmbeddingColumns+` FROM source_embeddings
		WHERE source_id = $1 AND chunk_index = $2 AND strategy = $3`, sourceID.String(), chunkIndex, string(strategy))
	se, err := scanSourceEmbedding(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "source embedding not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query source embedding", err)
	}
	return se, nil
}

func (s *SourceEmbeddingStore) ListForSource(ctx context.Context, sourceID valueobjects.SourceID) ([]entities.SourceEmbedding, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+sourceEmbeddingColumns+` FROM source_embeddings
		WHERE source_id = $1 ORDER BY chunk_index`, sourceID.String())
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list source embeddings", err)
	}
	defer rows.Close()

	var out []entities.SourceEmbedding
	for rows.Next() {
		se, err := scanSourceEmbedding(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan source embedding", err)
		}
		out = append(out, *se)
	}
	return out, rows.Err()
}

func scanSourceEmbedding(row scannable) (*entities.SourceEmbedding, error) {
	var (
		sourceID, strategy, chunkText, chunkHash, sourceHash, model string
		chunkIndex, startOffset, endOffset, dimension                int
		vector                                                       []float64
		generatedAt                                                  time.Time
	)
	if err := row.Scan(&sourceID, &chunkIndex, &strategy, &startOffset, &endOffset,
		&chunkText, &chunkHash, &sourceHash, &vector, &model, &dimension, &generatedAt); err != nil {
		return nil, err
	}
	se := entities.SourceEmbedding{
		SourceID: valueobjects.SourceID(sourceID), ChunkIndex: chunkIndex, Strategy: entities.ChunkStrategy(strategy),
		StartOffset: startOffset, EndOffset: endOffset, ChunkText: chunkText, ChunkHash: chunkHash, SourceHash: sourceHash,
		Embedding:   valueobjects.Embedding{Vector: float64SliceToFloat32(vector), Model: model, Dimension: dimension},
		GeneratedAt: generatedAt,
	}
	return &se, nil
}

// Coverage counts chunk rows overall and at the active dimension; the
// difference is the stale set embedding.verify reports (spec.md §4.2).
func (s *SourceEmbeddingStore) Coverage(ctx context.Context, activeDimension int) (int, int, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE embedding_dimension = $1)
		FROM source_embeddings
	`, activeDimension)
	var total, atDim int
	if err := row.Scan(&total, &atDim); err != nil {
		return 0, 0, apperr.Wrap(apperr.Internal, "source embedding coverage", err)
	}
	return total, atDim, nil
}
