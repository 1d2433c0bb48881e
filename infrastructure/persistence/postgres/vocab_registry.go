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

// VocabRegistry persists the vocabulary_types table (spec.md §6.3).
type VocabRegistry struct {
	pool *pgxpool.Pool
}

func NewVocabRegistry(pool *pgxpool.Pool) *VocabRegistry {
	return &VocabRegistry{pool: pool}
}

var _ ports.VocabRegistry = (*VocabRegistry)(nil)

const vocabColumns = `name, description, category, category_confidence, ambiguous, runner_up_category,
	is_builtin, is_active, usage_count, embedding_vector, embedding_model, embedding_dimension,
	semantic_role, grounding_mean, grounding_variance, grounding_sample_size, grounding_measured_at`

func (r *VocabRegistry) Get(ctx context.Context, name valueobjects.VocabTypeName) (*entities.VocabType, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vocabColumns+` FROM vocabulary_types WHERE name = $1`, string(name))
	v, err := scanVocabType(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "vocab type not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "query vocab type", err)
	}
	return v, nil
}

func (r *VocabRegistry) ListActive(ctx context.Context) ([]*entities.VocabType, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vocabColumns+` FROM vocabulary_types WHERE is_active = true ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list active vocab types", err)
	}
	defer rows.Close()

	var out []*entities.VocabType
	for rows.Next() {
		v, err := scanVocabType(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan vocab type", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VocabRegistry) Save(ctx context.Context, v *entities.VocabType) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vocabulary_types (`+vocabColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description, category = EXCLUDED.category,
			category_confidence = EXCLUDED.category_confidence, ambiguous = EXCLUDED.ambiguous,
			runner_up_category = EXCLUDED.runner_up_category, is_active = EXCLUDED.is_active,
			usage_count = EXCLUDED.usage_count, embedding_vector = EXCLUDED.embedding_vector,
			embedding_model = EXCLUDED.embedding_model, embedding_dimension = EXCLUDED.embedding_dimension,
			semantic_role = EXCLUDED.semantic_role, grounding_mean = EXCLUDED.grounding_mean,
			grounding_variance = EXCLUDED.grounding_variance, grounding_sample_size = EXCLUDED.grounding_sample_size,
			grounding_measured_at = EXCLUDED.grounding_measured_at
	`,
		string(v.Name), v.Description, string(v.Category), v.CategoryConfidence, v.Ambiguous, string(v.RunnerUpCategory),
		v.IsBuiltin, v.IsActive, v.UsageCount, float32SliceToFloat64(v.Embedding.Vector), v.Embedding.Model, v.Embedding.Dimension,
		string(v.SemanticRole), v.Grounding.Mean, v.Grounding.Variance, v.Grounding.SampleSize, v.Grounding.MeasuredAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "save vocab type", err)
	}
	return nil
}

// InactiveRatio computes inactive/total over custom (non-builtin) types
// only — builtins are never deactivated, so they would dilute the ratio
// the consolidation launcher watches (spec.md §4.7).
func (r *VocabRegistry) InactiveRatio(ctx context.Context) (float64, error) {
	var total, inactive int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE NOT is_active)
		FROM vocabulary_types WHERE is_builtin = false
	`).Scan(&total, &inactive)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "compute inactive vocab ratio", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(inactive) / float64(total), nil
}

func (r *VocabRegistry) Delete(ctx context.Context, name valueobjects.VocabTypeName) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM vocabulary_types WHERE name = $1`, string(name))
	if err != nil {
		return apperr.Wrap(apperr.Internal, "delete vocab type", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanVocabType(row scannable) (*entities.VocabType, error) {
	var (
		name, description, category, runnerUp, role string
		categoryConfidence                           float64
		ambiguous                                    bool
		isBuiltin, isActive                           bool
		usageCount                                    int
		vector                                        []float64
		model                                         string
		dimension                                     int
		mean, variance                                float64
		sampleSize                                     int
		measuredAt                                     *time.Time
	)
	if err := row.Scan(&name, &description, &category, &categoryConfidence, &ambiguous, &runnerUp,
		&isBuiltin, &isActive, &usageCount, &vector, &model, &dimension,
		&role, &mean, &variance, &sampleSize, &measuredAt); err != nil {
		return nil, err
	}
	v := &entities.VocabType{
		Name: valueobjects.VocabTypeName(name), Description: description,
		Category: entities.VocabCategory(category), CategoryConfidence: categoryConfidence,
		Ambiguous: ambiguous, RunnerUpCategory: entities.VocabCategory(runnerUp),
		IsBuiltin: isBuiltin, IsActive: isActive, UsageCount: usageCount,
		Embedding: valueobjects.Embedding{Vector: float64SliceToFloat32(vector), Model: model, Dimension: dimension},
		SemanticRole: entities.SemanticRole(role),
		Grounding:    entities.GroundingStats{Mean: mean, Variance: variance, SampleSize: sampleSize},
	}
	if measuredAt != nil {
		v.Grounding.MeasuredAt = *measuredAt
	}
	return v, nil
}

func float32SliceToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func float64SliceToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
