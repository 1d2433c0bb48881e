package ports

import (
	"context"
	"time"

	"github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// VocabRegistry persists the relationship-type registry (relational table,
// spec.md §6.3).
type VocabRegistry interface {
	Get(ctx context.Context, name valueobjects.VocabTypeName) (*entities.VocabType, error)
	ListActive(ctx context.Context) ([]*entities.VocabType, error)
	Save(ctx context.Context, v *entities.VocabType) error
	Delete(ctx context.Context, name valueobjects.VocabTypeName) error

	// InactiveRatio reports the fraction of custom (non-builtin) types that
	// are currently inactive, the signal the consolidation launcher's
	// hysteresis gate watches (spec.md §4.3c, §4.7 "inactive-type ratio").
	InactiveRatio(ctx context.Context) (float64, error)
}

// SkippedRelationship is one append-only record of a relationship type the
// extractor proposed but that did not resolve to a known active VocabType
// (spec.md §4.6 stage 3, open question 3: "expose at minimum an append-only
// table with counts and contexts").
type SkippedRelationship struct {
	TypeName  valueobjects.VocabTypeName
	SourceID  valueobjects.SourceID
	Context   string
	Ontology  string
	CreatedAt time.Time
}

// SkippedRelationshipStore persists SkippedRelationship rows for curator
// review and reports per-type counts for triage.
type SkippedRelationshipStore interface {
	Record(ctx context.Context, r SkippedRelationship) error
	CountsByType(ctx context.Context) (map[valueobjects.VocabTypeName]int, error)
}

// SourceEmbeddingStore persists SourceEmbedding rows (relational, spec.md §6.3).
type SourceEmbeddingStore interface {
	Save(ctx context.Context, se entities.SourceEmbedding) error
	Get(ctx context.Context, sourceID valueobjects.SourceID, chunkIndex int, strategy entities.ChunkStrategy) (*entities.SourceEmbedding, error)
	ListForSource(ctx context.Context, sourceID valueobjects.SourceID) ([]entities.SourceEmbedding, error)

	// Coverage reports how many chunk rows exist and how many carry the
	// active dimension, feeding embedding.verify (spec.md §4.2).
	Coverage(ctx context.Context, activeDimension int) (total, atActiveDimension int, err error)
}

// ScheduledTaskStore persists cron-driven task registrations.
type ScheduledTaskStore interface {
	ListDue(ctx context.Context) ([]*entities.ScheduledTask, error)
	ListAll(ctx context.Context) ([]*entities.ScheduledTask, error)
	Save(ctx context.Context, t *entities.ScheduledTask) error
}

// AnnealingProposalStore persists annealing promote/demote proposals.
type AnnealingProposalStore interface {
	Save(ctx context.Context, p *entities.AnnealingProposal) error
	ListPending(ctx context.Context) ([]*entities.AnnealingProposal, error)
}

// ConfigStore persists the single-active-row EmbeddingConfig and
// AiProviderConfig tables, plus EncryptedKeys (spec.md §3, §4.9).
type ConfigStore interface {
	ActiveEmbeddingConfig(ctx context.Context) (*config.EmbeddingConfig, error)
	ActivateEmbeddingConfig(ctx context.Context, c config.EmbeddingConfig) error
	ActiveAiProviderConfig(ctx context.Context) (*config.AiProviderConfig, error)
	ActivateAiProviderConfig(ctx context.Context, c config.AiProviderConfig) error

	GetEncryptedKey(ctx context.Context, provider string) (*config.EncryptedKey, error)
	SaveEncryptedKey(ctx context.Context, k config.EncryptedKey) error
}

// VectorIndex is the ANN index over a namespace of embeddings (concept,
// source-chunk) — a separate storage concern from the graph edges
// themselves (spec.md §6.3: "vector index on Concept.embedding; separate
// vector index on source-embeddings").
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, id string, vec []float32) error
	Delete(ctx context.Context, namespace string, id string) error
	Query(ctx context.Context, namespace string, vec []float32, k int, minSim float64) ([]VectorMatch, error)
}

type VectorMatch struct {
	ID         string
	Similarity float64
}
