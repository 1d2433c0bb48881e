// Package services holds the application-layer orchestration that sits
// between domain logic and infrastructure ports: embedding lifecycle,
// vocabulary self-organization, grounding, polarity queries, ontology
// annealing, and scheduling. Grounded on backend's internal/service/*
// orchestration layer (e.g. internal/service/llm/service.go) adapted to
// the knowledge-graph domain.
package services

import (
	"context"
	"fmt"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// EmbeddingService owns the active EmbeddingConfig and every code path
// that must embed text against it: cold-start vocabulary seeding,
// on-demand source-chunk embedding, staleness verification, and bulk
// regeneration after a dimension-changing provider switch (spec.md §4.6).
type EmbeddingService struct {
	provider  ports.EmbeddingProvider
	configs   ports.ConfigStore
	graph     ports.GraphStore
	vocab     ports.VocabRegistry
	sourceEmb ports.SourceEmbeddingStore
	logger    *zap.Logger
}

// WithSourceEmbeddingStore attaches the source-chunk table so Verify can
// report coverage for the source namespace too. Optional: a service built
// without one reports concepts and vocabulary only.
func (s *EmbeddingService) WithSourceEmbeddingStore(store ports.SourceEmbeddingStore) *EmbeddingService {
	s.sourceEmb = store
	return s
}

func NewEmbeddingService(
	provider ports.EmbeddingProvider,
	configs ports.ConfigStore,
	graph ports.GraphStore,
	vocab ports.VocabRegistry,
	logger *zap.Logger,
) *EmbeddingService {
	return &EmbeddingService{provider: provider, configs: configs, graph: graph, vocab: vocab, logger: logger}
}

// Embed runs the active provider over text and returns a normalized,
// dimension-stamped Embedding value object.
func (s *EmbeddingService) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	vec, model, dim, err := s.provider.Embed(ctx, text)
	if err != nil {
		return valueobjects.Embedding{}, apperr.Wrap(apperr.ProviderUnavailable, "embed call failed", err)
	}
	if len(vec) != dim {
		return valueobjects.Embedding{}, apperr.New(apperr.DimensionMismatch,
			fmt.Sprintf("provider returned %d components, claimed dimension %d", len(vec), dim))
	}
	return valueobjects.NewEmbedding(vec, model), nil
}

// BuiltinSeedTypes is the canonical 30 relationship-type names seeded at
// cold start, organized under the 8 VocabCategory buckets (spec.md §4.2,
// scenario S6 "cold-start vocabulary initialization").
var BuiltinSeedTypes = map[entities.VocabCategory][]string{
	entities.CategoryCausation:   {"CAUSES", "LEADS_TO", "TRIGGERS", "PREVENTS", "ENABLES"},
	entities.CategoryComposition: {"PART_OF", "CONTAINS", "BELONGS_TO"},
	entities.CategoryLogical:     {"IMPLIES", "CONTRADICTS", "EQUIVALENT_TO", "EXCLUDES"},
	entities.CategoryEvidential:  {"SUPPORTS", "REFUTES", "VALIDATES", "DISPROVES", "CONFIRMS", "REINFORCES", "OPPOSES"},
	entities.CategorySemantic:    {"IS_A", "SIMILAR_TO", "RELATED_TO"},
	entities.CategoryTemporal:    {"PRECEDES", "FOLLOWS", "SUPERSEDES"},
	entities.CategoryDependency:  {"DEPENDS_ON", "REQUIRES", "BLOCKS"},
	entities.CategoryDerivation:  {"DERIVED_FROM", "EXTENDS"},
}

// InitializeBuiltinVocabulary embeds and persists every builtin seed type
// not already present in the registry. It is idempotent: re-running after
// a partial failure only fills in the gaps (spec.md scenario S6).
func (s *EmbeddingService) InitializeBuiltinVocabulary(ctx context.Context) (int, error) {
	created := 0
	for category, names := range BuiltinSeedTypes {
		for _, name := range names {
			typeName := valueobjects.VocabTypeName(name)
			if existing, err := s.vocab.Get(ctx, typeName); err == nil && existing != nil {
				continue
			}
			vt, err := entities.NewVocabType(typeName, fmt.Sprintf("builtin %s relationship", category), true)
			if err != nil {
				return created, err
			}
			emb, err := s.Embed(ctx, name)
			if err != nil {
				return created, err
			}
			vt.Embedding = emb
			vt.Category = category
			vt.CategoryConfidence = 1.0
			if err := s.vocab.Save(ctx, vt); err != nil {
				return created, err
			}
			created++
		}
	}
	s.logger.Info("builtin vocabulary initialized", zap.Int("created", created))
	return created, nil
}

// EnsureSourceEmbedded splits source.FullText by strategy and guarantees
// each resulting chunk has a fresh, integrity-checked SourceEmbedding row.
// Idempotent per (source, chunk_index, strategy): fresh chunks are
// returned from the store untouched, stale or absent ones are re-embedded
// and persisted (spec.md §4.2).
func (s *EmbeddingService) EnsureSourceEmbedded(
	ctx context.Context,
	store ports.SourceEmbeddingStore,
	source *entities.Source,
	strategy entities.ChunkStrategy,
) ([]entities.SourceEmbedding, error) {
	spans := entities.SplitSourceChunks(source.FullText, strategy)
	out := make([]entities.SourceEmbedding, 0, len(spans))
	for _, span := range spans {
		se, err := s.ensureChunkEmbedded(ctx, store, source, span, strategy)
		if err != nil {
			return out, err
		}
		out = append(out, se)
	}
	return out, nil
}

func (s *EmbeddingService) ensureChunkEmbedded(
	ctx context.Context,
	store ports.SourceEmbeddingStore,
	source *entities.Source,
	span entities.ChunkSpan,
	strategy entities.ChunkStrategy,
) (entities.SourceEmbedding, error) {
	existing, err := store.Get(ctx, source.ID, span.Index, strategy)
	if err == nil && existing != nil && !existing.IsStale(source.FullText) {
		if verifyErr := existing.VerifyIntegrity(source.FullText); verifyErr != nil {
			return entities.SourceEmbedding{}, verifyErr
		}
		return *existing, nil
	}

	emb, err := s.Embed(ctx, span.Text)
	if err != nil {
		return entities.SourceEmbedding{}, err
	}
	se := entities.NewSourceEmbedding(source.ID, span.Index, strategy, span.Start, span.End, span.Text, source.FullText, emb)
	if err := store.Save(ctx, se); err != nil {
		return entities.SourceEmbedding{}, err
	}
	return se, nil
}

// CoverageReport is the output of Verify: counts of concepts with a
// current-dimension embedding, a stale (wrong-dimension) one, or none.
type CoverageReport struct {
	TotalConcepts     int
	AtActiveDimension int
	StaleDimension    int
	MissingEmbedding  int
	VocabTypesMissing int
	SourceChunksTotal int
	SourceChunksStale int
	ActiveDimension   int
}

// ReadyForGrounding reports whether the default polarity axis can be
// built: every active vocab type is embedded at the active dimension
// (spec.md scenario S6 "verify.ready_for_grounding").
func (r CoverageReport) ReadyForGrounding() bool { return r.VocabTypesMissing == 0 }

// Verify reports embedding coverage across concepts and vocabulary types
// under the currently active EmbeddingConfig's dimension (spec.md §4.2
// "verify() -> coverage report... detects dimension mismatches as stale").
func (s *EmbeddingService) Verify(ctx context.Context) (CoverageReport, error) {
	active, err := s.configs.ActiveEmbeddingConfig(ctx)
	if err != nil {
		return CoverageReport{}, err
	}

	total, atDim, stale, missing, err := s.graph.EmbeddingCoverage(ctx, active.Dimension)
	if err != nil {
		return CoverageReport{}, err
	}

	vocabTypes, err := s.vocab.ListActive(ctx)
	if err != nil {
		return CoverageReport{}, err
	}
	vocabMissing := 0
	for _, vt := range vocabTypes {
		if vt.Embedding.IsZero() || vt.Embedding.Dimension != active.Dimension {
			vocabMissing++
		}
	}

	report := CoverageReport{
		TotalConcepts: total, AtActiveDimension: atDim, StaleDimension: stale,
		MissingEmbedding: missing, VocabTypesMissing: vocabMissing, ActiveDimension: active.Dimension,
	}
	if s.sourceEmb != nil {
		chunkTotal, chunkAtDim, err := s.sourceEmb.Coverage(ctx, active.Dimension)
		if err != nil {
			return CoverageReport{}, err
		}
		report.SourceChunksTotal = chunkTotal
		report.SourceChunksStale = chunkTotal - chunkAtDim
	}
	return report, nil
}

// ActivateConfig switches the active EmbeddingConfig. Callers must follow
// this with RegenerateAll if the new config's dimension differs from the
// previous one (spec.md invariant: "all stored embeddings share one
// dimension at any instant").
func (s *EmbeddingService) ActivateConfig(ctx context.Context, c config.EmbeddingConfig) error {
	return s.configs.ActivateEmbeddingConfig(ctx, c)
}

// RegenerateResult reports how many concepts were rewritten under the new
// active config, and how many encountered provider errors (non-fatal,
// collected rather than aborting the batch).
type RegenerateResult struct {
	Regenerated int
	Failed      int
}

// RegenerateAll re-embeds every concept's label under the currently
// active provider/config and bulk-writes the new vectors, used after an
// embedding-config dimension change (spec.md §4.6).
func (s *EmbeddingService) RegenerateAll(ctx context.Context, concepts []*entities.Concept) (RegenerateResult, error) {
	batch := make(map[valueobjects.ConceptID]valueobjects.Embedding, len(concepts))
	var result RegenerateResult
	for _, c := range concepts {
		emb, err := s.Embed(ctx, c.Label())
		if err != nil {
			result.Failed++
			s.logger.Warn("regenerate embedding failed", zap.String("concept_id", string(c.ID())), zap.Error(err))
			continue
		}
		batch[c.ID()] = emb
		result.Regenerated++
	}
	if len(batch) == 0 {
		return result, nil
	}
	if err := s.graph.BulkUpdateConceptEmbeddings(ctx, batch); err != nil {
		return result, apperr.Wrap(apperr.Internal, "bulk embedding update failed", err)
	}
	return result, nil
}

// RegenerateVocabulary re-embeds every active VocabType's name under the
// active provider — the vocab scope of regenerate (spec.md §4.2).
func (s *EmbeddingService) RegenerateVocabulary(ctx context.Context) (RegenerateResult, error) {
	types, err := s.vocab.ListActive(ctx)
	if err != nil {
		return RegenerateResult{}, err
	}
	var result RegenerateResult
	for _, vt := range types {
		emb, err := s.Embed(ctx, string(vt.Name))
		if err != nil {
			result.Failed++
			s.logger.Warn("regenerate vocab embedding failed", zap.String("type", string(vt.Name)), zap.Error(err))
			continue
		}
		vt.Embedding = emb
		if err := s.vocab.Save(ctx, vt); err != nil {
			return result, err
		}
		result.Regenerated++
	}
	return result, nil
}

// ReembedSource unconditionally re-splits and re-embeds every chunk of
// source under strategy, overwriting existing rows — the source scope of
// regenerate, where staleness checks would wrongly keep old-dimension
// chunks whose source text never changed.
func (s *EmbeddingService) ReembedSource(
	ctx context.Context,
	store ports.SourceEmbeddingStore,
	source *entities.Source,
	strategy entities.ChunkStrategy,
) (int, error) {
	spans := entities.SplitSourceChunks(source.FullText, strategy)
	for _, span := range spans {
		emb, err := s.Embed(ctx, span.Text)
		if err != nil {
			return 0, err
		}
		se := entities.NewSourceEmbedding(source.ID, span.Index, strategy, span.Start, span.End, span.Text, source.FullText, emb)
		if err := store.Save(ctx, se); err != nil {
			return 0, err
		}
	}
	return len(spans), nil
}
