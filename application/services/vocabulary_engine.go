package services

import (
	"context"
	"fmt"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	domainsvc "github.com/groundgraph/engine/domain/services"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// VocabularyEngine orchestrates vocabulary self-organization: category
// classification of newly discovered relationship types (spec.md §4.3a),
// semantic-role measurement from sampled grounding edges (§4.3b), and the
// synonym detection/merge loop with auto-prune and reasoning-mediated
// decisions (§4.3c).
type VocabularyEngine struct {
	registry   ports.VocabRegistry
	graph      ports.GraphStore
	reasoning  ports.ReasoningProvider
	classifier *domainsvc.CategoryClassifier
	roles      *domainsvc.RoleClassifier
	counters   *EventCounters
	logger     *zap.Logger
}

// WithEventCounters attaches the shared scheduler-launcher counters so
// merges/prunes bump the vocabulary change delta the role-remeasurement
// launcher watches (spec.md §4.3b).
func (e *VocabularyEngine) WithEventCounters(counters *EventCounters) *VocabularyEngine {
	e.counters = counters
	return e
}

func NewVocabularyEngine(
	registry ports.VocabRegistry,
	graph ports.GraphStore,
	reasoning ports.ReasoningProvider,
	seeds []domainsvc.SeedType,
	logger *zap.Logger,
) *VocabularyEngine {
	return &VocabularyEngine{
		registry:   registry,
		graph:      graph,
		reasoning:  reasoning,
		classifier: domainsvc.NewCategoryClassifier(seeds),
		roles:      domainsvc.NewRoleClassifier(),
		logger:     logger,
	}
}

// ClassifyAndSave assigns vt's category from its embedding and persists it.
// Called right after a new VocabType is first embedded (spec.md §4.3a).
func (e *VocabularyEngine) ClassifyAndSave(ctx context.Context, vt *entities.VocabType) error {
	if err := vt.RequireEmbedded(); err != nil {
		return err
	}
	result := e.classifier.Classify(vt.Embedding)
	vt.Category = result.Primary
	vt.CategoryConfidence = result.Confidence
	vt.RunnerUpCategory = result.RunnerUp
	vt.Ambiguous = result.Ambiguous
	return e.registry.Save(ctx, vt)
}

// MeasureRole recomputes vt's SemanticRole and GroundingStats from sampled
// per-edge grounding contributions and persists the result (spec.md §4.3b).
func (e *VocabularyEngine) MeasureRole(ctx context.Context, vt *entities.VocabType, samples []float64) error {
	role, stats := e.roles.Classify(string(vt.Name), samples)
	vt.SemanticRole = role
	vt.Grounding = stats
	return e.registry.Save(ctx, vt)
}

// RemeasureRoles samples up to sampleSize edges per active type and
// recomputes each type's semantic role from the grounding those edges
// contribute along axis (spec.md §4.3b). A type the axis can't project
// (no embedding) is skipped, not failed.
func (e *VocabularyEngine) RemeasureRoles(ctx context.Context, axis domainsvc.Axis, sampleSize int) (int, error) {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	types, err := e.registry.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	measured := 0
	for _, vt := range types {
		if vt.Embedding.IsZero() {
			continue
		}
		edges, err := e.graph.MatchConceptRelationships(ctx, ports.RelTypeFilter{
			RelTypes: []valueobjects.VocabTypeName{vt.Name},
			Limit:    sampleSize,
		})
		if err != nil {
			return measured, err
		}
		projection := axis.Project(vt.Embedding)
		samples := make([]float64, 0, len(edges))
		for _, edge := range edges {
			samples = append(samples, edge.Confidence*projection)
		}
		if err := e.MeasureRole(ctx, vt, samples); err != nil {
			return measured, err
		}
		measured++
	}
	return measured, nil
}

// SynonymMergeResult reports one executed or proposed merge.
type SynonymMergeResult struct {
	Kept, Deprecated valueobjects.VocabTypeName
	Similarity       float64
	AutoApplied      bool
	EdgesMoved       int
}

// ConsolidateSynonyms ranks synonym candidates and resolves each one:
// pairs at or above AutoPruneThreshold with zero edges on the deprecated
// side merge automatically; every other candidate is routed to the
// reasoning provider's Decide call. In live mode, the candidate list is
// re-ranked against the registry after every executed merge so a chain of
// near-duplicates collapses in one pass, and a skip decision on one pair
// moves on to the next candidate rather than ending the run (spec.md
// §4.3c); dry-run evaluates the initial ranking only and executes nothing.
// targetSize > 0 makes the live run a no-op once the active type count is
// at or below it; after merges, zero-usage custom types with no remaining
// edges are pruned.
func (e *VocabularyEngine) ConsolidateSynonyms(ctx context.Context, live bool, targetSize int) ([]SynonymMergeResult, error) {
	var results []SynonymMergeResult

	if !live {
		// Dry-run evaluates every candidate against the initial snapshot —
		// no re-query, no execution (spec.md §4.3c).
		types, err := e.registry.ListActive(ctx)
		if err != nil {
			return results, err
		}
		for _, candidate := range domainsvc.RankSynonymCandidates(types) {
			deprecatedEdgeCount, err := e.graph.CountEdgesOfType(ctx, candidate.B)
			if err != nil {
				return results, err
			}
			auto := candidate.Similarity >= domainsvc.AutoPruneThreshold && deprecatedEdgeCount == 0
			results = append(results, SynonymMergeResult{
				Kept: candidate.A, Deprecated: candidate.B,
				Similarity: candidate.Similarity, AutoApplied: auto,
			})
		}
		return results, nil
	}

	// Pairs the reasoning provider declined; the re-query after a merge
	// must not present them again.
	skipped := make(map[string]bool)

	for {
		types, err := e.registry.ListActive(ctx)
		if err != nil {
			return results, err
		}
		if targetSize > 0 && len(types) <= targetSize {
			break
		}

		merged := false
		for _, candidate := range domainsvc.RankSynonymCandidates(types) {
			pairKey := string(candidate.A) + "|" + string(candidate.B)
			if skipped[pairKey] {
				continue
			}

			deprecatedEdgeCount, err := e.graph.CountEdgesOfType(ctx, candidate.B)
			if err != nil {
				return results, err
			}

			auto := candidate.Similarity >= domainsvc.AutoPruneThreshold && deprecatedEdgeCount == 0
			shouldMerge := auto
			if !auto {
				decision, err := e.reasoning.Decide(ctx, map[string]interface{}{
					"operation":  "synonym_merge",
					"type_a":     string(candidate.A),
					"type_b":     string(candidate.B),
					"similarity": candidate.Similarity,
					"edges_on_b": deprecatedEdgeCount,
					"usage_a":    usageOf(types, candidate.A),
					"usage_b":    usageOf(types, candidate.B),
				})
				if err != nil {
					return results, apperr.Wrap(apperr.ProviderUnavailable, "synonym merge decision failed", err)
				}
				shouldMerge = decision.Action == ports.DecideMerge
			}

			if !shouldMerge {
				skipped[pairKey] = true
				continue
			}

			moved, err := e.mergeTypes(ctx, candidate.A, candidate.B)
			if err != nil {
				return results, err
			}
			results = append(results, SynonymMergeResult{
				Kept: candidate.A, Deprecated: candidate.B,
				Similarity: candidate.Similarity, AutoApplied: auto, EdgesMoved: moved,
			})
			e.logger.Info("merged synonym vocabulary types",
				zap.String("kept", string(candidate.A)), zap.String("deprecated", string(candidate.B)),
				zap.Float64("similarity", candidate.Similarity), zap.Int("edges_moved", moved))
			if e.counters != nil {
				e.counters.Increment("vocabulary_changed")
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}

	if len(results) > 0 {
		if err := e.pruneZeroUsage(ctx); err != nil {
			return results, err
		}
	}
	return results, nil
}

func usageOf(types []*entities.VocabType, name valueobjects.VocabTypeName) int {
	for _, t := range types {
		if t.Name == name {
			return t.UsageCount
		}
	}
	return 0
}

// pruneZeroUsage removes custom types that ended the consolidation run
// with no recorded usage and no remaining edges (spec.md §4.3c "pruning
// removes zero-usage custom types after merges"). Builtins are never
// pruned.
func (e *VocabularyEngine) pruneZeroUsage(ctx context.Context) error {
	types, err := e.registry.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t.IsBuiltin || t.UsageCount > 0 {
			continue
		}
		edges, err := e.graph.CountEdgesOfType(ctx, t.Name)
		if err != nil {
			return err
		}
		if edges > 0 {
			continue
		}
		if err := e.registry.Delete(ctx, t.Name); err != nil {
			return err
		}
		e.logger.Info("pruned zero-usage vocabulary type", zap.String("type", string(t.Name)))
		if e.counters != nil {
			e.counters.Increment("vocabulary_changed")
		}
	}
	return nil
}

func (e *VocabularyEngine) mergeTypes(ctx context.Context, keep, deprecated valueobjects.VocabTypeName) (int, error) {
	moved, err := e.graph.ReassignEdgeType(ctx, deprecated, keep)
	if err != nil {
		return 0, err
	}
	deprecatedType, err := e.registry.Get(ctx, deprecated)
	if err != nil {
		return moved, err
	}
	deprecatedType.IsActive = false
	if err := e.registry.Save(ctx, deprecatedType); err != nil {
		return moved, fmt.Errorf("deactivate merged type: %w", err)
	}
	return moved, nil
}
