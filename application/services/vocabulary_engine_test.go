package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	domainsvc "github.com/groundgraph/engine/domain/services"
)

type vocabFakeGraph struct {
	ports.GraphStore
	edges       map[valueobjects.VocabTypeName]int
	edgeSamples map[valueobjects.VocabTypeName][]entities.Relationship
	reassigns   [][2]valueobjects.VocabTypeName
}

func newVocabFakeGraph() *vocabFakeGraph {
	return &vocabFakeGraph{
		edges:       make(map[valueobjects.VocabTypeName]int),
		edgeSamples: make(map[valueobjects.VocabTypeName][]entities.Relationship),
	}
}

func (f *vocabFakeGraph) CountEdgesOfType(ctx context.Context, vocabType valueobjects.VocabTypeName) (int, error) {
	return f.edges[vocabType], nil
}

func (f *vocabFakeGraph) ReassignEdgeType(ctx context.Context, from, to valueobjects.VocabTypeName) (int, error) {
	moved := f.edges[from]
	f.edges[to] += moved
	delete(f.edges, from)
	f.reassigns = append(f.reassigns, [2]valueobjects.VocabTypeName{from, to})
	return moved, nil
}

func (f *vocabFakeGraph) MatchConceptRelationships(ctx context.Context, filter ports.RelTypeFilter) ([]entities.Relationship, error) {
	if len(filter.RelTypes) != 1 {
		return nil, nil
	}
	edges := f.edgeSamples[filter.RelTypes[0]]
	if filter.Limit > 0 && len(edges) > filter.Limit {
		edges = edges[:filter.Limit]
	}
	return edges, nil
}

type fakeReasoning struct {
	ports.ReasoningProvider
	decisions []ports.Decision
	contexts  []map[string]interface{}
}

func (f *fakeReasoning) Decide(ctx context.Context, structuredContext map[string]interface{}) (ports.Decision, error) {
	f.contexts = append(f.contexts, structuredContext)
	if len(f.decisions) == 0 {
		return ports.Decision{Action: ports.DecideSkip}, nil
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

func vocabEmb(vec ...float32) valueobjects.Embedding {
	return valueobjects.NewEmbedding(vec, "test-model")
}

func addVocabType(t *testing.T, registry *fakeVocabRegistry, name string, usage int, vec []float32) *entities.VocabType {
	t.Helper()
	vt, err := entities.NewVocabType(valueobjects.VocabTypeName(name), "", false)
	require.NoError(t, err)
	vt.UsageCount = usage
	if vec != nil {
		vt.Embedding = vocabEmb(vec...)
	}
	require.NoError(t, registry.Save(context.Background(), vt))
	return vt
}

func newTestVocabEngine(registry *fakeVocabRegistry, graph *vocabFakeGraph, reasoning *fakeReasoning) *VocabularyEngine {
	return NewVocabularyEngine(registry, graph, reasoning, nil, zap.NewNop())
}

func TestConsolidateAutoPrunesNearIdenticalUnusedType(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	reasoning := &fakeReasoning{}
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})
	graph.edges["SUPPORTS"] = 5

	engine := newTestVocabEngine(registry, graph, reasoning)
	results, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, valueobjects.VocabTypeName("SUPPORTS"), results[0].Kept)
	assert.Equal(t, valueobjects.VocabTypeName("SUPORTS"), results[0].Deprecated)
	assert.True(t, results[0].AutoApplied)
	assert.Empty(t, reasoning.contexts, "auto-prune must not consult the reasoning provider")

	deprecated, err := registry.Get(context.Background(), "SUPORTS")
	require.NoError(t, err)
	assert.False(t, deprecated.IsActive)
}

func TestConsolidateRoutesAmbiguousPairThroughDecide(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	reasoning := &fakeReasoning{decisions: []ports.Decision{{Action: ports.DecideMerge, Rationale: "same meaning"}}}
	addVocabType(t, registry, "CAUSES", 10, []float32{1, 0, 0})
	addVocabType(t, registry, "LEADS_TO", 4, []float32{1, 0.5, 0})
	graph.edges["CAUSES"] = 10
	graph.edges["LEADS_TO"] = 4

	engine := newTestVocabEngine(registry, graph, reasoning)
	results, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.False(t, results[0].AutoApplied)
	assert.Equal(t, 4, results[0].EdgesMoved)
	assert.Equal(t, 14, graph.edges["CAUSES"])

	// Decide always receives the numeric context, never a bare pair.
	require.Len(t, reasoning.contexts, 1)
	assert.Contains(t, reasoning.contexts[0], "similarity")
	assert.Contains(t, reasoning.contexts[0], "edges_on_b")
}

func TestConsolidateSkipMovesToNextCandidate(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	// First (highest-similarity) pair is skipped; the next pair merges.
	reasoning := &fakeReasoning{decisions: []ports.Decision{
		{Action: ports.DecideSkip},
		{Action: ports.DecideMerge},
	}}
	addVocabType(t, registry, "CAUSES", 10, []float32{1, 0, 0})
	addVocabType(t, registry, "TRIGGERS", 8, []float32{1, 0.1, 0})
	addVocabType(t, registry, "BLOCKS", 6, []float32{0, 1, 0})
	addVocabType(t, registry, "IMPEDES", 2, []float32{0, 1, 0.3})
	graph.edges["CAUSES"] = 10
	graph.edges["TRIGGERS"] = 8
	graph.edges["BLOCKS"] = 6
	graph.edges["IMPEDES"] = 2

	engine := newTestVocabEngine(registry, graph, reasoning)
	results, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, valueobjects.VocabTypeName("BLOCKS"), results[0].Kept)
	assert.Equal(t, valueobjects.VocabTypeName("IMPEDES"), results[0].Deprecated)
}

func TestConsolidateDryRunExecutesNothing(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	reasoning := &fakeReasoning{}
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})

	engine := newTestVocabEngine(registry, graph, reasoning)
	results, err := engine.ConsolidateSynonyms(context.Background(), false, 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].AutoApplied, "dry-run reports what live mode would do")
	assert.Empty(t, graph.reassigns, "dry-run must not move edges")

	kept, err := registry.Get(context.Background(), "SUPORTS")
	require.NoError(t, err)
	assert.True(t, kept.IsActive, "dry-run must not deactivate types")
}

func TestConsolidateTargetSizeIsNoOp(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	reasoning := &fakeReasoning{}
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})

	engine := newTestVocabEngine(registry, graph, reasoning)
	results, err := engine.ConsolidateSynonyms(context.Background(), true, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, graph.reassigns)
}

func TestConsolidateMergeIsIdempotent(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})
	graph.edges["SUPPORTS"] = 5

	engine := newTestVocabEngine(registry, graph, &fakeReasoning{})
	first, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)
	assert.Empty(t, second, "re-running the merge is a no-op")
}

func TestConsolidatePrunesZeroUsageCustomTypesAfterMerges(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})
	orphan := addVocabType(t, registry, "NEVER_USED", 0, []float32{0, 0, 1})
	graph.edges["SUPPORTS"] = 5

	engine := newTestVocabEngine(registry, graph, &fakeReasoning{})
	_, err := engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)

	_, err = registry.Get(context.Background(), orphan.Name)
	assert.Error(t, err, "zero-usage custom type should be pruned")

	_, err = registry.Get(context.Background(), "SUPPORTS")
	assert.NoError(t, err, "in-use type survives pruning")
}

func TestConsolidateNeverPrunesBuiltins(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	builtin, err := entities.NewVocabType("PART_OF", "builtin composition relationship", true)
	require.NoError(t, err)
	builtin.Embedding = vocabEmb(0, 0, 1)
	require.NoError(t, registry.Save(context.Background(), builtin))
	addVocabType(t, registry, "SUPPORTS", 5, []float32{1, 0, 0})
	addVocabType(t, registry, "SUPORTS", 0, []float32{1, 0.001, 0})
	graph.edges["SUPPORTS"] = 5

	engine := newTestVocabEngine(registry, graph, &fakeReasoning{})
	_, err = engine.ConsolidateSynonyms(context.Background(), true, 0)
	require.NoError(t, err)

	_, err = registry.Get(context.Background(), "PART_OF")
	assert.NoError(t, err)
}

func TestRemeasureRolesStoresRoleAndStats(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	vt := addVocabType(t, registry, "SUPPORTS", 3, []float32{1, 0, 0})
	for i := 0; i < 3; i++ {
		graph.edgeSamples["SUPPORTS"] = append(graph.edgeSamples["SUPPORTS"], entities.Relationship{
			Type: "SUPPORTS", Confidence: 1.0,
		})
	}

	// Axis aligned with the type's embedding: projection 1.0 per edge,
	// mean grounding 1.0 > 0.8 -> AFFIRMATIVE.
	axis := domainsvc.BuildAxis([]domainsvc.PolarityPair{{
		Positive: vocabEmb(1, 0, 0), Negative: vocabEmb(-1, 0, 0),
	}})

	engine := newTestVocabEngine(registry, graph, &fakeReasoning{})
	measured, err := engine.RemeasureRoles(context.Background(), axis, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, measured)

	assert.Equal(t, entities.RoleAffirmative, vt.SemanticRole)
	assert.Equal(t, 3, vt.Grounding.SampleSize)
	assert.InDelta(t, 1.0, vt.Grounding.Mean, 1e-6)
}

func TestRemeasureRolesInsufficientData(t *testing.T) {
	registry := newFakeVocabRegistry()
	graph := newVocabFakeGraph()
	vt := addVocabType(t, registry, "MENTIONS", 1, []float32{1, 0, 0})
	graph.edgeSamples["MENTIONS"] = []entities.Relationship{{Type: "MENTIONS", Confidence: 0.5}}

	axis := domainsvc.BuildAxis([]domainsvc.PolarityPair{{
		Positive: vocabEmb(1, 0, 0), Negative: vocabEmb(-1, 0, 0),
	}})

	engine := newTestVocabEngine(registry, graph, &fakeReasoning{})
	_, err := engine.RemeasureRoles(context.Background(), axis, 100)
	require.NoError(t, err)
	assert.Equal(t, entities.RoleInsufficientData, vt.SemanticRole)
}
