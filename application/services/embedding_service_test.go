package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/config"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

type fakeEmbeddingProvider struct {
	calls     int
	dimension int
	err       error
	badLength bool
}

func (f *fakeEmbeddingProvider) Capabilities() []ports.Capability {
	return []ports.Capability{ports.CapabilityEmbed}
}

func (f *fakeEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, string, int, error) {
	f.calls++
	if f.err != nil {
		return nil, "", 0, f.err
	}
	if f.badLength {
		return []float32{1, 0}, "fake-model", 3, nil
	}
	vec := make([]float32, f.dimension)
	// Deterministic per-text direction so distinct texts embed distinctly.
	vec[len(text)%f.dimension] = 1
	return vec, "fake-model", f.dimension, nil
}

type fakeVocabRegistry struct {
	types map[valueobjects.VocabTypeName]*entities.VocabType
}

func newFakeVocabRegistry() *fakeVocabRegistry {
	return &fakeVocabRegistry{types: make(map[valueobjects.VocabTypeName]*entities.VocabType)}
}

func (f *fakeVocabRegistry) Get(ctx context.Context, name valueobjects.VocabTypeName) (*entities.VocabType, error) {
	vt, ok := f.types[name]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "vocab type not found")
	}
	return vt, nil
}

func (f *fakeVocabRegistry) ListActive(ctx context.Context) ([]*entities.VocabType, error) {
	var out []*entities.VocabType
	for _, vt := range f.types {
		if vt.IsActive {
			out = append(out, vt)
		}
	}
	return out, nil
}

func (f *fakeVocabRegistry) Save(ctx context.Context, v *entities.VocabType) error {
	f.types[v.Name] = v
	return nil
}

func (f *fakeVocabRegistry) Delete(ctx context.Context, name valueobjects.VocabTypeName) error {
	delete(f.types, name)
	return nil
}

func (f *fakeVocabRegistry) InactiveRatio(ctx context.Context) (float64, error) { return 0, nil }

type fakeConfigStore struct {
	ports.ConfigStore
	active *config.EmbeddingConfig
}

func (f *fakeConfigStore) ActiveEmbeddingConfig(ctx context.Context) (*config.EmbeddingConfig, error) {
	if f.active == nil {
		return nil, apperr.New(apperr.NotFound, "no active embedding config")
	}
	return f.active, nil
}

func (f *fakeConfigStore) ActivateEmbeddingConfig(ctx context.Context, c config.EmbeddingConfig) error {
	f.active = &c
	return nil
}

type fakeSourceEmbeddingStore struct {
	rows  map[string]entities.SourceEmbedding
	saves int
}

func newFakeSourceEmbeddingStore() *fakeSourceEmbeddingStore {
	return &fakeSourceEmbeddingStore{rows: make(map[string]entities.SourceEmbedding)}
}

func seKey(sourceID valueobjects.SourceID, chunkIndex int, strategy entities.ChunkStrategy) string {
	return fmt.Sprintf("%s/%s/%d", sourceID, strategy, chunkIndex)
}

func (f *fakeSourceEmbeddingStore) Save(ctx context.Context, se entities.SourceEmbedding) error {
	f.saves++
	f.rows[seKey(se.SourceID, se.ChunkIndex, se.Strategy)] = se
	return nil
}

func (f *fakeSourceEmbeddingStore) Get(ctx context.Context, sourceID valueobjects.SourceID, chunkIndex int, strategy entities.ChunkStrategy) (*entities.SourceEmbedding, error) {
	se, ok := f.rows[seKey(sourceID, chunkIndex, strategy)]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "source embedding not found")
	}
	return &se, nil
}

func (f *fakeSourceEmbeddingStore) Coverage(ctx context.Context, activeDimension int) (int, int, error) {
	total, atDim := 0, 0
	for _, se := range f.rows {
		total++
		if se.Embedding.Dimension == activeDimension {
			atDim++
		}
	}
	return total, atDim, nil
}

func (f *fakeSourceEmbeddingStore) ListForSource(ctx context.Context, sourceID valueobjects.SourceID) ([]entities.SourceEmbedding, error) {
	var out []entities.SourceEmbedding
	for _, se := range f.rows {
		if se.SourceID == sourceID {
			out = append(out, se)
		}
	}
	return out, nil
}

type fakeGraphStore struct {
	ports.GraphStore
	bulkBatches []map[valueobjects.ConceptID]valueobjects.Embedding
	coverage    [4]int // total, atDim, stale, missing
}

func (f *fakeGraphStore) BulkUpdateConceptEmbeddings(ctx context.Context, batch map[valueobjects.ConceptID]valueobjects.Embedding) error {
	f.bulkBatches = append(f.bulkBatches, batch)
	return nil
}

func (f *fakeGraphStore) EmbeddingCoverage(ctx context.Context, activeDimension int) (int, int, int, int, error) {
	return f.coverage[0], f.coverage[1], f.coverage[2], f.coverage[3], nil
}

func newTestEmbeddingService(provider *fakeEmbeddingProvider, registry *fakeVocabRegistry, graph ports.GraphStore) *EmbeddingService {
	return NewEmbeddingService(provider, &fakeConfigStore{}, graph, registry, zap.NewNop())
}

func TestEmbedReturnsUnitNormVector(t *testing.T) {
	svc := newTestEmbeddingService(&fakeEmbeddingProvider{dimension: 3}, newFakeVocabRegistry(), nil)
	emb, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, emb.Dimension)

	var norm float64
	for _, x := range emb.Vector {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestEmbedSurfacesProviderFailure(t *testing.T) {
	svc := newTestEmbeddingService(&fakeEmbeddingProvider{err: errors.New("connection refused")}, newFakeVocabRegistry(), nil)
	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}

func TestEmbedRejectsDimensionMismatchFromProvider(t *testing.T) {
	svc := newTestEmbeddingService(&fakeEmbeddingProvider{badLength: true}, newFakeVocabRegistry(), nil)
	_, err := svc.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.DimensionMismatch, apperr.KindOf(err))
}

// Scenario S6: a fresh system seeds all 30 builtin types, and re-running
// the cold start fills no further gaps.
func TestInitializeBuiltinVocabularyColdStart(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	registry := newFakeVocabRegistry()
	svc := newTestEmbeddingService(provider, registry, nil)

	created, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, created)

	for _, vt := range registry.types {
		assert.True(t, vt.IsBuiltin)
		assert.True(t, vt.IsActive)
		require.NoError(t, vt.RequireEmbedded())
	}

	again, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again, "cold start is idempotent")
}

func TestInitializeBuiltinVocabularyFillsOnlyGaps(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	registry := newFakeVocabRegistry()
	svc := newTestEmbeddingService(provider, registry, nil)

	_, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)
	require.NoError(t, registry.Delete(context.Background(), "SUPPORTS"))

	created, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
}

func TestEnsureSourceEmbeddedIsIdempotent(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	svc := newTestEmbeddingService(provider, newFakeVocabRegistry(), nil)
	store := newFakeSourceEmbeddingStore()

	source, err := entities.NewSource("ont", "doc", "", "a short paragraph of text")
	require.NoError(t, err)

	first, err := svc.EnsureSourceEmbedded(context.Background(), store, source, entities.ChunkParagraph)
	require.NoError(t, err)
	require.Len(t, first, 1)
	callsAfterFirst := provider.calls

	second, err := svc.EnsureSourceEmbedded(context.Background(), store, source, entities.ChunkParagraph)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, callsAfterFirst, provider.calls, "fresh chunk must not re-embed")
	assert.Equal(t, first[0].ChunkHash, second[0].ChunkHash)
}

func TestEnsureSourceEmbeddedRegeneratesStaleChunk(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	svc := newTestEmbeddingService(provider, newFakeVocabRegistry(), nil)
	store := newFakeSourceEmbeddingStore()

	source, err := entities.NewSource("ont", "doc", "", "original text")
	require.NoError(t, err)
	_, err = svc.EnsureSourceEmbedded(context.Background(), store, source, entities.ChunkParagraph)
	require.NoError(t, err)

	source.FullText = "edited text"
	callsBefore := provider.calls
	rows, err := svc.EnsureSourceEmbedded(context.Background(), store, source, entities.ChunkParagraph)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Greater(t, provider.calls, callsBefore)
	assert.Equal(t, entities.HashText("edited text"), rows[0].SourceHash)
}

func TestRegenerateAllBulkWritesAndCountsFailures(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	graph := &fakeGraphStore{}
	svc := newTestEmbeddingService(provider, newFakeVocabRegistry(), graph)

	concepts := []*entities.Concept{
		mustConcept(t, "Concept One"),
		mustConcept(t, "Concept Two"),
	}
	result, err := svc.RegenerateAll(context.Background(), concepts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Regenerated)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, graph.bulkBatches, 1)
	assert.Len(t, graph.bulkBatches[0], 2)
}

func TestRegenerateVocabularyReembedsActiveTypes(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	registry := newFakeVocabRegistry()
	svc := newTestEmbeddingService(provider, registry, nil)
	_, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)

	result, err := svc.RegenerateVocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, result.Regenerated)
}

// Scenario S5: after activating a config with a new dimension, verify
// reports every existing concept, vocab type, and source chunk as stale.
func TestVerifyFlagsEverythingStaleAfterDimensionChange(t *testing.T) {
	provider := &fakeEmbeddingProvider{dimension: 3}
	registry := newFakeVocabRegistry()
	graph := &fakeGraphStore{coverage: [4]int{10, 0, 10, 0}}
	configs := &fakeConfigStore{}
	store := newFakeSourceEmbeddingStore()
	svc := NewEmbeddingService(provider, configs, graph, registry, zap.NewNop()).
		WithSourceEmbeddingStore(store)

	// Seed vocab and one source chunk at dimension 3.
	_, err := svc.InitializeBuiltinVocabulary(context.Background())
	require.NoError(t, err)
	require.NoError(t, configs.ActivateEmbeddingConfig(context.Background(), config.EmbeddingConfig{
		Provider: "fake", ModelName: "fake-model", Dimension: 3, Active: true,
	}))
	source, err := entities.NewSource("ont", "doc", "", "chunk text")
	require.NoError(t, err)
	_, err = svc.EnsureSourceEmbedded(context.Background(), store, source, entities.ChunkParagraph)
	require.NoError(t, err)

	// Switch the active dimension out from under everything.
	require.NoError(t, configs.ActivateEmbeddingConfig(context.Background(), config.EmbeddingConfig{
		Provider: "fake", ModelName: "bigger-model", Dimension: 1536, Active: true,
	}))

	report, err := svc.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1536, report.ActiveDimension)
	assert.Equal(t, 10, report.StaleDimension)
	assert.Equal(t, 30, report.VocabTypesMissing)
	assert.False(t, report.ReadyForGrounding())
	assert.Equal(t, 1, report.SourceChunksTotal)
	assert.Equal(t, 1, report.SourceChunksStale)
}

func mustConcept(t *testing.T, label string) *entities.Concept {
	t.Helper()
	c, err := entities.NewConcept(valueobjects.NewConceptID("src-test", 0, label), label, valueobjects.NewEmbedding([]float32{1, 0, 0}, "test-model"))
	require.NoError(t, err)
	return c
}
