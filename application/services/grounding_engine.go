package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/groundgraph/engine/application/ports"
	domainsvc "github.com/groundgraph/engine/domain/services"
	"go.uber.org/zap"
)

const (
	axisCacheKey          = "grounding:axis:default"
	axisCacheTTL          = 10 * time.Minute
	groundingCacheTTL     = 2 * time.Minute
	groundingCacheKeyFmt  = "grounding:concept:%s:%d:%.4f"
)

// GroundingEngine orchestrates domain/services' pure Axis/GroundingCalculator
// math against live vocabulary and graph data, with a two-tier cache: the
// default polarity axis (rebuilt rarely — only on vocabulary change) and
// per-concept grounding values (invalidated whenever the concept's incoming
// edge set changes), per spec.md §4.4's "two-tier caching" requirement.
type GroundingEngine struct {
	graph      ports.GraphStore
	vocab      ports.VocabRegistry
	cache      ports.Cache
	calculator *domainsvc.GroundingCalculator
	logger     *zap.Logger
}

func NewGroundingEngine(graph ports.GraphStore, vocab ports.VocabRegistry, cache ports.Cache, logger *zap.Logger) *GroundingEngine {
	return &GroundingEngine{
		graph:      graph,
		vocab:      vocab,
		cache:      cache,
		calculator: domainsvc.NewGroundingCalculator(),
		logger:     logger,
	}
}

type serializedAxis struct {
	Vector    []float32 `json:"vector"`
	Magnitude float64   `json:"magnitude"`
	PairCount int       `json:"pair_count"`
}

// DefaultAxis returns the polarity axis built from
// domainsvc.DefaultPolarityPairNames, served from cache when fresh.
func (g *GroundingEngine) DefaultAxis(ctx context.Context) (domainsvc.Axis, error) {
	if raw, ok, err := g.cache.Get(ctx, axisCacheKey); err == nil && ok {
		var s serializedAxis
		if jsonErr := json.Unmarshal(raw, &s); jsonErr == nil {
			return domainsvc.Axis{Vector: s.Vector, Magnitude: s.Magnitude, PairCount: s.PairCount}, nil
		}
	}

	var pairs []domainsvc.PolarityPair
	for _, pair := range domainsvc.DefaultPolarityPairNames {
		pos, posErr := g.vocab.Get(ctx, pair[0])
		neg, negErr := g.vocab.Get(ctx, pair[1])
		if posErr != nil || negErr != nil || pos == nil || neg == nil {
			continue
		}
		pairs = append(pairs, domainsvc.PolarityPair{Positive: pos.Embedding, Negative: neg.Embedding})
	}

	// Fewer than one usable pair yields the zero Axis; callers fall
	// through to GroundingCalculator's 0.0 result rather than an error.
	axis := domainsvc.BuildAxis(pairs)
	if !axis.IsValid() {
		return axis, nil
	}

	if raw, err := json.Marshal(serializedAxis{Vector: axis.Vector, Magnitude: axis.Magnitude, PairCount: axis.PairCount}); err == nil {
		_ = g.cache.Set(ctx, axisCacheKey, raw, axisCacheTTL)
	}
	return axis, nil
}

// InvalidateAxis is called whenever a polarity-pair VocabType's embedding
// changes (vocabulary-change event) so the next DefaultAxis call rebuilds.
func (g *GroundingEngine) InvalidateAxis(ctx context.Context) error {
	return g.cache.Delete(ctx, axisCacheKey)
}

// ConceptGrounding computes grounding for id against the default axis,
// using the concept's current edge count and confidence sum as a cheap
// cache-invalidation fingerprint: any edge addition/removal changes one
// of the two, busting the cached value without a version counter on the
// graph store itself.
func (g *GroundingEngine) ConceptGrounding(ctx context.Context, edges []domainsvc.GroundingEdge, conceptID string) (float64, error) {
	axis, err := g.DefaultAxis(ctx)
	if err != nil {
		return 0, err
	}

	var confidenceSum float64
	for _, e := range edges {
		confidenceSum += e.Confidence
	}
	key := fmt.Sprintf(groundingCacheKeyFmt, conceptID, len(edges), confidenceSum)

	if raw, ok, err := g.cache.Get(ctx, key); err == nil && ok {
		var v float64
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return v, nil
		}
	}

	grounding := g.calculator.Calculate(axis, edges)

	if raw, err := json.Marshal(grounding); err == nil {
		if err := g.cache.Set(ctx, key, raw, groundingCacheTTL); err != nil {
			g.logger.Warn("grounding cache write failed", zap.Error(err))
		}
	}
	return grounding, nil
}
