package services

import (
	"context"
	"sort"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	domainsvc "github.com/groundgraph/engine/domain/services"
	"github.com/groundgraph/engine/pkg/apperr"
)

// PolarityQueryService answers arbitrary two-pole polarity queries: given
// a positive and negative concept, rank a candidate set by projection onto
// the pole-difference axis and report axis strength and (optionally)
// correlation with stored grounding (spec.md §4.5).
type PolarityQueryService struct {
	graph     ports.GraphStore
	vocab     ports.VocabRegistry
	grounding *GroundingEngine
}

func NewPolarityQueryService(graph ports.GraphStore, vocab ports.VocabRegistry, grounding *GroundingEngine) *PolarityQueryService {
	return &PolarityQueryService{graph: graph, vocab: vocab, grounding: grounding}
}

// RankedCandidate is one scored concept in a polarity query result.
type RankedCandidate struct {
	ConceptID valueobjects.ConceptID
	domainsvc.CandidateProjection
}

// PolarityQueryResult is the full answer to AnalyzePolarityAxis.
type PolarityQueryResult struct {
	AxisQuality      domainsvc.AxisQuality
	AxisMagnitude    float64
	Candidates       []RankedCandidate
	CorrelationR     float64
	CorrelationP     float64
	CorrelationValid bool
}

// AnalyzePolarityAxis projects every candidate onto the axis formed by
// (positive, negative), auto-discovering candidates from the neighborhood
// of both poles when candidateIDs is empty (spec.md §4.5 "auto-discover
// candidates from the shared neighborhood of both poles when none are
// given explicitly").
func (s *PolarityQueryService) AnalyzePolarityAxis(
	ctx context.Context,
	positiveID, negativeID valueobjects.ConceptID,
	candidateIDs []valueobjects.ConceptID,
	autoDiscover bool,
	neighborhoodDepth, maxCandidates int,
) (PolarityQueryResult, error) {
	positive, err := s.graph.GetConcept(ctx, positiveID)
	if err != nil {
		return PolarityQueryResult{}, err
	}
	negative, err := s.graph.GetConcept(ctx, negativeID)
	if err != nil {
		return PolarityQueryResult{}, err
	}

	quality, magnitude := domainsvc.ClassifyAxisQuality(positive.Embedding(), negative.Embedding())

	if maxCandidates <= 0 {
		maxCandidates = 20
	}
	if len(candidateIDs) == 0 && autoDiscover {
		candidateIDs, err = s.discoverCandidates(ctx, positiveID, negativeID, neighborhoodDepth)
		if err != nil {
			return PolarityQueryResult{}, err
		}
	}
	if len(candidateIDs) > maxCandidates {
		candidateIDs = candidateIDs[:maxCandidates]
	}

	axis := domainsvc.BuildAxis([]domainsvc.PolarityPair{{Positive: positive.Embedding(), Negative: negative.Embedding()}})

	var ranked []RankedCandidate
	var positions, groundings []float64
	for _, id := range candidateIDs {
		c, err := s.graph.GetConcept(ctx, id)
		if err != nil {
			continue // unresolvable candidate is skipped, not fatal
		}
		proj := domainsvc.ProjectCandidate(c.Embedding(), positive.Embedding(), negative.Embedding(), axis)
		ranked = append(ranked, RankedCandidate{ConceptID: id, CandidateProjection: proj})
		positions = append(positions, proj.Position)

		if edges, edgeErr := s.incomingGroundingEdges(ctx, id); edgeErr == nil {
			if g, gErr := s.grounding.ConceptGrounding(ctx, edges, string(id)); gErr == nil {
				groundings = append(groundings, g)
			}
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Position > ranked[j].Position })

	result := PolarityQueryResult{AxisQuality: quality, AxisMagnitude: magnitude, Candidates: ranked}
	if len(positions) == len(groundings) && len(positions) >= 3 {
		r, p := domainsvc.PearsonCorrelation(positions, groundings)
		result.CorrelationR, result.CorrelationP, result.CorrelationValid = r, p, true
	}
	return result, nil
}

func (s *PolarityQueryService) discoverCandidates(ctx context.Context, positiveID, negativeID valueobjects.ConceptID, depth int) ([]valueobjects.ConceptID, error) {
	if depth <= 0 {
		depth = 2
	}
	seen := map[valueobjects.ConceptID]bool{}
	var out []valueobjects.ConceptID
	for _, pole := range []valueobjects.ConceptID{positiveID, negativeID} {
		groups, err := s.graph.Neighborhood(ctx, pole, depth, nil)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "neighborhood discovery failed", err)
		}
		for _, g := range groups {
			for _, id := range g.Concepts {
				if !seen[id] && id != positiveID && id != negativeID {
					seen[id] = true
					out = append(out, id)
				}
			}
		}
	}
	return out, nil
}

func (s *PolarityQueryService) incomingGroundingEdges(ctx context.Context, id valueobjects.ConceptID) ([]domainsvc.GroundingEdge, error) {
	rels, err := s.graph.IncomingEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	edges := make([]domainsvc.GroundingEdge, 0, len(rels))
	for _, rel := range rels {
		vt, err := s.vocab.Get(ctx, valueobjects.VocabTypeName(rel.Type))
		if err != nil || vt == nil || vt.Embedding.IsZero() {
			continue
		}
		edges = append(edges, domainsvc.GroundingEdge{VocabTypeEmbedding: vt.Embedding, Confidence: rel.Confidence})
	}
	return edges, nil
}
