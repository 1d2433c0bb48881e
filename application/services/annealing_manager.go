package services

import (
	"context"
	"fmt"
	"time"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// AutomationLevel gates whether annealing proposals auto-execute.
type AutomationLevel string

const (
	AutomationAutonomous AutomationLevel = "autonomous"
	AutomationHITL       AutomationLevel = "hitl"
)

const (
	demotionProtectionThreshold = 0.15
	promotionMinDegree          = 10
)

// AnnealingConfig holds the `annealing.*` configuration keys (spec.md §6.4).
type AnnealingConfig struct {
	IntervalEpochs int
	Automation     AutomationLevel
	MaxProposals   int
}

// AnnealingManager runs the ontology self-organization cycle of spec.md
// §4.8: compute per-ontology metrics, derive affinity, find demotion and
// promotion candidates, put each through the reasoning provider, and
// (under autonomous automation) execute confirmed proposals immediately.
type AnnealingManager struct {
	ontologies ports.OntologyStore
	proposals  ports.AnnealingProposalStore
	reasoning  ports.ReasoningProvider
	graph      ports.GraphStore
	cfg        AnnealingConfig
	logger     *zap.Logger
}

func NewAnnealingManager(
	ontologies ports.OntologyStore,
	proposals ports.AnnealingProposalStore,
	reasoning ports.ReasoningProvider,
	graph ports.GraphStore,
	cfg AnnealingConfig,
	logger *zap.Logger,
) *AnnealingManager {
	return &AnnealingManager{ontologies: ontologies, proposals: proposals, reasoning: reasoning, graph: graph, cfg: cfg, logger: logger}
}

// CycleResult summarizes one annealing cycle's proposals.
type CycleResult struct {
	Promotions []*entities.AnnealingProposal
	Demotions  []*entities.AnnealingProposal
	Rejected   int
}

// RunCycle executes one complete annealing cycle (spec.md §4.8 steps 1-6).
func (a *AnnealingManager) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult

	ontologyList, err := a.ontologies.ListOntologies(ctx)
	if err != nil {
		return result, err
	}

	// Step 1: per-ontology mass/coherence/centroid/protection.
	metrics := make(map[string]ports.OntologyMetrics, len(ontologyList))
	for _, o := range ontologyList {
		m, err := a.ontologies.ComputeMetrics(ctx, o.ID)
		if err != nil {
			a.logger.Warn("ontology metrics computation failed", zap.String("ontology_id", o.ID), zap.Error(err))
			continue
		}
		metrics[o.ID] = m
	}

	// Step 2: no affinity matrix is computed in the cycle. Demotion picks
	// the absorbing neighbor inside OntologyStore.DemoteOntology by centroid
	// cosine; OntologyAffinity (ontology_affinity.go) is not called here.

	// Step 3: demotion candidates.
	demotionIDs, err := a.ontologies.DemotionCandidates(ctx, demotionProtectionThreshold)
	if err != nil {
		return result, err
	}

	// Step 4: promotion candidates.
	promotionIDs, err := a.ontologies.PromotionCandidates(ctx, promotionMinDegree)
	if err != nil {
		return result, err
	}

	maxProposals := a.cfg.MaxProposals
	if maxProposals <= 0 {
		maxProposals = 20
	}

	proposed := 0
	for _, ontologyID := range demotionIDs {
		if proposed >= maxProposals {
			break
		}
		m := metrics[ontologyID]
		proposal, accepted, err := a.decide(ctx, entities.ProposalDemote, ontologyID, m)
		if err != nil {
			return result, err
		}
		proposed++
		if !accepted {
			result.Rejected++
			continue
		}
		result.Demotions = append(result.Demotions, proposal)
	}

	for _, conceptID := range promotionIDs {
		if proposed >= maxProposals {
			break
		}
		proposal, accepted, err := a.decide(ctx, entities.ProposalPromote, string(conceptID), ports.OntologyMetrics{})
		if err != nil {
			return result, err
		}
		proposed++
		if !accepted {
			result.Rejected++
			continue
		}
		result.Promotions = append(result.Promotions, proposal)
	}

	return result, nil
}

func (a *AnnealingManager) decide(ctx context.Context, ptype entities.AnnealingProposalType, targetID string, m ports.OntologyMetrics) (*entities.AnnealingProposal, bool, error) {
	decision, err := a.reasoning.Decide(ctx, map[string]interface{}{
		"operation": "annealing_" + string(ptype),
		"target_id": targetID,
		"mass":      m.Mass,
		"coherence": m.Coherence,
		"protection": m.Protection,
	})
	if err != nil {
		return nil, false, apperr.Wrap(apperr.ProviderUnavailable, "annealing decision failed", err)
	}

	wantAction := ports.DecidePromote
	if ptype == entities.ProposalDemote {
		wantAction = ports.DecideDemote
	}
	if decision.Action == ports.DecideReject || decision.Action != wantAction {
		return nil, false, nil
	}

	proposal := &entities.AnnealingProposal{
		ID: fmt.Sprintf("prop_%s_%s", ptype, targetID), Type: ptype, TargetID: targetID,
		Scores: map[string]float64{"mass": float64(m.Mass), "coherence": m.Coherence, "protection": m.Protection},
		Status: entities.ProposalPending, Rationale: decision.Rationale,
	}

	if a.cfg.Automation == AutomationAutonomous {
		proposal.Approve("autonomous")
		if err := a.execute(ctx, proposal); err != nil {
			return nil, false, err
		}
	}

	if err := a.proposals.Save(ctx, proposal); err != nil {
		return nil, false, err
	}
	return proposal, true, nil
}

// execute performs the concept-membership move (promotion/demotion) and
// marks the proposal executed; the caller persists the final proposal
// state (spec.md §4.8 "execution jobs move concepts between ontology
// memberships atomically and trigger hot-view refresh").
func (a *AnnealingManager) execute(ctx context.Context, proposal *entities.AnnealingProposal) error {
	switch proposal.Type {
	case entities.ProposalPromote:
		if err := a.promoteConcept(ctx, valueobjects.ConceptID(proposal.TargetID)); err != nil {
			return err
		}
	case entities.ProposalDemote:
		if err := a.ontologies.DemoteOntology(ctx, proposal.TargetID); err != nil {
			return err
		}
	}
	proposal.Execute()
	return a.graph.RefreshHotViews(ctx)
}

// promoteConcept records the concept as an ontology anchor — a new
// Ontology anchored on it — and moves the concept's own membership into
// it. Without the anchor record, PromotionCandidates would re-propose the
// same concept every cycle (spec.md §4.8 "promoting high-degree concepts
// to ontology anchors").
func (a *AnnealingManager) promoteConcept(ctx context.Context, conceptID valueobjects.ConceptID) error {
	name := string(conceptID)
	if concept, err := a.graph.GetConcept(ctx, conceptID); err == nil {
		name = concept.Label()
	}
	ontology := &entities.Ontology{
		ID:        string(conceptID),
		Name:      name,
		AnchorIDs: []string{string(conceptID)},
		CreatedAt: time.Now(),
	}
	if err := a.ontologies.SaveOntology(ctx, ontology); err != nil {
		return err
	}
	return a.ontologies.MoveConcept(ctx, conceptID, ontology.ID)
}
