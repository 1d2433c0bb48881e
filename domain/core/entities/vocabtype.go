// Grounded on backend's domain/core/entities/edge_types.go (closed enum of
// edge kinds), generalized into a full relationship-type registry entry
// with its own embedding and measured semantic role.
package entities

import (
	"time"

	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// VocabCategory is one of the eight closed relationship-type categories.
type VocabCategory string

const (
	CategoryCausation  VocabCategory = "causation"
	CategoryComposition VocabCategory = "composition"
	CategoryLogical    VocabCategory = "logical"
	CategoryEvidential VocabCategory = "evidential"
	CategorySemantic   VocabCategory = "semantic"
	CategoryTemporal   VocabCategory = "temporal"
	CategoryDependency VocabCategory = "dependency"
	CategoryDerivation VocabCategory = "derivation"
)

// SemanticRole is the measured affirmative/contested/contradictory
// classification from spec.md §4.3(b).
type SemanticRole string

const (
	RoleAffirmative     SemanticRole = "AFFIRMATIVE"
	RoleContested       SemanticRole = "CONTESTED"
	RoleContradictory   SemanticRole = "CONTRADICTORY"
	RoleHistorical      SemanticRole = "HISTORICAL"
	RoleUnclassified    SemanticRole = "UNCLASSIFIED"
	RoleInsufficientData SemanticRole = "INSUFFICIENT_DATA"
)

// GroundingStats is the measured-role aggregate plus provenance.
type GroundingStats struct {
	Mean       float64
	Variance   float64
	SampleSize int
	MeasuredAt time.Time
}

// VocabType is a registered relationship type, e.g. SUPPORTS.
type VocabType struct {
	Name               valueobjects.VocabTypeName
	Description        string
	Category           VocabCategory
	CategoryConfidence float64
	Ambiguous          bool
	RunnerUpCategory   VocabCategory
	IsBuiltin          bool
	IsActive           bool
	UsageCount         int
	Embedding          valueobjects.Embedding
	SemanticRole       SemanticRole
	Grounding          GroundingStats
}

// NewVocabType constructs a new, active type awaiting classification and
// an embedding. name is kept exactly as given: neither this constructor
// nor the registry's Save upper-cases it.
func NewVocabType(name valueobjects.VocabTypeName, description string, isBuiltin bool) (*VocabType, error) {
	if name == "" {
		return nil, apperr.New(apperr.Validation, "vocab type name cannot be empty")
	}
	return &VocabType{
		Name: name, Description: description, IsBuiltin: isBuiltin, IsActive: true,
		SemanticRole: RoleUnclassified,
	}, nil
}

// RequireEmbedded returns an apperr.Validation error if this type lacks
// an embedding — invariant 1 requires every active
// VocabType to carry one before it can participate in polarity math.
func (v *VocabType) RequireEmbedded() error {
	if v.Embedding.IsZero() {
		return apperr.New(apperr.Validation, "vocab type has no embedding yet")
	}
	return nil
}

// RecordUsage increments the usage counter — called once per add_edge that
// references this type, and read by vocabulary pruning (zero-usage custom
// types are eligible for removal, spec.md §4.3).
func (v *VocabType) RecordUsage() { v.UsageCount++ }

// Relationship is a directed typed edge between two Concepts.
type Relationship struct {
	SourceConceptID valueobjects.ConceptID
	TargetConceptID valueobjects.ConceptID
	Type            valueobjects.VocabTypeName
	Confidence      float64
	IngestedAt      time.Time
	Provenance      string
}

func NewRelationship(src, dst valueobjects.ConceptID, vocabType valueobjects.VocabTypeName, confidence float64) (*Relationship, error) {
	if confidence < 0 || confidence > 1 {
		return nil, apperr.New(apperr.Validation, "confidence must be in [0,1]")
	}
	return &Relationship{
		SourceConceptID: src, TargetConceptID: dst, Type: vocabType,
		Confidence: confidence, IngestedAt: time.Now(),
	}, nil
}
