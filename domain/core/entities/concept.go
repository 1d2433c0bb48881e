// Package entities holds the engine's rich domain models: private fields,
// validated constructors, and an internal event log drained by callers
// after a successful save. Grounded on backend's
// domain/core/entities/node.go, generalized from a 2D canvas node to a
// dedup-merged Concept carrying a semantic embedding.
package entities

import (
	"strings"
	"time"

	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/domain/events"
	"github.com/groundgraph/engine/pkg/apperr"
)

// Concept is a dedup-merged node representing an idea extracted from text.
type Concept struct {
	id          valueobjects.ConceptID
	label       string
	searchTerms map[string]struct{}
	embedding   valueobjects.Embedding
	evidenceCount int
	createdAt   time.Time
	updatedAt   time.Time
	version     int

	events []events.DomainEvent
}

// NewConcept creates a brand new Concept. Called by upsert_concept only
// after knn_concepts found no sufficiently similar existing Concept.
func NewConcept(id valueobjects.ConceptID, label string, embedding valueobjects.Embedding) (*Concept, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperr.New(apperr.Validation, "concept label cannot be empty")
	}
	if embedding.IsZero() {
		return nil, apperr.New(apperr.Validation, "concept requires a non-zero embedding")
	}
	now := time.Now()
	c := &Concept{
		id:          id,
		label:       label,
		searchTerms: map[string]struct{}{strings.ToLower(label): {}},
		embedding:   embedding,
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}
	c.record(events.NewConceptCreated(id.String(), label))
	return c, nil
}

// RehydrateConcept reconstructs a Concept from persisted state without
// re-running creation validation or emitting events — used by repository
// Get paths.
func RehydrateConcept(id valueobjects.ConceptID, label string, searchTerms []string, embedding valueobjects.Embedding, evidenceCount, version int, createdAt, updatedAt time.Time) *Concept {
	terms := make(map[string]struct{}, len(searchTerms))
	for _, t := range searchTerms {
		terms[strings.ToLower(t)] = struct{}{}
	}
	return &Concept{
		id: id, label: label, searchTerms: terms, embedding: embedding,
		evidenceCount: evidenceCount, version: version, createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (c *Concept) ID() valueobjects.ConceptID { return c.id }
func (c *Concept) Label() string              { return c.label }
func (c *Concept) Embedding() valueobjects.Embedding { return c.embedding }
func (c *Concept) Version() int               { return c.version }
func (c *Concept) EvidenceCount() int         { return c.evidenceCount }
func (c *Concept) CreatedAt() time.Time       { return c.createdAt }
func (c *Concept) UpdatedAt() time.Time       { return c.updatedAt }

// SearchTerms returns a defensive copy of the alias set.
func (c *Concept) SearchTerms() []string {
	out := make([]string, 0, len(c.searchTerms))
	for t := range c.searchTerms {
		out = append(out, t)
	}
	return out
}

// MergeAlias adds alias as a search term if not already present, bumping
// version. Self-merge with an already-known alias is a silent no-op,
// matching upsert_concept's idempotence requirement (spec.md testable
// property: merging synonyms twice is a no-op on the second application).
func (c *Concept) MergeAlias(alias string) {
	key := strings.ToLower(strings.TrimSpace(alias))
	if key == "" {
		return
	}
	if _, exists := c.searchTerms[key]; exists {
		return
	}
	c.searchTerms[key] = struct{}{}
	c.version++
	c.updatedAt = time.Now()
	c.record(events.NewConceptMerged(c.id.String(), alias))
}

// RecordEvidence increments the evidence count backing this concept; called
// once per Instance created during ingestion (§4.6 stage 4).
func (c *Concept) RecordEvidence() {
	c.evidenceCount++
	c.updatedAt = time.Now()
}

// ReplaceEmbedding swaps in a freshly-regenerated embedding (§4.2
// regenerate). Does not touch evidenceCount/searchTerms.
func (c *Concept) ReplaceEmbedding(e valueobjects.Embedding) {
	c.embedding = e
	c.version++
	c.updatedAt = time.Now()
}

func (c *Concept) record(e events.DomainEvent) { c.events = append(c.events, e) }

// PullEvents drains and returns the accumulated domain events.
func (c *Concept) PullEvents() []events.DomainEvent {
	out := c.events
	c.events = nil
	return out
}
