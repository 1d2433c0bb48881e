// Package valueobjects holds the engine's small immutable value types.
// Grounded on backend's domain/core/valueobjects/position.go: validated
// constructors, private fields, value (not pointer) receivers.
package valueobjects

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ConceptID is the opaque deterministic identifier for a Concept.
// NewConceptID derives one from source id, chunk index and label; the
// DynamoDB graph store derives the IDs it creates from the label hash alone.
type ConceptID string

// NewConceptID derives a ConceptID from the chunk's source id, chunk index
// and the normalized concept label, so upsert_concept's dedup path and a
// second ingestion run of the same chunk converge on the same identifier
// space before similarity-based merge even runs.
func NewConceptID(sourceID string, chunkIndex int, label string) ConceptID {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", sourceID, chunkIndex, label)))
	return ConceptID("cpt_" + hex.EncodeToString(h[:16]))
}

func (id ConceptID) String() string { return string(id) }
func (id ConceptID) IsZero() bool   { return id == "" }

// SourceID uniquely identifies an ingested chunk.
type SourceID string

func NewSourceID() SourceID { return SourceID("src_" + uuid.NewString()) }
func (id SourceID) String() string { return string(id) }

// InstanceID identifies an evidence binding between a Concept and a Source.
type InstanceID string

func NewInstanceID() InstanceID { return InstanceID("ins_" + uuid.NewString()) }
func (id InstanceID) String() string { return string(id) }

// VocabTypeName is the uppercase relationship-type identifier, e.g. SUPPORTS.
type VocabTypeName string

func (n VocabTypeName) String() string { return string(n) }

// JobID identifies a durable unit of ingestion/maintenance work.
type JobID string

func NewJobID() JobID { return JobID("job_" + uuid.NewString()) }

func (id JobID) String() string { return string(id) }

// OntologyID identifies a namespace of Sources.
type OntologyID string

// ProposalID identifies an annealing proposal.
type ProposalID string

func NewProposalID() ProposalID { return ProposalID("prop_" + uuid.NewString()) }

// ScheduledTaskID identifies a cron-driven launcher registration.
type ScheduledTaskID string
