package ports

import (
	"context"
	"time"

	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
)

// Capability is a single operation a provider implementation advertises
// support for (spec.md §9 "Polymorphism across providers is a capability
// set {embed, extract, decide}").
type Capability string

const (
	CapabilityEmbed   Capability = "embed"
	CapabilityExtract Capability = "extract"
	CapabilityDecide  Capability = "decide"
)

// CapabilityProvider is implemented by every concrete provider adapter so
// the orchestrator can compose them (e.g. a reasoning provider that
// delegates embed to a local embedder).
type CapabilityProvider interface {
	Capabilities() []Capability
}

// EmbeddingProvider synchronously embeds text into a unit-norm vector.
type EmbeddingProvider interface {
	CapabilityProvider
	Embed(ctx context.Context, text string) (vector []float32, model string, dimension int, err error)
}

// ExtractedConcept is one concept proposal from ReasoningProvider.Extract.
type ExtractedConcept struct {
	Label       string
	SearchTerms []string
	EvidenceQuote string
}

// ExtractedRelationship is one relationship proposal, possibly naming a
// relationship type the registry does not (yet) know about.
type ExtractedRelationship struct {
	SourceLabel string
	TargetLabel string
	TypeName    string
	Confidence  float64
}

// ExtractResult is ReasoningProvider.Extract's return value (spec.md §6.1).
type ExtractResult struct {
	Concepts      []ExtractedConcept
	Relationships []ExtractedRelationship
	SkippedTypes  []string
}

// DecideAction is the typed outcome of a reasoning-provider decision call.
type DecideAction string

const (
	DecideMerge   DecideAction = "merge"
	DecideSkip    DecideAction = "skip"
	DecidePromote DecideAction = "promote"
	DecideDemote  DecideAction = "demote"
	DecideReject  DecideAction = "reject"
)

// Decision is the reasoning provider's structured verdict plus rationale.
type Decision struct {
	Action    DecideAction
	Rationale string
}

// ReasoningProvider performs structured extraction and merge/annealing
// decisions (spec.md §6.1). Decide is never called without numeric
// context — callers must pass a populated structuredContext map.
type ReasoningProvider interface {
	CapabilityProvider
	Extract(ctx context.Context, text string, systemPrompt string, knownConcepts []string) (ExtractResult, error)
	Decide(ctx context.Context, structuredContext map[string]interface{}) (Decision, error)

	// Describe turns one non-prose document node (a fenced code block, a
	// diagram) into a prose paragraph standing in for it during chunking
	// (spec.md §4.6 stage 1). kind names the node type for prompting, e.g.
	// "code" or "diagram".
	Describe(ctx context.Context, kind, content string) (string, error)
}

// SecretsStore manages encrypted provider credentials.
type SecretsStore interface {
	Get(ctx context.Context, provider string) ([]byte, error)
	Set(ctx context.Context, provider string, plaintext []byte) error
	ValidationStatus(ctx context.Context, provider string) (string, error)
}

// JobQueue is the durable queue port (spec.md §4.7).
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, data map[string]interface{}, source string) (valueobjects.JobID, error)

	// MarkAwaitingApproval moves a pending job behind the approval gate,
	// recording the pre-analysis cost estimate that triggered it
	// (spec.md §4.6 "approval gate").
	MarkAwaitingApproval(ctx context.Context, jobID valueobjects.JobID, analysis map[string]interface{}) error

	Approve(ctx context.Context, jobID valueobjects.JobID, approver string) error
	Claim(ctx context.Context, workerID string) (jobID valueobjects.JobID, ok bool, err error)

	// Load returns the full job row (type, data, status) — what a worker
	// needs to dispatch a claimed job, beyond Get's cheap poll snapshot.
	Load(ctx context.Context, jobID valueobjects.JobID) (*entities.Job, error)
	UpdateProgress(ctx context.Context, jobID valueobjects.JobID, progress float64) error
	Complete(ctx context.Context, jobID valueobjects.JobID) error
	// Fail records jobErr against the job. The error's kind decides
	// retry-vs-terminal per the job's retry budget (spec.md §7), so
	// callers must pass the original error, not a flattened message.
	Fail(ctx context.Context, jobID valueobjects.JobID, jobErr error) error
	Cancel(ctx context.Context, jobID valueobjects.JobID) error
	Get(ctx context.Context, jobID valueobjects.JobID) (*JobSnapshot, error)
	PublishEvent(ctx context.Context, jobID valueobjects.JobID, event JobEvent) error
	Subscribe(ctx context.Context, jobID valueobjects.JobID) (<-chan JobEvent, error)
}

// JobSnapshot is a cheap-to-poll cached view of the latest job state.
type JobSnapshot struct {
	JobID      valueobjects.JobID
	Status     string
	Progress   float64
	RetryCount int
	UpdatedAt  time.Time
}

// JobEvent is one append-only progress/status event.
type JobEvent struct {
	JobID     valueobjects.JobID
	Kind      string
	Message   string
	Progress  float64
	Timestamp time.Time
}

// AdvisoryLocker grants the process-wide leader lock the scheduler uses
// to guarantee at-most-one-instance execution (spec.md invariant 7).
type AdvisoryLocker interface {
	TryAcquire(ctx context.Context, key string) (release func(context.Context), acquired bool, err error)
}
