package entities

import "time"

// ScheduledTask is a cron-driven registration that invokes a cheap
// launcher condition before enqueuing real work (spec.md §4.7).
type ScheduledTask struct {
	Name           string
	CronExpression string
	LauncherRef    string
	Enabled        bool
	LastRun        *time.Time
	LastSuccess    *time.Time
	NextRun        time.Time
	RetryCount     int
	MaxRetries     int
}

// RecordSkip records a launcher run whose condition was false — not a
// failure, just an update to LastRun/NextRun (spec.md §4.7 "mark run as
// skip (not a failure)").
func (t *ScheduledTask) RecordSkip(now time.Time, next time.Time) {
	t.LastRun = &now
	t.NextRun = next
}

// RecordSuccess records a launcher run whose condition passed and whose
// job enqueue succeeded.
func (t *ScheduledTask) RecordSuccess(now time.Time, next time.Time) {
	t.LastRun = &now
	t.LastSuccess = &now
	t.NextRun = next
	t.RetryCount = 0
}

// RecordFailure increments RetryCount and disables the task once
// RetryCount reaches MaxRetries (spec.md §4.7 "Exceptions increment retry_count;
// >= max_retries disables the task").
func (t *ScheduledTask) RecordFailure(now time.Time, next time.Time) {
	t.LastRun = &now
	t.NextRun = next
	t.RetryCount++
	if t.RetryCount >= t.MaxRetries {
		t.Enabled = false
	}
}

// AnnealingProposalType distinguishes promotion from demotion proposals.
type AnnealingProposalType string

const (
	ProposalPromote AnnealingProposalType = "promote"
	ProposalDemote  AnnealingProposalType = "demote"
)

// AnnealingProposalStatus is the lifecycle of a single promotion/demotion
// decision (spec.md §4.8).
type AnnealingProposalStatus string

const (
	ProposalPending  AnnealingProposalStatus = "pending"
	ProposalApproved AnnealingProposalStatus = "approved"
	ProposalExecuted AnnealingProposalStatus = "executed"
	ProposalRejected AnnealingProposalStatus = "rejected"
)

// AnnealingProposal is a single promote/demote decision awaiting or having
// received approval.
type AnnealingProposal struct {
	ID         string
	Type       AnnealingProposalType
	TargetID   string
	Scores     map[string]float64
	Status     AnnealingProposalStatus
	Rationale  string
	Reviewer   string
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

// Approve moves a pending proposal to approved, recording the reviewer —
// either a human (hitl) or the autonomous automation level itself.
func (p *AnnealingProposal) Approve(reviewer string) {
	p.Status = ProposalApproved
	p.Reviewer = reviewer
	now := time.Now()
	p.DecidedAt = &now
}

func (p *AnnealingProposal) Reject(reviewer string) {
	p.Status = ProposalRejected
	p.Reviewer = reviewer
	now := time.Now()
	p.DecidedAt = &now
}

func (p *AnnealingProposal) Execute() {
	p.Status = ProposalExecuted
}

// Ontology is a namespace of Sources (and transitively Concepts via their
// evidence). Concepts themselves remain global.
type Ontology struct {
	ID          string
	Name        string
	AnchorIDs   []string
	CreatedAt   time.Time
}
