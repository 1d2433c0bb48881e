package queries

import (
	"context"

	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/services"
)

// VerifyEmbeddingsQuery is the admin embedding.verify operation.
type VerifyEmbeddingsQuery struct{}

func (q VerifyEmbeddingsQuery) QueryName() string { return "embedding.verify" }

type VerifyEmbeddingsHandler struct {
	embedding *services.EmbeddingService
}

func NewVerifyEmbeddingsHandler(embedding *services.EmbeddingService) *VerifyEmbeddingsHandler {
	return &VerifyEmbeddingsHandler{embedding: embedding}
}

func (h *VerifyEmbeddingsHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	if _, ok := query.(VerifyEmbeddingsQuery); !ok {
		return nil, errWrongQuery("VerifyEmbeddingsQuery", query)
	}
	return h.embedding.Verify(ctx)
}

// RegenerateEmbeddingsScope selects which embedding namespace a
// regenerate run covers (spec.md §4.2 "never mixes models across a scope
// within a single run").
type RegenerateEmbeddingsScope string

const (
	ScopeConcept RegenerateEmbeddingsScope = "concept"
	ScopeSource  RegenerateEmbeddingsScope = "source"
	ScopeVocab   RegenerateEmbeddingsScope = "vocab"
	ScopeAll     RegenerateEmbeddingsScope = "all"
)

// RegenerateEmbeddingsQuery is the admin embedding.regenerate operation.
// Despite the name it is state-changing and heavy (it enqueues a job) —
// kept under queries/ rather than commands/ because it is read-modeled
// (returns a progress handle rather than only an error), matching how
// the teacher's admin-style operations blur the CQRS line for
// long-running batch work.
type RegenerateEmbeddingsQuery struct {
	Scope  RegenerateEmbeddingsScope
	Filter map[string]interface{}
}

func (q RegenerateEmbeddingsQuery) QueryName() string { return "embedding.regenerate" }

type RegenerateEmbeddingsHandler struct {
	jobs ports.JobQueue
}

func NewRegenerateEmbeddingsHandler(jobs ports.JobQueue) *RegenerateEmbeddingsHandler {
	return &RegenerateEmbeddingsHandler{jobs: jobs}
}

func (h *RegenerateEmbeddingsHandler) Handle(ctx context.Context, query mediator.Query) (interface{}, error) {
	q, ok := query.(RegenerateEmbeddingsQuery)
	if !ok {
		return nil, errWrongQuery("RegenerateEmbeddingsQuery", query)
	}
	data := map[string]interface{}{"scope": string(q.Scope), "filter": q.Filter}
	return h.jobs.Enqueue(ctx, "regenerate_embeddings", data, "user")
}
