package services

import (
	"context"
	"sort"
	"strings"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
	"go.uber.org/zap"
)

// IngestionConfig holds the chunking/approval knobs from spec.md §6.4's
// `ingest.*` keys.
type IngestionConfig struct {
	TargetWords        int
	OverlapWords        int
	AutoApprove         bool
	CostThresholdChunks int
	MergeSimilarity     float64
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{TargetWords: 1000, OverlapWords: 200, CostThresholdChunks: 20, MergeSimilarity: 0.70}
}

// IngestDocumentRequest is the input to IngestionPipeline.Run.
type IngestDocumentRequest struct {
	Ontology   string
	Document   string
	FullText   string
	Force      bool
	IsMarkdown bool
}

// CancelCheck is polled between chunks to implement cooperative
// cancellation (spec.md §5 "a job checks a cancel flag between chunks").
type CancelCheck func(ctx context.Context, jobID string) (bool, error)

// IngestionPipeline turns a submitted document into graph state across
// the five stages of spec.md §4.6: preprocess, chunk, extract, embed &
// upsert, finalize.
type IngestionPipeline struct {
	graph     ports.GraphStore
	vocab     ports.VocabRegistry
	embedding *EmbeddingService
	sourceEmb ports.SourceEmbeddingStore
	reasoning ports.ReasoningProvider
	jobs      ports.JobQueue
	skipped   ports.SkippedRelationshipStore
	preprocess *MarkdownPreprocessor
	counters  *EventCounters
	cfg       IngestionConfig
	logger    *zap.Logger
}

func NewIngestionPipeline(
	graph ports.GraphStore,
	vocab ports.VocabRegistry,
	embedding *EmbeddingService,
	sourceEmb ports.SourceEmbeddingStore,
	reasoning ports.ReasoningProvider,
	jobs ports.JobQueue,
	cfg IngestionConfig,
	logger *zap.Logger,
) *IngestionPipeline {
	return &IngestionPipeline{
		graph: graph, vocab: vocab, embedding: embedding, sourceEmb: sourceEmb,
		reasoning: reasoning, jobs: jobs, cfg: cfg, logger: logger,
		preprocess: NewMarkdownPreprocessor(reasoning, 3),
	}
}

// WithSkippedRelationshipStore attaches the curation surface for
// unresolved relationship types (spec.md §4.6 stage 3). Optional: a
// pipeline built without one still runs, it just loses durable curation
// history and only reports in-memory SkippedTypes per job.
func (p *IngestionPipeline) WithSkippedRelationshipStore(store ports.SkippedRelationshipStore) *IngestionPipeline {
	p.skipped = store
	return p
}

// WithEventCounters attaches the shared scheduler-launcher counters so a
// completed ingestion job bumps the epoch delta the annealing launcher
// watches (spec.md §4.6 stage 5 "enqueue an annealing check").
func (p *IngestionPipeline) WithEventCounters(counters *EventCounters) *IngestionPipeline {
	p.counters = counters
	return p
}

// chunk is one ordered, overlapping slice of the preprocessed document.
type chunk struct {
	index              int
	text               string
	startOffset, endOffset int
}

// Chunk splits text into ordered ~targetWords-word chunks with overlap
// (spec.md §4.6 stage 2). Offsets are word-boundary byte offsets into text.
func Chunk(text string, targetWords, overlapWords int) []chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if targetWords <= 0 {
		targetWords = 1000
	}
	if overlapWords < 0 || overlapWords >= targetWords {
		overlapWords = 0
	}

	// Byte offsets of each word, so chunk boundaries map back into text.
	offsets := make([][2]int, 0, len(words))
	pos := 0
	for _, w := range words {
		idx := strings.Index(text[pos:], w)
		start := pos + idx
		offsets = append(offsets, [2]int{start, start + len(w)})
		pos = start + len(w)
	}

	var chunks []chunk
	step := targetWords - overlapWords
	for start := 0; start < len(words); start += step {
		end := start + targetWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, chunk{
			index:       len(chunks),
			text:        strings.Join(words[start:end], " "),
			startOffset: offsets[start][0],
			endOffset:   offsets[end-1][1],
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// IngestionResult summarizes one completed (or no-op) ingestion job.
type IngestionResult struct {
	JobID          valueobjects.JobID
	SourcesCreated int
	ConceptsTouched int
	EdgesCreated    int
	SkippedTypes    map[string]bool
	Duplicate       bool
}

// Run executes a single ingestion job end to end. The job must already be
// in JobProcessing (callers run it via the job queue's worker loop); Run
// records progress on job (and through JobQueue.UpdateProgress) but makes
// no status transition — completion and failure are set by the caller's
// worker loop per §4.7.
func (p *IngestionPipeline) Run(ctx context.Context, job *entities.Job, req IngestDocumentRequest, cancel CancelCheck) (IngestionResult, error) {
	result := IngestionResult{JobID: valueobjects.JobID(job.ID), SkippedTypes: map[string]bool{}}

	contentHash := entities.HashText(req.FullText)
	if !req.Force {
		if existing, err := p.graph.FindSourceByHash(ctx, req.Ontology, contentHash); err == nil && existing != nil {
			result.Duplicate = true
			job.SetProgress(1.0)
			return result, nil
		}
	}

	// Stage 1: markdown inputs get their code/diagram blocks replaced by
	// reasoning-provider prose before chunking (spec.md §4.6 stage 1); any
	// other input passes through untouched.
	fullText := req.FullText
	if req.IsMarkdown {
		linearized, err := p.preprocess.Preprocess(ctx, []byte(req.FullText))
		if err != nil {
			return result, err
		}
		fullText = linearized
	}

	chunks := Chunk(fullText, p.cfg.TargetWords, p.cfg.OverlapWords)
	if len(chunks) == 0 {
		return result, apperr.New(apperr.Validation, "document produced no ingestible chunks")
	}

	// Concepts resolved so far in this job, fed back to the extractor so
	// later chunks can relate against them.
	known := make(map[string]valueobjects.ConceptID)

	for _, ch := range chunks {
		if cancel != nil {
			cancelled, err := cancel(ctx, job.ID)
			if err != nil {
				return result, err
			}
			if cancelled {
				return result, apperr.New(apperr.Cancelled, "ingestion cancelled between chunks")
			}
		}

		if err := p.processChunk(ctx, req.Ontology, req.Document, contentHash, ch, known, result.SkippedTypes, &result); err != nil {
			return result, err
		}

		job.SetProgress(float64(ch.index+1) / float64(len(chunks)))
		if p.jobs != nil {
			_ = p.jobs.UpdateProgress(ctx, valueobjects.JobID(job.ID), job.Progress)
		}
	}

	// Stage 5 (finalize): post-ingestion annealing check (spec.md §4.6).
	if p.counters != nil {
		p.counters.Increment("ingestion_epoch")
	}

	return result, nil
}

// NeedsApproval reports whether a job must pause for approval before
// running, per spec.md §4.6's "approval gate": auto_approve is off and the
// estimated chunk count exceeds the configured cost threshold.
func (p *IngestionPipeline) NeedsApproval(fullText string) bool {
	if p.cfg.AutoApprove {
		return false
	}
	return p.EstimateChunks(fullText) > p.cfg.CostThresholdChunks
}

// EstimateChunks is the pre-analysis cost estimate recorded on jobs that
// enter the approval gate.
func (p *IngestionPipeline) EstimateChunks(fullText string) int {
	return len(Chunk(fullText, p.cfg.TargetWords, p.cfg.OverlapWords))
}

func (p *IngestionPipeline) processChunk(
	ctx context.Context,
	ontology, document, parentContentHash string,
	ch chunk,
	known map[string]valueobjects.ConceptID,
	skipped map[string]bool,
	result *IngestionResult,
) error {
	source, err := entities.NewSource(ontology, document, "", ch.text)
	if err != nil {
		return err
	}
	if err := p.graph.SaveSource(ctx, source); err != nil {
		return err
	}
	result.SourcesCreated++

	if p.sourceEmb != nil {
		if _, err := p.embedding.EnsureSourceEmbedded(ctx, p.sourceEmb, source, entities.ChunkParagraph); err != nil {
			return err
		}
	}

	// Stage 3: extract concept/relationship proposals. The extractor is
	// told about concepts this job has already touched so it can propose
	// relationships against existing graph state (spec.md §4.6 stage 3).
	knownLabels := make([]string, 0, len(known))
	for label := range known {
		knownLabels = append(knownLabels, label)
	}
	sort.Strings(knownLabels)
	extraction, err := p.reasoning.Extract(ctx, ch.text, ingestSystemPrompt, knownLabels)
	if err != nil {
		return apperr.Wrap(apperr.ProviderUnavailable, "extraction failed", err)
	}
	for _, t := range extraction.SkippedTypes {
		skipped[t] = true
		p.recordSkipped(ctx, ontology, source.ID, t, ch.text)
	}

	// Stage 4: embed & upsert concepts, then create Instance bindings.
	for _, ec := range extraction.Concepts {
		emb, err := p.embedding.Embed(ctx, ec.Label)
		if err != nil {
			return err
		}
		id, _, err := p.graph.UpsertConcept(ctx, ec.Label, ec.SearchTerms, emb, p.cfg.MergeSimilarity)
		if err != nil {
			return err
		}
		known[ec.Label] = id
		result.ConceptsTouched++

		instance := entities.NewInstance(id, source.ID, ec.EvidenceQuote, "")
		if err := p.graph.SaveInstance(ctx, instance); err != nil {
			return err
		}
	}

	// Edges only for known active VocabTypes; everything else stays in
	// the skipped set for later curation (spec.md §4.6 stage 3).
	for _, er := range extraction.Relationships {
		vocabName := valueobjects.VocabTypeName(er.TypeName)
		vt, err := p.vocab.Get(ctx, vocabName)
		if err != nil || vt == nil || !vt.IsActive {
			skipped[er.TypeName] = true
			p.recordSkipped(ctx, ontology, source.ID, er.TypeName, er.SourceLabel+" -> "+er.TargetLabel)
			continue
		}
		srcID, err := p.resolveConceptLabel(ctx, known, er.SourceLabel)
		if err != nil {
			return err
		}
		dstID, err := p.resolveConceptLabel(ctx, known, er.TargetLabel)
		if err != nil {
			return err
		}
		if srcID.IsZero() || dstID.IsZero() {
			skipped[er.TypeName] = true
			p.recordSkipped(ctx, ontology, source.ID, er.TypeName,
				"unresolved concept: "+er.SourceLabel+" -> "+er.TargetLabel)
			continue
		}
		if err := p.graph.AddEdge(ctx, srcID, vocabName, dstID, er.Confidence); err != nil {
			return err
		}
		vt.RecordUsage()
		_ = p.vocab.Save(ctx, vt)
		result.EdgesCreated++
	}

	return nil
}

// resolveConceptLabel maps a relationship endpoint label to a concept id:
// first against concepts this job already touched, then by embedding the
// label and searching the graph for a sufficiently similar existing
// concept. A zero id means the label resolved to nothing.
func (p *IngestionPipeline) resolveConceptLabel(
	ctx context.Context,
	known map[string]valueobjects.ConceptID,
	label string,
) (valueobjects.ConceptID, error) {
	if id, ok := known[label]; ok {
		return id, nil
	}
	emb, err := p.embedding.Embed(ctx, label)
	if err != nil {
		return "", err
	}
	matches, err := p.graph.SearchConcepts(ctx, emb, 1, p.cfg.MergeSimilarity, "", 0)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	known[label] = matches[0].ConceptID
	return matches[0].ConceptID, nil
}

const ingestSystemPrompt = "Extract concepts and typed relationships from the given passage. Report any relationship type you cannot map to a known vocabulary term in skipped_types instead of inventing an edge."

// recordSkipped appends one curation row for an unresolved relationship
// type. Best-effort: a durable store is optional (WithSkippedRelationshipStore)
// and a logging failure here must not fail the ingestion job.
func (p *IngestionPipeline) recordSkipped(ctx context.Context, ontology string, sourceID valueobjects.SourceID, typeName, excerpt string) {
	if p.skipped == nil {
		return
	}
	if err := p.skipped.Record(ctx, ports.SkippedRelationship{
		TypeName: valueobjects.VocabTypeName(typeName),
		SourceID: sourceID,
		Ontology: ontology,
		Context:  excerpt,
	}); err != nil {
		p.logger.Warn("failed to record skipped relationship", zap.String("type", typeName), zap.Error(err))
	}
}
