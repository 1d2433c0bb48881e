package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

// Source is an ingested chunk of a document (500-1500 words), immutable
// once written; its ContentHash is computed by NewSource at construction
// (spec.md §3).
type Source struct {
	ID          valueobjects.SourceID
	Ontology    string
	Document    string
	Paragraph   string
	FullText    string
	ContentHash string
	CreatedAt   time.Time
}

// NewSource validates and constructs a Source. ContentHash is computed
// immediately rather than left for later — a later-written hash only
// matters for SourceEmbedding staleness comparisons, not for dedup, which
// needs the hash at ingestion time anyway.
func NewSource(ontology, document, paragraph, fullText string) (*Source, error) {
	wordCount := len(splitWords(fullText))
	if wordCount < 1 {
		return nil, apperr.New(apperr.Validation, "source full_text must not be empty")
	}
	return &Source{
		ID:          valueobjects.NewSourceID(),
		Ontology:    ontology,
		Document:    document,
		Paragraph:   paragraph,
		FullText:    fullText,
		ContentHash: HashText(fullText),
		CreatedAt:   time.Now(),
	}, nil
}

// HashText returns the hex-encoded SHA-256 of text, used for both
// Source.ContentHash and SourceEmbedding.source_hash/chunk_hash.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

// ChunkStrategy enumerates the chunking algorithms ensure_source_embedded
// supports (spec.md §4.2).
type ChunkStrategy string

const (
	ChunkSentence ChunkStrategy = "sentence"
	ChunkParagraph ChunkStrategy = "paragraph"
	ChunkSemantic ChunkStrategy = "semantic"
)

// ChunkSpan is one byte-offset slice of a Source's full text produced by
// SplitSourceChunks.
type ChunkSpan struct {
	Index int
	Start int
	End   int
	Text  string
}

const (
	sentenceChunkMaxChars = 500
	semanticChunkMaxChars = 1000
)

// SplitSourceChunks splits fullText by strategy: sentence accumulates
// sentence-terminated runs up to 500 chars, paragraph covers the whole
// source in one span, semantic accumulates blank-line-delimited blocks up
// to 1000 chars (spec.md §4.2).
func SplitSourceChunks(fullText string, strategy ChunkStrategy) []ChunkSpan {
	if len(fullText) == 0 {
		return nil
	}
	var spans []ChunkSpan
	switch strategy {
	case ChunkSentence:
		spans = accumulateSpans(splitAtSentenceEnds(fullText), sentenceChunkMaxChars)
	case ChunkSemantic:
		spans = accumulateSpans(splitAtBlankLines(fullText), semanticChunkMaxChars)
	default:
		spans = []ChunkSpan{{Index: 0, Start: 0, End: len(fullText)}}
	}
	for i := range spans {
		spans[i].Text = fullText[spans[i].Start:spans[i].End]
	}
	return spans
}

// splitAtSentenceEnds returns the byte offsets just past each sentence
// terminator, always ending at len(s).
func splitAtSentenceEnds(s string) []int {
	var cuts []int
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			// Consume trailing quote/paren and whitespace so the cut lands
			// on the next sentence's first byte.
			j := i + 1
			for j < len(s) && (s[j] == '"' || s[j] == '\'' || s[j] == ')') {
				j++
			}
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j > i+1 || j == len(s) {
				cuts = append(cuts, j)
				i = j - 1
			}
		}
	}
	if len(cuts) == 0 || cuts[len(cuts)-1] != len(s) {
		cuts = append(cuts, len(s))
	}
	return cuts
}

// splitAtBlankLines returns the byte offsets just past each blank-line
// separator, always ending at len(s).
func splitAtBlankLines(s string) []int {
	var cuts []int
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '\n' && s[i+1] == '\n' {
			j := i + 1
			for j < len(s) && s[j] == '\n' {
				j++
			}
			cuts = append(cuts, j)
			i = j - 1
		}
	}
	if len(cuts) == 0 || cuts[len(cuts)-1] != len(s) {
		cuts = append(cuts, len(s))
	}
	return cuts
}

// accumulateSpans greedily packs consecutive segments into spans no longer
// than maxChars, except that a single segment longer than maxChars becomes
// its own span rather than being split mid-segment.
func accumulateSpans(cuts []int, maxChars int) []ChunkSpan {
	var spans []ChunkSpan
	start, prev := 0, 0
	for _, cut := range cuts {
		if cut-start > maxChars && prev > start {
			spans = append(spans, ChunkSpan{Index: len(spans), Start: start, End: prev})
			start = prev
		}
		prev = cut
	}
	if prev > start {
		spans = append(spans, ChunkSpan{Index: len(spans), Start: start, End: prev})
	}
	return spans
}

// SourceEmbedding is one of 1..N embedded chunks of a Source.
type SourceEmbedding struct {
	SourceID     valueobjects.SourceID
	ChunkIndex   int
	Strategy     ChunkStrategy
	StartOffset  int
	EndOffset    int
	ChunkText    string
	ChunkHash    string
	SourceHash   string
	Embedding    valueobjects.Embedding
	GeneratedAt  time.Time
}

// NewSourceEmbedding records both hashes at generation time, per spec.md
// §4.2 "On write" hash-verification rule.
func NewSourceEmbedding(sourceID valueobjects.SourceID, chunkIndex int, strategy ChunkStrategy, start, end int, chunkText, sourceFullText string, embedding valueobjects.Embedding) SourceEmbedding {
	return SourceEmbedding{
		SourceID: sourceID, ChunkIndex: chunkIndex, Strategy: strategy,
		StartOffset: start, EndOffset: end, ChunkText: chunkText,
		ChunkHash:  HashText(chunkText),
		SourceHash: HashText(sourceFullText),
		Embedding:  embedding,
		GeneratedAt: time.Now(),
	}
}

// IsStale reports whether the parent Source has changed since this chunk
// was embedded (spec.md invariant 6 / §4.2 read-time check).
func (se SourceEmbedding) IsStale(currentFullText string) bool {
	return se.SourceHash != HashText(currentFullText)
}

// VerifyIntegrity raises apperr.IntegrityError if the chunk slice taken
// from currentFullText no longer hashes to ChunkHash — a fatal condition
// per spec.md §4.2, distinct from the non-fatal Stale flag.
func (se SourceEmbedding) VerifyIntegrity(currentFullText string) error {
	if se.StartOffset < 0 || se.EndOffset > len(currentFullText) || se.StartOffset > se.EndOffset {
		return apperr.New(apperr.IntegrityError, "chunk offsets out of bounds for current source text")
	}
	slice := currentFullText[se.StartOffset:se.EndOffset]
	if HashText(slice) != se.ChunkHash {
		return apperr.New(apperr.IntegrityError, "chunk hash mismatch against current source text")
	}
	return nil
}

// Instance is an evidence record binding a Concept to a Source.
type Instance struct {
	ID        valueobjects.InstanceID
	ConceptID valueobjects.ConceptID
	SourceID  valueobjects.SourceID
	Quote     string
	Paragraph string
	CreatedAt time.Time
}

func NewInstance(conceptID valueobjects.ConceptID, sourceID valueobjects.SourceID, quote, paragraph string) Instance {
	return Instance{
		ID: valueobjects.NewInstanceID(), ConceptID: conceptID, SourceID: sourceID,
		Quote: quote, Paragraph: paragraph, CreatedAt: time.Now(),
	}
}
