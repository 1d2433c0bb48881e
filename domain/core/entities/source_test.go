package entities

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundgraph/engine/domain/core/valueobjects"
	"github.com/groundgraph/engine/pkg/apperr"
)

func TestNewSourceRejectsEmptyText(t *testing.T) {
	_, err := NewSource("ont", "doc", "", "   ")
	require.Error(t, err)
}

func TestNewSourceComputesContentHash(t *testing.T) {
	s, err := NewSource("ont", "doc", "", "some text")
	require.NoError(t, err)
	assert.Equal(t, HashText("some text"), s.ContentHash)
	assert.NotEmpty(t, s.ID)
}

func TestSplitSourceChunksParagraphIsWholeSource(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	spans := SplitSourceChunks(text, ChunkParagraph)
	require.Len(t, spans, 1)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(text), spans[0].End)
	assert.Equal(t, text, spans[0].Text)
}

func TestSplitSourceChunksEmptyTextReturnsNil(t *testing.T) {
	assert.Nil(t, SplitSourceChunks("", ChunkSentence))
}

func TestSplitSourceChunksSentencePacksUnderLimit(t *testing.T) {
	text := "One. Two. Three."
	spans := SplitSourceChunks(text, ChunkSentence)
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].Text)
}

func TestSplitSourceChunksSentenceSplitsOverLimit(t *testing.T) {
	first := strings.Repeat("a", 300) + ". "
	second := strings.Repeat("b", 297) + "."
	spans := SplitSourceChunks(first+second, ChunkSentence)
	require.Len(t, spans, 2)
	assert.Equal(t, first, spans[0].Text)
	assert.Equal(t, second, spans[1].Text)
	for i, span := range spans {
		assert.Equal(t, i, span.Index)
		assert.LessOrEqual(t, len(span.Text), 500)
	}
}

func TestSplitSourceChunksSemanticPacksParagraphs(t *testing.T) {
	text := "para one\n\npara two\n\npara three"
	spans := SplitSourceChunks(text, ChunkSemantic)
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0].Text)
}

func TestSplitSourceChunksOversizedSegmentStandsAlone(t *testing.T) {
	big := strings.Repeat("x", 1200)
	text := big + "\n\n" + "small paragraph"
	spans := SplitSourceChunks(text, ChunkSemantic)
	require.Len(t, spans, 2)
	assert.Greater(t, len(spans[0].Text), 1000)
	assert.Equal(t, "small paragraph", spans[1].Text)
}

func TestSplitSourceChunksOffsetsSliceBackToText(t *testing.T) {
	text := "Alpha sentence. Beta sentence! Gamma sentence?"
	for _, strategy := range []ChunkStrategy{ChunkSentence, ChunkParagraph, ChunkSemantic} {
		for _, span := range SplitSourceChunks(text, strategy) {
			assert.Equal(t, text[span.Start:span.End], span.Text)
		}
	}
}

func testEmbedding() valueobjects.Embedding {
	return valueobjects.NewEmbedding([]float32{1, 0, 0}, "test-model")
}

func TestSourceEmbeddingRecordsBothHashes(t *testing.T) {
	full := "the full source text"
	se := NewSourceEmbedding("src-1", 0, ChunkParagraph, 0, len(full), full, full, testEmbedding())
	assert.Equal(t, HashText(full), se.ChunkHash)
	assert.Equal(t, HashText(full), se.SourceHash)
}

func TestSourceEmbeddingStaleWhenSourceChanged(t *testing.T) {
	full := "original text"
	se := NewSourceEmbedding("src-1", 0, ChunkParagraph, 0, len(full), full, full, testEmbedding())
	assert.False(t, se.IsStale(full))
	assert.True(t, se.IsStale("edited text"))
}

func TestVerifyIntegrityPassesOnUntouchedChunk(t *testing.T) {
	full := "prefix middle suffix"
	chunk := full[7:13]
	se := NewSourceEmbedding("src-1", 0, ChunkSemantic, 7, 13, chunk, full, testEmbedding())
	require.NoError(t, se.VerifyIntegrity(full))
}

func TestVerifyIntegrityFatalOnChunkMismatch(t *testing.T) {
	full := "prefix middle suffix"
	se := NewSourceEmbedding("src-1", 0, ChunkSemantic, 7, 13, full[7:13], full, testEmbedding())
	err := se.VerifyIntegrity("prefix MIDDLE suffix")
	require.Error(t, err)
	assert.Equal(t, apperr.IntegrityError, apperr.KindOf(err))
}

func TestVerifyIntegrityFatalOnOutOfBoundsOffsets(t *testing.T) {
	se := NewSourceEmbedding("src-1", 0, ChunkSemantic, 5, 50, "chunk", "short", testEmbedding())
	err := se.VerifyIntegrity("short")
	require.Error(t, err)
	assert.Equal(t, apperr.IntegrityError, apperr.KindOf(err))
}
