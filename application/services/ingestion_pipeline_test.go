package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyTextReturnsNil(t *testing.T) {
	assert.Nil(t, Chunk("", 100, 10))
	assert.Nil(t, Chunk("   ", 100, 10))
}

func TestChunkSingleChunkWhenUnderTarget(t *testing.T) {
	text := "one two three four five"
	chunks := Chunk(text, 10, 2)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].text)
	assert.Equal(t, 0, chunks[0].index)
}

func TestChunkSplitsWithOverlap(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	chunks := Chunk(text, 10, 2)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.index)
	}
}

func TestChunkLastChunkCoversRemainder(t *testing.T) {
	words := make([]string, 22)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	chunks := Chunk(text, 10, 0)
	require.Len(t, chunks, 3)
	assert.Equal(t, 2, len(strings.Fields(chunks[2].text)))
}

func TestChunkNonPositiveTargetDefaultsTo1000(t *testing.T) {
	words := make([]string, 5)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	chunks := Chunk(text, 0, 0)
	require.Len(t, chunks, 1)
}

func TestChunkOverlapGreaterThanOrEqualTargetIsIgnored(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = "w"
	}
	text := strings.Join(words, " ")
	// overlapWords >= targetWords would make step <= 0 — guarded back to 0 overlap.
	chunks := Chunk(text, 10, 10)
	require.Len(t, chunks, 3)
}

func TestChunkOffsetsSliceBackToText(t *testing.T) {
	text := "alpha beta  gamma\ndelta epsilon"
	chunks := Chunk(text, 2, 0)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		slice := text[c.startOffset:c.endOffset]
		assert.Equal(t, strings.Fields(c.text), strings.Fields(slice))
	}
	assert.Equal(t, 0, chunks[0].startOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].endOffset)
}

func TestNeedsApprovalFalseWhenAutoApproveEnabled(t *testing.T) {
	p := &IngestionPipeline{cfg: IngestionConfig{AutoApprove: true, TargetWords: 1, OverlapWords: 0, CostThresholdChunks: 0}}
	assert.False(t, p.NeedsApproval("a b c d e"))
}

func TestNeedsApprovalTrueWhenChunkCountExceedsThreshold(t *testing.T) {
	p := &IngestionPipeline{cfg: IngestionConfig{AutoApprove: false, TargetWords: 1, OverlapWords: 0, CostThresholdChunks: 2}}
	assert.True(t, p.NeedsApproval("a b c d e"))
}

func TestNeedsApprovalFalseWhenUnderThreshold(t *testing.T) {
	p := &IngestionPipeline{cfg: IngestionConfig{AutoApprove: false, TargetWords: 1000, OverlapWords: 0, CostThresholdChunks: 20}}
	assert.False(t, p.NeedsApproval("a b c d e"))
}
