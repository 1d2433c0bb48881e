package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/apperr"
)

type describeCall struct {
	kind    string
	content string
}

type fakeDescriber struct {
	ports.ReasoningProvider
	mu    sync.Mutex
	calls []describeCall
	err   error
}

func (f *fakeDescriber) Describe(ctx context.Context, kind, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, describeCall{kind: kind, content: content})
	return "described " + kind + " block", nil
}

func TestPreprocessPassesProseThrough(t *testing.T) {
	describer := &fakeDescriber{}
	p := NewMarkdownPreprocessor(describer, 3)

	out, err := p.Preprocess(context.Background(), []byte("Just a plain paragraph.\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "Just a plain paragraph.")
	assert.Empty(t, describer.calls)
}

func TestPreprocessReplacesCodeBlockWithProse(t *testing.T) {
	describer := &fakeDescriber{}
	p := NewMarkdownPreprocessor(describer, 3)

	doc := "Intro paragraph.\n\n```go\nfunc main() {}\n```\n\nOutro paragraph.\n"
	out, err := p.Preprocess(context.Background(), []byte(doc))
	require.NoError(t, err)

	assert.Contains(t, out, "Intro paragraph.")
	assert.Contains(t, out, "Outro paragraph.")
	assert.Contains(t, out, "described code block")
	assert.NotContains(t, out, "func main()")

	require.Len(t, describer.calls, 1)
	assert.Equal(t, "code", describer.calls[0].kind)
	assert.Contains(t, describer.calls[0].content, "func main()")
}

func TestPreprocessClassifiesDiagramFences(t *testing.T) {
	describer := &fakeDescriber{}
	p := NewMarkdownPreprocessor(describer, 3)

	doc := "```mermaid\ngraph TD; A-->B\n```\n"
	out, err := p.Preprocess(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Contains(t, out, "described diagram block")

	require.Len(t, describer.calls, 1)
	assert.Equal(t, "diagram", describer.calls[0].kind)
}

func TestPreprocessTranslatesEveryFence(t *testing.T) {
	describer := &fakeDescriber{}
	p := NewMarkdownPreprocessor(describer, 2)

	var doc strings.Builder
	for i := 0; i < 5; i++ {
		doc.WriteString("Paragraph.\n\n```python\nprint('x')\n```\n\n")
	}
	_, err := p.Preprocess(context.Background(), []byte(doc.String()))
	require.NoError(t, err)
	assert.Len(t, describer.calls, 5)
}

func TestPreprocessSurfacesDescribeFailure(t *testing.T) {
	describer := &fakeDescriber{err: errors.New("model overloaded")}
	p := NewMarkdownPreprocessor(describer, 3)

	_, err := p.Preprocess(context.Background(), []byte("```go\nx := 1\n```\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
}
