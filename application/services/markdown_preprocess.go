package services

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/apperr"
)

// MarkdownPreprocessor implements stage 1 of spec.md §4.6: parse an
// ingested markdown document into its AST, replace fenced code blocks and
// diagram blocks (interpreted here as fenced blocks tagged with a diagram
// language, e.g. ```mermaid) with a reasoning-provider-generated prose
// paragraph, and pass every other node through unchanged. The concatenated
// result is what Chunk splits.
//
// Translations within a single document run under a bounded semaphore
// (default 3 permits) per spec.md §5's "bounded semaphore (default 2-3
// permits) limits concurrent code-block translations within a single
// document" — large documents with many code fences don't open one
// reasoning-provider call per block unbounded.
type MarkdownPreprocessor struct {
	reasoning ports.ReasoningProvider
	permits   int64
}

func NewMarkdownPreprocessor(reasoning ports.ReasoningProvider, permits int) *MarkdownPreprocessor {
	if permits <= 0 {
		permits = 3
	}
	return &MarkdownPreprocessor{reasoning: reasoning, permits: int64(permits)}
}

var diagramLanguages = map[string]bool{
	"mermaid": true, "plantuml": true, "dot": true, "graphviz": true,
}

// Preprocess linearizes source into prose ready for chunking. Non-markdown
// callers can skip straight to Chunk; Preprocess itself is idempotent on
// already-plain text since goldmark treats it as one paragraph passthrough.
func (m *MarkdownPreprocessor) Preprocess(ctx context.Context, source []byte) (string, error) {
	reader := text.NewReader(source)
	doc := goldmark.DefaultParser().Parse(reader)

	type block struct {
		index   int
		isCode  bool
		kind    string
		content string
		plain   string // only set for non-code nodes
	}

	var blocks []block
	idx := 0
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Parent() != doc {
			return ast.WalkContinue, nil
		}
		if fcb, ok := n.(*ast.FencedCodeBlock); ok {
			lang := string(fcb.Language(source))
			kind := "code"
			if diagramLanguages[lang] {
				kind = "diagram"
			}
			blocks = append(blocks, block{index: idx, isCode: true, kind: kind, content: nodeLines(fcb, source)})
			idx++
			return ast.WalkSkipChildren, nil
		}
		blocks = append(blocks, block{index: idx, plain: nodeLines(n, source)})
		idx++
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "parse markdown document", err)
	}

	sem := semaphore.NewWeighted(m.permits)
	prose := make([]string, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range blocks {
		i, b := i, b
		if !b.isCode {
			prose[i] = b.plain
			continue
		}
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			described, err := m.reasoning.Describe(gctx, b.kind, b.content)
			if err != nil {
				return apperr.Wrap(apperr.ProviderUnavailable, "describe "+b.kind+" block failed", err)
			}
			prose[i] = described
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var out bytes.Buffer
	for _, p := range prose {
		if p == "" {
			continue
		}
		out.WriteString(p)
		out.WriteString("\n\n")
	}
	return out.String(), nil
}

func nodeLines(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	// Container blocks (lists, blockquotes) carry no lines of their own, so
	// collect the lines of every block node beneath n as well.
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := c.Lines()
		if lines.Len() > 0 && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
