// Package embedding wraps langchaingo's OpenAI-compatible embedder behind
// ports.EmbeddingProvider, grounded on the embedder wiring in
// simple-container-com's pkg/assistant/embeddings package (openai.New +
// embeddings.NewEmbedder + EmbedQuery), with a sony/gobreaker circuit
// breaker around the network call the way backend's
// internal/middleware/circuit_breaker.go wraps HTTP handlers.
package embedding

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/apperr"
)

// Config names the provider, model, and API credential used to build the
// underlying langchaingo client (spec.md §3 "swappable EmbeddingProvider").
type Config struct {
	APIKey string
	Model  string
}

// Provider embeds text via an OpenAI-compatible API, breaker-protected so a
// degraded embedding backend fails fast instead of stalling ingestion
// (spec.md §7 provider unavailability policy).
type Provider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	breaker   *gobreaker.CircuitBreaker
}

func NewProvider(cfg Config, dimension int) (*Provider, error) {
	llm, err := openai.New(openai.WithToken(cfg.APIKey), openai.WithEmbeddingModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("create embedding llm client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})

	return &Provider{embedder: embedder, model: cfg.Model, dimension: dimension, breaker: breaker}, nil
}

var _ ports.EmbeddingProvider = (*Provider)(nil)

func (p *Provider) Capabilities() []ports.Capability { return []ports.Capability{ports.CapabilityEmbed} }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, string, int, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, "", 0, apperr.Wrap(apperr.ProviderUnavailable, "embedding provider circuit open", err)
		}
		return nil, "", 0, apperr.Wrap(apperr.ProviderUnavailable, "embed text", err)
	}
	vector := result.([]float32)
	if len(vector) != p.dimension {
		return nil, "", 0, apperr.New(apperr.DimensionMismatch, fmt.Sprintf("embedding provider returned %d dimensions, want %d", len(vector), p.dimension))
	}
	return vector, p.model, p.dimension, nil
}
