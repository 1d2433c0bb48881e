// Package anthropic implements ports.ReasoningProvider against the
// anthropic-sdk-go Messages API, using forced tool-use calls to get back
// structured ExtractResult/Decision payloads instead of parsing free text.
// Wrapped in a sony/gobreaker circuit breaker the same way
// infrastructure/providers/embedding/provider.go wraps its embedding call,
// so a degraded reasoning backend fails fast (spec.md §7).
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/pkg/apperr"
)

// Config names the model used for extraction and decision calls plus the
// API credential (spec.md §3 "swappable ReasoningProvider").
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// Provider performs structured extraction and merge/annealing decisions
// through Claude's tool-use mechanism: every call forces a single tool
// invocation whose input schema mirrors the Go struct we want back, so
// there is no free-text parsing step to get wrong.
type Provider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	breaker   *gobreaker.CircuitBreaker
}

func NewProvider(cfg Config) *Provider {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "anthropic-reasoning-provider",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})

	return &Provider{
		client:    client,
		model:     anthropic.Model(cfg.Model),
		maxTokens: maxTokens,
		breaker:   breaker,
	}
}

var _ ports.ReasoningProvider = (*Provider)(nil)

func (p *Provider) Capabilities() []ports.Capability {
	return []ports.Capability{ports.CapabilityExtract, ports.CapabilityDecide}
}

const extractToolName = "emit_extraction"

var extractToolSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"concepts": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"label":          map[string]interface{}{"type": "string"},
					"search_terms":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"evidence_quote": map[string]interface{}{"type": "string"},
				},
				"required": []string{"label", "evidence_quote"},
			},
		},
		"relationships": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"source_label": map[string]interface{}{"type": "string"},
					"target_label": map[string]interface{}{"type": "string"},
					"type_name":    map[string]interface{}{"type": "string"},
					"confidence":   map[string]interface{}{"type": "number"},
				},
				"required": []string{"source_label", "target_label", "type_name", "confidence"},
			},
		},
		"skipped_types": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"concepts", "relationships"},
}

type extractToolInput struct {
	Concepts []struct {
		Label         string   `json:"label"`
		SearchTerms   []string `json:"search_terms"`
		EvidenceQuote string   `json:"evidence_quote"`
	} `json:"concepts"`
	Relationships []struct {
		SourceLabel string  `json:"source_label"`
		TargetLabel string  `json:"target_label"`
		TypeName    string  `json:"type_name"`
		Confidence  float64 `json:"confidence"`
	} `json:"relationships"`
	SkippedTypes []string `json:"skipped_types"`
}

// Extract asks the model to pull candidate concepts and typed
// relationships out of text, forcing the emit_extraction tool so the
// response is machine-parseable (spec.md §6.1).
func (p *Provider) Extract(ctx context.Context, text string, systemPrompt string, knownConcepts []string) (ports.ExtractResult, error) {
	userPrompt := text
	if len(knownConcepts) > 0 {
		userPrompt = fmt.Sprintf("Known concepts already in the graph: %v\n\n%s", knownConcepts, text)
	}

	input, err := p.callTool(ctx, systemPrompt, userPrompt, extractToolName, "Record the concepts and relationships found in the text.", extractToolSchema)
	if err != nil {
		return ports.ExtractResult{}, err
	}

	var parsed extractToolInput
	if err := json.Unmarshal(input, &parsed); err != nil {
		return ports.ExtractResult{}, apperr.Wrap(apperr.ProviderInvalid, "unmarshal extraction tool input", err)
	}

	result := ports.ExtractResult{SkippedTypes: parsed.SkippedTypes}
	for _, c := range parsed.Concepts {
		result.Concepts = append(result.Concepts, ports.ExtractedConcept{
			Label:         c.Label,
			SearchTerms:   c.SearchTerms,
			EvidenceQuote: c.EvidenceQuote,
		})
	}
	for _, r := range parsed.Relationships {
		result.Relationships = append(result.Relationships, ports.ExtractedRelationship{
			SourceLabel: r.SourceLabel,
			TargetLabel: r.TargetLabel,
			TypeName:    r.TypeName,
			Confidence:  r.Confidence,
		})
	}
	return result, nil
}

const decideToolName = "emit_decision"

var decideToolSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"action":    map[string]interface{}{"type": "string", "enum": []string{"merge", "skip", "promote", "demote", "reject"}},
		"rationale": map[string]interface{}{"type": "string"},
	},
	"required": []string{"action", "rationale"},
}

type decideToolInput struct {
	Action    string `json:"action"`
	Rationale string `json:"rationale"`
}

// Decide asks the model to resolve a single merge/annealing judgment call
// from a structured numeric context (spec.md §4.3c, §4.8). Decide must
// never be invoked with an empty structuredContext — callers populate it
// with the candidate's similarity, edge counts, and other decision
// signals up front.
func (p *Provider) Decide(ctx context.Context, structuredContext map[string]interface{}) (ports.Decision, error) {
	payload, err := json.Marshal(structuredContext)
	if err != nil {
		return ports.Decision{}, apperr.Wrap(apperr.Validation, "marshal decision context", err)
	}

	systemPrompt := "You resolve a single graph-maintenance decision from structured numeric evidence. Choose exactly one action."
	userPrompt := fmt.Sprintf("Decision context:\n%s", payload)

	input, err := p.callTool(ctx, systemPrompt, userPrompt, decideToolName, "Record the chosen action and a short rationale.", decideToolSchema)
	if err != nil {
		return ports.Decision{}, err
	}

	var parsed decideToolInput
	if err := json.Unmarshal(input, &parsed); err != nil {
		return ports.Decision{}, apperr.Wrap(apperr.ProviderInvalid, "unmarshal decision tool input", err)
	}
	return ports.Decision{Action: ports.DecideAction(parsed.Action), Rationale: parsed.Rationale}, nil
}

// Describe asks the model for a single prose paragraph standing in for a
// non-prose document node, used by the ingestion preprocessor to linearize
// code blocks and diagrams before chunking (spec.md §4.6 stage 1). Unlike
// Extract/Decide this is a free-text call — there is no structured payload
// to force a tool call for.
func (p *Provider) Describe(ctx context.Context, kind, content string) (string, error) {
	systemPrompt := "You summarize a single non-prose document fragment as one plain prose paragraph that preserves its meaning for a reader who cannot see the original. Do not include the fragment verbatim."
	userPrompt := fmt.Sprintf("Fragment kind: %s\n\n%s", kind, content)

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			return nil, err
		}
		for _, block := range msg.Content {
			if text := block.AsText(); text.Text != "" {
				return text.Text, nil
			}
		}
		return "", fmt.Errorf("anthropic response did not include a text block")
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", apperr.Wrap(apperr.ProviderUnavailable, "reasoning provider circuit open", err)
		}
		return "", apperr.Wrap(apperr.ProviderUnavailable, "describe call failed", err)
	}
	return raw.(string), nil
}

// callTool issues one breaker-protected Messages.New call that forces the
// named tool, and returns that tool call's raw JSON input.
func (p *Provider) callTool(ctx context.Context, systemPrompt, userPrompt, toolName, toolDescription string, schema map[string]interface{}) (json.RawMessage, error) {
	raw, err := p.breaker.Execute(func() (interface{}, error) {
		msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     p.model,
			MaxTokens: p.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
			Tools: []anthropic.ToolUnionParam{
				{
					OfTool: &anthropic.ToolParam{
						Name:        toolName,
						Description: anthropic.String(toolDescription),
						InputSchema: anthropic.ToolInputSchemaParam{Properties: schema["properties"], Required: schema["required"].([]string)},
					},
				},
			},
			ToolChoice: anthropic.ToolChoiceUnionParam{
				OfTool: &anthropic.ToolChoiceToolParam{Name: toolName},
			},
		})
		if err != nil {
			return nil, err
		}
		for _, block := range msg.Content {
			if toolUse := block.AsToolUse(); toolUse.Name == toolName {
				return toolUse.Input, nil
			}
		}
		return nil, fmt.Errorf("anthropic response did not include a %s tool call", toolName)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperr.Wrap(apperr.ProviderUnavailable, "reasoning provider circuit open", err)
		}
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "reasoning provider call failed", err)
	}
	return raw.(json.RawMessage), nil
}
