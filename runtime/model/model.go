// Package model defines the provider-agnostic LLM client contract used by
// the Analyzer, the EntryRouter, the pipeline's DIRECT path, and the
// LLM-backed tools in features/tools/llm.
// Every stage that needs a model round-trip depends on Client, never on a
// concrete SDK, so provider adapters (features/model/anthropic,
// features/model/bedrock, features/model/openai) can be swapped without
// touching pipeline code.
//
// Unlike a general agent runtime, nothing in this module drives control flow
// through model tool-calling: every Request is a single non-streaming
// completion, and structured output is obtained by instructing the model to
// emit JSON and decoding the resulting text (see runtime/analyzer).
package model

import (
	"context"
	"errors"
)

// Role is the role of a message in a conversation.
type Role string

const (
	// RoleSystem carries instructions that shape the assistant's behavior.
	RoleSystem Role = "system"
	// RoleUser carries content supplied by the caller.
	RoleUser Role = "user"
	// RoleAssistant carries content previously produced by the model.
	RoleAssistant Role = "assistant"
)

// Class selects a model family/tier when Request.Model is not specified,
// letting callers ask for "the cheap model" or "the careful model" without
// naming a provider-specific identifier.
type Class string

const (
	// ClassDefault selects the provider's default model.
	ClassDefault Class = "default"
	// ClassSmall selects a small/cheap model, used for the Router's
	// single-line path classification and for make_semantic_query.
	ClassSmall Class = "small"
	// ClassHighReasoning selects a higher-capability model, used by the
	// summarize_price_data and summarize_news_chunks tools.
	ClassHighReasoning Class = "high-reasoning"
)

type (
	// Message is one turn of a conversation.
	Message struct {
		Role Role
		Text string
	}

	// TokenUsage reports token consumption for a call.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Request captures the inputs to a single model completion.
	Request struct {
		// RunID correlates the call with a turn for logging/tracing; optional.
		RunID string
		// Model is a provider-specific model identifier. When empty, the
		// adapter resolves a model from Class.
		Model string
		// Class selects a model family when Model is empty.
		Class Class
		// System carries instructions prepended ahead of Messages.
		System string
		// Messages is the ordered conversation supplied to the model.
		Messages []Message
		// Temperature controls sampling. Adapters use their configured
		// default whenever it is <= 0, so an explicit 0 is treated as unset.
		Temperature float64
		// MaxTokens caps the number of output tokens.
		MaxTokens int
	}

	// Response is the result of a completion.
	Response struct {
		// Text is the concatenated assistant text content.
		Text string
		// Usage reports token consumption for the call.
		Usage TokenUsage
		// StopReason records why generation stopped (provider-specific).
		StopReason string
	}

	// Client is the provider-agnostic model client used throughout the
	// pipeline. Implementations translate Request into a provider-specific
	// call and adapt the result back into Response.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

// ErrRateLimited is returned (wrapped) by adapters when the upstream provider
// throttles a request. Callers may retry with backoff.
var ErrRateLimited = errors.New("model: rate limited")

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx so that every model call made
// while answering one turn (Analyzer, Router, LLM-backed tools) can stamp
// Request.RunID for correlated logging and tracing, without threading the ID
// through every stage signature.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier attached by WithRunID, or ""
// if none was attached.
func RunIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}
