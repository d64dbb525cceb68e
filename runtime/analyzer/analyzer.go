// Package analyzer implements the Analyzer stage (C2): it converts a
// free-form utterance into a NormalizedQuery using a single LLM round-trip,
// injecting the current calendar date so relative expressions ("어제",
// "지난주") resolve reproducibly.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/keyveloper/coin-news-go/runtime/corerr"
	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
)

// MaxUtteranceLen is the Analyzer's input length limit, per §4.2.
const MaxUtteranceLen = 200

type (
	// Clock returns the current time; overridable in tests.
	Clock func() time.Time

	// Option configures an Analyzer.
	Option func(*Analyzer)

	// Analyzer implements the Analyzer stage.
	Analyzer struct {
		client  model.Client
		clock   Clock
		logger  telemetry.Logger
		tracer  telemetry.Tracer
		metrics telemetry.Metrics
	}

	// rawQuery is the wire shape the model is instructed to emit; fields are
	// strings/slices so partially-wrong model output still parses, with
	// invalid enum values normalized by normalize().
	rawQuery struct {
		IntentType string   `json:"intent_type"`
		Coins      []string `json:"coins"`
		Entities   []string `json:"entities"`
		Magnitude  string   `json:"magnitude"`
		Keywords   []string `json:"keywords"`
		Task       string   `json:"task"`
		Depth      string   `json:"depth"`
		PivotTime  string   `json:"pivot_time"`
		Relative   string   `json:"relative"`
		Sentiment  string   `json:"sentiment"`
		Category   string   `json:"category"`
	}
)

// WithClock overrides the wall clock used to inject "today" into the model
// context. Tests use this for reproducible date resolution.
func WithClock(c Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithLogger configures the Analyzer's logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithTracer configures the Analyzer's tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(a *Analyzer) { a.tracer = t }
}

// WithMetrics configures the Analyzer's metrics recorder. Defaults to a
// noop recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New constructs an Analyzer backed by client.
func New(client model.Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:  client,
		clock:   time.Now,
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze converts utterance into a NormalizedQuery. It rejects utterances
// longer than MaxUtteranceLen runes with corerr.QueryTooLong and otherwise
// always returns a schema-valid NormalizedQuery, setting IntentType unknown
// rather than guessing when the utterance is ambiguous or unrelated.
func (a *Analyzer) Analyze(ctx context.Context, utterance string) (*query.NormalizedQuery, error) {
	if n := len([]rune(utterance)); n > MaxUtteranceLen {
		return nil, corerr.New(corerr.QueryTooLong, "utterance exceeds 200 characters")
	}

	ctx, span := a.tracer.Start(ctx, "analyzer.analyze")
	defer span.End()

	start := time.Now()
	defer func() { a.metrics.RecordTimer("analyzer.analyze.duration", time.Since(start)) }()

	now := a.clock()
	req := &model.Request{
		RunID:       model.RunIDFromContext(ctx),
		Class:       model.ClassSmall,
		System:      systemPrompt(now),
		Messages:    []model.Message{{Role: model.RoleUser, Text: utterance}},
		Temperature: 0,
		MaxTokens:   512,
	}

	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		a.logger.Warn(ctx, "analyzer model call failed, falling back to unknown intent", "error", err.Error())
		a.metrics.IncCounter("analyzer.analyze.model_error", 1)
		return unknownQuery(), nil
	}

	raw, err := parseRawQuery(resp.Text)
	if err != nil {
		a.logger.Warn(ctx, "analyzer could not parse model output, falling back to unknown intent", "error", err.Error())
		a.metrics.IncCounter("analyzer.analyze.parse_error", 1)
		return unknownQuery(), nil
	}

	a.metrics.IncCounter("analyzer.analyze.success", 1)
	return normalize(raw), nil
}

func systemPrompt(now time.Time) string {
	return "You are a query analyzer for a cryptocurrency price and news assistant. " +
		"Today's date is " + now.UTC().Format("2006-01-02") + " (UTC). " +
		"Resolve relative date expressions (e.g. \"어제\", \"지난주\", \"yesterday\", \"last week\") " +
		"against this date. Read the user's message and respond with a single JSON object " +
		"(no surrounding prose) with fields: intent_type (one of market_trend, news_summary, " +
		"price_reason, unknown), coins (array of ticker symbols, or [\"all\"]), entities " +
		"(array of named actors), magnitude (big, small, any, none), keywords (array of " +
		"free-text keywords), task (summarize, analyze, explain_impact, find_reasons, compare, " +
		"forecast, extract_keywords), depth (short, medium, deep), pivot_time (YYYYMMDD or " +
		"\"today\"), relative (24h, 7d, 1m, ytd, all, none), sentiment (positive, negative, " +
		"neutral, any), category (macro, altcoin, defi, layer2, meme, regulation, exchange, " +
		"unknown). If the message is ambiguous, unrelated to crypto, or chit-chat, set " +
		"intent_type to \"unknown\"."
}

func parseRawQuery(text string) (*rawQuery, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	doc := []byte(text[start : end+1])

	if err := validateRawQueryDoc(doc); err != nil {
		return nil, fmt.Errorf("analyzer: model output failed schema validation: %w", err)
	}

	var raw rawQuery
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// rawQuerySchemaJSON constrains the model's JSON reply to an object whose
// fields are the wire shape rawQuery expects; it catches gross shape errors
// (e.g. "coins" returned as a string) before json.Unmarshal, so a malformed
// reply falls back to unknownQuery() instead of silently misdecoding.
const rawQuerySchemaJSON = `{
	"type": "object",
	"properties": {
		"intent_type": {"type": "string"},
		"coins": {"type": "array", "items": {"type": "string"}},
		"entities": {"type": "array", "items": {"type": "string"}},
		"magnitude": {"type": "string"},
		"keywords": {"type": "array", "items": {"type": "string"}},
		"task": {"type": "string"},
		"depth": {"type": "string"},
		"pivot_time": {"type": "string"},
		"relative": {"type": "string"},
		"sentiment": {"type": "string"},
		"category": {"type": "string"}
	}
}`

var (
	rawQuerySchema     *jsonschema.Schema
	rawQuerySchemaOnce sync.Once
	rawQuerySchemaErr  error
)

func validateRawQueryDoc(payload []byte) error {
	rawQuerySchemaOnce.Do(func() {
		var schemaDoc any
		if err := json.Unmarshal([]byte(rawQuerySchemaJSON), &schemaDoc); err != nil {
			rawQuerySchemaErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("rawquery.json", schemaDoc); err != nil {
			rawQuerySchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		rawQuerySchema, rawQuerySchemaErr = c.Compile("rawquery.json")
	})
	if rawQuerySchemaErr != nil {
		return rawQuerySchemaErr
	}

	var payloadDoc any
	if err := json.Unmarshal(payload, &payloadDoc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return rawQuerySchema.Validate(payloadDoc)
}

var errNoJSON = jsonError("analyzer: model response did not contain a JSON object")

type jsonError string

func (e jsonError) Error() string { return string(e) }

// normalize maps a rawQuery into a schema-valid NormalizedQuery, coercing
// any unrecognized enum value to its documented default rather than
// propagating garbage, per the Analyzer's "guarantees the output parses"
// contract.
func normalize(raw *rawQuery) *query.NormalizedQuery {
	intent := query.IntentType(raw.IntentType)
	if !intent.Valid() {
		intent = query.IntentUnknown
	}

	depth := query.Depth(raw.Depth)
	if !depth.Valid() {
		depth = query.DepthMedium
	}

	magnitude := query.Magnitude(raw.Magnitude)
	switch magnitude {
	case query.MagnitudeBig, query.MagnitudeSmall, query.MagnitudeAny, query.MagnitudeNone:
	default:
		magnitude = query.MagnitudeAny
	}

	sentiment := query.Sentiment(raw.Sentiment)
	switch sentiment {
	case query.SentimentPositive, query.SentimentNegative, query.SentimentNeutral, query.SentimentAny:
	default:
		sentiment = query.SentimentAny
	}

	category := query.Category(raw.Category)
	switch category {
	case query.CategoryMacro, query.CategoryAltcoin, query.CategoryDefi, query.CategoryLayer2,
		query.CategoryMeme, query.CategoryRegulation, query.CategoryExchange:
	default:
		category = query.CategoryUnknown
	}

	relative := query.Relative(raw.Relative)
	switch relative {
	case query.Relative24h, query.Relative7d, query.Relative1m, query.RelativeYTD, query.RelativeAll, query.RelativeNone:
	default:
		relative = query.RelativeNone
	}

	task := query.Task(raw.Task)
	switch task {
	case query.TaskSummarize, query.TaskAnalyze, query.TaskExplainImpact, query.TaskFindReasons,
		query.TaskCompare, query.TaskForecast, query.TaskExtractKeywords:
	default:
		task = query.TaskSummarize
	}

	pivot := strings.TrimSpace(raw.PivotTime)
	if pivot == "" {
		pivot = query.PivotToday
	}

	return &query.NormalizedQuery{
		IntentType: intent,
		Target: query.Target{
			Coin:   upperAll(raw.Coins),
			Entity: raw.Entities,
		},
		Event: query.Event{
			Magnitude: magnitude,
			Keywords:  raw.Keywords,
		},
		Goal: query.Goal{
			Task:  task,
			Depth: depth,
		},
		TimeRange: query.TimeRange{
			PivotTime: pivot,
			Relative:  relative,
		},
		Filters: query.Filters{
			Sentiment: sentiment,
			Category:  category,
		},
	}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == query.CoinAll {
			out = append(out, s)
			continue
		}
		out = append(out, strings.ToUpper(strings.TrimSpace(s)))
	}
	return out
}

func unknownQuery() *query.NormalizedQuery {
	return &query.NormalizedQuery{
		IntentType: query.IntentUnknown,
		Goal:       query.Goal{Task: query.TaskSummarize, Depth: query.DepthMedium},
		TimeRange:  query.TimeRange{PivotTime: query.PivotToday, Relative: query.RelativeNone},
		Event:      query.Event{Magnitude: query.MagnitudeAny},
		Filters:    query.Filters{Sentiment: query.SentimentAny, Category: query.CategoryUnknown},
	}
}
