// Package mongo implements the semantic_search tool (§4.1) against a Mongo
// Atlas "vector store" via a $vectorSearch aggregation, mongo-driver/v2.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

const (
	defaultCollection = "news_passages"
	defaultIndexName  = "news_vector_index"
	defaultOpTimeout  = 5 * time.Second
	dayOffset         = 86400
	numCandidateMult  = 10
)

// Embedder turns query text into the embedding semantic_search searches
// with. Production wiring supplies a provider-backed embedder (e.g. an
// OpenAI or Bedrock embedding model); tests can stub it directly.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// Options configures the Store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	IndexName  string
	Embedder   Embedder
	Timeout    time.Duration
}

// Store implements the semantic_search tool.
type Store struct {
	coll      *mongo.Collection
	indexName string
	embed     Embedder
	timeout   time.Duration
}

// New returns a Store backed by opts.Client.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	if opts.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	indexName := opts.IndexName
	if indexName == "" {
		indexName = defaultIndexName
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	return &Store{
		coll:      opts.Client.Database(opts.Database).Collection(collName),
		indexName: indexName,
		embed:     opts.Embedder,
		timeout:   timeout,
	}, nil
}

// passageDocument is the Mongo document shape for one news passage.
type passageDocument struct {
	Title  string  `bson:"title"`
	Source string  `bson:"source"`
	Epoch  int64   `bson:"epoch"`
	Text   string  `bson:"text"`
	Score  float64 `bson:"score"`
}

// Handler implements toolregistry.Handler for semantic_search.
func (s *Store) Handler(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	topK := intOr(args["top_k"], 10)
	threshold := floatOr(args["similarity_threshold"], 0)
	dateRange, _ := args["date_range"].(string)
	source, _ := args["source"].(string)
	pivot, hasPivot := int64OrOK(args["pivot_date_epoch"])
	if v, ok := args["has_pivot_date"].(bool); ok {
		hasPivot = hasPivot && v
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic_search: embed: %w", err)
	}

	filter := bson.M{}
	if source != "" {
		filter["source"] = source
	}
	if hasPivot && dateRange != "" {
		if lo, hi, ok := dateWindow(pivot, dateRange); ok {
			filter["epoch"] = bson.M{"$gte": lo, "$lte": hi}
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.indexName,
			"path":          "embedding",
			"queryVector":   vec,
			"numCandidates": topK * numCandidateMult,
			"limit":         topK,
			"filter":        filter,
		}}},
		{{Key: "$project", Value: bson.M{
			"title": 1, "source": 1, "epoch": 1, "text": 1,
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("semantic_search: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []toolregistry.NewsPassage
	for cur.Next(ctx) {
		var doc passageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("semantic_search: decode: %w", err)
		}
		if doc.Score < threshold {
			continue
		}
		out = append(out, toolregistry.NewsPassage{
			Title: doc.Title, Source: doc.Source, DateEpoch: doc.Epoch,
			Text: doc.Text, Similarity: doc.Score,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("semantic_search: %w", err)
	}
	return out, nil
}

// dateWindow maps a date_range token to a [lo, hi] epoch bound around
// pivot, per §4.1: day=±1d, week=±7d, month=±30d.
func dateWindow(pivot int64, dateRange string) (lo, hi int64, ok bool) {
	switch dateRange {
	case "day":
		return pivot - dayOffset, pivot + dayOffset, true
	case "week":
		return pivot - 7*dayOffset, pivot + 7*dayOffset, true
	case "month":
		return pivot - 30*dayOffset, pivot + 30*dayOffset, true
	default:
		return 0, 0, false
	}
}

func intOr(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func floatOr(v any, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func int64OrOK(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
