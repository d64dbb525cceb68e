// Command coinnews runs the query orchestration core as a line-oriented CLI:
// each line of stdin is one utterance for a fixed session, answered via
// pipeline.Core.Ask and printed to stdout. It wires every pipeline stage
// exactly once at startup (the "singletons with lazy init" design), selecting
// a model provider and a session backend from flags/environment.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/keyveloper/coin-news-go/features/model/anthropic"
	"github.com/keyveloper/coin-news-go/features/model/bedrock"
	"github.com/keyveloper/coin-news-go/features/model/middleware"
	"github.com/keyveloper/coin-news-go/features/model/openai"
	redissession "github.com/keyveloper/coin-news-go/features/session/redis"
	"github.com/keyveloper/coin-news-go/features/tools/embed"
	llmtools "github.com/keyveloper/coin-news-go/features/tools/llm"
	pricemongo "github.com/keyveloper/coin-news-go/features/tools/price/mongo"
	vectormongo "github.com/keyveloper/coin-news-go/features/tools/vector/mongo"
	"github.com/keyveloper/coin-news-go/runtime/analyzer"
	"github.com/keyveloper/coin-news-go/runtime/executor"
	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/pipeline"
	"github.com/keyveloper/coin-news-go/runtime/planner"
	"github.com/keyveloper/coin-news-go/runtime/router"
	"github.com/keyveloper/coin-news-go/runtime/scripter"
	"github.com/keyveloper/coin-news-go/runtime/session"
	"github.com/keyveloper/coin-news-go/runtime/session/memstore"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

func main() {
	var (
		providerF  = flag.String("provider", "anthropic", "model provider: anthropic, bedrock, or openai")
		mongoURIF  = flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB connection string (required)")
		mongoDBF   = flag.String("mongo-db", "coinnews", "MongoDB database name")
		redisAddrF = flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address; empty uses an in-process session cache")
		sessionF   = flag.String("session", "cli-session", "session ID for this CLI run")
		debugF     = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *debugF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *mongoURIF == "" {
		log.Fatal(ctx, fmt.Errorf("-mongo-uri (or MONGO_URI) is required"))
	}

	mongoClient, err := mongo.Connect(options.Client().ApplyURI(*mongoURIF))
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("connect mongo: %w", err))
	}
	defer func() { _ = mongoClient.Disconnect(ctx) }()

	baseClient, err := newModelClient(ctx, *providerF)
	if err != nil {
		log.Fatal(ctx, err)
	}
	modelClient := middleware.NewAdaptiveRateLimiter(60000, 120000).Middleware()(baseClient)

	logger := telemetry.NewClueLogger()
	tracer := telemetry.NewClueTracer()
	metrics := telemetry.NewClueMetrics()

	store, err := newSessionStore(ctx, *redisAddrF)
	if err != nil {
		log.Fatal(ctx, err)
	}

	registry := toolregistry.New()
	llmtools.New(modelClient).Register(registry)

	priceStore, err := pricemongo.New(ctx, pricemongo.Options{Client: mongoClient, Database: *mongoDBF})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("price store: %w", err))
	}
	registry.Register(toolregistry.ToolGetCoinPrice, priceStore.Handler)

	embedder, err := newEmbedder()
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("embed client: %w", err))
	}
	vectorStore, err := vectormongo.New(vectormongo.Options{
		Client: mongoClient, Database: *mongoDBF, Embedder: embedder.Embed,
	})
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("vector store: %w", err))
	}
	registry.Register(toolregistry.ToolSemanticSearch, vectorStore.Handler)

	an := analyzer.New(modelClient, analyzer.WithLogger(logger), analyzer.WithTracer(tracer), analyzer.WithMetrics(metrics))
	pl := planner.New(planner.WithLogger(logger), planner.WithTracer(tracer), planner.WithMetrics(metrics))
	ex := executor.New(registry,
		executor.WithLogger(logger), executor.WithTracer(tracer), executor.WithMetrics(metrics),
		executor.WithMaxConcurrent(8), executor.WithCallTimeout(20*time.Second),
		executor.WithRateLimit(10, 20),
	)
	sc := scripter.New()
	rt := router.New(modelClient, router.WithLogger(logger), router.WithTracer(tracer), router.WithMetrics(metrics))

	core := pipeline.New(rt, an, pl, ex, sc, store, modelClient,
		pipeline.WithLogger(logger), pipeline.WithTracer(tracer), pipeline.WithMetrics(metrics))

	log.Print(ctx, log.KV{K: "provider", V: *providerF}, log.KV{K: "session", V: *sessionF})
	runREPL(ctx, core, *sessionF)
}

func runREPL(ctx context.Context, core *pipeline.Core, sessionID string) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("coinnews ready. Ask about a coin's price or news; Ctrl-D to exit.")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		utterance := scanner.Text()
		if utterance == "" {
			continue
		}
		result, err := core.Ask(ctx, sessionID, utterance)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Printf("[%s]\n%s\n\n", result.Path, result.Answer)
	}
}

func newModelClient(ctx context.Context, provider string) (model.Client, error) {
	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for -provider=anthropic")
		}
		ac := sdk.NewClient(anthropicopt.WithAPIKey(apiKey))
		return anthropic.New(&ac.Messages, anthropic.Options{
			DefaultModel: "claude-3-5-sonnet-20241022",
			SmallModel:   "claude-3-5-haiku-20241022",
			HighModel:    "claude-3-5-sonnet-20241022",
			MaxTokens:    1024,
		})
	case "bedrock":
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return bedrock.New(bedrock.Options{
			Runtime:      bedrockruntime.NewFromConfig(cfg),
			DefaultModel: "anthropic.claude-3-5-sonnet-20241022-v2:0",
			MaxTokens:    1024,
		})
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for -provider=openai")
		}
		oc := openaisdk.NewClient(openaiopt.WithAPIKey(apiKey))
		return openai.New(openai.Options{Client: &oc.Chat.Completions, DefaultModel: "gpt-4o", SmallModel: "gpt-4o-mini"})
	default:
		return nil, fmt.Errorf("unknown -provider %q", provider)
	}
}

func newSessionStore(ctx context.Context, redisAddr string) (session.Store, error) {
	if redisAddr == "" {
		return memstore.New(), nil
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return redissession.New(client), nil
}

// newEmbedder constructs the OpenAI-backed embedding client semantic_search
// uses regardless of which provider answers chat completions: none of the
// three model.Client adapters expose an embeddings call, so this always
// talks to OpenAI directly via OPENAI_API_KEY.
func newEmbedder() (*embed.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required to embed semantic_search queries")
	}
	return embed.NewFromAPIKey(apiKey, "text-embedding-3-small")
}
