// Package bootstrap builds the collaborators of the binaries from the
// environment.
package bootstrap

import (
	"context"
	"fmt"
	"io"

	"github.com/bookrel/backend/internal/queue"
	"github.com/bookrel/backend/internal/storage"
	"github.com/bookrel/backend/internal/util"
	"github.com/bookrel/backend/pkg/ai"
	oai "github.com/bookrel/backend/pkg/ai/ollama"
	gai "github.com/bookrel/backend/pkg/ai/openai"
	"github.com/bookrel/backend/pkg/graph"
	"github.com/bookrel/backend/pkg/loader/web"
	"github.com/bookrel/backend/pkg/logger"
	"github.com/bookrel/backend/pkg/logger/console"
	"github.com/bookrel/backend/pkg/store"
	"github.com/bookrel/backend/pkg/store/memory"
	pgstore "github.com/bookrel/backend/pkg/store/pgx"
)

// InitLogger installs the console logger; DEBUG=true lowers the level.
func InitLogger() {
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)
}

// Store returns the Postgres store when DATABASE_URL is set and the
// in-memory store otherwise.
func Store(ctx context.Context) (store.GraphStore, error) {
	databaseURL := util.GetEnv("DATABASE_URL")
	if databaseURL == "" {
		logger.Info("[Store] Using in-memory graph store")
		return memory.NewGraphMemoryStorage(), nil
	}

	if err := pgstore.Migrate(databaseURL); err != nil {
		return nil, err
	}
	s, err := pgstore.NewGraphDBStorage(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("[Store] Using Postgres graph store")
	return s, nil
}

// AIClient returns the model client selected by AI_ADAPTER, or nil for
// "none" and an empty value.
func AIClient() (ai.GraphAIClient, error) {
	adapter := util.GetEnvString("AI_ADAPTER", "none")

	switch adapter {
	case "none", "":
		return nil, nil
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return client, nil
	case "openai":
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),

			ChatURL:    util.GetEnv("AI_CHAT_URL"),
			ChatKey:    util.GetEnv("AI_CHAT_KEY"),
			MaxRetries: int(util.GetEnvNumeric("AI_MAX_RETRIES", 3)),
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
	}
}

// Extractor returns the model-backed extractor when an AI adapter is
// configured and the co-occurrence extractor otherwise.
func Extractor(knownNames []string) (graph.Extractor, error) {
	client, err := AIClient()
	if err != nil {
		return nil, err
	}
	if client == nil {
		return &graph.CooccurrenceExtractor{
			Parallel:   int(util.GetEnvNumeric("EXTRACT_PARALLEL", 4)),
			KnownNames: knownNames,
		}, nil
	}

	return graph.NewAIExtractor(graph.NewAIExtractorParams{
		Client:             client,
		MaxTokens:          int(util.GetEnvNumeric("AI_MAX_TOKENS", 4000)),
		ParallelAiRequests: int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		MaxRetries:         int(util.GetEnvNumeric("AI_MAX_RETRIES", 3)),
		Dedupe:             util.GetEnvBool("AI_DEDUPE", true),
		Thinking:           util.GetEnv("AI_THINKING"),
	})
}

// URLLoader returns the web loader bounded by FETCH_TIMEOUT and
// FETCH_MAX_BYTES. Fetched texts are reused for FETCH_CACHE_TTL.
func URLLoader() *web.WebGraphLoader {
	return web.NewWebGraphLoader(web.NewWebGraphLoaderParams{
		Timeout:  util.GetEnvDuration("FETCH_TIMEOUT", 0),
		MaxBytes: int64(util.GetEnvNumeric("FETCH_MAX_BYTES", 0)),
		CacheTTL: util.GetEnvDuration("FETCH_CACHE_TTL", 0),
	})
}

// SideEffects returns the optional S3 archiver and AMQP publisher. Either
// is nil when its settings are absent. The returned closer releases the
// broker connection.
func SideEffects(ctx context.Context) (graph.SourceArchiver, graph.MergePublisher, io.Closer, error) {
	var (
		archiver  graph.SourceArchiver
		publisher graph.MergePublisher
		closer    io.Closer = nopCloser{}
	)

	if cfg := storage.S3ConfigFromEnv(); cfg.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		archiver = storage.NewS3Archiver(client, cfg.Bucket)
		logger.Info("[Storage] Archiving sources to S3", "bucket", cfg.Bucket)
	}

	if cfg := queue.ConfigFromEnv(); cfg.Enabled() {
		conn, err := queue.Init(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, nil, fmt.Errorf("failed to open channel: %w", err)
		}
		if err := queue.SetupExchange(ch); err != nil {
			conn.Close()
			return nil, nil, nil, err
		}
		publisher = queue.NewPublisher(ch)
		closer = conn
		logger.Info("[Queue] Publishing merge events", "exchange", queue.Exchange)
	}

	return archiver, publisher, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
