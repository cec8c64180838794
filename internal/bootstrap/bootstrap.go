package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roadsight/road-safety-assistant/internal/config"
	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/core/ports"
	"github.com/roadsight/road-safety-assistant/internal/core/usecase"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/corpus/jsonfile"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/graph/neo4j"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/llm/ollama"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/queue/nats"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/repository/postgres"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/resilience"
)

// App holds the wired api process. Optional backends (graph, queue, history)
// may be nil; the pipeline degrades instead of refusing to start.
type App struct {
	Config config.Config

	Answerer  ports.QuestionAnswerer
	Retriever *usecase.Retriever
	History   ports.HistoryStore
	Queue     ports.EventQueue

	GraphConnected bool
	QueueConnected bool

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	llmClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	verifyModels(ctx, llmClient, cfg.OllamaGenModel, cfg.OllamaEmbedModel)

	schema := usecase.DefaultSchema
	if cfg.SchemaFile != "" {
		loaded, err := usecase.LoadSchema(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		schema = loaded
	}
	rules := usecase.DefaultTemplateRules()
	if cfg.TemplateRulesFile != "" {
		loaded, err := usecase.LoadTemplateRules(cfg.TemplateRulesFile)
		if err != nil {
			return nil, fmt.Errorf("load template rules: %w", err)
		}
		rules = loaded
	}
	generator := usecase.NewQueryGenerator(llmClient, schema, rules, usecase.QueryGeneratorConfig{
		Timeout:     cfg.QueryGenTimeout,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})

	graphStore, graphConnected := openGraph(ctx, cfg)

	holder := loadCorpus(ctx, cfg)
	retriever := usecase.NewRetriever(ollama.NewEmbedder(llmClient), holder, cfg.RAGPreviewChars)

	queue, queueConnected := openQueue(cfg, executor)

	db, history := openHistory(ctx, cfg)

	var graphPort ports.GraphStore
	if graphStore != nil {
		graphPort = graphStore
	}
	var queuePort ports.EventQueue
	if queue != nil {
		queuePort = queue
	}

	answerer := usecase.NewAnswerUseCase(generator, graphPort, retriever, llmClient, queuePort, usecase.AnswerConfig{
		TopK:         cfg.RAGTopK,
		Temperature:  cfg.LLMTemperature,
		MaxTokens:    cfg.AnswerMaxTokens,
		Stream:       cfg.LLMStream,
		GraphTimeout: cfg.GraphQueryTimeout,
		LLMTimeout:   cfg.AnswerLLMTimeout,
	})

	return &App{
		Config:         cfg,
		Answerer:       answerer,
		Retriever:      retriever,
		History:        history,
		Queue:          queuePort,
		GraphConnected: graphConnected,
		QueueConnected: queueConnected,
		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			if db != nil {
				_ = db.Close()
			}
			if graphStore != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = graphStore.Close(closeCtx)
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// NewWorker wires the history worker process: queue consumer plus the
// Postgres repository it persists into. Both backends are required here.
func NewWorker(ctx context.Context, cfg config.Config) (ports.EventQueue, *postgres.HistoryRepository, func(), error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewHistoryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("init event queue: %w", err)
	}

	closeFn := func() {
		queue.Close()
		_ = db.Close()
	}
	return queue, repo, closeFn, nil
}

// verifyModels checks the Ollama model catalog at startup. Missing models are
// logged, not fatal, since models may still be pulling.
func verifyModels(ctx context.Context, client *ollama.Client, names ...string) {
	listCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	models, err := client.ListModels(listCtx)
	if err != nil {
		slog.Warn("ollama model listing failed", "error", err)
		return
	}
	for _, name := range names {
		if !ollama.HasModel(models, name) {
			slog.Warn("expected model not found in ollama", "model", name)
		}
	}
}

func openGraph(ctx context.Context, cfg config.Config) (*neo4j.Store, bool) {
	store, err := neo4j.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.GraphDriverTimeout)
	if err != nil {
		slog.Warn("neo4j driver init failed, graph channel disabled", "error", err)
		return nil, false
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.GraphDriverTimeout)
	defer cancel()
	if err := store.VerifyConnectivity(verifyCtx); err != nil {
		slog.Warn("neo4j connectivity check failed", "error", err)
		return store, false
	}
	return store, true
}

// loadCorpus reads the retrieval corpus. On failure the holder stays empty
// and the vector channel reports zero chunks until a reload succeeds.
func loadCorpus(ctx context.Context, cfg config.Config) *domain.CorpusHolder {
	loader := jsonfile.New(cfg.ChunksFile, cfg.EmbeddingsFile, cfg.MetadataFile, cfg.CountTolerance)
	corpus, err := loader.Load(ctx)
	if err != nil {
		slog.Error("corpus load failed, vector channel disabled", "error", err)
		return domain.NewCorpusHolder(nil)
	}
	return domain.NewCorpusHolder(corpus)
}

func openQueue(cfg config.Config, executor *resilience.Executor) (*nats.Queue, bool) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		slog.Warn("nats connect failed, history events disabled", "error", err)
		return nil, false
	}
	return queue, true
}

func openHistory(ctx context.Context, cfg config.Config) (*sql.DB, ports.HistoryStore) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		slog.Warn("postgres connect failed, chat history disabled", "error", err)
		return nil, nil
	}
	repo := postgres.NewHistoryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		slog.Warn("history schema init failed, chat history disabled", "error", err)
		_ = db.Close()
		return nil, nil
	}
	return db, repo
}
