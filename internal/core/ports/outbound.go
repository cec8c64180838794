package ports

import (
	"context"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
)

// CompletionRequest carries one bounded generation call to the LLM runtime.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// CompletionClient is the LLM completion interface. Complete returns the
// whole generated text; in streaming mode the implementation concatenates
// chunks in arrival order before returning.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Embedder turns query text into a fixed-length vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// GraphStore runs one Cypher query per call and returns rows in store order.
type GraphStore interface {
	Run(ctx context.Context, query string) ([]map[string]any, error)
}

// CorpusLoader reads the persisted chunk/embedding/metadata files into a
// canonical corpus. Load fails closed on unusable input.
type CorpusLoader interface {
	Load(ctx context.Context) (*domain.Corpus, error)
}

// HistoryStore persists answered questions for the chat history view.
type HistoryStore interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// EventQueue publishes/consumes question-answered events.
type EventQueue interface {
	PublishQuestionAnswered(ctx context.Context, entry domain.HistoryEntry) error
	SubscribeQuestionAnswered(ctx context.Context, handler func(context.Context, domain.HistoryEntry) error) error
}
