package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/core/ports"
)

// InsufficientContextPhrase is the escape phrase the answer model is told to
// emit, and the text returned when neither channel produced evidence.
const InsufficientContextPhrase = "Insufficient information in the provided context."

const processingErrorText = "I encountered an error while processing your query. Please try again."

// AnswerConfig bounds the per-question pipeline.
type AnswerConfig struct {
	TopK         int
	Temperature  float64
	MaxTokens    int
	Stream       bool
	GraphTimeout time.Duration
	LLMTimeout   time.Duration
}

// AnswerUseCase runs the full pipeline for one question: Cypher generation
// and graph execution on one side, semantic retrieval on the other, then a
// single fused answer-generation call. It never returns an error to the
// caller; every failure degrades into diagnostics and best-effort text.
type AnswerUseCase struct {
	generator *QueryGenerator
	graph     ports.GraphStore
	retriever *Retriever
	llm       ports.CompletionClient
	queue     ports.EventQueue
	cfg       AnswerConfig
}

func NewAnswerUseCase(
	generator *QueryGenerator,
	graph ports.GraphStore,
	retriever *Retriever,
	llm ports.CompletionClient,
	queue ports.EventQueue,
	cfg AnswerConfig,
) *AnswerUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.GraphTimeout <= 0 {
		cfg.GraphTimeout = 10 * time.Second
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 60 * time.Second
	}
	return &AnswerUseCase{
		generator: generator,
		graph:     graph,
		retriever: retriever,
		llm:       llm,
		queue:     queue,
		cfg:       cfg,
	}
}

func (uc *AnswerUseCase) AnswerQuestion(ctx context.Context, question string) domain.Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{Text: InsufficientContextPhrase}
	}

	// The two evidence channels have no data dependency on each other; run
	// them as independent tasks joined before fusion.
	var (
		graphExec     domain.GraphExecution
		usedTemplate  bool
		rankedChunks  []domain.RankedChunk
		vectorContext string
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		graphExec, usedTemplate = uc.executeGraphChannel(groupCtx, question)
		return nil
	})
	group.Go(func() error {
		rankedChunks = uc.retriever.Retrieve(groupCtx, question, uc.cfg.TopK)
		vectorContext = uc.retriever.FormatContext(question, rankedChunks)
		return nil
	})
	_ = group.Wait()

	answer := uc.fuse(ctx, question, graphExec, rankedChunks, vectorContext)
	answer.Query = graphExec.Query
	answer.GraphRows = graphExec.RowCount
	answer.ChunksRetrieved = len(rankedChunks)
	answer.UsedTemplate = usedTemplate
	uc.publish(ctx, question, answer)
	return answer
}

// executeGraphChannel produces the graph-channel result. Generation cannot
// fail outright; an invalid query or a store error is captured, never raised.
func (uc *AnswerUseCase) executeGraphChannel(ctx context.Context, question string) (domain.GraphExecution, bool) {
	exec := domain.GraphExecution{
		Question: question,
		Rows:     []map[string]any{},
	}

	generation := uc.generator.Generate(ctx, question)
	exec.Query = generation.Query
	if !generation.Valid {
		exec.Err = fmt.Sprintf("query validation failed: %s", strings.Join(generation.ValidationErrors, "; "))
		slog.Warn("generated cypher rejected",
			"used_template", generation.UsedFallback,
			"errors", generation.ValidationErrors,
		)
		return exec, generation.UsedFallback
	}
	slog.Info("cypher generated",
		"used_template", generation.UsedFallback,
		"elapsed_seconds", generation.Elapsed.Seconds(),
	)

	if uc.graph == nil {
		exec.Err = "graph store not available"
		return exec, generation.UsedFallback
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.cfg.GraphTimeout)
	defer cancel()

	rows, err := uc.graph.Run(runCtx, generation.Query)
	if err != nil {
		exec.Err = fmt.Sprintf("query execution failed: %v", err)
		return exec, generation.UsedFallback
	}

	exec.Success = true
	exec.Rows = rows
	exec.RowCount = len(rows)
	return exec, generation.UsedFallback
}

func (uc *AnswerUseCase) fuse(
	ctx context.Context,
	question string,
	graphExec domain.GraphExecution,
	rankedChunks []domain.RankedChunk,
	vectorContext string,
) domain.Answer {
	graphDiagnostic := graphDiagnosticText(graphExec)
	vectorDiagnostic := fmt.Sprintf("%d chunks retrieved", len(rankedChunks))

	if !graphExec.Success && len(rankedChunks) == 0 {
		return domain.Answer{
			Text:             InsufficientContextPhrase,
			GraphDiagnostic:  graphDiagnostic,
			VectorDiagnostic: vectorDiagnostic,
		}
	}

	llmCtx, cancel := context.WithTimeout(ctx, uc.cfg.LLMTimeout)
	defer cancel()

	text, err := uc.llm.Complete(llmCtx, ports.CompletionRequest{
		Prompt:      buildFusionPrompt(question, formatGraphContext(graphExec), vectorContext),
		Temperature: uc.cfg.Temperature,
		MaxTokens:   uc.cfg.MaxTokens,
		Stream:      uc.cfg.Stream,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Error("answer generation failed", "error", err)
		return domain.Answer{
			Text:             processingErrorText,
			GraphDiagnostic:  graphDiagnostic,
			VectorDiagnostic: vectorDiagnostic,
		}
	}

	return domain.Answer{
		Text:             strings.TrimSpace(text),
		GraphDiagnostic:  graphDiagnostic,
		VectorDiagnostic: vectorDiagnostic,
	}
}

func (uc *AnswerUseCase) publish(ctx context.Context, question string, answer domain.Answer) {
	if uc.queue == nil {
		return
	}
	entry := domain.HistoryEntry{
		ID:               uuid.NewString(),
		Question:         question,
		Answer:           answer.Text,
		GraphDiagnostic:  answer.GraphDiagnostic,
		VectorDiagnostic: answer.VectorDiagnostic,
		CreatedAt:        time.Now().UTC(),
	}
	if err := uc.queue.PublishQuestionAnswered(ctx, entry); err != nil {
		slog.Warn("publish question answered event failed", "error", err)
	}
}

func graphDiagnosticText(exec domain.GraphExecution) string {
	if exec.Success {
		return fmt.Sprintf("%d rows from cypher: %s", exec.RowCount, exec.Query)
	}
	return exec.Err
}

const (
	graphContextRowCap   = 10
	graphContextValueCap = 80
)

// formatGraphContext renders the graph-channel result for the fusion prompt.
func formatGraphContext(exec domain.GraphExecution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GRAPH CONTEXT - ROAD SAFETY DATA\n\nUSER QUERY: %s\n", exec.Question)

	if !exec.Success {
		fmt.Fprintf(&b, "STATUS: failed (%s)\n", exec.Err)
		return b.String()
	}

	fmt.Fprintf(&b, "GENERATED CYPHER: %s\nRESULTS: %d records\n", exec.Query, exec.RowCount)
	for i, row := range exec.Rows {
		if i == graphContextRowCap {
			fmt.Fprintf(&b, "... and %d more records\n", exec.RowCount-graphContextRowCap)
			break
		}
		fmt.Fprintf(&b, "[%d] ", i+1)
		fields := make([]string, 0, len(row))
		for key, value := range row {
			text := previewText(fmt.Sprintf("%v", value), graphContextValueCap)
			fields = append(fields, fmt.Sprintf("%s: %s", key, text))
		}
		sort.Strings(fields)
		b.WriteString(strings.Join(fields, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// buildFusionPrompt assembles the single constrained instruction for the
// answering model: context-only, both channels verbatim, fixed output
// sections, explicit escape phrase.
func buildFusionPrompt(question, graphContext, vectorContext string) string {
	return fmt.Sprintf(`You are a Road Safety Expert Assistant. Use ONLY the information provided in the context.
Do NOT add external knowledge. If any information is missing, clearly state it.

QUESTION:
%s

GRAPH CONTEXT:
%s

VECTOR CONTEXT:
%s

RESPONSE RULES:
1. Answer must be clear, explainable, and strictly based on context.
2. Use **bold headings** exactly as shown below.
3. Use *bullet points* for lists.
4. Cite IRC standards, codes, and clauses exactly as present in context.
5. Provide only context-supported interventions and recommendations.
6. If information is missing, write: *"%s"*

OUTPUT FORMAT (STRICT):

**Direct and Professional Answer:**
- straight answer based on context

**Reference to IRC Standards:**
- *List standards and clauses mentioned in context.*

**Interventions with Specifications:**
- *Intervention (with clause), if available*

**Standard Codes and Clause Numbers:**
- *IRC code + clause list*

**Actionable Recommendations:**
- *Recommendation, if available*

FINAL RESPONSE:
`, question, graphContext, vectorContext, InsufficientContextPhrase)
}
