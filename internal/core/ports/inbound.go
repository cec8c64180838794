package ports

import (
	"context"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the question-answering
// pipeline. AnswerQuestion never fails: internal errors degrade into the
// answer text and diagnostic fields.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, question string) domain.Answer
}

// RetrieverStats exposes loaded-corpus counters for health and status views.
type RetrieverStats interface {
	Stats() domain.CorpusStats
}
