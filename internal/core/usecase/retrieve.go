package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/core/ports"
)

const defaultPreviewCap = 200

// Retriever ranks the loaded corpus against a query embedding with an exact
// linear cosine scan. O(n*d) per query; fine for a corpus in the low
// thousands, not meant for anything bigger without an ANN index.
type Retriever struct {
	embedder   ports.Embedder
	corpus     *domain.CorpusHolder
	previewCap int
}

func NewRetriever(embedder ports.Embedder, corpus *domain.CorpusHolder, previewCap int) *Retriever {
	if previewCap <= 0 {
		previewCap = defaultPreviewCap
	}
	return &Retriever{
		embedder:   embedder,
		corpus:     corpus,
		previewCap: previewCap,
	}
}

// Retrieve returns the topK most similar chunks, ordered by similarity
// descending with original index order breaking ties. An embedding failure
// or an unloaded corpus yields an empty result, never an error: callers
// treat that as "no vector evidence".
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) []domain.RankedChunk {
	if topK < 1 {
		topK = 1
	}

	corpus := r.corpus.Current()
	if corpus == nil {
		slog.Warn("vector retrieval skipped, corpus not loaded")
		return nil
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		slog.Warn("query embedding failed", "error", err)
		return nil
	}

	ranked := make([]domain.RankedChunk, corpus.Len())
	for i := 0; i < corpus.Len(); i++ {
		ranked[i] = domain.RankedChunk{
			Chunk:      corpus.Chunk(i),
			Similarity: CosineSimilarity(queryVector, corpus.Vector(i)),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK]
}

func (r *Retriever) Stats() domain.CorpusStats {
	corpus := r.corpus.Current()
	if corpus == nil {
		return domain.CorpusStats{}
	}
	return corpus.Stats()
}

// CosineSimilarity computes dot(a,b) / (||a||*||b||). A zero-norm operand
// yields exactly 0.0 instead of dividing by zero, and so does a dimension
// mismatch: vectors from different embedding spaces are not comparable, so
// they must never rank above anything.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FormatContext renders ranked results into the vector-channel context text
// handed to answer generation. Pure function of its inputs.
func (r *Retriever) FormatContext(question string, results []domain.RankedChunk) string {
	if len(results) == 0 {
		return fmt.Sprintf(`VECTOR CONTEXT - ROAD SAFETY DATA

USER QUERY: %s
RESULTS FOUND: 0
No similar documents found.
`, question)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "VECTOR CONTEXT - ROAD SAFETY DATA\n\nUSER QUERY: %s\n\nSEARCH METHOD: Cosine Similarity\nRESULTS FOUND: %d\n", question, len(results))

	for idx, result := range results {
		fmt.Fprintf(&b, `
RESULT %d:
  Chunk ID: %s
  Record ID: %d
  Similarity: %.2f%%
  Problem: %s
  Category: %s
  Type: %s
  Code: %s

  Text Preview:
  %s

`,
			idx+1,
			result.Chunk.ChunkID,
			result.Chunk.RecordID,
			result.Similarity*100,
			metadataField(result.Chunk.Metadata, "problem"),
			metadataField(result.Chunk.Metadata, "category"),
			metadataField(result.Chunk.Metadata, "type"),
			metadataField(result.Chunk.Metadata, "code"),
			previewText(result.Chunk.Text, r.previewCap),
		)
	}
	return b.String()
}

func metadataField(metadata map[string]any, key string) string {
	if value, ok := metadata[key]; ok {
		if s := fmt.Sprintf("%v", value); s != "" {
			return s
		}
	}
	return "N/A"
}

func previewText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
