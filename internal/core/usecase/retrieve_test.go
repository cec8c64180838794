package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func testCorpus(t *testing.T, chunks []domain.Chunk, vectors [][]float32) *domain.CorpusHolder {
	t.Helper()
	corpus, err := domain.NewCorpus(chunks, vectors, 0)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	return domain.NewCorpusHolder(corpus)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-2, 4, 1}

	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
	if got, mirrored := CosineSimilarity(a, b), CosineSimilarity(b, a); got != mirrored {
		t.Fatalf("similarity not symmetric: %v vs %v", got, mirrored)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal similarity = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero-norm similarity = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1, 1}, []float32{-1, -1}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("opposite similarity = %v, want -1", got)
	}
	if got := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2}); got != 0 {
		t.Fatalf("mismatched dimensions similarity = %v, want 0", got)
	}
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	holder := testCorpus(t,
		[]domain.Chunk{
			{ChunkID: "c0", Text: "unrelated"},
			{ChunkID: "c1", Text: "close match"},
			{ChunkID: "c2", Text: "exact match"},
		},
		[][]float32{
			{0, 1},
			{0.7, 0.7},
			{1, 0},
		},
	)
	retriever := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, holder, 0)

	results := retriever.Retrieve(context.Background(), "question", 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "c2" || results[1].Chunk.ChunkID != "c1" {
		t.Fatalf("unexpected order: %s, %s", results[0].Chunk.ChunkID, results[1].Chunk.ChunkID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatal("results not sorted by similarity descending")
	}
}

func TestRetrieveBreaksTiesByIndexOrder(t *testing.T) {
	holder := testCorpus(t,
		[]domain.Chunk{
			{ChunkID: "first"},
			{ChunkID: "second"},
			{ChunkID: "third"},
		},
		[][]float32{
			{1, 0},
			{1, 0},
			{1, 0},
		},
	)
	retriever := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, holder, 0)

	results := retriever.Retrieve(context.Background(), "question", 3)
	if results[0].Chunk.ChunkID != "first" || results[1].Chunk.ChunkID != "second" || results[2].Chunk.ChunkID != "third" {
		t.Fatalf("tie order not stable: %s, %s, %s",
			results[0].Chunk.ChunkID, results[1].Chunk.ChunkID, results[2].Chunk.ChunkID)
	}
}

func TestRetrieveClampsTopK(t *testing.T) {
	holder := testCorpus(t,
		[]domain.Chunk{{ChunkID: "only"}},
		[][]float32{{1, 0}},
	)
	retriever := NewRetriever(&fakeEmbedder{vector: []float32{1, 0}}, holder, 0)

	if got := retriever.Retrieve(context.Background(), "q", 0); len(got) != 1 {
		t.Fatalf("topK 0 should clamp to 1 result, got %d", len(got))
	}
	if got := retriever.Retrieve(context.Background(), "q", 50); len(got) != 1 {
		t.Fatalf("topK beyond corpus should return whole corpus, got %d", len(got))
	}
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	empty := NewRetriever(&fakeEmbedder{vector: []float32{1}}, domain.NewCorpusHolder(nil), 0)
	if got := empty.Retrieve(context.Background(), "q", 3); got != nil {
		t.Fatalf("expected nil for unloaded corpus, got %v", got)
	}

	holder := testCorpus(t, []domain.Chunk{{ChunkID: "c"}}, [][]float32{{1}})
	failing := NewRetriever(&fakeEmbedder{err: errors.New("embed down")}, holder, 0)
	if got := failing.Retrieve(context.Background(), "q", 3); got != nil {
		t.Fatalf("expected nil on embedding failure, got %v", got)
	}
}

func TestStatsReflectsLoadedCorpus(t *testing.T) {
	retriever := NewRetriever(nil, domain.NewCorpusHolder(nil), 0)
	if stats := retriever.Stats(); stats.Chunks != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	holder := testCorpus(t,
		[]domain.Chunk{{ChunkID: "a"}, {ChunkID: "b"}},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	retriever = NewRetriever(nil, holder, 0)
	stats := retriever.Stats()
	if stats.Chunks != 2 || stats.Embeddings != 2 || stats.Dimension != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFormatContextEmpty(t *testing.T) {
	retriever := NewRetriever(nil, domain.NewCorpusHolder(nil), 0)

	text := retriever.FormatContext("any question", nil)
	if !strings.Contains(text, "RESULTS FOUND: 0") {
		t.Fatalf("missing zero-result marker in %q", text)
	}
	if !strings.Contains(text, "No similar documents found.") {
		t.Fatalf("missing empty notice in %q", text)
	}
}

func TestFormatContextRendersResults(t *testing.T) {
	retriever := NewRetriever(nil, domain.NewCorpusHolder(nil), 10)

	results := []domain.RankedChunk{
		{
			Chunk: domain.Chunk{
				ChunkID:  "chunk-7",
				RecordID: 7,
				Text:     "A very long chunk body that exceeds the preview limit",
				Metadata: map[string]any{"problem": "Damaged", "category": "Road Sign"},
			},
			Similarity: 0.875,
		},
	}

	text := retriever.FormatContext("damaged signs", results)
	for _, want := range []string{
		"USER QUERY: damaged signs",
		"RESULTS FOUND: 1",
		"Chunk ID: chunk-7",
		"Record ID: 7",
		"Similarity: 87.50%",
		"Problem: Damaged",
		"Category: Road Sign",
		"Type: N/A",
		"Code: N/A",
		"A very lon...",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("formatted context missing %q:\n%s", want, text)
		}
	}
}
