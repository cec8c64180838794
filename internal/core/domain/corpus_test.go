package domain

import "testing"

func TestNewCorpusValidation(t *testing.T) {
	chunks := []Chunk{{ChunkID: "a"}, {ChunkID: "b"}}

	if _, err := NewCorpus(nil, nil, 0); err == nil {
		t.Fatal("expected error for empty corpus")
	}
	if _, err := NewCorpus(chunks, [][]float32{{1, 0}}, 0); err == nil {
		t.Fatal("expected error for misaligned arrays")
	}
	if _, err := NewCorpus(chunks, [][]float32{{1, 0}, {1, 0, 0}}, 0); err == nil {
		t.Fatal("expected error for mixed dimensions")
	}

	corpus, err := NewCorpus(chunks, [][]float32{{1, 0}, {0, 1}}, 1)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	stats := corpus.Stats()
	if stats.Chunks != 2 || stats.Embeddings != 2 || stats.Metadata != 1 || stats.Dimension != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCorpusHolderSwap(t *testing.T) {
	holder := NewCorpusHolder(nil)
	if holder.Current() != nil {
		t.Fatal("expected nil before first load")
	}

	first, err := NewCorpus([]Chunk{{ChunkID: "a"}}, [][]float32{{1}}, 0)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	holder.Swap(first)
	if holder.Current() != first {
		t.Fatal("swap did not publish corpus")
	}

	second, err := NewCorpus([]Chunk{{ChunkID: "b"}, {ChunkID: "c"}}, [][]float32{{1}, {0}}, 0)
	if err != nil {
		t.Fatalf("build corpus: %v", err)
	}
	holder.Swap(second)
	if got := holder.Current(); got != second || got.Len() != 2 {
		t.Fatal("swap did not replace corpus atomically")
	}
}
