package domain

import (
	"fmt"
	"sync/atomic"
)

// Chunk is one unit of indexed source text. Loaded once at startup and
// treated as immutable for the process lifetime.
type Chunk struct {
	ChunkID  string         `json:"chunk_id"`
	RecordID int            `json:"record_id"`
	Text     string         `json:"chunk_text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CorpusStats struct {
	Chunks     int `json:"chunks_loaded"`
	Embeddings int `json:"embeddings_loaded"`
	Metadata   int `json:"metadata_loaded"`
	Dimension  int `json:"embedding_dimension"`
}

// Corpus owns the aligned chunk/embedding arrays. It is immutable after
// construction, so concurrent retrieval reads need no synchronization.
type Corpus struct {
	chunks        []Chunk
	vectors       [][]float32
	dimension     int
	metadataCount int
}

// NewCorpus validates alignment and uniform vector dimension. The caller is
// expected to have normalized and truncated the arrays already; any mismatch
// here is a hard construction error.
func NewCorpus(chunks []Chunk, vectors [][]float32, metadataCount int) (*Corpus, error) {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil, fmt.Errorf("empty corpus: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("misaligned corpus: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	dimension := len(vectors[0])
	for i, vector := range vectors {
		if len(vector) != dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vector), dimension)
		}
	}

	return &Corpus{
		chunks:        chunks,
		vectors:       vectors,
		dimension:     dimension,
		metadataCount: metadataCount,
	}, nil
}

func (c *Corpus) Len() int {
	return len(c.chunks)
}

func (c *Corpus) Chunk(i int) Chunk {
	return c.chunks[i]
}

func (c *Corpus) Vector(i int) []float32 {
	return c.vectors[i]
}

func (c *Corpus) Dimension() int {
	return c.dimension
}

func (c *Corpus) Stats() CorpusStats {
	return CorpusStats{
		Chunks:     len(c.chunks),
		Embeddings: len(c.vectors),
		Metadata:   c.metadataCount,
		Dimension:  c.dimension,
	}
}

// CorpusHolder publishes the current corpus to concurrent readers. Reload
// replaces the whole corpus in one atomic swap; readers either see the old
// pair or the new pair, never a torn mix.
type CorpusHolder struct {
	current atomic.Pointer[Corpus]
}

func NewCorpusHolder(corpus *Corpus) *CorpusHolder {
	holder := &CorpusHolder{}
	if corpus != nil {
		holder.current.Store(corpus)
	}
	return holder
}

// Current returns the active corpus, or nil when no load has succeeded yet.
func (h *CorpusHolder) Current() *Corpus {
	return h.current.Load()
}

func (h *CorpusHolder) Swap(corpus *Corpus) {
	h.current.Store(corpus)
}
