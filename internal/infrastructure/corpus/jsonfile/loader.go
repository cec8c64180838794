package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
)

const defaultCountTolerance = 5

// Loader reads the precomputed chunk/embedding/metadata JSON files into one
// canonical corpus. Embedding inputs come in several shapes in the wild
// (bare float arrays, wrapper objects, a top-level "embeddings" key); all of
// them are normalized here so nothing downstream ever sees a raw shape.
//
// Load fails closed: a missing or unreadable embeddings file, zero valid
// vectors, or a chunk/embedding count divergence beyond the tolerance all
// return an error and leave retrieval unavailable.
type Loader struct {
	chunksPath     string
	embeddingsPath string
	metadataPath   string
	tolerance      int
}

func New(chunksPath, embeddingsPath, metadataPath string, tolerance int) *Loader {
	if tolerance <= 0 {
		tolerance = defaultCountTolerance
	}
	return &Loader{
		chunksPath:     chunksPath,
		embeddingsPath: embeddingsPath,
		metadataPath:   metadataPath,
		tolerance:      tolerance,
	}
}

func (l *Loader) Load(_ context.Context) (*domain.Corpus, error) {
	chunks, err := l.loadChunks()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "load chunks", err)
	}

	vectors, err := l.loadEmbeddings()
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "load embeddings", err)
	}

	diff := len(chunks) - len(vectors)
	if diff < 0 {
		diff = -diff
	}
	if diff > l.tolerance {
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "align corpus",
			fmt.Errorf("chunk count %d and embedding count %d diverge beyond tolerance %d", len(chunks), len(vectors), l.tolerance))
	}
	if diff != 0 {
		slog.Warn("chunk/embedding counts diverge within tolerance, truncating",
			"chunks", len(chunks), "embeddings", len(vectors))
		n := min(len(chunks), len(vectors))
		chunks = chunks[:n]
		vectors = vectors[:n]
	}

	metadataCount := l.applyMetadata(chunks)

	corpus, err := domain.NewCorpus(chunks, vectors, metadataCount)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorpusUnavailable, "build corpus", err)
	}
	slog.Info("corpus loaded",
		"chunks", corpus.Len(),
		"dimension", corpus.Dimension(),
		"metadata", metadataCount,
	)
	return corpus, nil
}

func (l *Loader) loadChunks() ([]domain.Chunk, error) {
	data, err := os.ReadFile(l.chunksPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.chunksPath, err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.chunksPath, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s contains no chunks", l.chunksPath)
	}
	return chunks, nil
}

func (l *Loader) loadEmbeddings() ([][]float32, error) {
	data, err := os.ReadFile(l.embeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.embeddingsPath, err)
	}

	items, err := embeddingItems(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.embeddingsPath, err)
	}

	vectors := make([][]float32, 0, len(items))
	dimension := 0
	for i, item := range items {
		vector, err := normalizeEmbedding(item)
		if err != nil {
			slog.Warn("dropping invalid embedding", "index", i, "error", err)
			continue
		}
		if dimension == 0 {
			dimension = len(vector)
		}
		if len(vector) != dimension {
			slog.Warn("dropping embedding with mismatched dimension",
				"index", i, "dimension", len(vector), "expected", dimension)
			continue
		}
		vectors = append(vectors, vector)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no valid embeddings in %s", l.embeddingsPath)
	}
	return vectors, nil
}

// embeddingItems accepts either a bare JSON array or a wrapper object with a
// top-level "embeddings" key.
func embeddingItems(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapper struct {
		Embeddings []json.RawMessage `json:"embeddings"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("embeddings are neither an array nor an object with an embeddings key: %w", err)
	}
	if wrapper.Embeddings == nil {
		return nil, fmt.Errorf("embeddings object has no embeddings key")
	}
	return wrapper.Embeddings, nil
}

var embeddingWrapperKeys = []string{"embedding", "vector", "values", "features", "embeddings"}

// normalizeEmbedding converts one raw item into a float32 vector. Supported
// shapes: a bare numeric array, or an object carrying the array under one of
// the known wrapper keys. Anything else is rejected.
func normalizeEmbedding(item json.RawMessage) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal(item, &vector); err == nil {
		if len(vector) == 0 {
			return nil, fmt.Errorf("empty vector")
		}
		return vector, nil
	}

	var object map[string]json.RawMessage
	if err := json.Unmarshal(item, &object); err != nil {
		return nil, fmt.Errorf("unsupported embedding shape")
	}
	for _, key := range embeddingWrapperKeys {
		raw, ok := object[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
	}
	return nil, fmt.Errorf("no numeric vector under known keys")
}

// applyMetadata merges the optional metadata file into the chunks, index by
// index. A missing file is not an error: chunk-embedded metadata stays.
func (l *Loader) applyMetadata(chunks []domain.Chunk) int {
	if l.metadataPath == "" {
		return countChunkMetadata(chunks)
	}

	data, err := os.ReadFile(l.metadataPath)
	if err != nil {
		slog.Warn("metadata file not readable, using chunk metadata", "path", l.metadataPath, "error", err)
		return countChunkMetadata(chunks)
	}

	var metadata []map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		slog.Warn("metadata file not parseable, using chunk metadata", "path", l.metadataPath, "error", err)
		return countChunkMetadata(chunks)
	}
	if len(metadata) != len(chunks) {
		slog.Warn("metadata count differs from chunk count", "metadata", len(metadata), "chunks", len(chunks))
	}

	applied := 0
	for i := range chunks {
		if i < len(metadata) && len(metadata[i]) > 0 {
			chunks[i].Metadata = metadata[i]
			applied++
		}
	}
	return applied
}

func countChunkMetadata(chunks []domain.Chunk) int {
	count := 0
	for _, chunk := range chunks {
		if len(chunk.Metadata) > 0 {
			count++
		}
	}
	return count
}
