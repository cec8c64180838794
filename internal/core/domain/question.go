package domain

import "time"

// QueryGeneration is the outcome of turning a natural-language question into
// a Cypher query. Created once per question and never mutated afterwards.
type QueryGeneration struct {
	Query            string        `json:"cypher_query"`
	Valid            bool          `json:"is_valid"`
	ValidationErrors []string      `json:"validation_errors,omitempty"`
	Elapsed          time.Duration `json:"-"`
	UsedFallback     bool          `json:"used_template"`
}

// GraphExecution captures one Cypher run against the graph store. Rows keep
// the store-returned order; RowCount always equals len(Rows).
type GraphExecution struct {
	Success  bool             `json:"success"`
	Question string           `json:"query"`
	Query    string           `json:"cypher,omitempty"`
	Rows     []map[string]any `json:"records"`
	RowCount int              `json:"count"`
	Err      string           `json:"error,omitempty"`
}

// RankedChunk pairs a chunk with its cosine similarity to the query
// embedding, in [-1, 1].
type RankedChunk struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
}

// Answer is the user-facing result. Text is always non-empty; the diagnostic
// fields describe what each evidence channel contributed or why it did not.
type Answer struct {
	Text             string `json:"text"`
	Query            string `json:"cypher_query,omitempty"`
	GraphDiagnostic  string `json:"graph_diagnostic,omitempty"`
	VectorDiagnostic string `json:"vector_diagnostic,omitempty"`
	GraphRows        int    `json:"graph_rows"`
	ChunksRetrieved  int    `json:"chunks_retrieved"`
	UsedTemplate     bool   `json:"used_template"`
}

// HistoryEntry is one answered question, persisted for the chat history view.
type HistoryEntry struct {
	ID               string    `json:"id"`
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	GraphDiagnostic  string    `json:"graph_diagnostic,omitempty"`
	VectorDiagnostic string    `json:"vector_diagnostic,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
