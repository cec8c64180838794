package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/roadsight/road-safety-assistant/internal/core/ports"
	"github.com/roadsight/road-safety-assistant/internal/infrastructure/resilience"
)

// Client talks to a local Ollama server. One instance serves both the
// generation model (Cypher + answers) and the embedding model.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type generatePayload struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	Stream      bool    `json:"stream"`
}

// Complete runs one /api/generate call. In streaming mode the response
// chunks are concatenated in arrival order; either way the caller gets the
// whole generated text.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	payload := generatePayload{
		Model:       c.genModel,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		TopP:        0.9,
		NumPredict:  req.MaxTokens,
		Stream:      req.Stream,
	}

	var text string
	err := c.execute(ctx, "generate", func(callCtx context.Context) error {
		var callErr error
		if req.Stream {
			text, callErr = c.generateStream(callCtx, payload)
		} else {
			text, callErr = c.generateOnce(callCtx, payload)
		}
		return callErr
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generateOnce(ctx context.Context, payload generatePayload) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", payload, &response, "generate"); err != nil {
		return "", err
	}
	return response.Response, nil
}

// ListModels returns the names of models the server reports via /api/tags.
// Used once at startup to verify connectivity.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &response, "tags"); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(response.Models))
	for _, model := range response.Models {
		names = append(names, model.Name)
	}
	return names, nil
}

// HasModel reports whether any listed model matches the given name, ignoring
// the tag suffix ("llama3.1" matches "llama3.1:8b").
func HasModel(models []string, name string) bool {
	base := strings.SplitN(name, ":", 2)[0]
	for _, model := range models {
		if strings.Contains(strings.SplitN(model, ":", 2)[0], base) {
			return true
		}
	}
	return false
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, "embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	err := c.executor.Execute(ctx, "ollama_"+operation, fn, classifyOllamaError)
	return wrapTemporaryIfNeeded("ollama "+operation, err)
}
