package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roadsight/road-safety-assistant/internal/core/ports"
)

type fakeCompletion struct {
	response string
	err      error
	models   []string
	requests []ports.CompletionRequest
}

func (f *fakeCompletion) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompletion) ListModels(context.Context) ([]string, error) {
	return f.models, nil
}

func TestGenerateUsesLLMQuery(t *testing.T) {
	llm := &fakeCompletion{response: "MATCH (i:InfrastructureIssue) RETURN i.type LIMIT 5"}
	generator := NewQueryGenerator(llm, "", nil, QueryGeneratorConfig{})

	result := generator.Generate(context.Background(), "what sign types exist?")
	if result.UsedFallback {
		t.Fatal("expected LLM path, got template fallback")
	}
	if !result.Valid {
		t.Fatalf("expected valid query, got errors %v", result.ValidationErrors)
	}
	if result.Query != llm.response {
		t.Fatalf("unexpected query %q", result.Query)
	}

	if len(llm.requests) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(llm.requests))
	}
	prompt := llm.requests[0].Prompt
	if !strings.Contains(prompt, "InfrastructureIssue") {
		t.Fatal("prompt missing schema")
	}
	if !strings.Contains(prompt, "Question: what sign types exist?") {
		t.Fatal("prompt missing question")
	}
}

func TestGenerateFallsBackOnLLMError(t *testing.T) {
	llm := &fakeCompletion{err: errors.New("connection refused")}
	generator := NewQueryGenerator(llm, "", nil, QueryGeneratorConfig{})

	result := generator.Generate(context.Background(), "how many damaged signs?")
	if !result.UsedFallback {
		t.Fatal("expected template fallback")
	}
	if !result.Valid {
		t.Fatalf("template query must validate, got errors %v", result.ValidationErrors)
	}
	if !strings.Contains(result.Query, "i.problem = 'Damaged'") {
		t.Fatalf("unexpected template %q", result.Query)
	}
}

func TestGenerateFallsBackWithoutLLM(t *testing.T) {
	generator := NewQueryGenerator(nil, "", nil, QueryGeneratorConfig{})

	result := generator.Generate(context.Background(), "anything")
	if !result.UsedFallback {
		t.Fatal("expected template fallback with nil client")
	}
	if result.Query != defaultTemplateQuery {
		t.Fatalf("unexpected query %q", result.Query)
	}
}

func TestGenerateFallsBackOnEmptyLLMOutput(t *testing.T) {
	llm := &fakeCompletion{response: "   \n  "}
	generator := NewQueryGenerator(llm, "", nil, QueryGeneratorConfig{})

	result := generator.Generate(context.Background(), "road marking status")
	if !result.UsedFallback {
		t.Fatal("expected template fallback for empty output")
	}
	if !strings.Contains(result.Query, "Road Marking") {
		t.Fatalf("unexpected template %q", result.Query)
	}
}

func TestCleanGeneratedQuery(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain query untouched",
			raw:  "MATCH (i) RETURN i",
			want: "MATCH (i) RETURN i",
		},
		{
			name: "markdown fence stripped",
			raw:  "```cypher\nMATCH (i) RETURN i\n```",
			want: "MATCH (i) RETURN i",
		},
		{
			name: "fence without language tag",
			raw:  "```\nMATCH (i)\nRETURN i\n```",
			want: "MATCH (i)\nRETURN i",
		},
		{
			name: "leading explanation dropped",
			raw:  "Here is the query you asked for:\nMATCH (i) RETURN i",
			want: "MATCH (i) RETURN i",
		},
		{
			name: "cypher prefix line dropped",
			raw:  "Cypher: the following\nMATCH (i) RETURN i",
			want: "MATCH (i) RETURN i",
		},
		{
			name: "interior whitespace normalized",
			raw:  "  MATCH (i)  \n\n  RETURN i  ",
			want: "MATCH (i)\nRETURN i",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanGeneratedQuery(tc.raw); got != tc.want {
				t.Fatalf("cleanGeneratedQuery(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestValidateCypher(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		valid     bool
		wantError string
	}{
		{
			name:  "valid query",
			query: "MATCH (i:InfrastructureIssue) WHERE i.problem = 'Damaged' RETURN i",
			valid: true,
		},
		{
			name:  "lowercase keywords accepted",
			query: "match (i) return i",
			valid: true,
		},
		{
			name:      "empty",
			query:     "   ",
			wantError: "empty query generated",
		},
		{
			name:      "missing match",
			query:     "RETURN 1",
			wantError: "missing MATCH keyword",
		},
		{
			name:      "missing return",
			query:     "MATCH (i) DELETE i",
			wantError: "missing RETURN keyword",
		},
		{
			name:      "unbalanced parentheses",
			query:     "MATCH (i:Issue RETURN i",
			wantError: "unbalanced parentheses",
		},
		{
			name:      "unbalanced braces",
			query:     "MATCH (i {problem: 'Damaged') RETURN i",
			wantError: "unbalanced braces",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valid, errs := ValidateCypher(tc.query)
			if valid != tc.valid {
				t.Fatalf("ValidateCypher(%q) valid = %v, want %v (errors %v)", tc.query, valid, tc.valid, errs)
			}
			if tc.wantError == "" {
				return
			}
			found := false
			for _, msg := range errs {
				if msg == tc.wantError {
					found = true
				}
			}
			if !found {
				t.Fatalf("errors %v missing %q", errs, tc.wantError)
			}
		})
	}
}
