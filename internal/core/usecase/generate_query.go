package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
	"github.com/roadsight/road-safety-assistant/internal/core/ports"
)

// QueryGeneratorConfig bounds the LLM path of query generation.
type QueryGeneratorConfig struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// QueryGenerator turns a natural-language question into a validated Cypher
// query. The LLM path is tried first under a bounded timeout; any failure
// there selects a template query instead, so generation itself never fails.
type QueryGenerator struct {
	llm    ports.CompletionClient
	schema string
	rules  []TemplateRule
	cfg    QueryGeneratorConfig
}

func NewQueryGenerator(llm ports.CompletionClient, schema string, rules []TemplateRule, cfg QueryGeneratorConfig) *QueryGenerator {
	if schema == "" {
		schema = DefaultSchema
	}
	if len(rules) == 0 {
		rules = DefaultTemplateRules()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	return &QueryGenerator{
		llm:    llm,
		schema: schema,
		rules:  rules,
		cfg:    cfg,
	}
}

func (g *QueryGenerator) Generate(ctx context.Context, question string) domain.QueryGeneration {
	start := time.Now()

	query := g.generateWithLLM(ctx, question)
	usedFallback := query == ""
	if usedFallback {
		query = SelectTemplate(g.rules, question)
	}

	valid, validationErrors := ValidateCypher(query)
	return domain.QueryGeneration{
		Query:            query,
		Valid:            valid,
		ValidationErrors: validationErrors,
		Elapsed:          time.Since(start),
		UsedFallback:     usedFallback,
	}
}

// generateWithLLM returns a cleaned candidate query, or "" when the LLM is
// unavailable, times out, or produces nothing usable. No retries: the
// template path is the recovery mechanism.
func (g *QueryGenerator) generateWithLLM(ctx context.Context, question string) string {
	if g.llm == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	raw, err := g.llm.Complete(ctx, ports.CompletionRequest{
		Prompt:      g.buildPrompt(question),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		slog.Warn("cypher generation via llm failed, using template fallback", "error", err)
		return ""
	}
	return cleanGeneratedQuery(raw)
}

func (g *QueryGenerator) buildPrompt(question string) string {
	var b strings.Builder
	b.WriteString(`You are a Neo4j Cypher query generator.
Convert natural language to Cypher queries ONLY.
Output ONLY the Cypher query, no explanations.

`)
	b.WriteString(g.schema)
	b.WriteString(`

RULES:
1. Always start with MATCH
2. Use WHERE for filtering
3. Always end with RETURN
4. Use case-sensitive values
5. NO markdown, NO explanations, ONLY Cypher

Question: `)
	b.WriteString(question)
	b.WriteString("\n\nCypher Query:")
	return b.String()
}

var explanatoryLinePattern = regexp.MustCompile(`(?i)^(query:|cypher:|the query|here|answer:)`)

// cleanGeneratedQuery strips markdown fencing and leading explanatory lines,
// then normalizes each remaining line's whitespace.
func cleanGeneratedQuery(raw string) string {
	query := raw
	if strings.Contains(query, "```") {
		parts := strings.Split(query, "```")
		if len(parts) >= 2 {
			query = parts[1]
			query = strings.TrimPrefix(query, "cypher")
		}
	}

	lines := make([]string, 0, 4)
	for _, line := range strings.Split(query, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(lines) == 0 && explanatoryLinePattern.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ValidateCypher checks structural requirements only: a pattern-match clause,
// a projection clause, and balanced grouping delimiters. It does not check
// semantics against the schema.
func ValidateCypher(query string) (bool, []string) {
	var errs []string

	if strings.TrimSpace(query) == "" {
		return false, []string{"empty query generated"}
	}

	upper := strings.ToUpper(query)
	if !strings.Contains(upper, "MATCH") {
		errs = append(errs, "missing MATCH keyword")
	}
	if !strings.Contains(upper, "RETURN") {
		errs = append(errs, "missing RETURN keyword")
	}
	if strings.Count(query, "(") != strings.Count(query, ")") {
		errs = append(errs, "unbalanced parentheses")
	}
	if strings.Count(query, "{") != strings.Count(query, "}") {
		errs = append(errs, "unbalanced braces")
	}

	return len(errs) == 0, errs
}
