package usecase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateRule maps keyword predicates to a canned Cypher query. Rules are
// evaluated in order, first match wins, so precedence among overlapping
// triggers ("sign" vs "road sign") is fixed by position, not inference.
type TemplateRule struct {
	Name  string   `yaml:"name"`
	AllOf []string `yaml:"all_of,omitempty"`
	AnyOf []string `yaml:"any_of,omitempty"`
	Query string   `yaml:"query"`
}

// Matches reports whether the rule triggers for the lower-cased question.
// A rule with no predicates matches everything (the default branch).
func (r TemplateRule) Matches(question string) bool {
	for _, keyword := range r.AllOf {
		if !strings.Contains(question, keyword) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return true
	}
	for _, keyword := range r.AnyOf {
		if strings.Contains(question, keyword) {
			return true
		}
	}
	return false
}

// SelectTemplate picks the first matching rule's query. The trailing default
// rule guarantees a result for any question.
func SelectTemplate(rules []TemplateRule, question string) string {
	lowered := strings.ToLower(question)
	for _, rule := range rules {
		if rule.Matches(lowered) {
			return rule.Query
		}
	}
	return defaultTemplateQuery
}

const defaultTemplateQuery = "MATCH (i:InfrastructureIssue) RETURN i.type, i.problem, i.category, i.code LIMIT 10"

// DefaultTemplateRules returns the built-in fallback table. Order matters:
// specific sign-type rules come before problem-status rules, which come
// before regulation, category, and count rules.
func DefaultTemplateRules() []TemplateRule {
	return []TemplateRule{
		{
			Name:  "stop-sign-regulation",
			AllOf: []string{"stop", "sign"},
			AnyOf: []string{"regulation", "govern", "irc", "code"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.type = 'STOP Sign' RETURN i.s_no, i.type, i.code, i.clause LIMIT 10",
		},
		{
			Name:  "stop-sign",
			AllOf: []string{"stop", "sign"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.type = 'STOP Sign' RETURN i.s_no, i.type, i.problem, i.category LIMIT 10",
		},
		{
			Name:  "damaged-road-sign",
			AllOf: []string{"damaged", "sign"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.problem = 'Damaged' AND i.category = 'Road Sign' RETURN i.type, i.problem, i.code LIMIT 10",
		},
		{
			Name:  "damaged",
			AllOf: []string{"damaged"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.problem = 'Damaged' RETURN i.type, i.problem, i.category LIMIT 10",
		},
		{
			Name:  "irc-67",
			AnyOf: []string{"irc:67", "irc 67"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.code = 'IRC:67-2022' RETURN i.type, i.problem, i.clause LIMIT 10",
		},
		{
			Name:  "irc-35",
			AnyOf: []string{"irc:35", "irc 35"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.code = 'IRC:35-2015' RETURN i.type, i.problem, i.clause LIMIT 10",
		},
		{
			Name:  "regulation-summary",
			AnyOf: []string{"regulation", "irc"},
			Query: "MATCH (i:InfrastructureIssue) RETURN DISTINCT i.code, count(i) AS count ORDER BY count DESC LIMIT 10",
		},
		{
			Name:  "road-sign-category",
			AllOf: []string{"road", "sign"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.category = 'Road Sign' RETURN i.type, i.problem, i.code LIMIT 10",
		},
		{
			Name:  "road-marking",
			AnyOf: []string{"marking"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.category = 'Road Marking' RETURN i.type, i.problem, i.code LIMIT 10",
		},
		{
			Name:  "count-statistics",
			AnyOf: []string{"count", "how many", "total", "statistics"},
			Query: "MATCH (i:InfrastructureIssue) RETURN i.problem, count(i) AS count ORDER BY count DESC LIMIT 10",
		},
		{
			Name:  "speed-bump",
			AllOf: []string{"speed bump"},
			Query: "MATCH (i:InfrastructureIssue) WHERE i.type = 'Speed Bump' RETURN i.s_no, i.type, i.problem, i.category LIMIT 10",
		},
		{
			Name:  "default",
			Query: defaultTemplateQuery,
		},
	}
}

// LoadTemplateRules reads an override rule table from a YAML file. Every
// rule must carry a name and a query; predicate keywords are lower-cased so
// matching stays case-insensitive.
func LoadTemplateRules(path string) ([]TemplateRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template rules: %w", err)
	}

	var rules []TemplateRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse template rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("template rules file %s contains no rules", path)
	}

	for i := range rules {
		if rules[i].Name == "" {
			return nil, fmt.Errorf("template rule %d has no name", i)
		}
		if strings.TrimSpace(rules[i].Query) == "" {
			return nil, fmt.Errorf("template rule %q has no query", rules[i].Name)
		}
		for j, keyword := range rules[i].AllOf {
			rules[i].AllOf[j] = strings.ToLower(keyword)
		}
		for j, keyword := range rules[i].AnyOf {
			rules[i].AnyOf[j] = strings.ToLower(keyword)
		}
	}
	return rules, nil
}
