package usecase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSelectTemplatePrecedence(t *testing.T) {
	rules := DefaultTemplateRules()

	cases := []struct {
		name     string
		question string
		contains string
	}{
		{
			name:     "stop sign with regulation wins over plain stop sign",
			question: "Which regulation governs STOP signs?",
			contains: "i.clause",
		},
		{
			name:     "plain stop sign",
			question: "Show me all stop signs",
			contains: "i.type = 'STOP Sign' RETURN i.s_no, i.type, i.problem",
		},
		{
			name:     "damaged road signs wins over generic damaged",
			question: "List the damaged road signs",
			contains: "i.problem = 'Damaged' AND i.category = 'Road Sign'",
		},
		{
			name:     "generic damaged",
			question: "What infrastructure is damaged?",
			contains: "i.problem = 'Damaged' RETURN",
		},
		{
			name:     "irc 67 wins over regulation summary",
			question: "What does IRC:67 cover?",
			contains: "IRC:67-2022",
		},
		{
			name:     "irc 35 with space separator",
			question: "Summarize IRC 35 requirements",
			contains: "IRC:35-2015",
		},
		{
			name:     "regulation summary",
			question: "Which regulations apply here?",
			contains: "RETURN DISTINCT i.code",
		},
		{
			name:     "road marking",
			question: "Any faded road marking problems?",
			contains: "Road Marking",
		},
		{
			name:     "count statistics",
			question: "How many issues were recorded?",
			contains: "count(i) AS count",
		},
		{
			name:     "speed bump",
			question: "Where is the broken speed bump?",
			contains: "Speed Bump",
		},
		{
			name:     "no keyword falls through to default",
			question: "Tell me something interesting",
			contains: defaultTemplateQuery,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			query := SelectTemplate(rules, tc.question)
			if !strings.Contains(query, tc.contains) {
				t.Fatalf("question %q selected %q, want query containing %q", tc.question, query, tc.contains)
			}
		})
	}
}

func TestSelectTemplateIsCaseInsensitive(t *testing.T) {
	rules := DefaultTemplateRules()

	lower := SelectTemplate(rules, "damaged road signs")
	upper := SelectTemplate(rules, "DAMAGED ROAD SIGNS")
	if lower != upper {
		t.Fatalf("case changed template selection: %q vs %q", lower, upper)
	}
}

func TestTemplateRuleMatches(t *testing.T) {
	rule := TemplateRule{
		AllOf: []string{"stop", "sign"},
		AnyOf: []string{"regulation", "irc"},
	}

	if rule.Matches("stop sign placement") {
		t.Fatal("expected no match without any_of keyword")
	}
	if !rule.Matches("stop sign regulation details") {
		t.Fatal("expected match with all_of and any_of satisfied")
	}
	if rule.Matches("sign regulation details") {
		t.Fatal("expected no match with missing all_of keyword")
	}

	catchAll := TemplateRule{}
	if !catchAll.Matches("anything at all") {
		t.Fatal("rule without predicates must match everything")
	}
}

func TestLoadTemplateRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `
- name: potholes
  all_of: [POTHOLE]
  query: "MATCH (i:InfrastructureIssue) WHERE i.type = 'Pothole' RETURN i"
- name: default
  query: "MATCH (i:InfrastructureIssue) RETURN i LIMIT 10"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	rules, err := LoadTemplateRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].AllOf[0] != "pothole" {
		t.Fatalf("expected lower-cased keyword, got %q", rules[0].AllOf[0])
	}

	query := SelectTemplate(rules, "Report a Pothole on NH48")
	if !strings.Contains(query, "Pothole") {
		t.Fatalf("override rule not selected, got %q", query)
	}
}

func TestLoadTemplateRulesRejectsInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{name: "empty list", content: "[]\n"},
		{name: "missing name", content: "- query: MATCH (i) RETURN i\n"},
		{name: "missing query", content: "- name: broken\n"},
		{name: "not yaml", content: "{{{{\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "-")+".yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("write rules file: %v", err)
			}
			if _, err := LoadTemplateRules(path); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}

	if _, err := LoadTemplateRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
