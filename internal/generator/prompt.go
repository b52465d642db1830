package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/james-tn/dbx-mcp-copilot/internal/domain"
)

// buildSystemPrompt renders the domain context into the instruction block:
// schema, metric definitions, domain rules, and worked examples. The model
// only ever sees what the domain curator declared.
func buildSystemPrompt(dc *domain.DomainContext) string {
	var b strings.Builder

	b.WriteString("You translate business questions into SQL for the ")
	b.WriteString(dc.DomainID)
	b.WriteString(" domain.\n")
	if dc.Description != "" {
		b.WriteString(dc.Description)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with exactly one SELECT statement and nothing else. ")
	b.WriteString("Use only the tables and columns listed below. Never write DDL or DML.\n")

	b.WriteString("\nTables:\n")
	for i := range dc.Tables {
		t := &dc.Tables[i]
		fmt.Fprintf(&b, "- %s", t.QualifiedName)
		if t.Description != "" {
			fmt.Fprintf(&b, ": %s", t.Description)
		}
		b.WriteString("\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "    %s %s", c.Name, c.Type)
			if c.Description != "" {
				fmt.Fprintf(&b, " -- %s", c.Description)
			}
			b.WriteString("\n")
		}
		if t.SensitivityNotes != "" {
			fmt.Fprintf(&b, "    note: %s\n", t.SensitivityNotes)
		}
	}

	if len(dc.Metrics) > 0 {
		b.WriteString("\nMetric definitions (use the metric name; it expands to the expression):\n")
		names := make([]string, 0, len(dc.Metrics))
		for name := range dc.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s = %s\n", name, dc.Metrics[name])
		}
	}

	if len(dc.Rules) > 0 {
		b.WriteString("\nRules:\n")
		for _, rule := range dc.Rules {
			fmt.Fprintf(&b, "- %s\n", rule)
		}
	}

	if len(dc.Examples) > 0 {
		b.WriteString("\nExamples:\n")
		for _, ex := range dc.Examples {
			fmt.Fprintf(&b, "Q: %s\nSQL: %s\n", ex.Question, ex.SQL)
		}
	}

	return b.String()
}

// buildUserPrompt renders the question, with the prior guardrail rejection
// fed back verbatim on regeneration attempts.
func buildUserPrompt(question, priorRejection string) string {
	if priorRejection == "" {
		return question
	}
	return fmt.Sprintf("%s\n\nThe previous attempt was rejected because: %s\nGenerate a corrected statement.", question, priorRejection)
}

// stripFences removes a markdown code fence wrapper from model output, with
// or without a language tag. Content that is not fenced comes back trimmed.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		firstLine := strings.TrimSpace(s[:i])
		if firstLine == "" || isLanguageTag(firstLine) {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}
