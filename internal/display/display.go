// Package display provides human-readable names for machine codes.
//
// Codes stay in JSON fields, map keys and comparisons; these names are for
// terminal output, Markdown and HTML reports.
package display

import "strings"

var rules = map[string]string{
	"R0": "Unscored",
	"R1": "Security override",
	"R2": "Unanimous low",
	"R3": "Weighted mean",
	"R4": "Dissent",
}

// Rule returns the name of a synthesis rule id. Unknown ids are returned as-is.
func Rule(id string) string {
	if name, ok := rules[id]; ok {
		return name
	}
	return id
}

// RuleWithCode returns "Security override (R1)".
func RuleWithCode(id string) string {
	if name, ok := rules[id]; ok {
		return name + " (" + id + ")"
	}
	return id
}

var personas = map[string]string{
	"adversarial": "Prosecutor",
	"sympathetic": "Defense",
	"pragmatic":   "Tech Lead",
}

// Persona returns the courtroom role that holds a persona.
func Persona(p string) string {
	if name, ok := personas[p]; ok {
		return name
	}
	return p
}

var categories = map[string]string{
	"repo-analysis":     "Repository",
	"document-analysis": "Report",
	"visual-analysis":   "Diagrams",
	"security-flaw":     "Security flaw",
}

// Category returns the name of an evidence category.
func Category(c string) string {
	if name, ok := categories[c]; ok {
		return name
	}
	return c
}

// Band turns a summary band such as "needs-improvement" into "Needs improvement".
func Band(b string) string {
	if b == "" {
		return ""
	}
	s := strings.ReplaceAll(b, "-", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// Producer turns a producer id such as "repo_investigator" into "Repo Investigator".
func Producer(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
