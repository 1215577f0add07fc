package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"auditor/internal/court"
	"auditor/internal/display"
	"auditor/internal/format"
	"auditor/internal/justice"
)

//go:embed report.html.tmpl
var htmlTemplate string

func parseHTML(scale court.Scale) (*template.Template, error) {
	return template.New("report").Funcs(template.FuncMap{
		"score":  func(s float64) string { return justice.FormatScore(s, scale) },
		"iscore": func(s int) string { return justice.FormatScore(float64(s), scale) },
		"bar":    func(s int) string { return format.Bar(s, scale.Min, scale.Max) },
		"join":   func(xs []string) string { return strings.Join(xs, ", ") },
		"mark":   format.Mark,
		"rule":   display.RuleWithCode,
		"band":   display.Band,
	}).Parse(htmlTemplate)
}

// WriteHTML writes a standalone HTML page. It is also the source the PDF
// printer renders.
func WriteHTML(w io.Writer, d Document) error {
	if d.Verdict == nil {
		return fmt.Errorf("report: document has no verdict")
	}
	t, err := parseHTML(d.Verdict.Scale)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}
	return t.Execute(w, d)
}
