package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"auditor/internal/court"
	"auditor/internal/display"
	"auditor/internal/format"
	"auditor/internal/justice"
)

// WriteMarkdown writes the human-readable audit report.
func WriteMarkdown(w io.Writer, d Document) error {
	if d.Verdict == nil {
		return fmt.Errorf("report: document has no verdict")
	}
	v := d.Verdict
	bw := bufio.NewWriter(w)
	p := func(f string, a ...any) { fmt.Fprintf(bw, f, a...) }

	p("# Audit Report: %s\n\n", v.Rubric)
	p("- Run: `%s`\n", d.RunID)
	if d.Repository != "" {
		p("- Repository: `%s`\n", d.Repository)
	}
	if d.Report != "" {
		p("- Report: `%s`\n", d.Report)
	}
	if !d.Generated.IsZero() {
		p("- Generated: %s\n", d.Generated.Format("2006-01-02 15:04:05 UTC"))
	}
	if d.Elapsed > 0 {
		p("- Elapsed: %s\n", format.Duration(d.Elapsed))
	}
	p("\n")

	writeSummary(p, v, d.Summary)
	writeScores(p, v)
	writeDetails(p, v)
	writeDissent(p, v)
	writeRemediation(p, v)
	writeTrail(p, v, d)

	return bw.Flush()
}

type printer func(f string, a ...any)

func writeSummary(p printer, v *court.Verdict, s justice.Summary) {
	p("## Executive Summary\n\n")
	p("**Overall score: %s** (%s)\n\n", justice.FormatScore(v.OverallScore, v.Scale), display.Band(s.Band))
	p("%s\n\n", s.Headline)
	list := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		p("**%s:**\n\n", title)
		for _, n := range names {
			p("- %s\n", n)
		}
		p("\n")
	}
	list("Strengths", s.Strengths)
	list("Critical issues", s.CriticalIssues)
	list("Not assessed", s.Unscored)
}

func writeScores(p printer, v *court.Verdict) {
	p("## Scores\n\n")
	tb := format.NewTable(format.Markdown, "Dimension", "Score", "Gauge", "Rule")
	for _, r := range v.Dimensions {
		tb.Row(r.Name, justice.FormatScore(float64(r.FinalScore), v.Scale), format.Bar(r.FinalScore, v.Scale.Min, v.Scale.Max), display.RuleWithCode(r.Rule))
	}
	tb.Footer("Overall", justice.FormatScore(v.OverallScore, v.Scale), "", "")
	p("%s\n\n", tb.String())
}

func writeDetails(p printer, v *court.Verdict) {
	p("## Dimension Details\n\n")
	for _, r := range v.Dimensions {
		p("### %s\n\n", r.Name)
		p("Final score **%s** by %s: %s\n\n", justice.FormatScore(float64(r.FinalScore), v.Scale), display.Rule(r.Rule), r.Explanation)
		if len(r.Opinions) == 0 {
			p("_No opinions were produced for this dimension._\n\n")
			continue
		}
		tb := format.NewTable(format.Markdown, "Judge", "Persona", "Score", "Rationale", "Cited")
		for _, o := range r.Opinions {
			tb.Row(display.Persona(string(o.Persona)), o.Persona, o.Score, o.Rationale, strings.Join(o.CitedEvidence, ", "))
		}
		p("%s\n\n", tb.String())
	}
}

func writeDissent(p printer, v *court.Verdict) {
	if len(v.Dissent) == 0 {
		return
	}
	p("## Dissent\n\n")
	for _, d := range v.Dissent {
		scores := make([]string, len(d.Scores))
		for i, s := range d.Scores {
			scores[i] = fmt.Sprintf("%s %d", display.Persona(string(s.Persona)), s.Score)
		}
		p("- **%s** (spread %d: %s): %s\n", d.Dimension, d.Spread, strings.Join(scores, ", "), d.Explanation)
	}
	p("\n")
}

func writeRemediation(p printer, v *court.Verdict) {
	p("## Remediation Plan\n\n")
	if len(v.Remediation) == 0 {
		p("No dimension fell below the improvement threshold.\n\n")
		return
	}
	for i, r := range v.Remediation {
		p("%d. **%s** (%s)\n", i+1, r.Name, justice.FormatScore(float64(r.FinalScore), v.Scale))
		for _, a := range r.Actions {
			p("   - %s\n", a)
		}
	}
	p("\n")
}

func writeTrail(p printer, v *court.Verdict, d Document) {
	p("## Audit Trail\n\n")
	tb := format.NewTable(format.Markdown, "Dimension", "Rule", "Name")
	for _, a := range v.AppliedRules {
		tb.Row(a.Dimension, a.Rule, a.Name)
	}
	p("%s\n\n", tb.String())

	if len(d.Failures) > 0 {
		p("### Worker Failures\n\n")
		tb := format.NewTable(format.Markdown, "Stage", "Producer", "Timed Out", "Reason")
		for _, f := range d.Failures {
			tb.Row(f.Stage, f.Producer, format.Mark(f.TimedOut), f.Reason)
		}
		p("%s\n\n", tb.String())
	}
	if len(v.Annotations) > 0 {
		p("### Annotations\n\n")
		for _, a := range v.Annotations {
			p("- %s\n", a)
		}
		p("\n")
	}
}
