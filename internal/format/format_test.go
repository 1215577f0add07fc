package format_test

import (
	"strings"
	"testing"
	"time"

	"auditor/internal/format"
)

func TestTerminalTable(t *testing.T) {
	tb := format.NewTable(format.Terminal, "Dimension", "Score")
	tb.Row("Graph Orchestration", "4/5")
	tb.Row("Safe Tool Engineering", "3/5")
	out := tb.String()

	for _, want := range []string{"DIMENSION", "Graph Orchestration", "3/5", "─"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if tb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tb.Len())
	}
}

func TestMarkdownTable(t *testing.T) {
	out := format.NewTable(format.Markdown, "Rule", "Explanation").
		Row("R1", "flaw cited, capped").
		Row("R3", "weighted\nmean").
		String()

	if !strings.Contains(out, "| Rule") || !strings.Contains(out, "---") {
		t.Errorf("not a markdown table:\n%s", out)
	}
	if !strings.Contains(out, "weighted mean") {
		t.Errorf("cell not flattened:\n%s", out)
	}
}

func TestMarkdownFooterAndColumns(t *testing.T) {
	out := format.NewTable(format.Markdown, "Dimension", "Score").
		Row("a", 4).
		Row("b", 2).
		Column(2, format.AlignRight, 0).
		Footer("Overall", 3).
		String()
	if !strings.Contains(out, "Overall") {
		t.Errorf("footer missing:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    format.Mode
		wantErr bool
	}{
		{"", format.Terminal, false},
		{"text", format.Terminal, false},
		{"Markdown", format.Markdown, false},
		{"md", format.Markdown, false},
		{"html", format.Terminal, true},
	}
	for _, tc := range cases {
		got, err := format.ParseMode(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12400 * time.Millisecond, "12.4s"},
		{185 * time.Second, "3m 05s"},
	}
	for _, tc := range cases {
		if got := format.Duration(tc.in); got != tc.want {
			t.Errorf("Duration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"a longer claim", 8, "a lon..."},
		{"ééééé", 4, "é..."},
		{"abcdef", 2, "ab"},
	}
	for _, tc := range cases {
		if got := format.Truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestBarAndMark(t *testing.T) {
	if got := format.Bar(3, 1, 5); got != "███░░" {
		t.Errorf("Bar(3) = %q", got)
	}
	if got := format.Bar(-1, 1, 5); got != "░░░░░" {
		t.Errorf("Bar(unscored) = %q", got)
	}
	if format.Mark(true) != "✓" || format.Mark(false) != "✗" {
		t.Error("Mark mismatch")
	}
}
