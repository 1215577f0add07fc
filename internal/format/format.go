// Package format renders tables for the terminal and for Markdown reports.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode selects how a table is rendered.
type Mode int

const (
	Terminal Mode = iota // box-drawing tables for a TTY
	Markdown             // GitHub-flavoured pipe tables
)

// ParseMode maps a flag value to a Mode. "text" and "" mean Terminal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "terminal":
		return Terminal, nil
	case "md", "markdown":
		return Markdown, nil
	}
	return Terminal, fmt.Errorf("format: unknown table mode %q", s)
}

// Align is a column's horizontal alignment.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Table is a header plus rows, rendered once in its Mode.
type Table struct {
	w    table.Writer
	mode Mode
	cols []table.ColumnConfig
	rows int
}

// NewTable starts a table with the given column headers.
func NewTable(m Mode, header ...string) *Table {
	w := table.NewWriter()
	if m == Terminal {
		w.SetStyle(table.StyleLight)
	}
	if len(header) > 0 {
		row := make(table.Row, len(header))
		for i, h := range header {
			row[i] = h
		}
		w.AppendHeader(row)
	}
	return &Table{w: w, mode: m}
}

// Row appends one row. Markdown mode flattens multi-line cells onto one line.
func (t *Table) Row(vals ...any) *Table {
	row := make(table.Row, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok && t.mode == Markdown {
			v = flatten(s)
		}
		row[i] = v
	}
	t.w.AppendRow(row)
	t.rows++
	return t
}

// Footer appends a totals row.
func (t *Table) Footer(vals ...any) *Table {
	t.w.AppendFooter(table.Row(vals))
	return t
}

// Column sets alignment and, when width > 0, a wrap width for the 1-based
// column number.
func (t *Table) Column(number int, a Align, width int) *Table {
	t.cols = append(t.cols, table.ColumnConfig{Number: number, Align: textAlign(a), WidthMax: width})
	t.w.SetColumnConfigs(t.cols)
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.rows }

func (t *Table) String() string {
	if t.mode == Markdown {
		return t.w.RenderMarkdown()
	}
	return t.w.Render()
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textAlign(a Align) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignCenter:
		return text.AlignCenter
	case AlignRight:
		return text.AlignRight
	}
	return text.AlignDefault
}
