// Package report renders a verdict for people: Markdown for reading,
// JSON for machines, HTML for the browser and PDF printed from that HTML.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"auditor/internal/court"
	"auditor/internal/fanout"
	"auditor/internal/justice"
)

// Format names an output encoding.
type Format string

const (
	Markdown Format = "md"
	JSON     Format = "json"
	HTML     Format = "html"
	PDF      Format = "pdf"
)

// ErrUnknownFormat is returned for a format name ParseFormat does not know.
var ErrUnknownFormat = errors.New("report: unknown format")

// ParseFormat accepts "md", "markdown", "json", "html" and "pdf".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return Markdown, nil
	case "json":
		return JSON, nil
	case "html", "htm":
		return HTML, nil
	case "pdf":
		return PDF, nil
	}
	return "", fmt.Errorf("%w %q (want md, json, html or pdf)", ErrUnknownFormat, s)
}

// FormatFromPath guesses the format from a file extension, defaulting to Markdown.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return Markdown
	}
	return f
}

// Document is everything a rendered report shows.
type Document struct {
	RunID      string                 `json:"run_id"`
	Repository string                 `json:"repository"`
	Report     string                 `json:"report"`
	Generated  time.Time              `json:"generated_at"`
	Elapsed    time.Duration          `json:"elapsed_ns"`
	Verdict    *court.Verdict         `json:"verdict"`
	Summary    justice.Summary        `json:"summary"`
	Failures   []fanout.WorkerFailure `json:"failures"`
}

// NewDocument assembles a document and derives its executive summary.
func NewDocument(runID string, c court.Case, v *court.Verdict, failures []fanout.WorkerFailure, elapsed time.Duration) Document {
	d := Document{
		RunID:      runID,
		Repository: c.Repository,
		Report:     c.Report,
		Generated:  time.Now().UTC().Truncate(time.Second),
		Elapsed:    elapsed,
		Verdict:    v,
		Failures:   append([]fanout.WorkerFailure{}, failures...),
	}
	if v != nil {
		d.Summary = justice.Summarize(v)
	}
	return d
}

// Renderer writes a document in one format.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, d Document) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer, d Document) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer, d Document) error { return f(ctx, w, d) }

// For returns the renderer of a format. PDF uses a default Printer.
func For(f Format) (Renderer, error) {
	switch f {
	case Markdown:
		return RendererFunc(func(_ context.Context, w io.Writer, d Document) error { return WriteMarkdown(w, d) }), nil
	case JSON:
		return RendererFunc(func(_ context.Context, w io.Writer, d Document) error { return WriteJSON(w, d) }), nil
	case HTML:
		return RendererFunc(func(_ context.Context, w io.Writer, d Document) error { return WriteHTML(w, d) }), nil
	case PDF:
		return &Printer{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

// WriteFile renders d into path in format f.
func WriteFile(ctx context.Context, path string, f Format, d Document) error {
	r, err := For(f)
	if err != nil {
		return err
	}
	return Save(ctx, path, r, d)
}

// Save renders d with r into path. The file is only created once rendering
// succeeded, so a failed PDF print leaves no empty file behind.
func Save(ctx context.Context, path string, r Renderer, d Document) error {
	if d.Verdict == nil {
		return errors.New("report: document has no verdict")
	}
	var buf bytes.Buffer
	if err := r.Render(ctx, &buf, d); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
