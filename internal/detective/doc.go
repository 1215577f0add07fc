package detective

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"auditor/internal/court"
)

// DefaultConcepts are the architecture terms a report is expected to explain.
var DefaultConcepts = []string{"fan-out", "fan-in", "state reducer", "dialectical synthesis", "metacognition"}

// DocAnalyst reads the report (Markdown, plain text or PDF), checks concept
// coverage and cross-references every cited file path against the repository.
type DocAnalyst struct {
	Concepts []string
	// ExplainedWords is the minimum sentence length, in words, for a
	// concept mention to count as an explanation rather than a name-drop.
	ExplainedWords int
}

// NewDocAnalyst returns an analyst with the default concept list.
func NewDocAnalyst() *DocAnalyst {
	return &DocAnalyst{Concepts: DefaultConcepts, ExplainedWords: 12}
}

func (d *DocAnalyst) ID() string { return IDDoc }

var textReport = map[string]bool{".md": true, ".markdown": true, ".txt": true, ".rst": true, "": true}

func (d *DocAnalyst) Produce(ctx context.Context, c court.Case) ([]court.EvidenceItem, error) {
	if err := requireFile(c.Report, ErrNoReport); err != nil {
		return nil, err
	}
	var rt reportText
	switch ext := strings.ToLower(filepath.Ext(c.Report)); {
	case ext == ".pdf":
		var err error
		if rt, err = readPDF(c.Report); err != nil {
			return nil, err
		}
	case textReport[ext]:
		data, err := os.ReadFile(c.Report)
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		rt.text = string(data)
	default:
		return nil, fmt.Errorf("%w: %s (export the report to PDF, Markdown or text)", ErrUnsupportedReport, ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(rt.text) == "" {
		return []court.EvidenceItem{{
			Category: court.CategoryDocument, Confidence: 0.6,
			Claim:   "report has no extractable text",
			Locator: court.Locator{Path: c.Report},
		}}, nil
	}
	items := d.concepts(rt.text)
	items = append(items, crossReference(rt, c)...)
	return items, nil
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+|\n\s*\n`)

func (d *DocAnalyst) concepts(text string) []court.EvidenceItem {
	minWords := d.ExplainedWords
	if minWords <= 0 {
		minWords = 12
	}
	sentences := sentenceEnd.Split(text, -1)

	var items []court.EvidenceItem
	for _, concept := range d.Concepts {
		needle := strings.ToLower(concept)
		mentions, explained := 0, 0
		for _, s := range sentences {
			if !strings.Contains(strings.ToLower(s), needle) {
				continue
			}
			mentions++
			if len(strings.Fields(s)) >= minWords {
				explained++
			}
		}
		switch {
		case mentions == 0:
			items = append(items, court.EvidenceItem{
				Category: court.CategoryDocument, Confidence: 0.7,
				Claim: fmt.Sprintf("concept %q is not discussed in the report", concept),
			})
		case explained == 0:
			items = append(items, court.EvidenceItem{
				Category: court.CategoryDocument, Confidence: 0.5,
				Claim: fmt.Sprintf("concept %q is named %d times but never explained", concept, mentions),
			})
		default:
			items = append(items, court.EvidenceItem{
				Category: court.CategoryDocument, Confidence: 0.8, Found: true,
				Claim: fmt.Sprintf("concept %q is explained in %d of %d mentions", concept, explained, mentions),
			})
		}
	}
	return items
}

var citedPath = regexp.MustCompile(`(?:[\w.-]+/)+[\w.-]+\.(?:go|py|js|ts|md|ya?ml|json|toml|sh)\b`)

// crossReference extracts file paths the report cites and checks each one
// exists in the repository. Without a repository it only counts them.
func crossReference(rt reportText, c court.Case) []court.EvidenceItem {
	type citation struct{ line int }
	cited := make(map[string]citation)
	sc := bufio.NewScanner(strings.NewReader(rt.text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for ln := 1; sc.Scan(); ln++ {
		for _, p := range citedPath.FindAllString(sc.Text(), -1) {
			p = strings.TrimPrefix(p, "./")
			if _, ok := cited[p]; !ok {
				cited[p] = citation{line: ln}
			}
		}
	}

	if len(cited) == 0 {
		return []court.EvidenceItem{{
			Category: court.CategoryDocument, Confidence: 0.6,
			Claim: "report cites no file paths; claims cannot be checked against the code",
		}}
	}
	if c.Repository == "" {
		return []court.EvidenceItem{{
			Category: court.CategoryDocument, Confidence: 0.4, Found: true,
			Claim: fmt.Sprintf("report cites %d file paths (not verified: no repository)", len(cited)),
		}}
	}

	paths := make([]string, 0, len(cited))
	for p := range cited {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var missing []court.EvidenceItem
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(c.Repository, filepath.FromSlash(p))); err == nil {
			continue
		}
		missing = append(missing, court.EvidenceItem{
			Category:   court.CategoryDocument,
			Claim:      fmt.Sprintf("report cites path %s that does not exist in the repository", p),
			Confidence: 0.9,
			Locator:    rt.locate(c.Report, cited[p].line),
		})
	}

	verified := len(paths) - len(missing)
	summary := court.EvidenceItem{
		Category:   court.CategoryDocument,
		Claim:      fmt.Sprintf("report cites %d file paths; %d verified in the repository", len(paths), verified),
		Found:      len(missing) == 0,
		Confidence: 0.9,
	}
	return append([]court.EvidenceItem{summary}, missing...)
}
