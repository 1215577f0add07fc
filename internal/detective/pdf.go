package detective

import (
	"fmt"
	"strings"

	"auditor/internal/court"

	"github.com/ledongthuc/pdf"
)

// reportText is the report flattened to text. For PDF reports pages
// records the first line of every page so findings can point at a page.
type reportText struct {
	text  string
	pages []pageSpan
}

type pageSpan struct {
	firstLine int
	number    int
}

func (rt reportText) locate(path string, line int) court.Locator {
	if len(rt.pages) == 0 {
		return court.Locator{Path: path, LineStart: line}
	}
	page := rt.pages[0].number
	for _, p := range rt.pages {
		if p.firstLine > line {
			break
		}
		page = p.number
	}
	return court.Locator{Path: path, Page: page}
}

// readPDF extracts the plain text of every page. Pages are separated by a
// blank line so a sentence never runs across a page break.
func readPDF(path string) (rt reportText, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: unreadable PDF %s: %v", ErrUnsupportedReport, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return reportText{}, fmt.Errorf("%w: unreadable PDF %s: %v", ErrUnsupportedReport, path, err)
	}
	defer f.Close()

	var b strings.Builder
	line := 1
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return reportText{}, fmt.Errorf("read %s page %d: %w", path, i, err)
		}
		rt.pages = append(rt.pages, pageSpan{firstLine: line, number: i})
		text = strings.TrimRight(text, "\n") + "\n\n"
		b.WriteString(text)
		line += strings.Count(text, "\n")
	}
	rt.text = b.String()
	return rt, nil
}
