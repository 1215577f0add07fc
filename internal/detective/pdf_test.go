package detective_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auditor/internal/court"
	"auditor/internal/detective"
)

// writePDF writes a minimal PDF with one page per element of pages, each
// showing its lines top to bottom in Helvetica.
func writePDF(t *testing.T, path string, pages ...[]string) {
	t.Helper()
	esc := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, lines := range pages {
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td")
		for j, l := range lines {
			if j > 0 {
				content.WriteString(" T*")
			}
			fmt.Fprintf(&content, " (%s) Tj", esc.Replace(l))
		}
		content.WriteString(" ET")
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDocAnalyst_ReadsPDF(t *testing.T) {
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "src", "graph.py"), "")
	reportPath := filepath.Join(t.TempDir(), "report.pdf")
	writePDF(t, reportPath,
		[]string{"The detectives run as a fan-out stage where every detective reads the same case on its own."},
		[]string{"Evidence meets at a fan-in barrier (see below).", "See src/graph.py for the wiring and src/ghost.py for the rest."},
	)

	a := detective.NewDocAnalyst()
	a.Concepts = []string{"fan-out", "fan-in"}
	items, err := a.Produce(context.Background(), court.Case{Repository: repo, Report: reportPath})
	if err != nil {
		t.Fatal(err)
	}
	validateAll(t, items)

	for _, tc := range []struct {
		claim string
		found bool
	}{
		{`concept "fan-out" is explained in 1 of 1 mentions`, true},
		{`concept "fan-in" is named 1 times but never explained`, false},
		{"report cites 2 file paths; 1 verified", false},
	} {
		it, ok := find(items, tc.claim)
		if !ok {
			t.Errorf("missing %q in %v", tc.claim, claims(items))
			continue
		}
		if it.Found != tc.found {
			t.Errorf("%q: Found = %v, want %v", tc.claim, it.Found, tc.found)
		}
	}

	ghost, ok := find(items, "src/ghost.py")
	if !ok {
		t.Fatalf("ghost path not reported: %v", claims(items))
	}
	if want := (court.Locator{Path: reportPath, Page: 2}); ghost.Locator != want {
		t.Errorf("ghost path locator = %+v, want %+v", ghost.Locator, want)
	}
}

func TestDocAnalyst_PDFWithoutText(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "scan.pdf")
	writePDF(t, reportPath, nil)

	items, err := detective.NewDocAnalyst().Produce(context.Background(), court.Case{Report: reportPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Claim != "report has no extractable text" {
		t.Errorf("unexpected items: %v", claims(items))
	}
}
