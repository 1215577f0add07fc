package detective

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"auditor/internal/court"
)

// VisionInspector looks for architecture diagrams: images the report
// links, images shipped next to it, and Mermaid blocks embedded in it.
type VisionInspector struct {
	// SearchDirs are extra directories, relative to the repository, that
	// may hold diagrams.
	SearchDirs []string
}

// NewVisionInspector returns an inspector that also searches docs/ in the repository.
func NewVisionInspector() *VisionInspector {
	return &VisionInspector{SearchDirs: []string{"docs", "assets", "images"}}
}

func (v *VisionInspector) ID() string { return IDVision }

var (
	imageExt    = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true}
	imageLink   = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)`)
	mermaidFlow = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")
	mermaidEdge = regexp.MustCompile(`([\w-]+)(?:\[[^\]]*\]|\([^)]*\))?\s*-->(?:\|[^|]*\|)?\s*([\w-]+)`)
	diagramName = regexp.MustCompile(`(?i)arch|graph|flow|diagram|swarm|pipeline`)
)

func (v *VisionInspector) Produce(ctx context.Context, c court.Case) ([]court.EvidenceItem, error) {
	if c.Report == "" && c.Repository == "" {
		return nil, ErrNoReport
	}

	var items []court.EvidenceItem
	candidates := make(map[string]bool)

	if c.Report != "" {
		if err := requireFile(c.Report, ErrNoReport); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(c.Report)
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		base := filepath.Dir(c.Report)
		for _, m := range imageLink.FindAllStringSubmatch(string(data), -1) {
			if strings.Contains(m[1], "://") {
				continue
			}
			candidates[filepath.Join(base, filepath.FromSlash(m[1]))] = true
		}
		items = append(items, mermaidEvidence(string(data), c.Report)...)
		addImages(candidates, base)
	}
	if c.Repository != "" {
		for _, dir := range v.SearchDirs {
			addImages(candidates, filepath.Join(c.Repository, dir))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(candidates))
	for p := range candidates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if item, ok := inspectImage(p); ok {
			items = append(items, item)
		}
	}

	if len(items) == 0 {
		items = append(items, court.EvidenceItem{
			Category: court.CategoryVisual, Confidence: 0.8,
			Claim: "no architecture diagram found in the report or repository",
		})
	}
	return items, nil
}

func addImages(into map[string]bool, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && imageExt[strings.ToLower(filepath.Ext(e.Name()))] {
			into[filepath.Join(dir, e.Name())] = true
		}
	}
}

func inspectImage(path string) (court.EvidenceItem, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return court.EvidenceItem{
			Category: court.CategoryVisual, Confidence: 0.8,
			Claim:   fmt.Sprintf("report links diagram %s that does not exist", filepath.Base(path)),
			Locator: court.Locator{Path: path},
		}, true
	}

	conf := 0.6
	if diagramName.MatchString(filepath.Base(path)) {
		conf = 0.75
	}
	desc := fmt.Sprintf("%d bytes", info.Size())
	if !strings.EqualFold(filepath.Ext(path), ".svg") {
		f, err := os.Open(path)
		if err == nil {
			cfg, format, derr := image.DecodeConfig(f)
			f.Close()
			if derr != nil {
				return court.EvidenceItem{
					Category: court.CategoryVisual, Confidence: 0.7,
					Claim:   fmt.Sprintf("diagram %s is not a readable image: %v", filepath.Base(path), derr),
					Locator: court.Locator{Path: path},
				}, true
			}
			desc = fmt.Sprintf("%s %dx%d", format, cfg.Width, cfg.Height)
		}
	}
	return court.EvidenceItem{
		Category:   court.CategoryVisual,
		Claim:      fmt.Sprintf("diagram image %s found (%s)", filepath.Base(path), desc),
		Found:      true,
		Confidence: conf,
		Locator:    court.Locator{Path: path},
	}, true
}

// mermaidEvidence reports embedded Mermaid diagrams and whether any node
// fans out to more than one successor.
func mermaidEvidence(report, path string) []court.EvidenceItem {
	var items []court.EvidenceItem
	for i, m := range mermaidFlow.FindAllStringSubmatch(report, -1) {
		out := make(map[string]map[string]bool)
		for _, e := range mermaidEdge.FindAllStringSubmatch(m[1], -1) {
			if out[e[1]] == nil {
				out[e[1]] = make(map[string]bool)
			}
			out[e[1]][e[2]] = true
		}
		var fanOut []string
		for node, succ := range out {
			if len(succ) > 1 {
				fanOut = append(fanOut, node)
			}
		}
		sort.Strings(fanOut)

		if len(fanOut) > 0 {
			items = append(items, court.EvidenceItem{
				Category:   court.CategoryVisual,
				Claim:      fmt.Sprintf("mermaid diagram %d shows parallel branches from %s", i+1, strings.Join(fanOut, ", ")),
				Found:      true,
				Confidence: 0.85,
				Locator:    court.Locator{Path: path},
			})
			continue
		}
		items = append(items, court.EvidenceItem{
			Category:   court.CategoryVisual,
			Claim:      fmt.Sprintf("mermaid diagram %d is a linear flow with no parallel branches", i+1),
			Confidence: 0.8,
			Locator:    court.Locator{Path: path},
		})
	}
	return items
}
