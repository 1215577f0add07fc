package orchestrate

import (
	"fmt"
	"sort"
	"strings"
)

// Render generates a Mermaid flowchart from a pipeline definition. Each
// zone becomes a subgraph; nodes outside zones are listed flat.
func Render(def *PipelineDef) string {
	var b strings.Builder
	b.WriteString("graph LR\n")

	zoneNames := make([]string, 0, len(def.Zones))
	for name := range def.Zones {
		zoneNames = append(zoneNames, name)
	}
	sort.Strings(zoneNames)

	zoned := make(map[string]bool)
	for _, name := range zoneNames {
		fmt.Fprintf(&b, "    subgraph %s [%s stage]\n", sanitizeID(name), capitalizeFirst(name))
		for _, n := range def.Zones[name].Nodes {
			fmt.Fprintf(&b, "        %s\n", sanitizeID(n))
			zoned[n] = true
		}
		b.WriteString("    end\n")
	}
	for _, n := range def.Nodes {
		if !zoned[n.Name] {
			fmt.Fprintf(&b, "    %s\n", sanitizeID(n.Name))
		}
	}

	for _, e := range def.Edges {
		label := e.Name
		if label == "" {
			label = e.ID
		}
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", sanitizeID(e.From), label, sanitizeID(e.To))
	}
	return b.String()
}

func sanitizeID(s string) string {
	return strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(s)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
