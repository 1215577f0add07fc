package orchestrate

import (
	"fmt"

	"auditor/internal/court"

	"gopkg.in/yaml.v3"
)

// Fixed node names of the audit graph.
const (
	NodeStart     = "start"
	NodeAggregate = "evidence_aggregator"
	NodeJustice   = "chief_justice"
	NodeDone      = "done"
)

// PipelineDef describes the audit graph: detectives fan out from start and
// fan in at the aggregator, judges fan out from the aggregator and fan in
// at the chief justice.
type PipelineDef struct {
	Pipeline    string             `yaml:"pipeline"`
	Description string             `yaml:"description,omitempty"`
	Zones       map[string]ZoneDef `yaml:"zones,omitempty"`
	Nodes       []NodeDef          `yaml:"nodes"`
	Edges       []EdgeDef          `yaml:"edges"`
	Start       string             `yaml:"start"`
	Done        string             `yaml:"done"`
}

// ZoneDef groups the nodes of one stage.
type ZoneDef struct {
	Nodes []string `yaml:"nodes"`
}

// NodeDef is one node; Kind is detective, judge, barrier or synthesis.
// Persona is set on judges that declare a fixed stance.
type NodeDef struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind,omitempty"`
	Persona court.Persona `yaml:"persona,omitempty"`
}

type personaHolder interface {
	Persona() court.Persona
}

// EdgeDef connects two nodes.
type EdgeDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Pipeline returns the graph of this auditor's registered producers.
func (a *Auditor) Pipeline() *PipelineDef {
	det := make([]string, len(a.Detectives))
	for i, d := range a.Detectives {
		det[i] = d.ID()
	}
	jud := make([]string, len(a.Judges))
	personas := make(map[string]court.Persona)
	for i, j := range a.Judges {
		jud[i] = j.ID()
		if ph, ok := j.(personaHolder); ok {
			personas[j.ID()] = ph.Persona()
		}
	}
	def := AuditPipelineDef(det, jud)
	for i, n := range def.Nodes {
		if n.Kind == "judge" {
			def.Nodes[i].Persona = personas[n.Name]
		}
	}
	return def
}

// AuditPipelineDef builds the two-stage fan-out/fan-in graph.
func AuditPipelineDef(detectives, judges []string) *PipelineDef {
	def := &PipelineDef{
		Pipeline:    "automaton-audit",
		Description: "Detectives in parallel, evidence barrier, judges in parallel, deterministic synthesis",
		Zones: map[string]ZoneDef{
			StageEvidence: {Nodes: detectives},
			StageOpinion:  {Nodes: judges},
		},
		Start: NodeStart,
		Done:  NodeDone,
	}

	def.Nodes = append(def.Nodes, NodeDef{Name: NodeStart, Kind: "entry"})
	for _, d := range detectives {
		def.Nodes = append(def.Nodes, NodeDef{Name: d, Kind: "detective"})
	}
	def.Nodes = append(def.Nodes, NodeDef{Name: NodeAggregate, Kind: "barrier"})
	for _, j := range judges {
		def.Nodes = append(def.Nodes, NodeDef{Name: j, Kind: "judge"})
	}
	def.Nodes = append(def.Nodes, NodeDef{Name: NodeJustice, Kind: "synthesis"})

	n := 0
	edge := func(name, from, to string) {
		n++
		def.Edges = append(def.Edges, EdgeDef{ID: fmt.Sprintf("E%d", n), Name: name, From: from, To: to})
	}
	for _, d := range detectives {
		edge("fan-out", NodeStart, d)
	}
	for _, d := range detectives {
		edge("fan-in", d, NodeAggregate)
	}
	for _, j := range judges {
		edge("fan-out", NodeAggregate, j)
	}
	for _, j := range judges {
		edge("fan-in", j, NodeJustice)
	}
	edge("verdict", NodeJustice, NodeDone)
	return def
}

// LoadPipeline parses a YAML pipeline definition.
func LoadPipeline(data []byte) (*PipelineDef, error) {
	var def PipelineDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline YAML: %w", err)
	}
	return &def, nil
}

// Marshal serialises the definition to YAML.
func (def *PipelineDef) Marshal() ([]byte, error) {
	return yaml.Marshal(def)
}

// Validate checks referential integrity:
//   - pipeline name, start and done are set
//   - node names are unique and non-empty
//   - every edge references existing nodes (or the done pseudo-node)
//   - zones reference existing nodes
func (def *PipelineDef) Validate() error {
	if def.Pipeline == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(def.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	if def.Start == "" {
		return fmt.Errorf("start node is required")
	}
	if def.Done == "" {
		return fmt.Errorf("done node is required")
	}

	nodeSet := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node name is required")
		}
		if n.Name == def.Done {
			return fmt.Errorf("node %q collides with the done pseudo-node", n.Name)
		}
		if nodeSet[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		if n.Persona != "" && (n.Kind != "judge" || !n.Persona.Valid()) {
			return fmt.Errorf("node %q: persona %q is only valid on a judge", n.Name, n.Persona)
		}
		nodeSet[n.Name] = true
	}
	if !nodeSet[def.Start] {
		return fmt.Errorf("start node %q not found in node list", def.Start)
	}

	edgeIDs := make(map[string]bool, len(def.Edges))
	for _, e := range def.Edges {
		if e.ID == "" {
			return fmt.Errorf("edge id is required")
		}
		if edgeIDs[e.ID] {
			return fmt.Errorf("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true
		if !nodeSet[e.From] {
			return fmt.Errorf("edge %s references unknown source node %q", e.ID, e.From)
		}
		if e.To != def.Done && !nodeSet[e.To] {
			return fmt.Errorf("edge %s references unknown target node %q", e.ID, e.To)
		}
	}

	for zoneName, z := range def.Zones {
		for _, name := range z.Nodes {
			if !nodeSet[name] {
				return fmt.Errorf("zone %q references unknown node %q", zoneName, name)
			}
		}
	}
	return nil
}
