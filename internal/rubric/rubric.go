// Package rubric loads the evaluation rubric: the dimensions judges score,
// the persona weight table, the synthesis policy constants and the static
// remediation lookup. A Rubric is read once at startup and never mutated
// during a run.
package rubric

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"auditor/internal/court"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRubric []byte

// Policy defaults, applied to any policy key the rubric leaves out.
const (
	DefaultDisqualifyingConfidence = 0.75
	DefaultSecurityCeiling         = 3
	DefaultUnanimousLow            = 2
	DefaultDissentSpread           = 2
	DefaultNeedsImprovement        = 3
	DefaultTieBreak                = court.PersonaPragmatic
)

// DefaultWeights is the persona weight table used when a rubric omits one.
func DefaultWeights() map[court.Persona]float64 {
	return map[court.Persona]float64{
		court.PersonaAdversarial: 1.0,
		court.PersonaSympathetic: 1.0,
		court.PersonaPragmatic:   2.0,
	}
}

// DefaultPolicy returns the policy a rubric starts from before decoding.
func DefaultPolicy() Policy {
	return Policy{
		DisqualifyingCategories: []court.Category{court.CategorySecurityFlaw},
		DisqualifyingConfidence: DefaultDisqualifyingConfidence,
		SecurityCeiling:         DefaultSecurityCeiling,
		UnanimousLow:            DefaultUnanimousLow,
		DissentSpread:           DefaultDissentSpread,
		NeedsImprovement:        DefaultNeedsImprovement,
		TieBreak:                DefaultTieBreak,
	}
}

// Policy holds the synthesis constants. Comparisons are strict where noted.
type Policy struct {
	// DisqualifyingCategories cap a dimension's score when cited evidence
	// in one of them has confidence strictly above DisqualifyingConfidence.
	DisqualifyingCategories []court.Category `yaml:"disqualifying_categories" json:"disqualifying_categories"`
	DisqualifyingConfidence float64          `yaml:"disqualifying_confidence" json:"disqualifying_confidence"`
	SecurityCeiling         int              `yaml:"security_ceiling" json:"security_ceiling"`
	// UnanimousLow: every opinion at or below it resolves to the minimum.
	UnanimousLow int `yaml:"unanimous_low" json:"unanimous_low"`
	// DissentSpread: max-min strictly above it is recorded as dissent.
	DissentSpread int `yaml:"dissent_spread" json:"dissent_spread"`
	// NeedsImprovement: final scores strictly below it get remediation.
	NeedsImprovement int           `yaml:"needs_improvement" json:"needs_improvement"`
	TieBreak         court.Persona `yaml:"tie_break" json:"tie_break"`
}

// Criterion is one rubric dimension as configured.
type Criterion struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Target is an evidence category or one of the artifact aliases
	// github_repo, pdf_report, pdf_images.
	Target              string                    `yaml:"target_artifact" json:"target_artifact"`
	Keywords            []string                  `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	ForensicInstruction string                    `yaml:"forensic_instruction,omitempty" json:"forensic_instruction,omitempty"`
	SuccessPattern      string                    `yaml:"success_pattern,omitempty" json:"success_pattern,omitempty"`
	FailurePattern      string                    `yaml:"failure_pattern,omitempty" json:"failure_pattern,omitempty"`
	Weights             map[court.Persona]float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
	Remediation         []string                  `yaml:"remediation,omitempty" json:"remediation,omitempty"`
}

// Category resolves the criterion's target artifact to an evidence category.
func (c Criterion) Category() (court.Category, bool) {
	return ResolveTarget(c.Target)
}

var targetAliases = map[string]court.Category{
	"github_repo": court.CategoryRepo,
	"pdf_report":  court.CategoryDocument,
	"pdf_images":  court.CategoryVisual,
}

// ResolveTarget maps an artifact alias or category name to a category.
func ResolveTarget(target string) (court.Category, bool) {
	t := strings.TrimSpace(target)
	if c, ok := targetAliases[t]; ok {
		return c, true
	}
	c := court.Category(t)
	return c, c.Valid()
}

// Rubric is the full evaluation configuration.
type Rubric struct {
	Name     string                    `yaml:"name" json:"name"`
	Version  string                    `yaml:"version" json:"version"`
	Scale    court.Scale               `yaml:"scale" json:"scale"`
	Weights  map[court.Persona]float64 `yaml:"weights" json:"weights"`
	Policy   Policy                    `yaml:"policy" json:"policy"`
	Criteria []Criterion               `yaml:"dimensions" json:"dimensions"`
}

// Default returns a fresh copy of the embedded rubric.
func Default() *Rubric {
	r, err := Parse(defaultRubric)
	if err != nil {
		panic(fmt.Sprintf("rubric: embedded default is invalid: %v", err))
	}
	return r
}

// Load reads and validates a rubric file. YAML and JSON are both accepted.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rubric %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load rubric %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a rubric and validates it. Scale and policy keys the
// document leaves out keep their defaults; keys it sets, zero included,
// are taken as written. Persona names are matched case-insensitively.
// Unknown fields are rejected.
func Parse(data []byte) (*Rubric, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	r := Rubric{
		Scale:  court.Scale{Min: 1, Max: 5},
		Policy: DefaultPolicy(),
	}
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Problems: []string{"empty rubric"}}
		}
		return nil, &ConfigError{Problems: []string{"parse: " + err.Error()}}
	}
	if len(r.Weights) == 0 {
		r.Weights = DefaultWeights()
	}
	r.normalizePersonas()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rubric) normalizePersonas() {
	r.Weights = canonicalWeights(r.Weights)
	for i := range r.Criteria {
		r.Criteria[i].Weights = canonicalWeights(r.Criteria[i].Weights)
	}
	if p, ok := court.ParsePersona(string(r.Policy.TieBreak)); ok {
		r.Policy.TieBreak = p
	}
}

// canonicalWeights rekeys known personas to their canonical spelling.
// Unknown keys are kept so Validate can report them.
func canonicalWeights(in map[court.Persona]float64) map[court.Persona]float64 {
	if in == nil {
		return nil
	}
	out := make(map[court.Persona]float64, len(in))
	for k, w := range in {
		if p, ok := court.ParsePersona(string(k)); ok {
			k = p
		}
		out[k] = w
	}
	return out
}

// Validate collects every problem in the rubric into one ConfigError.
func (r *Rubric) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.Name) == "" {
		add("name is required")
	}
	if r.Scale.Min >= r.Scale.Max {
		add("scale min %d must be below max %d", r.Scale.Min, r.Scale.Max)
	}
	if r.Scale.Min <= court.Unscored && r.Scale.Max >= court.Unscored {
		add("scale [%d,%d] must not contain the unscored sentinel %d", r.Scale.Min, r.Scale.Max, court.Unscored)
	}

	for _, p := range court.AllPersonas() {
		if w, ok := r.Weights[p]; !ok || w <= 0 {
			add("weight for persona %s must be positive", p)
		}
	}
	for p := range r.Weights {
		if !p.Valid() {
			add("weights: unknown persona %q", p)
		}
	}

	pol := r.Policy
	for _, c := range pol.DisqualifyingCategories {
		if !c.Valid() {
			add("policy: unknown disqualifying category %q", c)
		}
	}
	if pol.DisqualifyingConfidence < 0 || pol.DisqualifyingConfidence >= 1 {
		add("policy: disqualifying_confidence %v must be in [0,1)", pol.DisqualifyingConfidence)
	}
	if !r.Scale.Contains(pol.SecurityCeiling) {
		add("policy: security_ceiling %d outside scale", pol.SecurityCeiling)
	}
	if !r.Scale.Contains(pol.UnanimousLow) {
		add("policy: unanimous_low %d outside scale", pol.UnanimousLow)
	}
	if !r.Scale.Contains(pol.NeedsImprovement) {
		add("policy: needs_improvement %d outside scale", pol.NeedsImprovement)
	}
	if pol.DissentSpread < 0 {
		add("policy: dissent_spread %d must not be negative", pol.DissentSpread)
	}
	if !pol.TieBreak.Valid() {
		add("policy: unknown tie_break persona %q", pol.TieBreak)
	}

	if len(r.Criteria) == 0 {
		add("at least one dimension is required")
	}
	seen := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		label := c.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			add("dimension %s: id is required", label)
		} else if seen[c.ID] {
			add("dimension %s: duplicate id", label)
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Name) == "" {
			add("dimension %s: name is required", label)
		}
		if _, ok := c.Category(); !ok {
			add("dimension %s: unknown target_artifact %q", label, c.Target)
		}
		for p, w := range c.Weights {
			if !p.Valid() {
				add("dimension %s: unknown persona %q in weights", label, p)
			} else if w <= 0 {
				add("dimension %s: weight for %s must be positive", label, p)
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Dimensions returns the judge-facing view of every criterion, in rubric order.
func (r *Rubric) Dimensions() []court.Dimension {
	out := make([]court.Dimension, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		cat, _ := c.Category()
		out = append(out, court.Dimension{
			ID:       c.ID,
			Name:     c.Name,
			Target:   cat,
			Keywords: append([]string(nil), c.Keywords...),
		})
	}
	return out
}

// Criterion looks up a dimension by id.
func (r *Rubric) Criterion(id string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// WeightFor returns the persona weight for a dimension, honouring any
// per-dimension override.
func (r *Rubric) WeightFor(dim string, p court.Persona) float64 {
	if c, ok := r.Criterion(dim); ok {
		if w, ok := c.Weights[p]; ok {
			return w
		}
	}
	return r.Weights[p]
}

// Disqualifying reports whether evidence in category c can trigger the security override.
func (r *Rubric) Disqualifying(c court.Category) bool {
	for _, d := range r.Policy.DisqualifyingCategories {
		if d == c {
			return true
		}
	}
	return false
}

// RemediationFor returns the static remediation actions for a dimension.
func (r *Rubric) RemediationFor(dim string) []string {
	c, ok := r.Criterion(dim)
	if !ok {
		return nil
	}
	return append([]string(nil), c.Remediation...)
}

// Marshal renders the rubric back to YAML.
func (r *Rubric) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}
