package court

// Unscored marks a dimension (or overall score) that no opinion addressed.
// It is outside every valid scale.
const Unscored = -1

// DimensionResult is the resolved outcome for one rubric dimension.
type DimensionResult struct {
	Dimension   string    `json:"dimension"`
	Name        string    `json:"name"`
	FinalScore  int       `json:"final_score"`
	Rule        string    `json:"rule"`
	Explanation string    `json:"explanation"`
	Opinions    []Opinion `json:"opinions,omitempty"`
}

// Scored reports whether at least one opinion contributed.
func (r DimensionResult) Scored() bool {
	return r.FinalScore != Unscored
}

// PersonaScore is one raw score inside a dissent record.
type PersonaScore struct {
	Persona    Persona `json:"persona"`
	ProducedBy string  `json:"produced_by"`
	Score      int     `json:"score"`
}

// Dissent records a dimension whose raw scores disagreed beyond the spread threshold.
type Dissent struct {
	Dimension   string         `json:"dimension"`
	Spread      int            `json:"spread"`
	Scores      []PersonaScore `json:"scores"`
	Explanation string         `json:"explanation"`
}

// AppliedRule is one entry of the audit trace: which rule resolved which dimension.
type AppliedRule struct {
	Dimension string `json:"dimension"`
	Rule      string `json:"rule"`
	Name      string `json:"name"`
}

// Remediation pairs a weak dimension with its recommended fixes.
type Remediation struct {
	Dimension  string   `json:"dimension"`
	Name       string   `json:"name"`
	FinalScore int      `json:"final_score"`
	Actions    []string `json:"actions"`
}

// Verdict is the terminal artifact of an audit. It is built once and never mutated.
type Verdict struct {
	Rubric       string            `json:"rubric"`
	Scale        Scale             `json:"scale"`
	Dimensions   []DimensionResult `json:"dimensions"`
	OverallScore float64           `json:"overall_score"`
	Dissent      []Dissent         `json:"dissent"`
	AppliedRules []AppliedRule     `json:"applied_rules"`
	Remediation  []Remediation     `json:"remediation"`
	Annotations  []string          `json:"annotations,omitempty"`
}

// FinalScore returns the resolved score of a dimension.
func (v *Verdict) FinalScore(dim string) (int, bool) {
	for _, r := range v.Dimensions {
		if r.Dimension == dim {
			return r.FinalScore, true
		}
	}
	return 0, false
}

// RuleFor returns the rule that resolved a dimension.
func (v *Verdict) RuleFor(dim string) string {
	for _, a := range v.AppliedRules {
		if a.Dimension == dim {
			return a.Rule
		}
	}
	return ""
}

// Dissents reports whether a dimension was flagged for dissent.
func (v *Verdict) Dissents(dim string) bool {
	for _, d := range v.Dissent {
		if d.Dimension == dim {
			return true
		}
	}
	return false
}
