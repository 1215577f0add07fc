// Package justice is the synthesis engine: a pure, single-threaded reducer
// from frozen evidence and opinions to a Verdict.
//
// Each rubric dimension is resolved by the first matching rule in strict
// priority order (security override, unanimous low, weighted resolution).
// Dissent is checked separately for every dimension. Given the same inputs
// the Verdict is identical on every run: opinions arrive in the canonical
// order fixed by OpinionSet.Freeze, dimensions follow rubric order, and the
// weighted path uses integer arithmetic.
package justice

import (
	"errors"
	"fmt"
	"sort"

	"auditor/internal/court"
	"auditor/internal/rubric"
)

// ErrStructural means a prior stage's output is missing entirely. It is
// fatal: synthesis never runs on absent input.
var ErrStructural = errors.New("justice: structural failure")

// Input is the frozen state synthesis reads. Annotations describe degraded
// sections (failed producers, missing evidence) and are carried into the
// Verdict unchanged.
type Input struct {
	Rubric      *rubric.Rubric
	Evidence    *court.EvidenceView
	Opinions    *court.OpinionView
	Annotations []string
}

// Synthesize reduces the input to a Verdict. A dimension without opinions
// is Unscored and excluded from the overall mean; it is never an error.
func Synthesize(in Input) (*court.Verdict, error) {
	switch {
	case in.Rubric == nil:
		return nil, fmt.Errorf("%w: no rubric", ErrStructural)
	case in.Evidence == nil:
		return nil, fmt.Errorf("%w: evidence set absent", ErrStructural)
	case in.Opinions == nil:
		return nil, fmt.Errorf("%w: opinion set absent", ErrStructural)
	}

	r := in.Rubric
	rules := resolutionRules()
	v := &court.Verdict{
		Rubric:       r.Name,
		Scale:        r.Scale,
		Dimensions:   make([]court.DimensionResult, 0, len(r.Criteria)),
		Dissent:      []court.Dissent{},
		AppliedRules: make([]court.AppliedRule, 0, len(r.Criteria)),
		Remediation:  []court.Remediation{},
		Annotations:  append([]string(nil), in.Annotations...),
	}

	known := make(map[string]bool, len(r.Criteria))
	var sum, scored int
	for _, c := range r.Criteria {
		known[c.ID] = true
		ops := in.Opinions.ForDimension(c.ID)
		res := court.DimensionResult{Dimension: c.ID, Name: c.Name, Opinions: ops}

		if len(ops) == 0 {
			res.FinalScore = court.Unscored
			res.Rule = RuleUnscored
			res.Explanation = "no opinions addressed this dimension"
			v.AppliedRules = append(v.AppliedRules, court.AppliedRule{Dimension: c.ID, Rule: RuleUnscored, Name: "unscored"})
			v.Dimensions = append(v.Dimensions, res)
			continue
		}

		d := &docket{criterion: c, opinions: ops, evidence: in.Evidence, rubric: r}
		for _, rl := range rules {
			if out := rl.Evaluate(d); out != nil {
				res.FinalScore = out.Score
				res.Rule = rl.ID
				res.Explanation = out.Explanation
				v.AppliedRules = append(v.AppliedRules, court.AppliedRule{Dimension: c.ID, Rule: rl.ID, Name: rl.Name})
				break
			}
		}
		if ds := dissent(c.ID, ops, r.Policy.DissentSpread); ds != nil {
			v.Dissent = append(v.Dissent, *ds)
			v.AppliedRules = append(v.AppliedRules, court.AppliedRule{Dimension: c.ID, Rule: RuleDissent, Name: "dissent"})
		}

		sum += res.FinalScore
		scored++
		v.Dimensions = append(v.Dimensions, res)
	}

	if scored == 0 {
		v.OverallScore = court.Unscored
	} else {
		v.OverallScore = float64(sum) / float64(scored)
	}

	for _, dim := range in.Opinions.Dimensions() {
		if !known[dim] {
			v.Annotations = append(v.Annotations, fmt.Sprintf("opinions for unknown dimension %q ignored", dim))
		}
	}

	v.Remediation = remediate(r, v.Dimensions)
	return v, nil
}

// remediate joins every scored dimension below the needs-improvement
// threshold with the rubric's remediation table. Worst first; ties keep
// rubric order.
func remediate(r *rubric.Rubric, results []court.DimensionResult) []court.Remediation {
	out := []court.Remediation{}
	for _, res := range results {
		if !res.Scored() || res.FinalScore >= r.Policy.NeedsImprovement {
			continue
		}
		actions := r.RemediationFor(res.Dimension)
		if len(actions) == 0 {
			c, _ := r.Criterion(res.Dimension)
			if c.SuccessPattern != "" {
				actions = []string{"Work toward: " + c.SuccessPattern}
			} else {
				actions = []string{"Address the gaps cited in the judges' opinions."}
			}
		}
		out = append(out, court.Remediation{
			Dimension:  res.Dimension,
			Name:       res.Name,
			FinalScore: res.FinalScore,
			Actions:    actions,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore < out[j].FinalScore })
	return out
}
