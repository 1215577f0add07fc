package justice

import (
	"fmt"
	"strings"

	"auditor/internal/court"
	"auditor/internal/rubric"
)

// Rule IDs recorded in Verdict.AppliedRules.
const (
	RuleUnscored         = "R0"
	RuleSecurityOverride = "R1"
	RuleUnanimousLow     = "R2"
	RuleWeighted         = "R3"
	RuleDissent          = "R4"
)

// docket is everything a rule may look at for one dimension.
type docket struct {
	criterion rubric.Criterion
	opinions  []court.Opinion
	evidence  *court.EvidenceView
	rubric    *rubric.Rubric
}

// resolution is what a matching rule decides for a dimension.
type resolution struct {
	Score       int
	Explanation string
}

// rule resolves a dimension's final score or declines by returning nil.
type rule struct {
	ID       string
	Name     string
	Evaluate func(d *docket) *resolution
}

// resolutionRules returns the score-producing rules in strict priority
// order. The first rule returning non-nil wins. Weighted resolution always
// matches, so it must stay last.
func resolutionRules() []rule {
	return []rule{
		{
			ID: RuleSecurityOverride, Name: "security-override",
			Evaluate: func(d *docket) *resolution {
				pol := d.rubric.Policy
				var hits []string
				for _, item := range d.evidence.All() {
					if !d.rubric.Disqualifying(item.Category) || item.Confidence <= pol.DisqualifyingConfidence {
						continue
					}
					for _, op := range d.opinions {
						if op.Cites(item.ID) {
							hits = append(hits, item.ID)
							break
						}
					}
				}
				if len(hits) == 0 {
					return nil
				}
				w := weighted(d)
				score := min(pol.SecurityCeiling, w.score)
				return &resolution{
					Score: score,
					Explanation: fmt.Sprintf("disqualifying evidence %s (confidence > %.2f) cited; capped at %d (weighted %d)",
						strings.Join(hits, ", "), pol.DisqualifyingConfidence, pol.SecurityCeiling, w.score),
				}
			},
		},
		{
			ID: RuleUnanimousLow, Name: "unanimous-low",
			Evaluate: func(d *docket) *resolution {
				low := d.rubric.Policy.UnanimousLow
				floor := d.opinions[0].Score
				for _, op := range d.opinions {
					if op.Score > low {
						return nil
					}
					floor = min(floor, op.Score)
				}
				return &resolution{
					Score:       floor,
					Explanation: fmt.Sprintf("all %d opinions at or below %d; minimum %d applies", len(d.opinions), low, floor),
				}
			},
		},
		{
			ID: RuleWeighted, Name: "weighted-resolution",
			Evaluate: func(d *docket) *resolution {
				w := weighted(d)
				return &resolution{Score: w.score, Explanation: w.explain}
			},
		},
	}
}

type weightedResult struct {
	score   int
	explain string
}

// weighted combines the opinions with persona weights in fixed-point
// arithmetic (weights in thousandths) so rounding never depends on
// floating-point summation order. Exact halves round toward the tie-break
// persona's raw score, or down when no such opinion exists.
func weighted(d *docket) weightedResult {
	scale := d.rubric.Scale
	var num, den int64
	for _, op := range d.opinions {
		m := milli(d.rubric.WeightFor(d.criterion.ID, op.Persona))
		num += m * int64(op.Score-scale.Min)
		den += m
	}
	q, r := num/den, num%den
	base := int(q) + scale.Min

	score := base
	note := ""
	switch {
	case 2*r > den:
		score = base + 1
	case 2*r == den && r != 0:
		tb := d.rubric.Policy.TieBreak
		if raw, ok := rawScore(d.opinions, tb); ok {
			if raw > base {
				score = base + 1
			}
			note = fmt.Sprintf("; tie toward %s (%d)", tb, raw)
		} else {
			note = fmt.Sprintf("; tie rounded down (no %s opinion)", tb)
		}
	}
	score = scale.Clamp(score)

	mean := float64(num)/float64(den) + float64(scale.Min)
	return weightedResult{
		score:   score,
		explain: fmt.Sprintf("weighted mean %.3f over %d opinions rounds to %d%s", mean, len(d.opinions), score, note),
	}
}

func milli(w float64) int64 {
	m := int64(w*1000 + 0.5)
	if m < 1 {
		return 1
	}
	return m
}

// rawScore returns the score of the first opinion from persona p in
// canonical order.
func rawScore(ops []court.Opinion, p court.Persona) (int, bool) {
	for _, op := range ops {
		if op.Persona == p {
			return op.Score, true
		}
	}
	return 0, false
}

// dissent applies the spread check independently of the resolution path.
func dissent(dim string, ops []court.Opinion, threshold int) *court.Dissent {
	if len(ops) == 0 {
		return nil
	}
	lo, hi := ops[0].Score, ops[0].Score
	scores := make([]court.PersonaScore, 0, len(ops))
	for _, op := range ops {
		lo, hi = min(lo, op.Score), max(hi, op.Score)
		scores = append(scores, court.PersonaScore{Persona: op.Persona, ProducedBy: op.ProducedBy, Score: op.Score})
	}
	spread := hi - lo
	if spread <= threshold {
		return nil
	}
	return &court.Dissent{
		Dimension:   dim,
		Spread:      spread,
		Scores:      scores,
		Explanation: fmt.Sprintf("scores range %d..%d (spread %d > %d)", lo, hi, spread, threshold),
	}
}
