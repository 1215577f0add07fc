package justice

import (
	"fmt"

	"auditor/internal/court"
)

// Summary is the executive view of a verdict.
type Summary struct {
	Band           string   `json:"band"`
	Headline       string   `json:"headline"`
	Strengths      []string `json:"strengths"`
	CriticalIssues []string `json:"critical_issues"`
	Unscored       []string `json:"unscored,omitempty"`
}

// Summarize derives the executive summary. Strengths sit within one point
// of the top of the scale, critical issues within one point of the bottom.
func Summarize(v *court.Verdict) Summary {
	s := Summary{Strengths: []string{}, CriticalIssues: []string{}}
	for _, d := range v.Dimensions {
		switch {
		case !d.Scored():
			s.Unscored = append(s.Unscored, d.Name)
		case d.FinalScore >= v.Scale.Max-1:
			s.Strengths = append(s.Strengths, d.Name)
		case d.FinalScore <= v.Scale.Min+1:
			s.CriticalIssues = append(s.CriticalIssues, d.Name)
		}
	}

	hi := float64(v.Scale.Max - 1)
	mid := float64(v.Scale.Min+v.Scale.Max) / 2
	switch {
	case v.OverallScore == court.Unscored:
		s.Band = "not-assessed"
		s.Headline = "No dimension could be assessed; every judge failed or produced nothing."
	case v.OverallScore >= hi:
		s.Band = "excellent"
		s.Headline = "Strong implementation of parallel orchestration, state management and tool safety."
	case v.OverallScore >= mid:
		s.Band = "competent"
		s.Headline = "The architecture is sound but several technical areas need refinement."
	default:
		s.Band = "needs-improvement"
		s.Headline = "Significant architectural or safety issues must be addressed."
	}
	return s
}

// FormatScore renders a final or overall score, showing the unscored sentinel as "n/a".
func FormatScore(score float64, scale court.Scale) string {
	if score == court.Unscored {
		return "n/a"
	}
	if score == float64(int(score)) {
		return fmt.Sprintf("%d/%d", int(score), scale.Max)
	}
	return fmt.Sprintf("%.2f/%d", score, scale.Max)
}
