package justice_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"auditor/internal/court"
	"auditor/internal/justice"
	"auditor/internal/rubric"

	"github.com/google/go-cmp/cmp"
)

const testRubric = `
name: test-court
dimensions:
  - id: sec
    name: Safe Tools
    target_artifact: github_repo
    remediation: [Stop shelling out.]
  - id: low
    name: Git History
    target_artifact: github_repo
    remediation: [Commit atomically.]
  - id: split
    name: Orchestration
    target_artifact: github_repo
    remediation: [Fan out.]
  - id: tie
    name: Report Accuracy
    target_artifact: pdf_report
    remediation: [Fix cited paths.]
  - id: empty
    name: Diagrams
    target_artifact: pdf_images
`

func loadRubric(t *testing.T) *rubric.Rubric {
	t.Helper()
	r, err := rubric.Parse([]byte(testRubric))
	if err != nil {
		t.Fatalf("parse test rubric: %v", err)
	}
	return r
}

func op(p court.Persona, dim string, score int, cites ...string) court.Opinion {
	return court.Opinion{Persona: p, Dimension: dim, Score: score, Rationale: "r", CitedEvidence: cites}
}

const flawID = "repo/security-flaw#0"

func evidence(flawConfidence float64) *court.EvidenceView {
	set := court.NewEvidenceSet()
	set.Append("repo", []court.EvidenceItem{
		{Category: court.CategoryRepo, Claim: "12 commits", Confidence: 1},
		{Category: court.CategorySecurityFlaw, Claim: "os.system with interpolated input", Confidence: flawConfidence},
	})
	return set.Freeze()
}

// courtOpinions is the fixture every synthesis test starts from, one slice
// per judge so tests can append them in different orders.
func courtOpinions() map[string][]court.Opinion {
	return map[string][]court.Opinion{
		"prosecutor": {
			op(court.PersonaAdversarial, "sec", 5, flawID),
			op(court.PersonaAdversarial, "low", 1),
			op(court.PersonaAdversarial, "split", 1),
			op(court.PersonaAdversarial, "tie", 2),
		},
		"defense": {
			op(court.PersonaSympathetic, "sec", 5),
			op(court.PersonaSympathetic, "low", 1),
			op(court.PersonaSympathetic, "split", 3),
			op(court.PersonaSympathetic, "tie", 3),
		},
		"techlead": {
			op(court.PersonaPragmatic, "sec", 5),
			op(court.PersonaPragmatic, "low", 2),
			op(court.PersonaPragmatic, "split", 5),
		},
	}
}

func opinions(order ...string) *court.OpinionView {
	all := courtOpinions()
	set := court.NewOpinionSet()
	for _, producer := range order {
		set.Append(producer, all[producer])
	}
	return set.Freeze()
}

func synthesize(t *testing.T, ev *court.EvidenceView, ops *court.OpinionView) *court.Verdict {
	t.Helper()
	v, err := justice.Synthesize(justice.Input{Rubric: loadRubric(t), Evidence: ev, Opinions: ops})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return v
}

func TestSynthesize_RuleOutcomes(t *testing.T) {
	v := synthesize(t, evidence(0.9), opinions("prosecutor", "defense", "techlead"))

	cases := []struct {
		dim     string
		score   int
		rule    string
		dissent bool
	}{
		{"sec", 3, justice.RuleSecurityOverride, false},
		{"low", 1, justice.RuleUnanimousLow, false},
		{"split", 4, justice.RuleWeighted, true},
		{"tie", 2, justice.RuleWeighted, false},
		{"empty", court.Unscored, justice.RuleUnscored, false},
	}
	for _, tc := range cases {
		t.Run(tc.dim, func(t *testing.T) {
			got, ok := v.FinalScore(tc.dim)
			if !ok {
				t.Fatalf("dimension %s missing from verdict", tc.dim)
			}
			if got != tc.score {
				t.Errorf("final score = %d, want %d", got, tc.score)
			}
			if r := v.RuleFor(tc.dim); r != tc.rule {
				t.Errorf("rule = %s, want %s", r, tc.rule)
			}
			if v.Dissents(tc.dim) != tc.dissent {
				t.Errorf("dissent = %v, want %v", v.Dissents(tc.dim), tc.dissent)
			}
		})
	}

	if v.OverallScore != 2.5 {
		t.Errorf("overall = %v, want 2.5 (unscored dimension excluded)", v.OverallScore)
	}
}

func TestSynthesize_DissentRecord(t *testing.T) {
	v := synthesize(t, evidence(0.9), opinions("techlead", "prosecutor", "defense"))
	if len(v.Dissent) != 1 {
		t.Fatalf("expected one dissent, got %+v", v.Dissent)
	}
	want := court.Dissent{
		Dimension: "split",
		Spread:    4,
		Scores: []court.PersonaScore{
			{Persona: court.PersonaAdversarial, ProducedBy: "prosecutor", Score: 1},
			{Persona: court.PersonaPragmatic, ProducedBy: "techlead", Score: 5},
			{Persona: court.PersonaSympathetic, ProducedBy: "defense", Score: 3},
		},
	}
	got := v.Dissent[0]
	got.Explanation = ""
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dissent mismatch:\n%s", diff)
	}
}

func TestSynthesize_SecurityOverrideNeedsConfidenceAboveThreshold(t *testing.T) {
	// 0.75 is the threshold itself; the comparison is strict.
	v := synthesize(t, evidence(0.75), opinions("prosecutor", "defense", "techlead"))
	if got, _ := v.FinalScore("sec"); got != 5 {
		t.Errorf("final score = %d, want 5", got)
	}
	if r := v.RuleFor("sec"); r != justice.RuleWeighted {
		t.Errorf("rule = %s, want %s", r, justice.RuleWeighted)
	}
}

func TestSynthesize_SecurityOverrideNeedsCitation(t *testing.T) {
	set := court.NewOpinionSet()
	set.Append("defense", []court.Opinion{op(court.PersonaSympathetic, "sec", 5)})
	set.Append("techlead", []court.Opinion{op(court.PersonaPragmatic, "sec", 5)})

	v := synthesize(t, evidence(0.99), set.Freeze())
	if got, _ := v.FinalScore("sec"); got != 5 {
		t.Errorf("uncited flaw capped the score: got %d", got)
	}
}

func TestSynthesize_TieRoundsTowardPragmatic(t *testing.T) {
	set := court.NewOpinionSet()
	// weights 1,1,2 over 4,4,3 give exactly 3.5.
	set.Append("prosecutor", []court.Opinion{op(court.PersonaAdversarial, "split", 4)})
	set.Append("defense", []court.Opinion{op(court.PersonaSympathetic, "split", 4)})
	set.Append("techlead", []court.Opinion{op(court.PersonaPragmatic, "split", 3)})

	v := synthesize(t, evidence(0.1), set.Freeze())
	if got, _ := v.FinalScore("split"); got != 3 {
		t.Errorf("final score = %d, want 3 (toward pragmatic raw score)", got)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	orders := [][]string{
		{"prosecutor", "defense", "techlead"},
		{"techlead", "defense", "prosecutor"},
		{"defense", "techlead", "prosecutor"},
	}
	var first []byte
	for _, order := range orders {
		for run := 0; run < 2; run++ {
			v := synthesize(t, evidence(0.9), opinions(order...))
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatal(err)
			}
			if first == nil {
				first = data
				continue
			}
			if !bytes.Equal(first, data) {
				t.Fatalf("verdict differs for order %v run %d:\n%s\nvs\n%s", order, run, first, data)
			}
		}
	}
}

func TestSynthesize_Remediation(t *testing.T) {
	v := synthesize(t, evidence(0.9), opinions("prosecutor", "defense", "techlead"))
	want := []court.Remediation{
		{Dimension: "low", Name: "Git History", FinalScore: 1, Actions: []string{"Commit atomically."}},
		{Dimension: "tie", Name: "Report Accuracy", FinalScore: 2, Actions: []string{"Fix cited paths."}},
	}
	if diff := cmp.Diff(want, v.Remediation); diff != "" {
		t.Errorf("remediation mismatch:\n%s", diff)
	}
}

func TestSynthesize_NothingScored(t *testing.T) {
	v := synthesize(t, evidence(0.9), court.NewOpinionSet().Freeze())
	if v.OverallScore != court.Unscored {
		t.Errorf("overall = %v, want unscored", v.OverallScore)
	}
	if len(v.Remediation) != 0 || len(v.Dissent) != 0 {
		t.Errorf("unscored verdict should carry no remediation or dissent: %+v", v)
	}
}

func TestSynthesize_Structural(t *testing.T) {
	r := loadRubric(t)
	cases := []justice.Input{
		{Evidence: evidence(0.1), Opinions: opinions()},
		{Rubric: r, Opinions: opinions()},
		{Rubric: r, Evidence: evidence(0.1)},
	}
	for i, in := range cases {
		if _, err := justice.Synthesize(in); !errors.Is(err, justice.ErrStructural) {
			t.Errorf("case %d: expected ErrStructural, got %v", i, err)
		}
	}
}

func TestSynthesize_AnnotationsCarried(t *testing.T) {
	set := court.NewOpinionSet()
	set.Append("techlead", []court.Opinion{op(court.PersonaPragmatic, "ghost", 4)})
	in := justice.Input{
		Rubric:      loadRubric(t),
		Evidence:    evidence(0.1),
		Opinions:    set.Freeze(),
		Annotations: []string{"evidence stage: vision_inspector failed"},
	}
	v, err := justice.Synthesize(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Annotations) != 2 || v.Annotations[0] != in.Annotations[0] {
		t.Fatalf("annotations = %v", v.Annotations)
	}
	if !strings.Contains(v.Annotations[1], `"ghost"`) {
		t.Errorf("unknown dimension not annotated: %v", v.Annotations)
	}
}

func TestSummarize(t *testing.T) {
	v := synthesize(t, evidence(0.9), opinions("prosecutor", "defense", "techlead"))
	s := justice.Summarize(v)
	want := justice.Summary{
		Band:           "needs-improvement",
		Headline:       s.Headline,
		Strengths:      []string{"Orchestration"},
		CriticalIssues: []string{"Git History", "Report Accuracy"},
		Unscored:       []string{"Diagrams"},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary mismatch:\n%s", diff)
	}
}

func TestFormatScore(t *testing.T) {
	scale := court.Scale{Min: 1, Max: 5}
	cases := map[float64]string{3: "3/5", 2.5: "2.50/5", court.Unscored: "n/a"}
	for in, want := range cases {
		if got := justice.FormatScore(in, scale); got != want {
			t.Errorf("FormatScore(%v) = %q, want %q", in, got, want)
		}
	}
}
