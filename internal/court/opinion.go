package court

import (
	"fmt"
	"sort"
)

// Scale is the inclusive range of valid opinion scores.
type Scale struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether score lies inside the scale.
func (s Scale) Contains(score int) bool {
	return score >= s.Min && score <= s.Max
}

// Clamp forces score into the scale.
func (s Scale) Clamp(score int) int {
	return max(s.Min, min(s.Max, score))
}

// Opinion is one judge's assessment of one rubric dimension.
type Opinion struct {
	Persona       Persona  `json:"persona"`
	Dimension     string   `json:"dimension"`
	Score         int      `json:"score"`
	Rationale     string   `json:"rationale"`
	CitedEvidence []string `json:"cited_evidence,omitempty"`
	ProducedBy    string   `json:"produced_by"`
}

// Validate checks an opinion against the score scale.
func (o Opinion) Validate(scale Scale) error {
	if !o.Persona.Valid() {
		return fmt.Errorf("%w: unknown persona %q", ErrInvalidOpinion, o.Persona)
	}
	if o.Dimension == "" {
		return fmt.Errorf("%w: missing dimension", ErrInvalidOpinion)
	}
	if !scale.Contains(o.Score) {
		return fmt.Errorf("%w: %s score %d outside [%d,%d]", ErrInvalidOpinion, o.Dimension, o.Score, scale.Min, scale.Max)
	}
	return nil
}

// Cites reports whether the opinion references evidence id.
func (o Opinion) Cites(id string) bool {
	for _, c := range o.CitedEvidence {
		if c == id {
			return true
		}
	}
	return false
}

// OpinionSet is the accumulator of the opinion stage. Append order follows
// completion order and carries no meaning.
type OpinionSet struct {
	opinions []Opinion
	frozen   bool
}

// NewOpinionSet returns an empty, writable set.
func NewOpinionSet() *OpinionSet {
	return &OpinionSet{}
}

// Append adds a producer's opinions, stamping each with producer.
func (s *OpinionSet) Append(producer string, ops []Opinion) {
	if s.frozen {
		panic("court: append to frozen opinion set")
	}
	for _, o := range ops {
		o.ProducedBy = producer
		o.CitedEvidence = append([]string(nil), o.CitedEvidence...)
		s.opinions = append(s.opinions, o)
	}
}

// Len returns the number of opinions collected so far.
func (s *OpinionSet) Len() int {
	return len(s.opinions)
}

// Freeze ends the write phase. The view orders opinions by dimension,
// persona and producer so nothing downstream can observe append order.
func (s *OpinionSet) Freeze() *OpinionView {
	s.frozen = true
	out := make([]Opinion, len(s.opinions))
	copy(out, s.opinions)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Dimension != b.Dimension {
			return a.Dimension < b.Dimension
		}
		if a.Persona != b.Persona {
			return a.Persona < b.Persona
		}
		if a.ProducedBy != b.ProducedBy {
			return a.ProducedBy < b.ProducedBy
		}
		return a.Score < b.Score
	})
	return &OpinionView{opinions: out}
}

// OpinionView is the frozen, read-only face of an OpinionSet.
type OpinionView struct {
	opinions []Opinion
}

// All returns every opinion in canonical order.
func (v *OpinionView) All() []Opinion {
	out := make([]Opinion, len(v.opinions))
	copy(out, v.opinions)
	return out
}

// ForDimension returns the opinions addressing one dimension.
func (v *OpinionView) ForDimension(dim string) []Opinion {
	var out []Opinion
	for _, o := range v.opinions {
		if o.Dimension == dim {
			out = append(out, o)
		}
	}
	return out
}

// Dimensions returns the distinct dimensions with at least one opinion, sorted.
func (v *OpinionView) Dimensions() []string {
	var out []string
	for _, o := range v.opinions {
		if len(out) == 0 || out[len(out)-1] != o.Dimension {
			out = append(out, o.Dimension)
		}
	}
	return out
}

// Len returns the number of opinions.
func (v *OpinionView) Len() int {
	return len(v.opinions)
}
