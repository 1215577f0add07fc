// Package judge holds the built-in opinion producers. Each judge reads the
// frozen evidence and scores every dimension of the brief from its persona's
// stance; the scoring is deterministic so a rerun on the same evidence gives
// the same opinions.
package judge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"auditor/internal/court"
	"auditor/internal/fanout"
)

// Producer IDs.
const (
	IDProsecutor = "prosecutor"
	IDDefense    = "defense"
	IDTechLead   = "tech_lead"
)

// ErrNoEvidence is returned when the brief carries no evidence view.
var ErrNoEvidence = errors.New("judge: brief has no evidence")

// Producer is the opinion stage contract every judge satisfies.
type Producer = fanout.Producer[court.Brief, []court.Opinion]

// Judge scores dimensions from one persona's stance.
type Judge struct {
	id      string
	persona court.Persona
}

// NewProsecutor returns the adversarial judge: it looks for gaps and always
// cites disqualifying evidence it sees.
func NewProsecutor() *Judge { return &Judge{id: IDProsecutor, persona: court.PersonaAdversarial} }

// NewDefense returns the sympathetic judge, which credits what was built.
func NewDefense() *Judge { return &Judge{id: IDDefense, persona: court.PersonaSympathetic} }

// NewTechLead returns the pragmatic judge, which scores the balance.
func NewTechLead() *Judge { return &Judge{id: IDTechLead, persona: court.PersonaPragmatic} }

// Default returns the three built-in judges.
func Default() []Producer {
	return []Producer{NewProsecutor(), NewDefense(), NewTechLead()}
}

func (j *Judge) ID() string { return j.id }

// Persona returns the judge's fixed stance.
func (j *Judge) Persona() court.Persona { return j.persona }

func (j *Judge) Produce(ctx context.Context, b court.Brief) ([]court.Opinion, error) {
	if b.Evidence == nil {
		return nil, ErrNoEvidence
	}
	ops := make([]court.Opinion, 0, len(b.Dimensions))
	for _, dim := range b.Dimensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ops = append(ops, j.assess(dim, Relevant(b.Evidence, dim), b.Scale))
	}
	return ops, nil
}

// Relevant returns the items bearing on dim: items of its target category
// whose claim mentions one of its keywords, followed by security flaws that
// do. With no keywords every item of the target category counts, and so does
// every flaw.
func Relevant(ev *court.EvidenceView, dim court.Dimension) []court.EvidenceItem {
	var out []court.EvidenceItem
	for _, it := range ev.Items(dim.Target) {
		if matches(it.Claim, dim.Keywords) {
			out = append(out, it)
		}
	}
	if dim.Target == court.CategorySecurityFlaw {
		return out
	}
	for _, it := range ev.Items(court.CategorySecurityFlaw) {
		if matches(it.Claim, dim.Keywords) {
			out = append(out, it)
		}
	}
	return out
}

func matches(claim string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	claim = strings.ToLower(claim)
	for _, k := range keywords {
		if strings.Contains(claim, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// tally weighs the relevant items. Flaws count double against.
type tally struct {
	pos, neg      float64
	found, absent []string
	flaws         []string
}

func weigh(items []court.EvidenceItem) tally {
	var t tally
	for _, it := range items {
		switch {
		case it.Category == court.CategorySecurityFlaw:
			t.neg += 2 * it.Confidence
			t.flaws = append(t.flaws, it.ID)
		case it.Found:
			t.pos += it.Confidence
			t.found = append(t.found, it.ID)
		default:
			t.neg += it.Confidence
			t.absent = append(t.absent, it.ID)
		}
	}
	return t
}

func (j *Judge) assess(dim court.Dimension, items []court.EvidenceItem, scale court.Scale) court.Opinion {
	op := court.Opinion{Persona: j.persona, Dimension: dim.ID, ProducedBy: j.id}
	t := weigh(items)

	if t.pos+t.neg == 0 {
		switch j.persona {
		case court.PersonaAdversarial:
			op.Score = scale.Min
			op.Rationale = fmt.Sprintf("no evidence bears on %s; nothing was shown to exist", dim.Name)
		case court.PersonaSympathetic:
			op.Score = scale.Clamp(scale.Min + (scale.Max-scale.Min)/2)
			op.Rationale = fmt.Sprintf("no evidence bears on %s; absence of proof is not proof of absence", dim.Name)
		default:
			op.Score = scale.Clamp(scale.Min + 1)
			op.Rationale = fmt.Sprintf("no evidence bears on %s; cannot credit unverified work", dim.Name)
		}
		return op
	}

	ratio := t.pos / (t.pos + t.neg)
	base := scale.Min + int(math.Round(ratio*float64(scale.Max-scale.Min)))

	switch j.persona {
	case court.PersonaAdversarial:
		op.Score = base
		if t.neg > 0 {
			op.Score--
		}
		op.CitedEvidence = append(append([]string{}, t.flaws...), t.absent...)
		op.Rationale = fmt.Sprintf("%d gaps and %d security flaws against %d supporting findings for %s",
			len(t.absent), len(t.flaws), len(t.found), dim.Name)
	case court.PersonaSympathetic:
		op.Score = base
		if t.pos > 0 {
			op.Score++
		}
		op.CitedEvidence = append([]string{}, t.found...)
		op.Rationale = fmt.Sprintf("%d findings show work toward %s", len(t.found), dim.Name)
		if len(t.flaws) > 0 {
			op.Rationale += fmt.Sprintf("; %d security flaws noted", len(t.flaws))
		}
	default:
		op.Score = base
		for _, it := range items {
			op.CitedEvidence = append(op.CitedEvidence, it.ID)
		}
		op.Rationale = fmt.Sprintf("%.0f%% of weighted evidence supports %s (%d for, %d against)",
			100*ratio, dim.Name, len(t.found), len(t.absent)+len(t.flaws))
	}
	op.Score = scale.Clamp(op.Score)
	return op
}
