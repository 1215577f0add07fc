package orchestrate

import (
	"fmt"
	"log/slog"

	"auditor/internal/court"
	"auditor/internal/fanout"
)

// aggregation summarises the closed evidence barrier: what arrived per
// category and which registered detectives contributed nothing.
type aggregation struct {
	counts  map[court.Category]int
	total   int
	missing []missingProducer
}

type missingProducer struct {
	id     string
	reason string
}

func aggregate(ev *court.EvidenceView, detectives []Detective, failures []fanout.WorkerFailure) aggregation {
	agg := aggregation{counts: make(map[court.Category]int), total: ev.Len()}
	for _, c := range ev.Categories() {
		agg.counts[c] = len(ev.Items(c))
	}

	contributed := make(map[string]bool)
	for _, p := range ev.Producers() {
		contributed[p] = true
	}
	reasons := make(map[string]string, len(failures))
	for _, f := range failures {
		reasons[f.Producer] = f.Reason
	}
	for _, d := range detectives {
		id := d.ID()
		if contributed[id] {
			continue
		}
		reason, failed := reasons[id]
		if !failed {
			reason = "returned no evidence"
		}
		agg.missing = append(agg.missing, missingProducer{id: id, reason: reason})
	}
	return agg
}

func (a aggregation) log(log *slog.Logger) {
	attrs := []any{slog.Int("total", a.total)}
	for _, c := range court.KnownCategories() {
		attrs = append(attrs, slog.Int(string(c), a.counts[c]))
	}
	log.Info("evidence aggregated", attrs...)
	for _, m := range a.missing {
		log.Warn("missing evidence", slog.String("detective", m.id), slog.String("reason", m.reason))
	}
}

func (a aggregation) annotations() []string {
	out := make([]string, 0, len(a.missing))
	for _, m := range a.missing {
		out = append(out, fmt.Sprintf("evidence stage: detective %s contributed nothing (%s)", m.id, m.reason))
	}
	return out
}
