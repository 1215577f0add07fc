// Package orchestrate drives an audit: the evidence stage, the aggregation
// barrier, the opinion stage and synthesis, strictly in that order.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auditor/internal/court"
	"auditor/internal/fanout"
	"auditor/internal/justice"
	"auditor/internal/logging"
	"auditor/internal/rubric"

	"github.com/google/uuid"
)

// Stage names, used in failures, events and the pipeline graph.
const (
	StageEvidence = "evidence"
	StageOpinion  = "opinion"
)

// Detective produces evidence about a case.
type Detective = fanout.Producer[court.Case, []court.EvidenceItem]

// Judge produces one opinion per rubric dimension it evaluates.
type Judge = fanout.Producer[court.Brief, []court.Opinion]

// Workspace turns a repository reference, such as a git URL, into a local
// directory for the duration of one run.
type Workspace interface {
	Checkout(ctx context.Context, repo string) (dir string, cleanup func(), err error)
}

// Auditor holds the statically registered producers and the stage limits.
// It carries no per-run state and may run audits concurrently.
type Auditor struct {
	Detectives []Detective
	Judges     []Judge
	Config     Config
	// Observer, when set, receives stage events in addition to the run logger.
	Observer fanout.Observer
	// Workspace, when set, resolves the case repository before the
	// evidence stage. Without one the reference is passed through as is.
	Workspace Workspace
}

// Outcome is everything one audit run produced.
type Outcome struct {
	RunID    string
	Verdict  *court.Verdict
	Failures []fanout.WorkerFailure
	Evidence *court.EvidenceView
	Opinions *court.OpinionView
	Elapsed  time.Duration
}

// RunAudit runs one audit and returns the verdict with every recorded
// worker failure. The error is non-nil only when no verdict can be built:
// an invalid rubric, a stage in which every producer failed, caller
// cancellation, or missing stage output.
func (a *Auditor) RunAudit(ctx context.Context, repository, report string, r *rubric.Rubric) (*court.Verdict, []fanout.WorkerFailure, error) {
	out, err := a.Run(ctx, court.Case{Repository: repository, Report: report}, r)
	if out == nil {
		return nil, nil, err
	}
	return out.Verdict, out.Failures, err
}

// Run is RunAudit with the full outcome. On a fatal stage error the
// outcome is still returned with the failures collected so far.
func (a *Auditor) Run(ctx context.Context, c court.Case, r *rubric.Rubric) (*Outcome, error) {
	if r == nil {
		return nil, fmt.Errorf("run audit: %w", rubric.ErrInvalid)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("run audit: %w", err)
	}
	if err := a.Pipeline().Validate(); err != nil {
		return nil, fmt.Errorf("run audit: %w", err)
	}

	start := time.Now()
	out := &Outcome{RunID: uuid.NewString()}
	log := logging.ForRun("orchestrate", out.RunID)
	cfg := a.Config.withDefaults()
	opts := cfg.options(fanout.MultiObserver{&fanout.LogObserver{Logger: log}, a.Observer})

	log.Info("audit started",
		slog.String("repository", c.Repository),
		slog.String("report", c.Report),
		slog.String("rubric", r.Name),
		slog.Int("detectives", len(a.Detectives)),
		slog.Int("judges", len(a.Judges)))

	if a.Workspace != nil && c.Repository != "" {
		dir, cleanup, err := a.Workspace.Checkout(ctx, c.Repository)
		if err != nil {
			out.Elapsed = time.Since(start)
			log.Error("audit halted", slog.String("stage", "checkout"), slog.Any("error", err))
			return out, fmt.Errorf("run audit: checkout: %w", err)
		}
		defer cleanup()
		if dir != c.Repository {
			log.Info("repository checked out", slog.String("source", c.Repository), slog.String("dir", dir))
			c.Repository = dir
		}
	}

	var annotations []string

	// Evidence stage.
	evStage := fanout.Stage[court.Case, []court.EvidenceItem, *court.EvidenceSet]{
		Name:      StageEvidence,
		Producers: a.Detectives,
		Merge:     mergeEvidence,
		Validate:  court.ValidateEvidence,
		Options:   opts,
	}
	evRes, err := fanout.Run(ctx, evStage, c, court.NewEvidenceSet())
	out.Failures = append(out.Failures, evRes.Failures...)
	if note, halt := stageOutcome(StageEvidence, err); halt {
		out.Elapsed = time.Since(start)
		log.Error("audit halted", slog.String("stage", StageEvidence), slog.Any("error", err))
		return out, err
	} else if note != "" {
		annotations = append(annotations, note)
	}
	out.Evidence = evRes.Acc.Freeze()

	agg := aggregate(out.Evidence, a.Detectives, evRes.Failures)
	agg.log(log)
	annotations = append(annotations, agg.annotations()...)

	// Opinion stage. Starts only after the evidence barrier closed and the
	// set was frozen.
	brief := court.Brief{Evidence: out.Evidence, Dimensions: r.Dimensions(), Scale: r.Scale}
	opStage := fanout.Stage[court.Brief, []court.Opinion, *court.OpinionSet]{
		Name:      StageOpinion,
		Producers: a.Judges,
		Merge:     mergeOpinions,
		Validate:  validateOpinions(r.Scale),
		Options:   opts,
	}
	opRes, err := fanout.Run(ctx, opStage, brief, court.NewOpinionSet())
	out.Failures = append(out.Failures, opRes.Failures...)
	if note, halt := stageOutcome(StageOpinion, err); halt {
		out.Elapsed = time.Since(start)
		log.Error("audit halted", slog.String("stage", StageOpinion), slog.Any("error", err))
		return out, err
	} else if note != "" {
		annotations = append(annotations, note)
	}
	for _, f := range opRes.Failures {
		annotations = append(annotations, fmt.Sprintf("opinion stage: judge %s failed: %s", f.Producer, f.Reason))
	}
	out.Opinions = opRes.Acc.Freeze()

	v, err := justice.Synthesize(justice.Input{
		Rubric:      r,
		Evidence:    out.Evidence,
		Opinions:    out.Opinions,
		Annotations: annotations,
	})
	out.Elapsed = time.Since(start)
	if err != nil {
		return out, fmt.Errorf("run audit: %w", err)
	}
	out.Verdict = v

	log.Info("audit complete",
		slog.Float64("overall", v.OverallScore),
		slog.Int("dissent", len(v.Dissent)),
		slog.Int("failures", len(out.Failures)),
		slog.Duration("elapsed", out.Elapsed))
	return out, nil
}

// stageOutcome decides whether a stage error halts the pipeline. A
// timeout with partial output continues with an annotation; total
// failure, caller cancellation and misconfigured stages halt.
func stageOutcome(stage string, err error) (note string, halt bool) {
	if err == nil {
		return "", false
	}
	var se *fanout.StageError
	if errors.As(err, &se) && errors.Is(se.Err, fanout.ErrStageTimeout) {
		return fmt.Sprintf("%s stage: deadline exceeded; continuing with partial output", stage), false
	}
	return "", true
}

func mergeEvidence(acc *court.EvidenceSet, producer string, items []court.EvidenceItem) *court.EvidenceSet {
	acc.Append(producer, items)
	return acc
}

func mergeOpinions(acc *court.OpinionSet, producer string, ops []court.Opinion) *court.OpinionSet {
	acc.Append(producer, ops)
	return acc
}

func validateOpinions(scale court.Scale) func([]court.Opinion) error {
	return func(ops []court.Opinion) error {
		for i, op := range ops {
			if err := op.Validate(scale); err != nil {
				return fmt.Errorf("opinion %d: %w", i, err)
			}
		}
		return nil
	}
}
