// Package fanout runs one stage of independent producers against a shared,
// read-only input and folds their outputs into a single accumulator.
//
// Every producer starts at once (bounded by Parallelism). The barrier
// waits for each producer to succeed, fail or time out; a failing producer
// never cancels its siblings. Merges happen on the collecting goroutine
// only, so the merge function needs no locking of its own and never sees
// two outputs interleaved.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Producer is the single capability every detective and judge implements.
// The scheduler never looks inside: it only sees the outcome.
type Producer[In, Out any] interface {
	ID() string
	Produce(ctx context.Context, in In) (Out, error)
}

// Func adapts a plain function to the Producer interface.
type Func[In, Out any] struct {
	Name string
	Fn   func(ctx context.Context, in In) (Out, error)
}

func (f Func[In, Out]) ID() string { return f.Name }

func (f Func[In, Out]) Produce(ctx context.Context, in In) (Out, error) {
	return f.Fn(ctx, in)
}

// MergeFunc folds one producer's output into the accumulator. It must be
// commutative and associative over producers: no completion order may
// change the final accumulator.
type MergeFunc[Acc, Out any] func(acc Acc, producer string, out Out) Acc

// Options bounds a stage run.
type Options struct {
	// WorkerTimeout limits each producer. Zero means no per-worker limit
	// and no stage deadline.
	WorkerTimeout time.Duration
	// DeadlineMargin is added on top of the worker budget to form the stage deadline.
	DeadlineMargin time.Duration
	// StageDeadline, when positive, replaces the computed stage budget.
	StageDeadline time.Duration
	// Parallelism caps concurrently running producers. Zero runs all at once.
	Parallelism int
	Observer    Observer
}

// Deadline returns the aggregate stage budget for n producers: one worker
// timeout per wave of Parallelism producers, plus the margin. Zero means
// the stage has no deadline of its own.
func (o Options) Deadline(n int) time.Duration {
	if o.StageDeadline > 0 {
		return o.StageDeadline
	}
	if o.WorkerTimeout <= 0 || n == 0 {
		return 0
	}
	waves := 1
	if o.Parallelism > 0 && n > o.Parallelism {
		waves = (n + o.Parallelism - 1) / o.Parallelism
	}
	return time.Duration(waves)*o.WorkerTimeout + o.DeadlineMargin
}

// Stage is a statically known set of producers plus the way to merge them.
type Stage[In, Out, Acc any] struct {
	Name      string
	Producers []Producer[In, Out]
	Merge     MergeFunc[Acc, Out]
	// Validate, when set, runs inside the worker; a rejected output is
	// recorded as a failure and never reaches Merge.
	Validate func(Out) error
	Options
}

// Result is what the barrier hands back: the merged accumulator and every
// failure, sorted by producer id. Failures are populated even when the
// stage as a whole succeeded.
type Result[Acc any] struct {
	Acc       Acc
	Succeeded []string
	Failures  []WorkerFailure
	Elapsed   time.Duration
}

type outcome[Out any] struct {
	producer string
	out      Out
	err      error
	timedOut bool
	elapsed  time.Duration
}

func (s *Stage[In, Out, Acc]) check() error {
	if len(s.Producers) == 0 {
		return fmt.Errorf("stage %s: %w", s.Name, ErrNoProducers)
	}
	if s.Merge == nil {
		return fmt.Errorf("stage %s: merge function is required", s.Name)
	}
	seen := make(map[string]bool, len(s.Producers))
	for _, p := range s.Producers {
		if seen[p.ID()] {
			return fmt.Errorf("stage %s: %w %q", s.Name, ErrDuplicateProducer, p.ID())
		}
		seen[p.ID()] = true
	}
	return nil
}

// Run executes the stage. acc is the empty accumulator owned by the
// scheduler for the duration of the call.
//
// A nil error means every producer reported and at least one succeeded
// (individual failures are still listed in the result). A *StageError
// wraps ErrStageTimeout or ErrStageCancelled when the barrier had to close
// early with partial output, and ErrStageTotalFailure when nothing succeeded.
func Run[In, Out, Acc any](ctx context.Context, st Stage[In, Out, Acc], in In, acc Acc) (Result[Acc], error) {
	res := Result[Acc]{Acc: acc}
	if err := st.check(); err != nil {
		return res, err
	}

	start := time.Now()
	var (
		stageCtx context.Context
		cancel   context.CancelFunc
	)
	if d := st.Deadline(len(st.Producers)); d > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, d)
	} else {
		stageCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Buffered for every producer so late senders never block after the
	// barrier has closed.
	outcomes := make(chan outcome[Out], len(st.Producers))

	var g errgroup.Group
	if st.Parallelism > 0 {
		g.SetLimit(st.Parallelism)
	}
	go func() {
		for _, p := range st.Producers {
			g.Go(func() error {
				outcomes <- runWorker(stageCtx, &st, p, in)
				return nil
			})
		}
		_ = g.Wait() // outcomes carry the errors
	}()

	pending := make(map[string]bool, len(st.Producers))
	for _, p := range st.Producers {
		pending[p.ID()] = true
	}

	closedEarly := false
	collect := func(oc outcome[Out]) {
		delete(pending, oc.producer)
		if oc.err != nil {
			// A worker cut off by the stage deadline can report before the
			// barrier sees the deadline itself.
			if errors.Is(oc.err, ErrAbandoned) {
				closedEarly = true
			}
			f := newFailure(st.Name, oc.producer, oc.err, oc.timedOut, oc.elapsed)
			res.Failures = append(res.Failures, f)
			emit(st.Observer, Event{Type: EventWorkerFailed, Stage: st.Name, Producer: oc.producer, Elapsed: oc.elapsed, Error: oc.err})
			return
		}
		res.Acc = st.Merge(res.Acc, oc.producer, oc.out)
		res.Succeeded = append(res.Succeeded, oc.producer)
		emit(st.Observer, Event{Type: EventWorkerDone, Stage: st.Name, Producer: oc.producer, Elapsed: oc.elapsed})
	}

barrier:
	for len(pending) > 0 {
		select {
		case oc := <-outcomes:
			collect(oc)
		case <-stageCtx.Done():
			closedEarly = true
			break barrier
		}
	}

	if closedEarly {
		// Keep whatever already reached the channel before the deadline.
	drain:
		for len(pending) > 0 {
			select {
			case oc := <-outcomes:
				collect(oc)
			default:
				break drain
			}
		}
		for id := range pending {
			f := newFailure(st.Name, id, fmt.Errorf("%w: %w", ErrAbandoned, stageCtx.Err()), true, time.Since(start))
			res.Failures = append(res.Failures, f)
			emit(st.Observer, Event{Type: EventWorkerFailed, Stage: st.Name, Producer: id, Elapsed: f.Elapsed, Error: f.Cause})
		}
	}

	sort.Strings(res.Succeeded)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Producer < res.Failures[j].Producer })
	res.Elapsed = time.Since(start)

	meta := map[string]any{"succeeded": len(res.Succeeded), "failed": len(res.Failures)}
	switch {
	case len(res.Succeeded) == 0:
		emit(st.Observer, Event{Type: EventStageComplete, Stage: st.Name, Elapsed: res.Elapsed, Error: ErrStageTotalFailure, Metadata: meta})
		return res, &StageError{Stage: st.Name, Err: ErrStageTotalFailure, Cause: ctx.Err(), Failures: res.Failures}
	case closedEarly && ctx.Err() != nil:
		emit(st.Observer, Event{Type: EventStageTimeout, Stage: st.Name, Elapsed: res.Elapsed, Error: ctx.Err(), Metadata: meta})
		return res, &StageError{Stage: st.Name, Err: ErrStageCancelled, Cause: ctx.Err(), Failures: res.Failures}
	case closedEarly:
		emit(st.Observer, Event{Type: EventStageTimeout, Stage: st.Name, Elapsed: res.Elapsed, Error: ErrStageTimeout, Metadata: meta})
		return res, &StageError{Stage: st.Name, Err: ErrStageTimeout, Cause: context.DeadlineExceeded, Failures: res.Failures}
	}
	emit(st.Observer, Event{Type: EventStageComplete, Stage: st.Name, Elapsed: res.Elapsed, Metadata: meta})
	return res, nil
}

// runWorker runs one producer under its own timeout. A producer that
// ignores its context is abandoned when the timeout fires; its goroutine
// finishes on its own and the late output is discarded.
func runWorker[In, Out, Acc any](stageCtx context.Context, st *Stage[In, Out, Acc], p Producer[In, Out], in In) outcome[Out] {
	id := p.ID()
	start := time.Now()
	if err := stageCtx.Err(); err != nil {
		return outcome[Out]{producer: id, err: fmt.Errorf("%w: %w", ErrAbandoned, err), timedOut: true}
	}
	emit(st.Observer, Event{Type: EventWorkerStart, Stage: st.Name, Producer: id})

	var (
		wctx   context.Context
		cancel context.CancelFunc
	)
	if st.WorkerTimeout > 0 {
		wctx, cancel = context.WithTimeout(stageCtx, st.WorkerTimeout)
	} else {
		wctx, cancel = context.WithCancel(stageCtx)
	}
	defer cancel()

	done := make(chan outcome[Out], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[Out]{producer: id, err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
			}
		}()
		out, err := p.Produce(wctx, in)
		if err == nil && st.Validate != nil {
			if verr := st.Validate(out); verr != nil {
				err = fmt.Errorf("%w: %w", ErrInvalidOutput, verr)
			}
		}
		done <- outcome[Out]{producer: id, out: out, err: err}
	}()

	var oc outcome[Out]
	select {
	case oc = <-done:
		if oc.err != nil && errors.Is(oc.err, context.DeadlineExceeded) && wctx.Err() != nil {
			oc.timedOut = true
		}
	case <-wctx.Done():
		oc = outcome[Out]{producer: id, err: timeoutCause(stageCtx, wctx), timedOut: true}
	}
	oc.elapsed = time.Since(start)
	return oc
}

func timeoutCause(stageCtx, wctx context.Context) error {
	if err := stageCtx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAbandoned, err)
	}
	return fmt.Errorf("%w: %w", ErrWorkerTimeout, wctx.Err())
}
