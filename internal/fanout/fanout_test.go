package fanout_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"auditor/internal/fanout"

	"github.com/google/go-cmp/cmp"
)

// tally is a commutative accumulator: key -> sorted contributions.
type tally map[string]int

func mergeTally(acc tally, _ string, out map[string]int) tally {
	for k, v := range out {
		acc[k] += v
	}
	return acc
}

func producer(id string, delay time.Duration, out map[string]int, err error) fanout.Producer[string, map[string]int] {
	return fanout.Func[string, map[string]int]{
		Name: id,
		Fn: func(ctx context.Context, _ string) (map[string]int, error) {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return out, err
		},
	}
}

// blocker ignores its context entirely and only returns when release closes.
func blocker(id string, release <-chan struct{}) fanout.Producer[string, map[string]int] {
	return fanout.Func[string, map[string]int]{
		Name: id,
		Fn: func(context.Context, string) (map[string]int, error) {
			<-release
			return map[string]int{"late": 1}, nil
		},
	}
}

func stage(producers ...fanout.Producer[string, map[string]int]) fanout.Stage[string, map[string]int, tally] {
	return fanout.Stage[string, map[string]int, tally]{
		Name:      "test",
		Producers: producers,
		Merge:     mergeTally,
		Options:   fanout.Options{WorkerTimeout: 2 * time.Second, DeadlineMargin: time.Second},
	}
}

func TestRun_MergeIndependentOfCompletionOrder(t *testing.T) {
	outs := []map[string]int{{"repo": 1, "docs": 2}, {"repo": 3}, {"vision": 4, "docs": 1}}
	delays := [][]time.Duration{
		{0, 10 * time.Millisecond, 20 * time.Millisecond},
		{20 * time.Millisecond, 10 * time.Millisecond, 0},
		{10 * time.Millisecond, 0, 20 * time.Millisecond},
	}

	var first tally
	for i, ds := range delays {
		st := stage(
			producer("a", ds[0], outs[0], nil),
			producer("b", ds[1], outs[1], nil),
			producer("c", ds[2], outs[2], nil),
		)
		res, err := fanout.Run(context.Background(), st, "input", tally{})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(res.Failures) != 0 {
			t.Fatalf("run %d: unexpected failures %v", i, res.Failures)
		}
		if i == 0 {
			first = res.Acc
			continue
		}
		if diff := cmp.Diff(first, res.Acc); diff != "" {
			t.Errorf("run %d merged differently:\n%s", i, diff)
		}
	}
	if diff := cmp.Diff(tally{"repo": 4, "docs": 3, "vision": 4}, first); diff != "" {
		t.Errorf("merged tally mismatch:\n%s", diff)
	}
}

func TestRun_OneFailureIsIsolated(t *testing.T) {
	boom := errors.New("git not installed")
	st := stage(
		producer("repo", 0, map[string]int{"repo": 1}, boom),
		producer("docs", 5*time.Millisecond, map[string]int{"docs": 1}, nil),
		producer("vision", 0, map[string]int{"vision": 1}, nil),
	)

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if err != nil {
		t.Fatalf("stage should succeed with one failure, got %v", err)
	}
	if diff := cmp.Diff(tally{"docs": 1, "vision": 1}, res.Acc); diff != "" {
		t.Errorf("failed producer leaked into merge:\n%s", diff)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(res.Failures))
	}
	f := res.Failures[0]
	if f.Producer != "repo" || !errors.Is(f, boom) || f.TimedOut {
		t.Errorf("unexpected failure record: %+v", f)
	}
	if diff := cmp.Diff([]string{"docs", "vision"}, res.Succeeded); diff != "" {
		t.Errorf("Succeeded mismatch:\n%s", diff)
	}
}

func TestRun_AllFailIsTotalFailure(t *testing.T) {
	st := stage(
		producer("a", 0, nil, errors.New("a broke")),
		producer("b", 0, nil, errors.New("b broke")),
	)

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if !errors.Is(err, fanout.ErrStageTotalFailure) {
		t.Fatalf("expected ErrStageTotalFailure, got %v", err)
	}
	var se *fanout.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %T", err)
	}
	if !se.Fatal() || se.Stage != "test" || len(se.Failures) != 2 {
		t.Errorf("unexpected stage error: %+v", se)
	}
	if len(res.Failures) != 2 || len(res.Acc) != 0 {
		t.Errorf("result should carry both failures and an empty accumulator: %+v", res)
	}
}

func TestRun_BlockedWorkerTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	st := stage(
		blocker("stuck", release),
		producer("fast", 0, map[string]int{"fast": 1}, nil),
		producer("slower", 20*time.Millisecond, map[string]int{"slower": 1}, nil),
	)
	st.WorkerTimeout = 100 * time.Millisecond

	start := time.Now()
	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if err != nil {
		t.Fatalf("stage should succeed: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("barrier waited too long: %v", time.Since(start))
	}
	if diff := cmp.Diff(tally{"fast": 1, "slower": 1}, res.Acc); diff != "" {
		t.Errorf("merge mismatch:\n%s", diff)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("expected one failure, got %v", res.Failures)
	}
	f := res.Failures[0]
	if f.Producer != "stuck" || !f.TimedOut || !errors.Is(f, fanout.ErrWorkerTimeout) {
		t.Errorf("unexpected failure: %+v", f)
	}
}

func TestRun_StageDeadlineKeepsPartialOutput(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	st := stage(
		blocker("stuck", release),
		producer("fast", 0, map[string]int{"fast": 1}, nil),
	)
	st.WorkerTimeout = time.Minute
	st.StageDeadline = 100 * time.Millisecond

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if !errors.Is(err, fanout.ErrStageTimeout) {
		t.Fatalf("expected ErrStageTimeout, got %v", err)
	}
	var se *fanout.StageError
	if errors.As(err, &se) && se.Fatal() {
		t.Error("a timeout with partial output must not be fatal")
	}
	if diff := cmp.Diff(tally{"fast": 1}, res.Acc); diff != "" {
		t.Errorf("partial merge lost:\n%s", diff)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0], fanout.ErrAbandoned) {
		t.Errorf("expected abandoned failure for stuck worker, got %+v", res.Failures)
	}
}

func TestRun_ParentCancelKeepsPartialOutput(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	st := stage(
		blocker("stuck", release),
		producer("fast", 0, map[string]int{"fast": 1}, nil),
	)
	st.WorkerTimeout = time.Minute

	res, err := fanout.Run(ctx, st, "input", tally{})
	if !errors.Is(err, fanout.ErrStageCancelled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrStageCancelled wrapping the context error, got %v", err)
	}
	if res.Acc["fast"] != 1 {
		t.Errorf("fast output should survive cancellation: %v", res.Acc)
	}
}

func TestRun_PanicIsRecorded(t *testing.T) {
	st := stage(
		fanout.Func[string, map[string]int]{Name: "bad", Fn: func(context.Context, string) (map[string]int, error) {
			panic("nil map write")
		}},
		producer("good", 0, map[string]int{"good": 1}, nil),
	)

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if err != nil {
		t.Fatalf("panic must not fail the stage: %v", err)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0], fanout.ErrWorkerPanic) {
		t.Errorf("expected recorded panic, got %+v", res.Failures)
	}
}

func TestRun_ValidateRejectsOutput(t *testing.T) {
	st := stage(
		producer("negative", 0, map[string]int{"x": -1}, nil),
		producer("positive", 0, map[string]int{"x": 2}, nil),
	)
	st.Validate = func(out map[string]int) error {
		for k, v := range out {
			if v < 0 {
				return fmt.Errorf("key %s negative", k)
			}
		}
		return nil
	}

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Acc["x"] != 2 {
		t.Errorf("rejected output was merged: %v", res.Acc)
	}
	if len(res.Failures) != 1 || !errors.Is(res.Failures[0], fanout.ErrInvalidOutput) {
		t.Errorf("expected invalid output failure, got %+v", res.Failures)
	}
}

func TestRun_ParallelismLimit(t *testing.T) {
	var running, peak atomic.Int32
	mk := func(id string) fanout.Producer[string, map[string]int] {
		return fanout.Func[string, map[string]int]{Name: id, Fn: func(context.Context, string) (map[string]int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return map[string]int{id: 1}, nil
		}}
	}
	st := stage(mk("a"), mk("b"), mk("c"), mk("d"), mk("e"))
	st.Parallelism = 2

	res, err := fanout.Run(context.Background(), st, "input", tally{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Succeeded) != 5 {
		t.Errorf("expected 5 successes, got %v", res.Succeeded)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", p)
	}
}

func TestRun_ObserverSeesLifecycle(t *testing.T) {
	trace := &fanout.TraceCollector{}
	st := stage(
		producer("ok", 0, map[string]int{"ok": 1}, nil),
		producer("bad", 0, nil, errors.New("nope")),
	)
	st.Observer = trace

	if _, err := fanout.Run(context.Background(), st, "input", tally{}); err != nil {
		t.Fatal(err)
	}
	if got := len(trace.EventsOfType(fanout.EventWorkerStart)); got != 2 {
		t.Errorf("worker_start events = %d, want 2", got)
	}
	if got := len(trace.EventsOfType(fanout.EventWorkerDone)); got != 1 {
		t.Errorf("worker_done events = %d, want 1", got)
	}
	if got := len(trace.EventsOfType(fanout.EventWorkerFailed)); got != 1 {
		t.Errorf("worker_failed events = %d, want 1", got)
	}
	complete := trace.EventsOfType(fanout.EventStageComplete)
	if len(complete) != 1 || complete[0].Metadata["succeeded"] != 1 {
		t.Errorf("unexpected stage_complete: %+v", complete)
	}
}

func TestRun_RejectsBadStages(t *testing.T) {
	_, err := fanout.Run(context.Background(), stage(), "input", tally{})
	if !errors.Is(err, fanout.ErrNoProducers) {
		t.Errorf("expected ErrNoProducers, got %v", err)
	}

	dup := stage(producer("a", 0, nil, nil), producer("a", 0, nil, nil))
	_, err = fanout.Run(context.Background(), dup, "input", tally{})
	if !errors.Is(err, fanout.ErrDuplicateProducer) {
		t.Errorf("expected ErrDuplicateProducer, got %v", err)
	}
}

func TestOptions_Deadline(t *testing.T) {
	cases := []struct {
		name string
		opts fanout.Options
		n    int
		want time.Duration
	}{
		{"no timeout", fanout.Options{}, 3, 0},
		{"single wave", fanout.Options{WorkerTimeout: time.Second, DeadlineMargin: 100 * time.Millisecond}, 3, 1100 * time.Millisecond},
		{"two waves", fanout.Options{WorkerTimeout: time.Second, Parallelism: 2}, 3, 2 * time.Second},
		{"override", fanout.Options{WorkerTimeout: time.Second, StageDeadline: 5 * time.Second}, 3, 5 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.opts.Deadline(tc.n); got != tc.want {
				t.Errorf("Deadline(%d) = %v, want %v", tc.n, got, tc.want)
			}
		})
	}
}

func TestLogObserver_NilLoggerUsesDefault(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	obs := fanout.MultiObserver{&fanout.LogObserver{}, fanout.ObserverFunc(func(fanout.Event) {
		mu.Lock()
		seen++
		mu.Unlock()
	})}
	obs.OnEvent(fanout.Event{Type: fanout.EventStageComplete, Stage: "x"})
	if seen != 1 {
		t.Errorf("MultiObserver did not fan out, seen=%d", seen)
	}
}
