package fanout

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrWorkerTimeout is the cause recorded when a producer exceeds its own timeout.
	ErrWorkerTimeout = errors.New("fanout: worker timed out")

	// ErrWorkerPanic is the cause recorded when a producer panics.
	ErrWorkerPanic = errors.New("fanout: worker panicked")

	// ErrInvalidOutput is the cause recorded when a producer's output fails validation.
	ErrInvalidOutput = errors.New("fanout: invalid worker output")

	// ErrAbandoned is the cause recorded for a worker still running (or never
	// started) when the stage deadline closed the barrier.
	ErrAbandoned = errors.New("fanout: worker abandoned at stage deadline")

	// ErrStageTimeout means the stage deadline elapsed before every worker
	// reported. The partial result is still returned.
	ErrStageTimeout = errors.New("fanout: stage deadline exceeded")

	// ErrStageCancelled means the caller's context ended before the barrier closed.
	ErrStageCancelled = errors.New("fanout: stage cancelled")

	// ErrStageTotalFailure means no worker in the stage succeeded.
	ErrStageTotalFailure = errors.New("fanout: every worker in stage failed")

	// ErrNoProducers is returned for a stage with nothing to run.
	ErrNoProducers = errors.New("fanout: stage has no producers")

	// ErrDuplicateProducer is returned when two producers share an id.
	ErrDuplicateProducer = errors.New("fanout: duplicate producer id")
)

// WorkerFailure records one producer that did not contribute to the merge.
// Failures are data: they are collected, never raised past the stage.
type WorkerFailure struct {
	Stage    string        `json:"stage"`
	Producer string        `json:"producer"`
	Reason   string        `json:"reason"`
	TimedOut bool          `json:"timed_out"`
	Elapsed  time.Duration `json:"elapsed"`
	Cause    error         `json:"-"`
}

func newFailure(stage, producer string, cause error, timedOut bool, elapsed time.Duration) WorkerFailure {
	return WorkerFailure{
		Stage:    stage,
		Producer: producer,
		Reason:   cause.Error(),
		TimedOut: timedOut,
		Elapsed:  elapsed,
		Cause:    cause,
	}
}

func (f WorkerFailure) Error() string {
	return fmt.Sprintf("%s/%s: %s", f.Stage, f.Producer, f.Reason)
}

func (f WorkerFailure) Unwrap() error { return f.Cause }

// StageError reports a stage that did not close cleanly. Err is one of
// ErrStageTimeout, ErrStageCancelled or ErrStageTotalFailure; Cause is the
// underlying context error when there is one.
type StageError struct {
	Stage    string
	Err      error
	Cause    error
	Failures []WorkerFailure
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %s: %v", e.Stage, e.Err)
	if len(e.Failures) > 0 {
		names := make([]string, len(e.Failures))
		for i, f := range e.Failures {
			names[i] = f.Producer + " (" + f.Reason + ")"
		}
		fmt.Fprintf(&b, "; failed: %s", strings.Join(names, ", "))
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Fatal reports whether the pipeline must halt: nothing usable came out of the stage.
func (e *StageError) Fatal() bool {
	return errors.Is(e.Err, ErrStageTotalFailure)
}
