package orchestrate

import (
	"time"

	"auditor/internal/fanout"
)

// Config holds the stage limits shared by the evidence and opinion stages.
type Config struct {
	WorkerTimeout  time.Duration // per producer (default 2m)
	DeadlineMargin time.Duration // added to the stage budget (default 10s)
	Parallelism    int           // 0 = one goroutine per producer
}

// DefaultConfig returns the limits used when the caller sets none.
func DefaultConfig() Config {
	return Config{
		WorkerTimeout:  2 * time.Minute,
		DeadlineMargin: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorkerTimeout <= 0 {
		c.WorkerTimeout = d.WorkerTimeout
	}
	if c.DeadlineMargin < 0 {
		c.DeadlineMargin = 0
	}
	if c.Parallelism < 0 {
		c.Parallelism = 0
	}
	return c
}

func (c Config) options(obs fanout.Observer) fanout.Options {
	return fanout.Options{
		WorkerTimeout:  c.WorkerTimeout,
		DeadlineMargin: c.DeadlineMargin,
		Parallelism:    c.Parallelism,
		Observer:       obs,
	}
}
