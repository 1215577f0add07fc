// Package mcp exposes audits as Model Context Protocol tools so an agent
// can run an audit and read the verdict without the CLI.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auditor/internal/court"
	"auditor/internal/fanout"
	"auditor/internal/justice"
	"auditor/internal/logging"
	"auditor/internal/orchestrate"
	"auditor/internal/report"
	"auditor/internal/rubric"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and the runs it has finished.
type Server struct {
	MCPServer *sdkmcp.Server

	auditor *orchestrate.Auditor
	rubric  *rubric.Rubric
	runs    *RunStore
}

// NewServer builds a server that audits with a and scores against r
// unless a call names its own rubric file.
func NewServer(a *orchestrate.Auditor, r *rubric.Rubric, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{auditor: a, rubric: r, runs: NewRunStore(DefaultMaxRuns)}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "auditor", Version: version}, nil)
	s.registerTools()
	return s
}

// Runs exposes the in-memory run store.
func (s *Server) Runs() *RunStore { return s.runs }

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_audit",
		Description: "Audit a repository and its architecture report. Runs detectives and judges concurrently and returns the verdict, run id and any worker failures.",
	}, s.handleRunAudit)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_verdict",
		Description: "Return the verdict of an earlier run_audit call by run id, optionally rendered as Markdown.",
	}, s.handleGetVerdict)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_rubric",
		Description: "Return the rubric the server scores against: dimensions, weights and synthesis policy.",
	}, s.handleGetRubric)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List the audits this server has run, newest first.",
	}, s.handleListRuns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_events",
		Description: "Return the stage events (worker start, done, failed, timeouts) recorded for a run.",
	}, s.handleGetEvents)
}

// --- Tool input/output types ---

type runAuditInput struct {
	Repository string `json:"repository" jsonschema:"path to the repository checkout or a git URL to clone"`
	Report     string `json:"report" jsonschema:"path to the architecture report (PDF, Markdown or text)"`
	RubricPath string `json:"rubric_path,omitempty" jsonschema:"optional rubric YAML; defaults to the server rubric"`
}

type failureOutput struct {
	Stage     string `json:"stage"`
	Producer  string `json:"producer"`
	Reason    string `json:"reason"`
	TimedOut  bool   `json:"timed_out"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

type runAuditOutput struct {
	RunID     string          `json:"run_id"`
	Verdict   court.Verdict   `json:"verdict"`
	Summary   justice.Summary `json:"summary"`
	Failures  []failureOutput `json:"failures"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

type getVerdictInput struct {
	RunID  string `json:"run_id" jsonschema:"run id returned by run_audit"`
	Format string `json:"format,omitempty" jsonschema:"json (default) or md to also render the Markdown report"`
}

type getVerdictOutput struct {
	RunID    string        `json:"run_id"`
	Verdict  court.Verdict `json:"verdict"`
	Markdown string        `json:"markdown,omitempty"`
}

type getRubricInput struct{}

type dimensionOutput struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Target   string   `json:"target"`
	Keywords []string `json:"keywords"`
}

type getRubricOutput struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Dimensions []dimensionOutput `json:"dimensions"`
	YAML       string            `json:"yaml"`
}

type listRunsInput struct{}

type runInfo struct {
	RunID      string  `json:"run_id"`
	Repository string  `json:"repository"`
	Overall    float64 `json:"overall_score"`
	Failures   int     `json:"failures"`
	Finished   string  `json:"finished"`
}

type listRunsOutput struct {
	Runs []runInfo `json:"runs"`
}

type getEventsInput struct {
	RunID string `json:"run_id" jsonschema:"run id returned by run_audit"`
	Type  string `json:"type,omitempty" jsonschema:"only events of this type (worker_start, worker_done, worker_failed, stage_complete, stage_timeout)"`
}

type eventOutput struct {
	Type      string `json:"type"`
	Stage     string `json:"stage"`
	Producer  string `json:"producer,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

type getEventsOutput struct {
	Events []eventOutput `json:"events"`
	Total  int           `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleRunAudit(ctx context.Context, _ *sdkmcp.CallToolRequest, input runAuditInput) (*sdkmcp.CallToolResult, runAuditOutput, error) {
	logger := logging.New("mcp")
	if input.Repository == "" && input.Report == "" {
		return nil, runAuditOutput{}, fmt.Errorf("repository or report is required")
	}
	r := s.rubric
	if input.RubricPath != "" {
		loaded, err := rubric.Load(input.RubricPath)
		if err != nil {
			return nil, runAuditOutput{}, err
		}
		r = loaded
	}

	trace := &fanout.TraceCollector{}
	a := *s.auditor
	a.Observer = fanout.MultiObserver{s.auditor.Observer, trace}

	c := court.Case{Repository: input.Repository, Report: input.Report}
	out, err := a.Run(ctx, c, r)
	if err != nil {
		logger.Warn("run_audit failed", "repository", c.Repository, "error", err)
		return nil, runAuditOutput{}, fmt.Errorf("run_audit: %w", err)
	}

	run := &Run{
		ID:       out.RunID,
		Case:     c,
		Verdict:  out.Verdict,
		Failures: out.Failures,
		Events:   trace.Events(),
		Elapsed:  out.Elapsed,
		Finished: time.Now().UTC(),
	}
	s.runs.Put(run)
	logger.Info("run_audit complete", "run_id", run.ID, "overall", out.Verdict.OverallScore, "failures", len(out.Failures))

	return nil, runAuditOutput{
		RunID:     run.ID,
		Verdict:   *out.Verdict,
		Summary:   justice.Summarize(out.Verdict),
		Failures:  failures(out.Failures),
		ElapsedMS: out.Elapsed.Milliseconds(),
	}, nil
}

func (s *Server) handleGetVerdict(ctx context.Context, _ *sdkmcp.CallToolRequest, input getVerdictInput) (*sdkmcp.CallToolResult, getVerdictOutput, error) {
	run, err := s.getRun(input.RunID)
	if err != nil {
		return nil, getVerdictOutput{}, err
	}
	out := getVerdictOutput{RunID: run.ID, Verdict: *run.Verdict}

	switch strings.ToLower(input.Format) {
	case "", "json":
	case "md", "markdown":
		var b strings.Builder
		doc := report.NewDocument(run.ID, run.Case, run.Verdict, run.Failures, run.Elapsed)
		if err := report.WriteMarkdown(&b, doc); err != nil {
			return nil, getVerdictOutput{}, err
		}
		out.Markdown = b.String()
	default:
		return nil, getVerdictOutput{}, fmt.Errorf("unknown format %q (want json or md)", input.Format)
	}
	return nil, out, nil
}

func (s *Server) handleGetRubric(ctx context.Context, _ *sdkmcp.CallToolRequest, _ getRubricInput) (*sdkmcp.CallToolResult, getRubricOutput, error) {
	data, err := s.rubric.Marshal()
	if err != nil {
		return nil, getRubricOutput{}, err
	}
	out := getRubricOutput{Name: s.rubric.Name, Version: s.rubric.Version, YAML: string(data)}
	for _, d := range s.rubric.Dimensions() {
		kw := d.Keywords
		if kw == nil {
			kw = []string{}
		}
		out.Dimensions = append(out.Dimensions, dimensionOutput{ID: d.ID, Name: d.Name, Target: string(d.Target), Keywords: kw})
	}
	return nil, out, nil
}

func (s *Server) handleListRuns(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	out := listRunsOutput{Runs: []runInfo{}}
	for _, r := range s.runs.List() {
		out.Runs = append(out.Runs, runInfo{
			RunID:      r.ID,
			Repository: r.Case.Repository,
			Overall:    r.Verdict.OverallScore,
			Failures:   len(r.Failures),
			Finished:   r.Finished.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetEvents(ctx context.Context, _ *sdkmcp.CallToolRequest, input getEventsInput) (*sdkmcp.CallToolResult, getEventsOutput, error) {
	run, err := s.getRun(input.RunID)
	if err != nil {
		return nil, getEventsOutput{}, err
	}
	out := getEventsOutput{Events: []eventOutput{}, Total: len(run.Events)}
	for _, e := range run.Events {
		if input.Type != "" && string(e.Type) != input.Type {
			continue
		}
		ev := eventOutput{Type: string(e.Type), Stage: e.Stage, Producer: e.Producer, ElapsedMS: e.Elapsed.Milliseconds()}
		if e.Error != nil {
			ev.Error = e.Error.Error()
		}
		out.Events = append(out.Events, ev)
	}
	return nil, out, nil
}

func (s *Server) getRun(id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown run_id %s (runs are kept in memory only)", id)
	}
	return run, nil
}

func failures(fs []fanout.WorkerFailure) []failureOutput {
	out := make([]failureOutput, 0, len(fs))
	for _, f := range fs {
		out = append(out, failureOutput{
			Stage: f.Stage, Producer: f.Producer, Reason: f.Reason,
			TimedOut: f.TimedOut, ElapsedMS: f.Elapsed.Milliseconds(),
		})
	}
	return out
}
