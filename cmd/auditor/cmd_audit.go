package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"auditor/internal/court"
	"auditor/internal/display"
	"auditor/internal/format"
	"auditor/internal/justice"
	"auditor/internal/orchestrate"
	"auditor/internal/report"
)

type auditFlags struct {
	repo          string
	report        string
	output        string
	format        string
	rubricPath    string
	workerTimeout time.Duration
	parallel      int
	chromePath    string
}

func newAuditCmd() *cobra.Command {
	var flags auditFlags
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit a repository and its architecture report",
		Long: `Run the evidence stage (repository, document and diagram detectives),
then the opinion stage (prosecutor, defense, tech lead), then synthesis.

Worker failures are printed as warnings and recorded in the verdict; the
command only fails when no verdict can be built. The output format follows
--format, or the extension of --output when --format is not set.

  auditor audit --repo ./agent --report ./agent/REPORT.md -o audit.md
  auditor audit --repo ./agent --report ./agent/REPORT.md -o audit.pdf
  auditor audit --repo https://github.com/acme/agent.git --report REPORT.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.repo, "repo", "", "Repository checkout or git URL to audit")
	f.StringVar(&flags.report, "report", "", "Architecture report (PDF, Markdown or text)")
	f.StringVarP(&flags.output, "output", "o", "", "Write the rendered report to this file")
	f.StringVar(&flags.format, "format", "", "Report format: md, json, html or pdf (default: from --output extension)")
	f.StringVar(&flags.rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	f.DurationVar(&flags.workerTimeout, "worker-timeout", orchestrate.DefaultConfig().WorkerTimeout, "Per-producer timeout")
	f.IntVar(&flags.parallel, "parallel", 0, "Max concurrent producers per stage (0 = all)")
	f.StringVar(&flags.chromePath, "chrome", "", "Chrome binary for PDF output (default: found on PATH)")
	return cmd
}

func runAudit(cmd *cobra.Command, flags auditFlags) error {
	if flags.repo == "" && flags.report == "" {
		return fmt.Errorf("--repo or --report is required")
	}
	r, err := loadRubric(flags.rubricPath)
	if err != nil {
		return err
	}

	fmtName := report.FormatFromPath(flags.output)
	if flags.format != "" {
		if fmtName, err = report.ParseFormat(flags.format); err != nil {
			return err
		}
	}

	cfg := orchestrate.DefaultConfig()
	cfg.WorkerTimeout = flags.workerTimeout
	cfg.Parallelism = flags.parallel
	a := defaultAuditor(cfg)

	c := court.Case{Repository: flags.repo, Report: flags.report}
	out, err := a.Run(cmd.Context(), c, r)
	if out != nil {
		for _, f := range out.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s stage: %s failed: %s\n", f.Stage, display.Producer(f.Producer), f.Reason)
		}
	}
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	printVerdict(cmd.OutOrStdout(), out)

	if flags.output == "" {
		return nil
	}
	var renderer report.Renderer = &report.Printer{ExecPath: flags.chromePath}
	if fmtName != report.PDF {
		if renderer, err = report.For(fmtName); err != nil {
			return err
		}
	}
	doc := report.NewDocument(out.RunID, c, out.Verdict, out.Failures, out.Elapsed)
	if err := report.Save(cmd.Context(), flags.output, renderer, doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", flags.output)
	return nil
}

func printVerdict(w io.Writer, out *orchestrate.Outcome) {
	v := out.Verdict
	tb := format.NewTable(format.Terminal, "Dimension", "Score", "", "Rule")
	for _, d := range v.Dimensions {
		tb.Row(d.Name, justice.FormatScore(float64(d.FinalScore), v.Scale), format.Bar(d.FinalScore, v.Scale.Min, v.Scale.Max), display.RuleWithCode(d.Rule))
	}
	fmt.Fprintln(w, tb.String())

	s := justice.Summarize(v)
	fmt.Fprintf(w, "Overall: %s (%s) in %s\n", justice.FormatScore(v.OverallScore, v.Scale), display.Band(s.Band), format.Duration(out.Elapsed))
	fmt.Fprintf(w, "Run:     %s\n", out.RunID)
	for _, d := range v.Dissent {
		fmt.Fprintf(w, "Dissent: %s (spread %d)\n", d.Dimension, d.Spread)
	}
	for i, r := range v.Remediation {
		fmt.Fprintf(w, "Fix %d:   %s (%s)\n", i+1, r.Name, justice.FormatScore(float64(r.FinalScore), v.Scale))
	}
}
