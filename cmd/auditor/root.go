package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"auditor/internal/logging"
)

type rootFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "auditor",
		Short: "Evidence-based architecture audits for agent repositories",
		Long: `auditor runs a panel of detectives over a repository and its report,
hands the merged evidence to three judges (prosecutor, defense, tech lead)
and reconciles their opinions with fixed synthesis rules into a verdict.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			switch flags.logFormat {
			case "text", "json":
			default:
				return fmt.Errorf("unknown log format %q (want text or json)", flags.logFormat)
			}
			logging.Init(level, flags.logFormat, cmd.ErrOrStderr())
			return nil
		},
	}
	root.Version = version

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newAuditCmd())
	root.AddCommand(newRubricCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newServeCmd())
	return root
}
