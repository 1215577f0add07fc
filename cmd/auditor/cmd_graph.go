package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"auditor/internal/orchestrate"
)

func newGraphCmd() *cobra.Command {
	var defPath string
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the audit pipeline as a Mermaid diagram",
		Long: `Print the stage graph (start, detectives, evidence aggregator, judges,
chief justice, done) for the built-in producers, or for a pipeline
definition loaded with --def. --yaml prints the definition itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def := defaultAuditor(orchestrate.DefaultConfig()).Pipeline()
			if defPath != "" {
				data, err := os.ReadFile(defPath)
				if err != nil {
					return err
				}
				if def, err = orchestrate.LoadPipeline(data); err != nil {
					return err
				}
			}
			if err := def.Validate(); err != nil {
				return err
			}
			if asYAML {
				data, err := def.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), orchestrate.Render(def))
			return nil
		},
	}
	cmd.Flags().StringVar(&defPath, "def", "", "Pipeline definition YAML to render instead of the built-in one")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the pipeline definition as YAML instead of Mermaid")
	return cmd
}
