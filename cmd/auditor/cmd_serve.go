package main

import (
	"context"

	"github.com/spf13/cobra"

	"auditor/internal/logging"
	mcpserver "auditor/internal/mcp"
	"auditor/internal/orchestrate"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newServeCmd() *cobra.Command {
	var rubricPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve audit tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout with the tools
run_audit, get_verdict, get_rubric, list_runs and get_events. Verdicts are
kept in memory for the life of the process.

The server exits when its parent process goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRubric(rubricPath)
			if err != nil {
				return err
			}
			srv := mcpserver.NewServer(defaultAuditor(orchestrate.DefaultConfig()), r, version)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			mcpserver.WatchParent(ctx, cancel)

			logging.New("mcp").Info("starting auditor MCP server over stdio", "rubric", r.Name)
			return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
	cmd.Flags().StringVar(&rubricPath, "rubric", "", "Rubric YAML (default: embedded rubric)")
	return cmd
}
