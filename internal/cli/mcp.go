package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	gbrmcp "github.com/valter-silva-au/growth-brain/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the Growth Brain MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gbr MCP server on stdio",
	Long: `Start the gbr MCP server on stdio transport.

The server exposes the producer and consumer surface of the engine as MCP
tools the bot layer can call: record_metric, track_onboarding, track_button,
assign_variant, track_conversion, get_report, get_optimization_report, and
get_message.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil || Experiments == nil || Controller == nil {
			return fmt.Errorf("engine not initialized")
		}

		srv := gbrmcp.NewServer(Metrics, Experiments, Controller, Selector, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		// Persist anything the bot layer recorded during the session.
		return saveState()
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
