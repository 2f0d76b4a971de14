// Package cli implements the gbr command-line interface for operators:
// reports, experiment lifecycle management, optimization passes, alerts, and
// the dashboard.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "gbr",
	Short: "Growth Brain - experimentation and adaptive optimization engine",
	Long: `Growth Brain (gbr) is the experimentation and adaptive optimization engine
behind the bot: a metrics store with windowed aggregation and threshold
alerting, an A/B-testing engine with sticky assignment and statistical winner
detection, and a rule-based controller that converts both signals into a
prioritized, partially auto-executed action backlog.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gbr %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
