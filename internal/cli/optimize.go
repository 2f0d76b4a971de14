package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	optimizeJSON  bool
	optimizeWatch time.Duration
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run an optimization analysis pass",
	Long: `Run one analysis pass: gather fresh metric, experiment, and feedback
signals, admit new backlog actions, auto-execute the low-effort ones, and
print the resulting optimization report.

With --watch, passes repeat on the given interval and state is flushed after
each cycle until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("optimization controller not initialized")
		}

		if optimizeWatch <= 0 {
			if err := runOptimizePass(); err != nil {
				return err
			}
			return saveState()
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		ticker := time.NewTicker(optimizeWatch)
		defer ticker.Stop()

		fmt.Printf("Watching: optimization pass every %s (ctrl-c to stop)\n\n", optimizeWatch)
		for {
			if err := runOptimizePass(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			// Best-effort flush between cycles; a failure loses at most one
			// cycle's delta.
			if err := saveState(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: flushing state: %v\n", err)
			}
			select {
			case <-stop:
				return nil
			case <-ticker.C:
			}
		}
	},
}

func runOptimizePass() error {
	report, err := Controller.AnalyzeAndOptimize()
	if err != nil {
		return fmt.Errorf("running optimization pass: %w", err)
	}

	if optimizeJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting report as JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Optimization pass at %s\n\n", report.Generated.Format("2006-01-02 15:04:05"))
	fmt.Printf("  %-26s %d\n", "New actions identified:", report.Identified)
	fmt.Printf("  %-26s %d\n", "Auto-executed:", report.Completed)
	fmt.Printf("  %-26s %d\n", "Backlog impact remaining:", report.PendingImpact)

	if len(report.RecentCompleted) > 0 {
		fmt.Println("\n  Recently completed:")
		for _, title := range report.RecentCompleted {
			fmt.Printf("    - %s\n", title)
		}
	}

	if len(report.NextActions) > 0 {
		fmt.Println("\n  Next up:")
		for _, a := range report.NextActions {
			fmt.Printf("    [%s] %s (impact %d, effort %d, %s)\n",
				strings.ToUpper(string(a.Priority)), a.Title, a.Impact, a.Effort, a.Status)
		}
	}
	return nil
}

func init() {
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "output as JSON")
	optimizeCmd.Flags().DurationVar(&optimizeWatch, "watch", 0, "repeat passes on this interval (e.g. 5m)")
	rootCmd.AddCommand(optimizeCmd)
}
