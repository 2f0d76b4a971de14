package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	reportJSON  bool
	reportHours int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Display the metrics report",
	Long: `Generate and display the windowed metrics report: onboarding funnel,
button engagement, performance, the 0-100 health score, and rule-based
recommendations.

Reading the watched metrics raises threshold alerts as a side effect; run
'gbr alerts' afterwards to review them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metric store not initialized")
		}

		window := time.Duration(reportHours) * time.Hour
		report := Metrics.GenerateReport(window)

		if reportJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting report as JSON: %w", err)
			}
			fmt.Println(string(data))
			return saveState()
		}

		fmt.Printf("Metrics report (last %dh)  —  health score %.0f/100\n\n", reportHours, report.HealthScore)

		fmt.Println("  Onboarding:")
		fmt.Printf("    %-22s %d\n", "Started:", report.Onboarding.Started)
		fmt.Printf("    %-22s %d\n", "Completed:", report.Onboarding.Completed)
		fmt.Printf("    %-22s %d\n", "Skipped:", report.Onboarding.Skipped)
		fmt.Printf("    %-22s %.1f%%\n", "Completion rate:", report.Onboarding.CompletionRate*100)
		fmt.Printf("    %-22s %.0fs\n", "Avg duration:", report.Onboarding.AvgDurationSec)

		fmt.Println("\n  Buttons:")
		fmt.Printf("    %-22s %.1f%%\n", "CTR:", report.Buttons.CTR*100)
		fmt.Printf("    %-22s %d / %d\n", "Clicks/impressions:", report.Buttons.TotalClicks, report.Buttons.TotalImpressions)
		for i, b := range report.Buttons.Top {
			fmt.Printf("    #%d %-19s %d clicks\n", i+1, b.Button, b.Clicks)
		}

		fmt.Println("\n  Performance:")
		fmt.Printf("    %-22s %.0fms\n", "Avg response:", report.Performance.AvgResponseMS)
		fmt.Printf("    %-22s %.0fms\n", "P95 response:", report.Performance.P95ResponseMS)
		fmt.Printf("    %-22s %.2f%% (%d errors)\n", "Error rate:", report.Performance.ErrorRate*100, report.Performance.ErrorCount)

		fmt.Println("\n  Recommendations:")
		for _, rec := range report.Recommendations {
			fmt.Printf("    - %s\n", rec)
		}

		return saveState()
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "output as JSON")
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "report window in hours")
	rootCmd.AddCommand(reportCmd)
}
