package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var alertsAll bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show threshold alerts",
	Long: `Display alerts raised by watched metrics crossing their thresholds.

Alerts are appended on every breaching read and are not deduplicated, so a
sustained breach shows one entry per read. Resolve entries explicitly with
'gbr alerts resolve <id>'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metric store not initialized")
		}

		alerts := Metrics.Alerts(!alertsAll)
		if len(alerts) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		fmt.Printf("%d alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			status := ""
			if alert.Resolved {
				status = " (resolved)"
			}
			fmt.Printf("  %-14s [%s]%s %s\n", alert.ID, strings.ToUpper(string(alert.Severity)), status, alert.Message)
			fmt.Printf("                 %s at %.2f, threshold %.2f, %s\n\n",
				alert.Metric, alert.Value, alert.Threshold, alert.Time.Format("2006-01-02 15:04 UTC"))
		}
		return nil
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark an alert as resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metric store not initialized")
		}
		if err := Metrics.ResolveAlert(args[0]); err != nil {
			return fmt.Errorf("resolving alert: %w", err)
		}
		fmt.Printf("Alert %s resolved.\n", args[0])
		return saveState()
	},
}

var alertsNotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send unresolved alerts to the configured webhook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil {
			return fmt.Errorf("metric store not initialized")
		}
		if Notifier == nil {
			return fmt.Errorf("no notifier configured (set slack_webhook_url in .gbrconfig)")
		}

		alerts := Metrics.Alerts(true)
		if err := Notifier.Notify(alerts); err != nil {
			return fmt.Errorf("sending alert digest: %w", err)
		}
		fmt.Printf("Sent digest of %d alert(s).\n", len(alerts))
		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsAll, "all", false, "include resolved alerts")
	alertsCmd.AddCommand(alertsResolveCmd, alertsNotifyCmd)
	rootCmd.AddCommand(alertsCmd)
}
