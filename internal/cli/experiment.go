package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var experimentCmd = &cobra.Command{
	Use:     "experiment",
	Aliases: []string{"exp"},
	Short:   "Manage A/B experiments",
	Long: `Commands for managing the experiment lifecycle: create from a template,
start, pause, stop, inspect results, and roll out a winner.`,
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}

		experiments := Experiments.List()
		if len(experiments) == 0 {
			fmt.Println("No experiments. Create one with 'gbr experiment create <template>'.")
			return nil
		}

		fmt.Printf("%-24s %-12s %-10s %-12s %s\n", "ID", "STATUS", "VARIANTS", "WINNER", "PRIMARY METRIC")
		for _, exp := range experiments {
			winner := exp.Winner
			if winner == "" {
				winner = "-"
			}
			fmt.Printf("%-24s %-12s %-10d %-12s %s\n",
				exp.ID, exp.Status, len(exp.Variants), winner, exp.PrimaryMetric)
		}
		return nil
	},
}

var experimentTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the built-in experiment templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-24s %-28s %s\n", "TEMPLATE", "PRIMARY METRIC", "VARIANTS")
		for _, tmpl := range coreTemplates() {
			var ids []string
			for _, v := range tmpl.Variants {
				ids = append(ids, v.ID)
			}
			fmt.Printf("%-24s %-28s %s\n", tmpl.ID, tmpl.PrimaryMetric, strings.Join(ids, ", "))
		}
		return nil
	},
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create <template>",
	Short: "Create a draft experiment from a built-in template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}

		exp, err := Experiments.CreateFromTemplate(args[0])
		if err != nil {
			return fmt.Errorf("creating experiment: %w", err)
		}
		logEvent("experiment.created", map[string]any{"experiment": exp.ID})
		fmt.Printf("Created draft experiment %s with %d variants.\n", exp.ID, len(exp.Variants))
		return saveState()
	},
}

var experimentStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}
		if err := Experiments.Start(args[0]); err != nil {
			return fmt.Errorf("starting experiment: %w", err)
		}
		logEvent("experiment.started", map[string]any{"experiment": args[0]})
		fmt.Printf("Experiment %s is running.\n", args[0])
		return saveState()
	},
}

var experimentPauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}
		if err := Experiments.Pause(args[0]); err != nil {
			return fmt.Errorf("pausing experiment: %w", err)
		}
		logEvent("experiment.paused", map[string]any{"experiment": args[0]})
		fmt.Printf("Experiment %s paused.\n", args[0])
		return saveState()
	},
}

var experimentStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}
		if err := Experiments.Stop(args[0]); err != nil {
			return fmt.Errorf("stopping experiment: %w", err)
		}
		logEvent("experiment.stopped", map[string]any{"experiment": args[0]})
		fmt.Printf("Experiment %s completed.\n", args[0])
		return saveState()
	},
}

var experimentResultsJSON bool

var experimentResultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Show per-variant results and winner status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}

		results, err := Experiments.CalculateResults(args[0])
		if err != nil {
			return fmt.Errorf("calculating results: %w", err)
		}

		if experimentResultsJSON {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting results as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("%-16s %-8s %-10s %-10s %s\n", "VARIANT", "N", "MEAN", "STDDEV", "95% CI")
		for _, r := range results {
			fmt.Printf("%-16s %-8d %-10.4f %-10.4f [%.4f, %.4f]\n",
				r.VariantID, r.Samples, r.Mean, r.StdDev, r.CILow, r.CIHigh)
		}

		winner, err := Experiments.DetectWinner(args[0])
		if err != nil {
			return fmt.Errorf("detecting winner: %w", err)
		}
		if winner == "" {
			fmt.Println("\nNo winner yet.")
		} else {
			fmt.Printf("\nWinner: %s\n", winner)
		}
		return nil
	},
}

var experimentRolloutCmd = &cobra.Command{
	Use:   "rollout <id> [variant]",
	Short: "Roll out the winning variant",
	Long: `Roll out the winner: all traffic moves to the winning variant and the
experiment is marked rolled_out. Without an explicit variant the winner is
resolved through detection; the rollout fails if none can be detected.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Experiments == nil {
			return fmt.Errorf("experiment engine not initialized")
		}

		winner := ""
		if len(args) == 2 {
			winner = args[1]
		}
		if err := Experiments.RolloutWinner(args[0], winner); err != nil {
			return fmt.Errorf("rolling out winner: %w", err)
		}

		exp, err := Experiments.Get(args[0])
		if err != nil {
			return err
		}
		logEvent("experiment.rolled_out", map[string]any{"experiment": exp.ID, "winner": exp.Winner})
		fmt.Printf("Experiment %s rolled out: all traffic to %s.\n", exp.ID, exp.Winner)
		return saveState()
	},
}

func init() {
	experimentResultsCmd.Flags().BoolVar(&experimentResultsJSON, "json", false, "output as JSON")
	experimentCmd.AddCommand(
		experimentListCmd,
		experimentTemplatesCmd,
		experimentCreateCmd,
		experimentStartCmd,
		experimentPauseCmd,
		experimentStopCmd,
		experimentResultsCmd,
		experimentRolloutCmd,
	)
	rootCmd.AddCommand(experimentCmd)
}
