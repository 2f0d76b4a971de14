package cli

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/growth-brain/internal/core"
)

var (
	simulateUsers int
	simulateSeed  int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Seed the engine with simulated traffic",
	Long: `Seed the engine with a simulated cohort for demos and smoke checks:
creates and starts the onboarding_steps experiment, assigns users, tracks
conversions at different rates per arm, and records matching onboarding and
performance metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Metrics == nil || Experiments == nil {
			return fmt.Errorf("engine not initialized")
		}

		rng := rand.New(rand.NewSource(simulateSeed))

		if _, err := Experiments.Get(core.TemplateOnboardingSteps); err != nil {
			if _, err := Experiments.CreateFromTemplate(core.TemplateOnboardingSteps); err != nil {
				return fmt.Errorf("creating experiment: %w", err)
			}
		}
		if err := Experiments.Start(core.TemplateOnboardingSteps); err != nil {
			return fmt.Errorf("starting experiment: %w", err)
		}

		// Conversion rates per arm: the shorter flow converts better.
		rates := map[string]float64{"control": 0.75, "variant_a": 0.82}

		for i := 0; i < simulateUsers; i++ {
			userID := fmt.Sprintf("user-%04d", i)
			variant, err := Experiments.AssignVariant(userID, core.TemplateOnboardingSteps)
			if err != nil {
				return fmt.Errorf("assigning variant: %w", err)
			}

			Metrics.TrackOnboardingStarted(userID)
			converted := rng.Float64() < rates[variant]
			if converted {
				duration := time.Duration(60+rng.Intn(120)) * time.Second
				Metrics.TrackOnboardingCompleted(userID, duration)
			} else if rng.Float64() < 0.5 {
				Metrics.TrackOnboardingSkipped(userID)
			}
			Experiments.TrackConversion(userID, core.TemplateOnboardingSteps, converted)

			Metrics.TrackButtonImpression("scan_flights")
			if rng.Float64() < 0.55 {
				Metrics.TrackButtonClick("scan_flights")
			}
			Metrics.TrackResponseTime("scan", 200+rng.Float64()*600)
			if rng.Float64() < 0.01 {
				Metrics.TrackError("upstream_timeout")
			}
			Metrics.TrackCacheHit(rng.Float64() < 0.7)
		}

		fmt.Printf("Simulated %d users across %s.\n", simulateUsers, core.TemplateOnboardingSteps)
		fmt.Println("Inspect with 'gbr experiment results onboarding_steps' and 'gbr report'.")
		return saveState()
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateUsers, "users", 250, "number of simulated users")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", time.Now().UnixNano(), "random seed")
	rootCmd.AddCommand(simulateCmd)
}
