package core

import (
	"fmt"
	"math"

	"github.com/valter-silva-au/growth-brain/pkg/models"
)

// zCritical is the fixed critical value used for confidence intervals and the
// significance test. It corresponds to 95% confidence and is applied
// regardless of an experiment's configured confidence level.
const zCritical = 1.96

// minWinnerLiftPercent is the minimum relative lift over control a candidate
// needs, on top of significance, before it is declared a winner.
const minWinnerLiftPercent = 5.0

// CalculateResults summarises the tracked samples of every variant, in
// insertion order: sample count, mean, population standard deviation, and a
// fixed-z 95% confidence interval.
func (e *ExperimentEngine) CalculateResults(experimentID string) ([]models.VariantResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.experiments[experimentID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, experimentID)
	}

	results := make([]models.VariantResult, 0, len(exp.VariantOrder))
	for _, vid := range exp.VariantOrder {
		values := e.samples[experimentID][vid]
		n := len(values)
		result := models.VariantResult{VariantID: vid, Samples: n}
		if n > 0 {
			result.Mean = mean(values)
			result.StdDev = stdDevPopulation(values, result.Mean)
			margin := zCritical * result.StdDev / math.Sqrt(float64(n))
			result.CILow = result.Mean - margin
			result.CIHigh = result.Mean + margin
			result.Conversion = result.Mean
		}
		results = append(results, result)
	}
	return results, nil
}

// CalculateSignificance runs a two-sample z-test between variants a and b on
// the experiment's tracked samples. It returns whether |z| exceeds 1.96 and
// the relative lift of a over b in percent. When either sample is empty, the
// combined standard error is zero, or b's mean is zero, it returns
// (false, 0) rather than dividing by zero.
func (e *ExperimentEngine) CalculateSignificance(experimentID, variantA, variantB string) (bool, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.significance(experimentID, variantA, variantB)
}

// significance is CalculateSignificance without locking. Callers must hold
// the mutex.
func (e *ExperimentEngine) significance(experimentID, variantA, variantB string) (bool, float64) {
	a := e.samples[experimentID][variantA]
	b := e.samples[experimentID][variantB]
	if len(a) == 0 || len(b) == 0 {
		return false, 0
	}

	meanA, meanB := mean(a), mean(b)
	varA := variancePopulation(a, meanA)
	varB := variancePopulation(b, meanB)
	se := math.Sqrt(varA/float64(len(a)) + varB/float64(len(b)))
	if se == 0 || meanB == 0 {
		return false, 0
	}

	z := math.Abs(meanA-meanB) / se
	lift := (meanA - meanB) / meanB * 100
	return z > zCritical, lift
}

// DetectWinner returns the winning variant id, or "" while no winner can be
// declared. A winner requires every variant to have reached the minimum
// sample size, the highest mean to belong to a non-control variant (ties
// resolved by insertion order, first encountered wins), and that variant to be
// statistically significant versus control with more than 5% lift.
func (e *ExperimentEngine) DetectWinner(experimentID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detectWinner(experimentID)
}

// detectWinner is DetectWinner without locking. Callers must hold the mutex.
func (e *ExperimentEngine) detectWinner(experimentID string) (string, error) {
	exp, ok := e.experiments[experimentID]
	if !ok {
		return "", fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, experimentID)
	}

	// Waiting state: every variant must reach the minimum sample size first,
	// even if one already leads.
	for _, vid := range exp.VariantOrder {
		if len(e.samples[experimentID][vid]) < exp.MinSampleSize {
			return "", nil
		}
	}

	best := ""
	bestMean := math.Inf(-1)
	for _, vid := range exp.VariantOrder {
		m := mean(e.samples[experimentID][vid])
		if m > bestMean {
			best = vid
			bestMean = m
		}
	}
	if best == models.ControlVariant {
		return "", nil
	}

	significant, lift := e.significance(experimentID, best, models.ControlVariant)
	if significant && lift > minWinnerLiftPercent {
		return best, nil
	}
	return "", nil
}

// RolloutWinner declares the winner and rolls it out: status forced to
// rolled_out, all traffic moved to the winner, end timestamp stamped. When
// winner is empty it is resolved through DetectWinner; if none can be
// detected the rollout fails.
func (e *ExperimentEngine) RolloutWinner(experimentID, winner string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	exp, ok := e.experiments[experimentID]
	if !ok {
		return fmt.Errorf("%w: unknown experiment %q", models.ErrValidation, experimentID)
	}

	if winner == "" {
		detected, err := e.detectWinner(experimentID)
		if err != nil {
			return err
		}
		if detected == "" {
			return fmt.Errorf("experiment %q: no winner detected", experimentID)
		}
		winner = detected
	}
	if _, ok := exp.Variants[winner]; !ok {
		return fmt.Errorf("%w: experiment %q has no variant %q", models.ErrValidation, experimentID, winner)
	}

	exp.Status = models.ExperimentRolledOut
	exp.Winner = winner
	for _, vid := range exp.VariantOrder {
		if vid == winner {
			exp.Traffic[vid] = 1.0
		} else {
			exp.Traffic[vid] = 0.0
		}
	}
	ended := e.now()
	exp.Ended = &ended
	return nil
}

// mean returns the arithmetic mean of values. Callers guarantee len > 0.
func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// variancePopulation returns the population variance (divide by n, not n-1).
func variancePopulation(values []float64, mean float64) float64 {
	var total float64
	for _, v := range values {
		d := v - mean
		total += d * d
	}
	return total / float64(len(values))
}

// stdDevPopulation returns the population standard deviation.
func stdDevPopulation(values []float64, mean float64) float64 {
	return math.Sqrt(variancePopulation(values, mean))
}
