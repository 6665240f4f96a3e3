package fitmetrics

import "math"

// Estimation heuristics for measurements the upstream data does not carry
// directly. Each one is a standalone pure function, so a heuristic can be
// swapped without touching the accumulation logic in the transform.

// SleepScore derives a 0-100 score from sleep duration and the deep-sleep
// share. Duration gets full credit between 7 and 9 hours, a linear ramp
// below 7h and a 10-points-per-hour penalty above 9h. The deep-sleep
// component treats a 25% deep share as perfect. Blend is 70/30.
func SleepScore(totalSleepMinutes, deepSleepMinutes int) int {
	if totalSleepMinutes <= 0 {
		return 0
	}

	var durationScore float64
	switch {
	case totalSleepMinutes < 420:
		durationScore = float64(totalSleepMinutes) / 420 * 100
	case totalSleepMinutes <= 540:
		durationScore = 100
	default:
		durationScore = 100 - float64(totalSleepMinutes-540)/60*10
	}

	deepRatio := float64(deepSleepMinutes) / float64(totalSleepMinutes)
	deepComponent := math.Min(100, deepRatio/0.25*100)

	score := int(math.Round(0.7*durationScore + 0.3*deepComponent))
	return clamp(score, 0, 100)
}

// RecoveryScore derives a 0-100 score from resting heart rate: RHR below 60
// is rewarded, at or above 60 penalized at 1.5 points per bpm.
func RecoveryScore(rhr int) int {
	if rhr < 60 {
		return min(100, 85+(60-rhr))
	}
	return max(0, int(math.Round(85-float64(rhr-60)*1.5)))
}

// WorkoutIntensity averages a time-based component (60 active minutes =
// 100%) with a calorie-based one (2500 kcal = 100%).
func WorkoutIntensity(activityMinutes, calories int) int {
	timeIntensity := math.Min(100, float64(activityMinutes)/60*100)
	calorieIntensity := math.Min(100, float64(calories)/2500*100)
	return int(math.Round((timeIntensity + calorieIntensity) / 2))
}

// StepOnlyIntensity is the lighter estimate used when no typed activity
// was recorded, capped at 50 since steps alone say little about effort.
func StepOnlyIntensity(steps int) int {
	return min(50, int(math.Round(float64(steps)/10000*50)))
}

// EstimateHRV approximates heart-rate variability from RHR when no HRV
// sample exists, bounded to the 20-80 band.
func EstimateHRV(rhr int) int {
	return clamp(60-(rhr-60), 20, 80)
}

// Macros is an estimated daily macronutrient breakdown in grams.
type Macros struct {
	Protein int
	Carbs   int
	Fats    int
}

// EstimateMacros splits total calories into macros. Active days (intensity
// 50+) get a higher-carb 25/50/25 split, rest days 30/40/30. Protein and
// carbs at 4 kcal/g, fat at 9 kcal/g.
func EstimateMacros(calories int, workoutIntensity *int) Macros {
	proteinShare, carbsShare, fatsShare := 0.3, 0.4, 0.3
	if workoutIntensity != nil && *workoutIntensity >= 50 {
		proteinShare, carbsShare, fatsShare = 0.25, 0.5, 0.25
	}

	return Macros{
		Protein: int(math.Round(float64(calories) * proteinShare / 4)),
		Carbs:   int(math.Round(float64(calories) * carbsShare / 4)),
		Fats:    int(math.Round(float64(calories) * fatsShare / 9)),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
