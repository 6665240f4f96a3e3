package fitmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSleepScore_bounds(t *testing.T) {
	// any non-negative duration stays within [0, 100]
	for totalSleep := 0; totalSleep <= 1200; totalSleep += 15 {
		for _, deepSleep := range []int{0, totalSleep / 4, totalSleep} {
			score := SleepScore(totalSleep, deepSleep)
			assert.GreaterOrEqual(t, score, 0, "totalSleep=%d deep=%d", totalSleep, deepSleep)
			assert.LessOrEqual(t, score, 100, "totalSleep=%d deep=%d", totalSleep, deepSleep)
		}
	}
}

func TestSleepScore(t *testing.T) {
	// 8h with a 25% deep share is a perfect night
	assert.Equal(t, 100, SleepScore(480, 120))
	// 8h with no deep sleep loses the whole deep component
	assert.Equal(t, 70, SleepScore(480, 0))
	// short sleep ramps linearly: 3.5h = half the duration credit
	assert.Equal(t, 35, SleepScore(210, 0))
	// oversleeping is penalized at 10 points per hour over 9h
	assert.Equal(t, 63, SleepScore(600, 0))
	assert.Equal(t, 0, SleepScore(0, 0))
}

func TestRecoveryScore(t *testing.T) {
	// rewarded below 60 bpm
	assert.Equal(t, 95, RecoveryScore(50))
	assert.Equal(t, 100, RecoveryScore(44))
	assert.Equal(t, 100, RecoveryScore(30))
	// penalized at and above 60 bpm
	assert.Equal(t, 85, RecoveryScore(60))
	assert.Equal(t, 70, RecoveryScore(70))
	assert.Equal(t, 0, RecoveryScore(130))
}

func TestRecoveryScore_nonIncreasing(t *testing.T) {
	// lower RHR never means a lower score
	for rhr := 31; rhr <= 120; rhr++ {
		assert.GreaterOrEqual(
			t, RecoveryScore(rhr-1), RecoveryScore(rhr),
			"rhr=%d", rhr,
		)
	}
}

func TestWorkoutIntensity(t *testing.T) {
	// 60 active minutes and 2500 kcal both max their component
	assert.Equal(t, 100, WorkoutIntensity(60, 2500))
	assert.Equal(t, 100, WorkoutIntensity(120, 5000))
	// half time credit, no calories
	assert.Equal(t, 25, WorkoutIntensity(30, 0))
	assert.Equal(t, 0, WorkoutIntensity(0, 0))
}

func TestStepOnlyIntensity(t *testing.T) {
	assert.Equal(t, 35, StepOnlyIntensity(7000))
	assert.Equal(t, 50, StepOnlyIntensity(10000))
	// capped at 50, steps alone say little about effort
	assert.Equal(t, 50, StepOnlyIntensity(30000))
	assert.Equal(t, 0, StepOnlyIntensity(0))
}

func TestEstimateHRV(t *testing.T) {
	assert.Equal(t, 60, EstimateHRV(60))
	assert.Equal(t, 70, EstimateHRV(50))
	// clamped to the 20-80 band
	assert.Equal(t, 80, EstimateHRV(30))
	assert.Equal(t, 20, EstimateHRV(110))
}

func TestEstimateMacros(t *testing.T) {
	// rest day split 30/40/30
	rest := EstimateMacros(2000, nil)
	assert.Equal(t, 150, rest.Protein)
	assert.Equal(t, 200, rest.Carbs)
	assert.Equal(t, 67, rest.Fats)

	// active day split 25/50/25
	active := EstimateMacros(2000, intPtr(60))
	assert.Equal(t, 125, active.Protein)
	assert.Equal(t, 250, active.Carbs)
	assert.Equal(t, 56, active.Fats)

	// intensity below the active threshold keeps the rest split
	lowIntensity := EstimateMacros(2000, intPtr(30))
	assert.Equal(t, rest, lowIntensity)
}
