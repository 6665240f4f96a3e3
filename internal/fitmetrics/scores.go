package fitmetrics

import "math"

// Defaults substituted for missing inputs when computing readiness.
const (
	defaultSleepScore    = 70
	defaultRecoveryScore = 70
	defaultHRV           = 50
)

// Summary is the derived view computed on the read path, always recomputed
// from the stored records, never cached.
type Summary struct {
	ReadinessScore  int  `json:"readinessScore"`
	ReadinessChange *int `json:"readinessChange"`
	StrainScore     int  `json:"strainScore"`
}

// CalculateSummary derives readiness, readiness trend and strain from an
// oldest-first sequence of daily records. Pure function of the input.
func CalculateSummary(metrics []DailyMetric) *Summary {
	if len(metrics) == 0 {
		return nil
	}

	latest := metrics[len(metrics)-1]
	summary := &Summary{
		ReadinessScore: readinessScore(latest),
		StrainScore:    strainScore(latest),
	}

	if len(metrics) > 1 {
		previous := metrics[len(metrics)-2]
		change := summary.ReadinessScore - readinessScore(previous)
		summary.ReadinessChange = &change
	}

	return summary
}

func readinessScore(m DailyMetric) int {
	sleep := float64(defaultSleepScore)
	if m.SleepScore != nil {
		sleep = float64(*m.SleepScore)
	}
	recovery := float64(defaultRecoveryScore)
	if m.RecoveryScore != nil {
		recovery = float64(*m.RecoveryScore)
	}
	hrv := float64(defaultHRV)
	if m.HRV != nil {
		hrv = float64(*m.HRV)
	}

	return int(math.Round(math.Min(100, 0.4*sleep+0.3*recovery+0.3*hrv)))
}

func strainScore(m DailyMetric) int {
	intensity := 0.0
	if m.WorkoutIntensity != nil {
		intensity = float64(*m.WorkoutIntensity)
	}

	return int(math.Round(math.Min(20, 0.1*intensity+float64(m.Steps)/1000)))
}
