package fitmetrics

import "time"

// DateLayout is the wire format for metric dates, calendar days without time.
const DateLayout = "2006-01-02"

// DailyMetric is the canonical per-user per-day fitness record. At most one
// exists per (userID, date), enforced by the upsert in the repo. Nullable
// measurements are pointers, zero is a valid value for some of them.
type DailyMetric struct {
	ID                int        `json:"id,omitempty"`
	UserID            string     `json:"userId"`
	Date              time.Time  `json:"date"`
	Steps             int        `json:"steps"`
	Calories          int        `json:"calories"`
	RestingHeartRate  *int       `json:"rhr"`
	HRV               *int       `json:"hrv"`
	TotalSleepMinutes *int       `json:"totalSleepMinutes"`
	DeepSleepMinutes  *int       `json:"deepSleepMinutes"`
	SleepScore        *int       `json:"sleepScore"`
	RecoveryScore     *int       `json:"recoveryScore"`
	WorkoutIntensity  *int       `json:"workoutIntensity"`
	ActivityMinutes   *int       `json:"activityMinutes"`
	Protein           *int       `json:"protein"`
	Carbs             *int       `json:"carbs"`
	Fats              *int       `json:"fats"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// HasSignal reports whether the day carries any non-trivial measurement.
// Days without signal are dropped by the transform, never stored.
func (m *DailyMetric) HasSignal() bool {
	if m.Steps > 0 || m.Calories > 0 {
		return true
	}
	if m.TotalSleepMinutes != nil && *m.TotalSleepMinutes > 0 {
		return true
	}
	return m.RestingHeartRate != nil
}

func intPtr(v int) *int {
	return &v
}
