package fitmetrics

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tormoder/fit"
)

// WorkoutImport is what a single uploaded .FIT activity file contributes
// to the day it was recorded on.
type WorkoutImport struct {
	Date            time.Time
	Sport           string
	Calories        int
	ActivityMinutes int
	MinHeartRate    *int
}

// ParseFitActivity decodes an activity .FIT file into the day-level values
// the metrics pipeline understands. Invalid-sentinel fields (all-ones per
// the FIT base types) are treated as absent.
func ParseFitActivity(r io.Reader) (WorkoutImport, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return WorkoutImport{}, fmt.Errorf("decode fit file: %w", err)
	}

	activity, err := decoded.Activity()
	if err != nil {
		return WorkoutImport{}, fmt.Errorf("activity fit file expected: %w", err)
	}
	if len(activity.Sessions) == 0 {
		return WorkoutImport{}, fmt.Errorf("activity file has no session message")
	}

	session := activity.Sessions[0]
	workout := WorkoutImport{
		Sport: fmt.Sprint(session.Sport),
	}

	startTime := session.StartTime
	if startTime.IsZero() && len(activity.Records) > 0 {
		startTime = activity.Records[0].Timestamp
	}
	if startTime.IsZero() {
		return WorkoutImport{}, fmt.Errorf("activity file has no start time")
	}
	workout.Date = startTime.UTC().Truncate(24 * time.Hour)

	if session.TotalCalories != math.MaxUint16 {
		workout.Calories = int(session.TotalCalories)
	}

	if elapsed := session.GetTotalTimerTimeScaled(); elapsed > 0 && !math.IsNaN(elapsed) {
		workout.ActivityMinutes = int(math.Round(elapsed / 60))
	} else if len(activity.Records) > 0 {
		first := activity.Records[0].Timestamp
		last := activity.Records[len(activity.Records)-1].Timestamp
		if last.After(first) {
			workout.ActivityMinutes = int(math.Round(last.Sub(first).Minutes()))
		}
	}

	for _, record := range activity.Records {
		if record.HeartRate == math.MaxUint8 || record.HeartRate == 0 {
			continue
		}
		hr := int(record.HeartRate)
		if workout.MinHeartRate == nil || hr < *workout.MinHeartRate {
			workout.MinHeartRate = intPtr(hr)
		}
	}

	return workout, nil
}

// MergeWorkout folds an imported workout into the day's canonical record,
// keeping the running-minimum heart rate reconciliation and recomputing
// the derived scores that depend on the changed fields.
func MergeWorkout(metric DailyMetric, workout WorkoutImport) DailyMetric {
	metric.Calories += workout.Calories

	activityMinutes := workout.ActivityMinutes
	if metric.ActivityMinutes != nil {
		activityMinutes += *metric.ActivityMinutes
	}
	if activityMinutes > 0 {
		metric.ActivityMinutes = intPtr(activityMinutes)
		metric.WorkoutIntensity = intPtr(WorkoutIntensity(activityMinutes, metric.Calories))
	}

	if workout.MinHeartRate != nil {
		if metric.RestingHeartRate == nil || *workout.MinHeartRate < *metric.RestingHeartRate {
			metric.RestingHeartRate = workout.MinHeartRate
		}
		metric.RecoveryScore = intPtr(RecoveryScore(*metric.RestingHeartRate))
		if metric.HRV == nil {
			metric.HRV = intPtr(EstimateHRV(*metric.RestingHeartRate))
		}
	}

	return metric
}
