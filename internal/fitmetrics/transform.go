package fitmetrics

import (
	"math"
	"strings"
	"time"

	"google.golang.org/api/fitness/v1"
)

// metricKind is the parsed identity of one aggregate dataset. Unknown data
// types map to kindUnknown and are skipped, so new upstream types cannot
// break the transform.
type metricKind int

const (
	kindUnknown metricKind = iota
	kindSteps
	kindCalories
	kindHeartRate
	kindHeartRateSummary
	kindHRVSummary
	kindSleepSegment
	kindActivitySegment
	kindActivitySummary
	kindNutrition
)

var dataTypeKinds = map[string]metricKind{
	"com.google.step_count.delta":       kindSteps,
	"com.google.calories.expended":      kindCalories,
	"com.google.heart_rate.bpm":         kindHeartRate,
	"com.google.heart_rate.summary":     kindHeartRateSummary,
	"com.google.heart_rate_variability": kindHRVSummary,
	"com.google.sleep.segment":          kindSleepSegment,
	"com.google.activity.segment":       kindActivitySegment,
	"com.google.activity.summary":       kindActivitySummary,
	"com.google.nutrition":              kindNutrition,
	"com.google.nutrition.summary":      kindNutrition,
}

// parseMetricKind extracts the data type from an aggregate data source ID,
// e.g. "derived:com.google.step_count.delta:com.google.android.gms:aggregated".
func parseMetricKind(dataSourceID string) metricKind {
	for _, part := range strings.Split(dataSourceID, ":") {
		if !strings.HasPrefix(part, "com.google.") {
			continue
		}
		if kind, ok := dataTypeKinds[part]; ok {
			return kind
		}
	}
	return kindUnknown
}

// sleep stage codes, per the sleep.segment data type
const sleepStageDeep = 4

// activity type codes recognized as exercise
var exerciseActivityCodes = map[int64]bool{
	1:  true, // biking
	7:  true, // walking
	8:  true, // running
	80: true, // strength training
	82: true, // swimming
}

// dayAccumulator folds one bucket's samples into per-day running values.
type dayAccumulator struct {
	steps    int
	calories float64

	minHeartRate *int
	hrv          *int

	totalSleepMinutes float64
	deepSleepMinutes  float64
	sawSleep          bool

	activityMinutes float64

	protein, carbs, fats float64
	sawNutrition         bool
}

// Transform walks the bucketed aggregate result and produces one canonical
// record per non-empty day. Days with no signal at all are dropped.
func Transform(buckets []*fitness.AggregateBucket, userID string) []DailyMetric {
	var metrics []DailyMetric
	for _, bucket := range buckets {
		date := time.UnixMilli(bucket.StartTimeMillis).UTC().Truncate(24 * time.Hour)

		var acc dayAccumulator
		for _, dataset := range bucket.Dataset {
			kind := parseMetricKind(dataset.DataSourceId)
			if kind == kindUnknown {
				continue
			}
			for _, point := range dataset.Point {
				acc.fold(kind, point)
			}
		}

		metric := acc.toMetric(userID, date)
		if metric.HasSignal() {
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

func (acc *dayAccumulator) fold(kind metricKind, point *fitness.DataPoint) {
	switch kind {
	case kindSteps:
		if len(point.Value) > 0 {
			acc.steps += int(point.Value[0].IntVal)
		}
	case kindCalories:
		if len(point.Value) > 0 {
			acc.calories += point.Value[0].FpVal
		}
	case kindHeartRate:
		if len(point.Value) > 0 {
			acc.foldHeartRate(point.Value[0].FpVal)
		}
	case kindHeartRateSummary:
		// summary points carry [average, max, min], prefer the minimum
		switch {
		case len(point.Value) > 2 && point.Value[2].FpVal > 0:
			acc.foldHeartRate(point.Value[2].FpVal)
		case len(point.Value) > 0 && point.Value[0].FpVal > 0:
			acc.foldHeartRate(point.Value[0].FpVal)
		}
	case kindHRVSummary:
		if len(point.Value) > 0 && point.Value[0].FpVal > 0 {
			acc.hrv = intPtr(int(math.Round(point.Value[0].FpVal)))
		}
	case kindSleepSegment:
		durationMin := pointDurationMinutes(point)
		acc.totalSleepMinutes += durationMin
		acc.sawSleep = true
		if len(point.Value) > 0 && point.Value[0].IntVal == sleepStageDeep {
			acc.deepSleepMinutes += durationMin
		}
	case kindActivitySegment:
		if len(point.Value) > 0 && exerciseActivityCodes[point.Value[0].IntVal] {
			acc.activityMinutes += pointDurationMinutes(point)
		}
	case kindActivitySummary:
		// summary points carry [activity type, duration millis, segment count]
		if len(point.Value) > 1 && exerciseActivityCodes[point.Value[0].IntVal] {
			acc.activityMinutes += float64(point.Value[1].IntVal) / 1000 / 60
		}
	case kindNutrition:
		acc.foldNutrition(point)
	}
}

// foldHeartRate keeps the running minimum as new samples arrive, the
// rest-state proxy used as RHR.
func (acc *dayAccumulator) foldHeartRate(bpm float64) {
	if bpm <= 0 {
		return
	}
	rounded := int(math.Round(bpm))
	if acc.minHeartRate == nil || rounded < *acc.minHeartRate {
		acc.minHeartRate = intPtr(rounded)
	}
}

func (acc *dayAccumulator) foldNutrition(point *fitness.DataPoint) {
	if len(point.Value) == 0 {
		return
	}
	for _, entry := range point.Value[0].MapVal {
		if entry.Value == nil {
			continue
		}
		switch entry.Key {
		case "protein":
			acc.protein += entry.Value.FpVal
			acc.sawNutrition = true
		case "carbs.total":
			acc.carbs += entry.Value.FpVal
			acc.sawNutrition = true
		case "fat.total":
			acc.fats += entry.Value.FpVal
			acc.sawNutrition = true
		}
	}
}

func pointDurationMinutes(point *fitness.DataPoint) float64 {
	if point.EndTimeNanos <= point.StartTimeNanos {
		return 0
	}
	return float64(point.EndTimeNanos-point.StartTimeNanos) / 1e9 / 60
}

func (acc *dayAccumulator) toMetric(userID string, date time.Time) DailyMetric {
	metric := DailyMetric{
		UserID:           userID,
		Date:             date,
		Steps:            acc.steps,
		Calories:         int(math.Round(acc.calories)),
		RestingHeartRate: acc.minHeartRate,
		HRV:              acc.hrv,
	}

	if acc.sawSleep {
		totalSleep := int(math.Round(acc.totalSleepMinutes))
		deepSleep := int(math.Round(acc.deepSleepMinutes))
		metric.TotalSleepMinutes = intPtr(totalSleep)
		metric.DeepSleepMinutes = intPtr(deepSleep)
		if totalSleep > 0 {
			metric.SleepScore = intPtr(SleepScore(totalSleep, deepSleep))
		}
	}

	if metric.RestingHeartRate != nil {
		metric.RecoveryScore = intPtr(RecoveryScore(*metric.RestingHeartRate))
		if metric.HRV == nil {
			metric.HRV = intPtr(EstimateHRV(*metric.RestingHeartRate))
		}
	}

	if acc.activityMinutes > 0 {
		activityMinutes := int(math.Round(acc.activityMinutes))
		metric.ActivityMinutes = intPtr(activityMinutes)
		metric.WorkoutIntensity = intPtr(WorkoutIntensity(activityMinutes, metric.Calories))
	} else if acc.steps > 0 {
		metric.WorkoutIntensity = intPtr(StepOnlyIntensity(acc.steps))
	}

	if acc.sawNutrition {
		metric.Protein = intPtr(int(math.Round(acc.protein)))
		metric.Carbs = intPtr(int(math.Round(acc.carbs)))
		metric.Fats = intPtr(int(math.Round(acc.fats)))
	} else if metric.Calories > 0 {
		macros := EstimateMacros(metric.Calories, metric.WorkoutIntensity)
		metric.Protein = intPtr(macros.Protein)
		metric.Carbs = intPtr(macros.Carbs)
		metric.Fats = intPtr(macros.Fats)
	}

	return metric
}
