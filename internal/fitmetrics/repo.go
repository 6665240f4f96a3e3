package fitmetrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrMetricNotFound = errors.New("metric not found")

const metricColumns = `
	id, user_id, date, steps, calories, rhr, hrv,
	total_sleep_minutes, deep_sleep_minutes, sleep_score, recovery_score,
	workout_intensity, activity_minutes, protein, carbs, fats,
	created_at, updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Upsert stores the record, overwriting an existing one for the same
// (user, date). This is the idempotence boundary of the sync pipeline:
// re-running a sync converges to the same stored state.
func (r *Repo) Upsert(ctx context.Context, metric DailyMetric) (_ DailyMetric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.fitmetrics.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(ctx, `
		INSERT INTO fitness_metric (
			user_id, date, steps, calories, rhr, hrv,
			total_sleep_minutes, deep_sleep_minutes, sleep_score, recovery_score,
			workout_intensity, activity_minutes, protein, carbs, fats
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, date) DO UPDATE SET
			steps = EXCLUDED.steps,
			calories = EXCLUDED.calories,
			rhr = EXCLUDED.rhr,
			hrv = EXCLUDED.hrv,
			total_sleep_minutes = EXCLUDED.total_sleep_minutes,
			deep_sleep_minutes = EXCLUDED.deep_sleep_minutes,
			sleep_score = EXCLUDED.sleep_score,
			recovery_score = EXCLUDED.recovery_score,
			workout_intensity = EXCLUDED.workout_intensity,
			activity_minutes = EXCLUDED.activity_minutes,
			protein = EXCLUDED.protein,
			carbs = EXCLUDED.carbs,
			fats = EXCLUDED.fats,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		metric.UserID, metric.Date, metric.Steps, metric.Calories,
		metric.RestingHeartRate, metric.HRV,
		metric.TotalSleepMinutes, metric.DeepSleepMinutes,
		metric.SleepScore, metric.RecoveryScore,
		metric.WorkoutIntensity, metric.ActivityMinutes,
		metric.Protein, metric.Carbs, metric.Fats,
	)

	var createdAt, updatedAt time.Time
	if err = row.Scan(&metric.ID, &createdAt, &updatedAt); err != nil {
		return DailyMetric{}, fmt.Errorf("scan: %w", err)
	}
	metric.CreatedAt = &createdAt
	metric.UpdatedAt = &updatedAt

	return metric, nil
}

// SaveAll runs each record through the single-record upsert. No batch
// transaction, per-record atomicity is enough for last-write-wins.
func (r *Repo) SaveAll(ctx context.Context, metrics []DailyMetric) (saved int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.fitmetrics.saveAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	for _, metric := range metrics {
		if _, err := r.Upsert(ctx, metric); err != nil {
			return saved, fmt.Errorf("upsert metric for %s: %w", metric.Date.Format(DateLayout), err)
		}
		saved++
	}
	return saved, nil
}

// List returns the user's last N daily records, oldest first.
func (r *Repo) List(ctx context.Context, userID string, days int) (_ []DailyMetric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.fitmetrics.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if days < 1 {
		return nil, fmt.Errorf("days must be greater than 0")
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+metricColumns+`
		FROM fitness_metric
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2`,
		userID, days,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var metrics []DailyMetric
	for rows.Next() {
		metric, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, metric)
	}

	// fetched newest-first for the limit, served oldest-first
	for i, j := 0, len(metrics)-1; i < j; i, j = i+1, j-1 {
		metrics[i], metrics[j] = metrics[j], metrics[i]
	}

	return metrics, nil
}

func (r *Repo) GetByDate(ctx context.Context, userID string, date time.Time) (_ DailyMetric, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.fitmetrics.getByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(ctx, `
		SELECT `+metricColumns+`
		FROM fitness_metric
		WHERE user_id = $1 AND date = $2`,
		userID, date,
	)

	metric, err := scanMetric(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DailyMetric{}, ErrMetricNotFound
	}
	if err != nil {
		return DailyMetric{}, err
	}
	return metric, nil
}

// LastSyncedAt returns the time of the user's most recent metric write,
// nil when nothing was synced yet.
func (r *Repo) LastSyncedAt(ctx context.Context, userID string) (_ *time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.fitmetrics.lastSyncedAt")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var lastSynced sql.NullTime
	row := r.db.QueryRow(ctx, `
		SELECT MAX(updated_at) FROM fitness_metric WHERE user_id = $1`,
		userID,
	)
	if err := row.Scan(&lastSynced); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if !lastSynced.Valid {
		return nil, nil
	}
	return &lastSynced.Time, nil
}

func scanMetric(row pgx.Row) (DailyMetric, error) {
	var metric DailyMetric
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&metric.ID, &metric.UserID, &metric.Date, &metric.Steps, &metric.Calories,
		&metric.RestingHeartRate, &metric.HRV,
		&metric.TotalSleepMinutes, &metric.DeepSleepMinutes,
		&metric.SleepScore, &metric.RecoveryScore,
		&metric.WorkoutIntensity, &metric.ActivityMinutes,
		&metric.Protein, &metric.Carbs, &metric.Fats,
		&createdAt, &updatedAt,
	); err != nil {
		return DailyMetric{}, fmt.Errorf("scan: %w", err)
	}
	metric.CreatedAt = &createdAt
	metric.UpdatedAt = &updatedAt
	return metric, nil
}
