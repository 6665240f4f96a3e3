package fitmetrics

import (
	"context"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/metrics"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/fitness/v1"
)

type fetcher interface {
	FetchDaily(ctx context.Context, userID string, start, end time.Time) ([]*fitness.AggregateBucket, error)
}

type metricsStore interface {
	SaveAll(ctx context.Context, metrics []DailyMetric) (int, error)
}

type insightGenerator interface {
	GenerateDaily(ctx context.Context, userID string) (string, error)
}

// Syncer runs the sync pipeline: fetch bucketed upstream data, transform
// it into canonical records, upsert them, then generate an insight
// best-effort. One linear pass, no internal retries.
type Syncer struct {
	fetcher        fetcher
	store          metricsStore
	insights       insightGenerator
	metricsManager *metrics.Manager
}

func NewSyncer(
	fetcher fetcher,
	store metricsStore,
	insights insightGenerator,
	metricsManager *metrics.Manager,
) *Syncer {
	return &Syncer{
		fetcher:        fetcher,
		store:          store,
		insights:       insights,
		metricsManager: metricsManager,
	}
}

// Sync fetches, transforms and stores the user's data for [start, end] and
// returns the number of days persisted. Insight generation failure is
// logged and swallowed, metrics are already safely stored at that point.
func (s *Syncer) Sync(ctx context.Context, userID string, start, end time.Time) (synced int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitmetrics.syncer.sync")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	defer func(begin time.Time) {
		s.metricsManager.HistFitSyncDuration.Observe(time.Since(begin).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metricsManager.CounterFitSyncs.With(prometheus.Labels{"outcome": outcome}).Inc()
	}(time.Now())

	log.Debugf(
		"fit sync for [%s]: %s - %s",
		userID, start.Format(DateLayout), end.Format(DateLayout),
	)

	buckets, err := s.fetcher.FetchDaily(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}

	transformed := Transform(buckets, userID)
	synced, err = s.store.SaveAll(ctx, transformed)
	if err != nil {
		return synced, err
	}
	s.metricsManager.CounterSyncedDays.Add(float64(synced))

	log.Debugf("fit sync for [%s]: stored %d days", userID, synced)

	if _, insightErr := s.insights.GenerateDaily(ctx, userID); insightErr != nil {
		// the sync already succeeded, a missing insight must not fail it
		log.Errorf("fit sync for [%s], generate insight: %s", userID, insightErr)
	} else {
		s.metricsManager.CounterInsightsGenerated.Inc()
	}

	return synced, nil
}
