package googlefit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/fitness/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const dayMillis = 24 * 60 * 60 * 1000

type accessTokenProvider interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}

// Client fetches bucketed daily fitness data from the Google Fit REST API.
type Client struct {
	tokenProvider accessTokenProvider
}

func NewClient(tokenProvider accessTokenProvider) *Client {
	return &Client{
		tokenProvider: tokenProvider,
	}
}

// FetchDaily returns one aggregate bucket per day in [start, end]. The
// primary metric types must succeed; activity and nutrition are fetched
// best-effort and merged into the same buckets, a failure there is only logged.
func (c *Client) FetchDaily(
	ctx context.Context,
	userID string,
	start, end time.Time,
) (_ []*fitness.AggregateBucket, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "googlefit.client.fetchDaily")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	accessToken, err := c.tokenProvider.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	fitnessService, err := fitness.NewService(ctx, option.WithTokenSource(
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
	))
	if err != nil {
		return nil, fmt.Errorf("create fitness service: %w", err)
	}

	startMillis := start.UnixMilli()
	endMillis := end.UnixMilli()

	primary, err := c.aggregate(ctx, fitnessService, startMillis, endMillis,
		"com.google.step_count.delta",
		"com.google.calories.expended",
		"com.google.heart_rate.bpm",
		"com.google.sleep.segment",
	)
	if err != nil {
		return nil, mapGoogleApiError(err)
	}

	secondary, err := c.aggregate(ctx, fitnessService, startMillis, endMillis,
		"com.google.activity.segment",
		"com.google.nutrition",
	)
	if err != nil {
		// optional metric types, some accounts have no source registered for them
		log.Warnf("google fit secondary fetch for [%s]: %s", userID, err)
		return primary, nil
	}

	return mergeBuckets(primary, secondary), nil
}

func (c *Client) aggregate(
	ctx context.Context,
	fitnessService *fitness.Service,
	startMillis, endMillis int64,
	dataTypes ...string,
) ([]*fitness.AggregateBucket, error) {
	aggregateBy := make([]*fitness.AggregateBy, 0, len(dataTypes))
	for _, dataType := range dataTypes {
		aggregateBy = append(aggregateBy, &fitness.AggregateBy{DataTypeName: dataType})
	}

	resp, err := fitnessService.Users.Dataset.
		Aggregate("me", &fitness.AggregateRequest{
			AggregateBy:     aggregateBy,
			BucketByTime:    &fitness.BucketByTime{DurationMillis: dayMillis},
			StartTimeMillis: startMillis,
			EndTimeMillis:   endMillis,
		}).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	return resp.Bucket, nil
}

// mergeBuckets folds the secondary buckets' datasets into the primary
// buckets with the same start time.
func mergeBuckets(primary, secondary []*fitness.AggregateBucket) []*fitness.AggregateBucket {
	byStart := make(map[int64]*fitness.AggregateBucket, len(primary))
	for _, bucket := range primary {
		byStart[bucket.StartTimeMillis] = bucket
	}

	for _, bucket := range secondary {
		target, ok := byStart[bucket.StartTimeMillis]
		if !ok {
			primary = append(primary, bucket)
			continue
		}
		target.Dataset = append(target.Dataset, bucket.Dataset...)
	}

	return primary
}

func mapGoogleApiError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("google fit fetch: %w", err)
	}

	switch apiErr.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthExpired, apiErr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
	default:
		return fmt.Errorf("google fit fetch failed with code %d: %w", apiErr.Code, err)
	}
}
