package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/coocood/freecache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrInsightNotFound = errors.New("insight not found")

const (
	cacheSizeBytes = 10 * 1024 * 1024

	// the dashboard polls the latest insight on every visit, a short
	// cache keeps those reads off the database
	latestInsightCacheExpireSeconds = 5 * 60
)

type Repo struct {
	db    *pgxpool.Pool
	cache *freecache.Cache
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db:    db,
		cache: freecache.NewCache(cacheSizeBytes),
	}
}

func latestCacheKey(userID string) []byte {
	return []byte("latest::" + userID)
}

// GetLatest returns the user's most recently generated insight, or
// ErrInsightNotFound when none was generated yet.
func (r *Repo) GetLatest(ctx context.Context, userID string) (_ Insight, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.insights.getLatest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := latestCacheKey(userID)
	if cachedBytes, err := r.cache.Get(cacheKey); err == nil {
		var insight Insight
		if err := json.Unmarshal(cachedBytes, &insight); err == nil {
			return insight, nil
		}
		log.Errorf("latest insight for [%s], unmarshal cached value: %s", userID, err)
	}

	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, content, insight_type, is_read, generated_at
		FROM insight
		WHERE user_id = $1
		ORDER BY generated_at DESC
		LIMIT 1`,
		userID,
	)

	var insight Insight
	err = row.Scan(
		&insight.ID, &insight.UserID, &insight.Content,
		&insight.InsightType, &insight.IsRead, &insight.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Insight{}, ErrInsightNotFound
	}
	if err != nil {
		return Insight{}, fmt.Errorf("scan: %w", err)
	}

	if insightBytes, err := json.Marshal(insight); err == nil {
		if err := r.cache.Set(cacheKey, insightBytes, latestInsightCacheExpireSeconds); err != nil {
			log.Errorf("latest insight for [%s], set cache: %s", userID, err)
		}
	}

	return insight, nil
}

func (r *Repo) Save(ctx context.Context, insight Insight) (_ Insight, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.insights.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if insight.InsightType == "" {
		insight.InsightType = "daily"
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO insight (user_id, content, insight_type, is_read)
		VALUES ($1, $2, $3, $4)
		RETURNING id, generated_at`,
		insight.UserID, insight.Content, insight.InsightType, insight.IsRead,
	)
	if err = row.Scan(&insight.ID, &insight.GeneratedAt); err != nil {
		if pkg.IsForeignKeyViolationError(err) {
			return Insight{}, fmt.Errorf("unknown user: %s", insight.UserID)
		}
		return Insight{}, fmt.Errorf("scan: %w", err)
	}

	// a fresh insight replaces the cached latest one
	r.cache.Del(latestCacheKey(insight.UserID))

	return insight, nil
}

func (r *Repo) MarkRead(ctx context.Context, userID string, insightID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.insights.markRead")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `
		UPDATE insight SET is_read = TRUE
		WHERE id = $1 AND user_id = $2`,
		insightID, userID,
	)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsightNotFound
	}

	r.cache.Del(latestCacheKey(userID))

	return nil
}
