package googlefit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRecord is the stored OAuth token state for one connected account.
type TokenRecord struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

type TokensRepo struct {
	db *pgxpool.Pool
}

func NewTokensRepo(db *pgxpool.Pool) *TokensRepo {
	return &TokensRepo{
		db: db,
	}
}

func (r *TokensRepo) Get(ctx context.Context, userID string) (_ TokenRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.googleFitTokens.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(ctx, `
		SELECT user_id, access_token, refresh_token, scope, expires_at
		FROM google_fit_token
		WHERE user_id = $1`,
		userID,
	)

	var rec TokenRecord
	err = row.Scan(&rec.UserID, &rec.AccessToken, &rec.RefreshToken, &rec.Scope, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRecord{}, ErrNoToken
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("scan: %w", err)
	}

	return rec, nil
}

// Save stores the token from a fresh consent flow. A reconnect overwrites
// the previous token, keeping the old refresh token if google omitted a new one.
func (r *TokensRepo) Save(ctx context.Context, rec TokenRecord) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.googleFitTokens.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `
		INSERT INTO google_fit_token (user_id, access_token, refresh_token, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE
				WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token
				ELSE google_fit_token.refresh_token
			END,
			scope = EXCLUDED.scope,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()`,
		rec.UserID, rec.AccessToken, rec.RefreshToken, rec.Scope, rec.ExpiresAt,
	)
	return err
}

// UpdateAccess stores a refreshed access token, leaving the refresh token intact.
func (r *TokensRepo) UpdateAccess(ctx context.Context, userID, accessToken string, expiresAt time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.googleFitTokens.updateAccess")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `
		UPDATE google_fit_token SET
			access_token = $1,
			expires_at = $2,
			updated_at = now()
		WHERE user_id = $3`,
		accessToken, expiresAt, userID,
	)
	if err != nil {
		return fmt.Errorf("update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoToken
	}
	return nil
}

func (r *TokensRepo) Delete(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.googleFitTokens.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `DELETE FROM google_fit_token WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
