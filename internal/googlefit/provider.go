package googlefit

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested on connect. Activity and heart rate feed the sync
// pipeline, sleep and nutrition enrich it, body is for future weight data.
var Scopes = []string{
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
	"https://www.googleapis.com/auth/fitness.nutrition.read",
	"https://www.googleapis.com/auth/fitness.body.read",
}

func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

type tokensRepo interface {
	Get(ctx context.Context, userID string) (TokenRecord, error)
	UpdateAccess(ctx context.Context, userID, accessToken string, expiresAt time.Time) error
}

// Provider supplies a valid bearer token for the fitness API, refreshing
// and persisting it when the stored one expired.
type Provider struct {
	oauthConfig *oauth2.Config
	tokensRepo  tokensRepo
}

func NewProvider(oauthConfig *oauth2.Config, tokensRepo tokensRepo) *Provider {
	return &Provider{
		oauthConfig: oauthConfig,
		tokensRepo:  tokensRepo,
	}
}

func (p *Provider) GetValidAccessToken(ctx context.Context, userID string) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "googlefit.provider.getValidAccessToken")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rec, err := p.tokensRepo.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if rec.ExpiresAt.After(time.Now()) {
		return rec.AccessToken, nil
	}

	if rec.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	tokenSource := p.oauthConfig.TokenSource(ctx, &oauth2.Token{
		RefreshToken: rec.RefreshToken,
	})
	newToken, err := tokenSource.Token()
	if err != nil {
		log.Errorf("google fit token refresh for [%s]: %s", userID, err)
		return "", fmt.Errorf("%w: %s", ErrRefreshFailed, err)
	}

	if err := p.tokensRepo.UpdateAccess(ctx, userID, newToken.AccessToken, newToken.Expiry); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}

	return newToken.AccessToken, nil
}
