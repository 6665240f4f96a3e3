package googlefit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokensRepoMock struct {
	mu      sync.Mutex
	records map[string]TokenRecord
}

func newTokensRepoMock() *tokensRepoMock {
	return &tokensRepoMock{records: map[string]TokenRecord{}}
}

func (m *tokensRepoMock) Get(_ context.Context, userID string) (TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return TokenRecord{}, ErrNoToken
	}
	return rec, nil
}

func (m *tokensRepoMock) UpdateAccess(_ context.Context, userID, accessToken string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return ErrNoToken
	}
	rec.AccessToken = accessToken
	rec.ExpiresAt = expiresAt
	m.records[userID] = rec
	return nil
}

func TestProvider_GetValidAccessToken_stillValid(t *testing.T) {
	tokensRepo := newTokensRepoMock()
	tokensRepo.records["user@test.com"] = TokenRecord{
		UserID:      "user@test.com",
		AccessToken: "valid-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}

	provider := NewProvider(NewOAuthConfig("cid", "csecret", "http://localhost/cb"), tokensRepo)
	token, err := provider.GetValidAccessToken(context.Background(), "user@test.com")
	require.NoError(t, err)
	assert.Equal(t, "valid-access-token", token)
}

func TestProvider_GetValidAccessToken_noToken(t *testing.T) {
	provider := NewProvider(NewOAuthConfig("cid", "csecret", "http://localhost/cb"), newTokensRepoMock())
	_, err := provider.GetValidAccessToken(context.Background(), "user@test.com")
	require.ErrorIs(t, err, ErrNoToken)
}

func TestProvider_GetValidAccessToken_noRefreshToken(t *testing.T) {
	tokensRepo := newTokensRepoMock()
	tokensRepo.records["user@test.com"] = TokenRecord{
		UserID:      "user@test.com",
		AccessToken: "expired-access-token",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}

	provider := NewProvider(NewOAuthConfig("cid", "csecret", "http://localhost/cb"), tokensRepo)
	_, err := provider.GetValidAccessToken(context.Background(), "user@test.com")
	require.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestProvider_GetValidAccessToken_refresh(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "the-refresh-token", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "refreshed-access-token", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer tokenServer.Close()

	tokensRepo := newTokensRepoMock()
	tokensRepo.records["user@test.com"] = TokenRecord{
		UserID:       "user@test.com",
		AccessToken:  "expired-access-token",
		RefreshToken: "the-refresh-token",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}

	oauthConfig := NewOAuthConfig("cid", "csecret", "http://localhost/cb")
	oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}

	provider := NewProvider(oauthConfig, tokensRepo)
	token, err := provider.GetValidAccessToken(context.Background(), "user@test.com")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access-token", token)

	// the refreshed token got persisted
	stored := tokensRepo.records["user@test.com"]
	assert.Equal(t, "refreshed-access-token", stored.AccessToken)
	assert.True(t, stored.ExpiresAt.After(time.Now()))
}

func TestProvider_GetValidAccessToken_refreshRejected(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer tokenServer.Close()

	tokensRepo := newTokensRepoMock()
	tokensRepo.records["user@test.com"] = TokenRecord{
		UserID:       "user@test.com",
		AccessToken:  "expired-access-token",
		RefreshToken: "stale-refresh-token",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}

	oauthConfig := NewOAuthConfig("cid", "csecret", "http://localhost/cb")
	oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}

	provider := NewProvider(oauthConfig, tokensRepo)
	_, err := provider.GetValidAccessToken(context.Background(), "user@test.com")
	require.ErrorIs(t, err, ErrRefreshFailed)
}
