package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/vitalsync/pkg"

	"github.com/go-redis/redis/v8"
)

const (
	// AuthTokenHeader carries the session token on authenticated requests.
	AuthTokenHeader = "X-VS-TOKEN"

	// SessionDefaultTTL is how long a login session stays valid.
	SessionDefaultTTL = 24 * 7 * time.Hour
	// LoginTokenTTL is how long a magic login link stays usable.
	LoginTokenTTL = 15 * time.Minute

	sessionKeyPrefix    = "vs-session||"
	loginTokenKeyPrefix = "vs-login-token||"
)

var (
	ErrLoginTokenNotFound = errors.New("login token not found or expired")
	ErrNotLoggedIn        = errors.New("not logged in")
)

type Admin struct {
	Username     string
	PasswordHash string
}

// Service issues magic-link login tokens and sessions. Both live in redis
// with a native expiry, so stale entries vanish without a sweeper and the
// store can be swapped for another expiring key-value backend.
type Service struct {
	redisClient *redis.Client
	sessionTTL  time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
}

func NewService(sessionTTL time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		redisClient:    redisClient,
		sessionTTL:     sessionTTL,
		RandStringFunc: pkg.GenerateRandomString,
	}
}

// NewLoginToken creates a short-lived token for the magic login link.
func (as *Service) NewLoginToken(ctx context.Context, email string) (string, error) {
	token, err := as.RandStringFunc(32)
	if err != nil {
		return "", err
	}

	tokenKey := loginTokenKeyPrefix + token
	if err := as.redisClient.Set(ctx, tokenKey, email, LoginTokenTTL).Err(); err != nil {
		return "", fmt.Errorf("store login token: %w", err)
	}

	return token, nil
}

// VerifyLoginToken resolves the login token to the email it was issued for
// and invalidates it, so each magic link can be used only once.
func (as *Service) VerifyLoginToken(ctx context.Context, token string) (string, error) {
	tokenKey := loginTokenKeyPrefix + token

	email, err := as.redisClient.Get(ctx, tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLoginTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get login token: %w", err)
	}

	if err := as.redisClient.Del(ctx, tokenKey).Err(); err != nil {
		return "", fmt.Errorf("invalidate login token: %w", err)
	}

	return email, nil
}

// NewSession creates a session token for the given user.
func (as *Service) NewSession(ctx context.Context, userID string) (string, error) {
	token, err := as.RandStringFunc(35)
	if err != nil {
		return "", err
	}

	sessionKey := sessionKeyPrefix + token
	if err := as.redisClient.Set(ctx, sessionKey, userID, as.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

// Logout removes the session. Returns false if there was no such session.
func (as *Service) Logout(ctx context.Context, token string) (bool, error) {
	sessionKey := sessionKeyPrefix + token
	removed, err := as.redisClient.Del(ctx, sessionKey).Result()
	if err != nil {
		return false, fmt.Errorf("remove session: %w", err)
	}
	return removed > 0, nil
}
