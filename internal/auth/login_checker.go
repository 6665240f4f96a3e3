package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	redisClient *redis.Client
}

func NewLoginChecker(redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		redisClient: redisClient,
	}
}

// UserID resolves the session token to the logged-in user ID.
func (c *LoginChecker) UserID(ctx context.Context, token string) (string, error) {
	sessionKey := sessionKeyPrefix + token

	userID, err := c.redisClient.Get(ctx, sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}

	return userID, nil
}

func (c *LoginChecker) IsLogged(ctx context.Context, token string) (bool, error) {
	_, err := c.UserID(ctx, token)
	if errors.Is(err, ErrNotLoggedIn) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
