package googlefit

import "errors"

var (
	// ErrNoToken - the user never connected their Google Fit account.
	ErrNoToken = errors.New("no google fit token found")
	// ErrNoRefreshToken - the stored token expired and cannot be refreshed.
	ErrNoRefreshToken = errors.New("refresh token not available")
	// ErrRefreshFailed - the refresh token was rejected by google.
	ErrRefreshFailed = errors.New("google fit token refresh failed")
	// ErrAuthExpired - google rejected the access token (HTTP 401).
	ErrAuthExpired = errors.New("google fit authorization expired")
	// ErrForbidden - google rejected the request for missing scope/consent (HTTP 403).
	ErrForbidden = errors.New("google fit access forbidden")
)
