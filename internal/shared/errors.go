package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrAuthPending      = fmt.Errorf("device authorization pending")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrNotFound           = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// IsAuthError reports whether err should be treated as an authentication
// failure: either it wraps one of the auth sentinels or its message carries
// recognizable unauthorized/expiry phrasing from a provider response body.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	for _, sentinel := range []error{ErrUnauthorized, ErrTokenExpired, ErrNotAuthenticated} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"401", "unauthorized", "token expired", "invalid access token"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
