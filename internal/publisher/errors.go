package publisher

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds drive both retry classification and reviewer-facing messages.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindNotReady
	KindAuth
	KindRateLimit
	KindFatal
)

// APIError is a decoded error payload from the publishing API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("publishing api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Kind classifies the error for retry and messaging decisions.
func (e *APIError) Kind() ErrorKind {
	switch e.Code {
	case "media_not_ready":
		return KindNotReady
	case "rate_limited":
		return KindRateLimit
	case "invalid_token", "token_expired", "permission_denied":
		return KindAuth
	}
	switch {
	case e.Status == http.StatusTooManyRequests:
		return KindRateLimit
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return KindAuth
	case e.Status >= 500:
		return KindTransient
	}
	return KindFatal
}

// IsNotReady reports the container-not-ready condition, the retryable signal
// of the publish phase.
func IsNotReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindNotReady
}

// IsAuthError reports invalid or expired credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindAuth
}

// IsRateLimited reports API throttling.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindRateLimit
}

// IsRetryable classifies errors for the retry policy: network failures,
// throttling, 5xx and the not-ready condition are retryable; auth and
// content-policy failures are not.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure without a decoded payload.
		return true
	}
	switch apiErr.Kind() {
	case KindTransient, KindNotReady, KindRateLimit:
		return true
	}
	return false
}

// UserMessage renders an error as reviewer-facing text, keeping credential
// and throttling failures distinguishable.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind() {
		case KindAuth:
			return "publishing failed: access token is invalid or expired"
		case KindRateLimit:
			return "publishing failed: rate limited by the platform, try again later"
		case KindNotReady:
			return "publishing failed: media container never became ready"
		}
	}
	return "publishing failed: " + err.Error()
}
