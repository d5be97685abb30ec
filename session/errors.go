package session

import "errors"

var (
	NotAuthenticatedErr = errors.New("no authenticated session")
	NoRefreshTokenErr   = errors.New("no refresh token available")
	SessionClosedErr    = errors.New("session closed while a call was in flight")
	RefreshFailedErr    = errors.New("refresh token rejected")
)

// SessionExpiredMessage is the notification surfaced when the refresh token
// is no longer viable and the user is forcibly logged out.
const SessionExpiredMessage = "Your session has expired. Please log in again."
