package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Platform errors
	ErrAPIRequest            = fmt.Errorf("API request failed")
	ErrUnsupportedPlatform   = fmt.Errorf("unsupported platform")
	ErrConversionUnsupported = fmt.Errorf("cross-platform track conversion unsupported")
	ErrPlaylistNotFound      = fmt.Errorf("playlist not found")

	// Pipeline and datastore errors
	ErrPersistence      = fmt.Errorf("persistence failed")
	ErrNoSession        = fmt.Errorf("session not found")
	ErrSessionOpen      = fmt.Errorf("session has not ended")
	ErrTokenNotFound    = fmt.Errorf("submission token not found")
	ErrTokenAlreadyUsed = fmt.Errorf("submission token already used")
	ErrUserNotFound     = fmt.Errorf("user not found")
	ErrJobRunning       = fmt.Errorf("job already running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
