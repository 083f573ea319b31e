package apperrors

import "errors"

// Decision core errors
var (
	ErrInvalidRiskParameters = errors.New("invalid risk parameters")
	ErrMaxPositionsReached   = errors.New("max positions reached")
	ErrUnknownPosition       = errors.New("unknown position")
	ErrDuplicatePosition     = errors.New("duplicate position")
	ErrInvalidPosition       = errors.New("invalid position")
	ErrInvalidState          = errors.New("invalid state")
	ErrLowConfidence         = errors.New("signal confidence below threshold")
	ErrCircuitOpen           = errors.New("risk circuit breaker open")
	ErrPositionTooLarge      = errors.New("position cost exceeds allowance")
)

// Venue errors
var (
	ErrVenueUnavailable     = errors.New("venue unavailable")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNoVenue              = errors.New("no venue quotes symbol")
	ErrInvalidSymbol        = errors.New("invalid symbol")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
)
