package auth

import "errors"

// Token validation errors.
var (
	// ErrInvalidToken indicates the token is malformed or its signature does not match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token was valid but has expired.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrWrongTokenType indicates an access token was presented where a refresh
	// token was required, or the reverse.
	ErrWrongTokenType = errors.New("token type does not match the requested operation")

	// ErrMissingToken indicates a token was expected but not provided.
	ErrMissingToken = errors.New("authentication token is missing")
)
