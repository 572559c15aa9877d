package http

import "errors"

// Authorization errors surfaced by the session-token middleware.
var (
	ErrEmptyAuthorizationHeader   = errors.New("empty Authorization header")
	ErrInvalidAuthorizationHeader = errors.New("invalid Authorization header")
	ErrEmptyToken                 = errors.New("empty bearer token")
)
