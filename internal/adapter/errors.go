package adapter

import "errors"

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("access denied")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionGone         = errors.New("session expired")
	ErrSessionFull         = errors.New("session connection limit reached")
	ErrInternalServerError = errors.New("internal server error")
)
