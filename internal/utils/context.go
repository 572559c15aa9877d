// Package utils provides general-purpose helper utilities used across
// different parts of the application: type-safe context keys, JWT session
// token generation and validation, and id generation.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
// Implements the fmt.Stringer interface.
func (c contextKey) String() string {
	return string(c)
}

// SessionIDCtxKey is the key used to store the authenticated session id in
// the request context. Set by the auth middleware after token validation.
var SessionIDCtxKey = contextKey("sessionID")

// GetSessionIDFromContext retrieves the authenticated session id from the
// context.
//
// Returns the session id and an ok flag:
//   - ok == true  — value is found and has the correct string type
//   - ok == false — value is missing or has an unexpected type
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionIDCtxKey).(string)
	return sessionID, ok
}
