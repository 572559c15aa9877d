package interpreter

import "errors"

// ErrNoBaseSchema is returned when an incremental update arrives before any
// full schema has been applied. The caller should request a full reload.
var ErrNoBaseSchema = errors.New("no base schema for incremental update")
