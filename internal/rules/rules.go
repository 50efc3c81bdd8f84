// Package rules holds the dispatch decision logic: expiry classification,
// tier selection, SLA deadlines, disposition and reason records. Every
// function is pure; callers pass the clock and the settings snapshot.
package rules

import "errors"

// ErrInvalidInput is returned for malformed arguments.
var ErrInvalidInput = errors.New("invalid rule input")
