// Package models defines the shared data types and string-tagged enumerations
// for the Growth Brain engine: metric events and alerts, experiments and
// variants, optimization actions, and configuration.
package models

import "errors"

// ErrValidation is the sentinel wrapped by every validation failure: unknown
// enum tags at deserialize, unknown experiment or template ids, bad configs.
// Callers test for it with errors.Is.
var ErrValidation = errors.New("validation failed")
