// Package storage holds the Postgres row stores consumed by the
// pipeline. Schema management lives elsewhere; these types only read
// and write rows.
package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")
