package repository

import "errors"

// ErrStaleVersion is returned when an optimistic update matched no row at the expected version.
var ErrStaleVersion = errors.New("stale version")
