package repo

import "errors"

// ErrNotFound is returned when no live (non-expired) record exists.
var ErrNotFound = errors.New("not found")
