package repository

import "errors"

// ErrNotFound is returned when a referenced row does not exist. Callers match
// it with errors.Is and translate it to a 404 at the HTTP boundary.
var ErrNotFound = errors.New("record not found")
