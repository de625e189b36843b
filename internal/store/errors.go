package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateIdentity is returned when a create collides with an existing
// email or username.
var ErrDuplicateIdentity = errors.New("email or username already taken")
