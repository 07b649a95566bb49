package models

import "errors"

var (
	// ErrRecordNotFound is returned when a lookup by identity matches nothing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned by the store when an insert collides with an
	// existing identity. Callers retrying a sweep treat it as success.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrUnknownStatus is returned when a stored status value is not part of
	// the closed set for its entity.
	ErrUnknownStatus = errors.New("unknown status")
)
