package dao

import "errors"

// Sentinel errors shared by every store. Callers detect conditions with
// errors.Is; implementations wrap them with the offending id.

var (
	// ErrNotFound is returned when the requested task, session or key does not exist.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrAlreadyExists is returned when creating an entity whose id is taken.
	ErrAlreadyExists = errors.New("dao: already exists")

	// ErrAlreadyCancelled is returned when cancelling a cancelled session.
	ErrAlreadyCancelled = errors.New("dao: session already cancelled")

	// ErrClaimConflict is returned when another attempt holds a live dispatch.
	ErrClaimConflict = errors.New("dao: dispatch already claimed")
)
