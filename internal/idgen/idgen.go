package idgen

import "github.com/google/uuid"

// NewFunc generates identifiers; override in tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier.
func New() string { return NewFunc() }
