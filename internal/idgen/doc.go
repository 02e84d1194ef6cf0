// Package idgen produces opaque identifiers for dispatches, messages and
// replies. NewFunc can be replaced in tests for deterministic ids.
package idgen
