package artifacts

import "errors"

var (
	// ErrNotFound is returned when no record matches a key or kind.
	ErrNotFound = errors.New("artifact not found")

	// ErrWrongKind is returned when a key exists but holds an artifact of a
	// different kind than the operation expects. This is never recovered by
	// fallback; the caller passed a real but wrong reference.
	ErrWrongKind = errors.New("artifact kind mismatch")
)
