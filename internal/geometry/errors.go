package geometry

import "errors"

var (
	// ErrPlaceNotFound is returned when every gazetteer tier missed. The
	// caller may retry with explicit coordinates instead.
	ErrPlaceNotFound = errors.New("place not found")

	// ErrBadCoordinates is returned when a coordinate argument is not a
	// point, bounding box or polygon ring list.
	ErrBadCoordinates = errors.New("invalid coordinates")

	// ErrEmptyQuery is returned when neither a place name nor coordinates
	// were supplied.
	ErrEmptyQuery = errors.New("geometry query requires a place name or coordinates")
)
