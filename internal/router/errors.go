package router

import "errors"

// Validation errors. These are terminal: they are returned to the caller
// immediately and never reach the backend.
var (
	// ErrUnknownTool is returned for a tool name outside the four groups.
	ErrUnknownTool = errors.New("unsupported tool")

	// ErrUnknownOperation is returned for an operation the tool's group
	// does not declare.
	ErrUnknownOperation = errors.New("unsupported operation")

	// ErrMissingArgument is returned when a required argument is absent.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrBadArgument is returned when an argument has the wrong type or is
	// out of range.
	ErrBadArgument = errors.New("invalid argument")

	// ErrMissingRegion is returned when an operation needs a region and
	// neither a region nor coordinates were supplied.
	ErrMissingRegion = errors.New("operation requires a region or coordinates")
)
