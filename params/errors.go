package params

import "errors"

var (
	// ErrNotFound is returned when the parameter does not exist in the
	// remote source. Never cached.
	ErrNotFound = errors.New("plinth: parameter not found")

	// ErrSourceUnavailable is returned on transport or service failure
	// while fetching. Never cached; the caller may retry.
	ErrSourceUnavailable = errors.New("plinth: parameter source unavailable")
)
