package mutate

import "errors"

var (
	// ErrMissingBase is returned when a mutation requires an existing record
	// but no record was found under the key. Never retried.
	ErrMissingBase = errors.New("plinth: record not found for mutation requiring a base")

	// ErrTypeMismatch is returned when a numeric mutation targets a field
	// that is absent or holds an incompatible type. Never retried.
	ErrTypeMismatch = errors.New("plinth: field type incompatible with mutation")

	// ErrOverflow is returned when an integer increment would overflow int64.
	ErrOverflow = errors.New("plinth: integer field overflow")

	// ErrContention is returned when the retry budget is exhausted because
	// concurrent writers kept winning the conditional write.
	ErrContention = errors.New("plinth: retry budget exhausted under write contention")

	// ErrTimeout is returned when the caller's deadline expired before a
	// write committed. Distinct from ErrContention so callers can retry at
	// a higher level.
	ErrTimeout = errors.New("plinth: deadline exceeded before mutation committed")
)
