// Package mutate provides lost-update-free field mutations for DynamoDB
// records without a distributed lock.
//
// A [Mutator] wraps a DynamoDB client with a compare-and-retry loop: each
// call reads the current item with strong consistency, applies the caller's
// mutation, and commits with a conditional write over the version attribute
// the snapshot was read at. A concurrent writer rejects the condition, the
// loop re-reads and retries, bounded by [Config.MaxAttempts].
//
// For any single key the sequence of successful writes is linearizable:
// every commit's precondition was the version of the immediately preceding
// value. Calls on different keys never interact.
//
// # Operations
//
//   - [Mutator.Apply] - arbitrary mutation of one record
//   - [Mutator.SetField] - set one field, creating the record if absent
//   - [Mutator.AddToField] - add to an integer field
//   - [Mutator.AddFloatToField] - add to a floating-point field
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrMissingBase] - mutation required an existing record
//   - [ErrTypeMismatch] - increment on an absent or non-numeric field
//   - [ErrOverflow] - integer increment would overflow int64
//   - [ErrContention] - retry budget exhausted under concurrent conflict
//   - [ErrTimeout] - caller's deadline expired before a commit
package mutate
