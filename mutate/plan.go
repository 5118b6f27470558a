package mutate

// step is the decision taken after a conditional write was rejected.
type step int

const (
	// stepRetry re-reads the record and attempts the write again.
	stepRetry step = iota

	// stepFailContention surfaces ErrContention to the caller.
	stepFailContention

	// stepFailTimeout surfaces ErrTimeout to the caller.
	stepFailTimeout
)

// nextStep decides how the loop proceeds after the conditional write of the
// given 1-based attempt was rejected. Kept free of I/O so the retry policy
// is testable without a live table.
func nextStep(attempt, maxAttempts int, ctxErr error) step {
	if ctxErr != nil {
		return stepFailTimeout
	}
	if attempt >= maxAttempts {
		return stepFailContention
	}
	return stepRetry
}

// addInt64 adds two int64 values, reporting false on overflow in either
// direction.
func addInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
