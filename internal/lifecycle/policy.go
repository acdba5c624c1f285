package lifecycle

import "fmt"

// RetryPolicy bounds the total number of dispatch attempts per reminder.
// Every attempt counts, successful or not.
type RetryPolicy struct {
	MaxAttempts int
}

func NewRetryPolicy(maxAttempts int) (RetryPolicy, error) {
	if maxAttempts <= 0 {
		return RetryPolicy{}, fmt.Errorf("max attempts must be > 0, got %d", maxAttempts)
	}
	return RetryPolicy{MaxAttempts: maxAttempts}, nil
}

// Exhausted reports whether a reminder that has made attempts dispatches
// may not be tried again.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

func (p RetryPolicy) Remaining(attempts int) int {
	if r := p.MaxAttempts - attempts; r > 0 {
		return r
	}
	return 0
}
