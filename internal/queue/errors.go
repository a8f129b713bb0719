package queue

// PermanentError signals that a job handler's failure must not be retried: the broker marks the
// job FAILED on the first occurrence instead of spending its remaining attempt budget. Used by
// the fulfillment workers for failures a retry cannot fix, such as a receipt that no longer exists
// or the email worker's permanent classifications like invalid_email (§4.5).
type PermanentError struct {
	Err error
}

// Error implements error.
func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent job failure"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the worker loop will not retry the job it came from.
func Permanent(err error) PermanentError {
	return PermanentError{Err: err}
}
