package store

import "fmt"

// WriteError reports that a mutation could not be persisted.
// The durable record is left exactly as it was before the call.
type WriteError struct {
	Op  string
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cart %s: write %s: %v", e.Op, e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
