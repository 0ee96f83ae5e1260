package codec

import "fmt"

const (
	ReasonEmpty              = "empty record"
	ReasonMalformed          = "malformed record"
	ReasonMissingVersion     = "missing version"
	ReasonUnsupportedVersion = "unsupported version"
	ReasonSchema             = "schema mismatch"
	ReasonInvariant          = "invariant violated"
)

// DecodeError describes why a durable record could not be read.
// Stores recover from it by treating the record as an empty cart.
type DecodeError struct {
	Reason  string
	Version int
	Err     error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("decode cart record (v%d): %s: %v", e.Version, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode cart record (v%d): %s", e.Version, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }
