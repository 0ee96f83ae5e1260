package cart

import "fmt"

const (
	ReasonMissingProduct   = "missing product id"
	ReasonNonPositiveQty   = "quantity must be positive"
	ReasonUnknownProduct   = "product not in cart"
	ReasonNegativePrice    = "price must not be negative"
	ReasonQuantityOverflow = "quantity too large"
	ReasonUnstorable       = "result would not be storable"
)

// ValidationError marks a request that leaves the cart untouched.
// Callers treat it as a no-op rather than a failure.
type ValidationError struct {
	Op        string
	ProductID string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.ProductID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.ProductID, e.Reason)
}

type InvariantError struct {
	ProductID string
	Reason    string
}

func (e *InvariantError) Error() string {
	if e == nil {
		return ""
	}
	if e.ProductID == "" {
		return "cart invariant: " + e.Reason
	}
	return fmt.Sprintf("cart invariant: %s (%s)", e.Reason, e.ProductID)
}
