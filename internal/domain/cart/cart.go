package cart

// Snapshot holds the display fields captured when a product first enters the cart.
// Price is the unit price in the smallest currency unit.
type Snapshot struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Price int64  `json:"price"`
}

type LineItem struct {
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Snapshot  Snapshot `json:"snapshot"`
}

func (li LineItem) Subtotal() int64 {
	return li.Snapshot.Price * int64(li.Quantity)
}

// Cart is the aggregate persisted under a visitor's record key.
// Items keep insertion order and ProductID is unique.
type Cart struct {
	Items []LineItem `json:"items"`
	Open  bool       `json:"isOpenFlag"`
}

func Empty() Cart { return Cart{} }

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// TotalCount is the sum of quantities; badges only ever see this number.
func (c Cart) TotalCount() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

func (c Cart) TotalAmount() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.Subtotal()
	}
	return total
}

func (c Cart) Find(productID string) (LineItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

func (c Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	out := Cart{Open: c.Open}
	if len(c.Items) > 0 {
		out.Items = make([]LineItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

// Equal compares carts by content; a nil and an empty item list are equal.
func (c Cart) Equal(other Cart) bool {
	if c.Open != other.Open || len(c.Items) != len(other.Items) {
		return false
	}
	for i := range c.Items {
		if c.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

// Check reports the first invariant violation in c, or nil.
func (c Cart) Check() error {
	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		if it.ProductID == "" {
			return &InvariantError{Reason: "empty product id"}
		}
		if it.Quantity < 1 {
			return &InvariantError{ProductID: it.ProductID, Reason: "quantity below 1"}
		}
		if it.Snapshot.Price < 0 {
			return &InvariantError{ProductID: it.ProductID, Reason: "negative price"}
		}
		if _, dup := seen[it.ProductID]; dup {
			return &InvariantError{ProductID: it.ProductID, Reason: "duplicate product id"}
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}
