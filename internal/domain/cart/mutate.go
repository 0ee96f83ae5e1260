package cart

import (
	"math"
	"strings"
)

const (
	OpAdd         = "add_item"
	OpSetQuantity = "set_quantity"
	OpRemove      = "remove_item"
	OpClear       = "clear"
	OpSetPanel    = "set_panel_open"
)

// AddItem merges quantity into an existing line or appends a new one.
// An existing line keeps the snapshot captured at first insertion.
func AddItem(c Cart, productID string, snap Snapshot, quantity int) (Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return c, &ValidationError{Op: OpAdd, Reason: ReasonMissingProduct}
	}
	if quantity <= 0 {
		return c, &ValidationError{Op: OpAdd, ProductID: productID, Reason: ReasonNonPositiveQty}
	}
	out := c.Clone()
	if i := out.indexOf(productID); i >= 0 {
		if out.Items[i].Quantity > math.MaxInt-quantity {
			return c, &ValidationError{Op: OpAdd, ProductID: productID, Reason: ReasonQuantityOverflow}
		}
		out.Items[i].Quantity += quantity
		return out, nil
	}
	if snap.Price < 0 {
		return c, &ValidationError{Op: OpAdd, ProductID: productID, Reason: ReasonNegativePrice}
	}
	out.Items = append(out.Items, LineItem{ProductID: productID, Quantity: quantity, Snapshot: snap})
	return out, nil
}

// SetQuantity sets a line's quantity directly; quantity <= 0 removes the line.
func SetQuantity(c Cart, productID string, quantity int) (Cart, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return c, &ValidationError{Op: OpSetQuantity, ProductID: productID, Reason: ReasonUnknownProduct}
	}
	if quantity <= 0 {
		return removeAt(c, i), nil
	}
	out := c.Clone()
	out.Items[i].Quantity = quantity
	return out, nil
}

func RemoveItem(c Cart, productID string) (Cart, error) {
	i := c.indexOf(productID)
	if i < 0 {
		return c, &ValidationError{Op: OpRemove, ProductID: productID, Reason: ReasonUnknownProduct}
	}
	return removeAt(c, i), nil
}

// Clear drops every line and keeps the panel flag.
func Clear(c Cart) Cart {
	return Cart{Open: c.Open}
}

func SetPanelOpen(c Cart, open bool) Cart {
	out := c.Clone()
	out.Open = open
	return out
}

func removeAt(c Cart, i int) Cart {
	out := Cart{Open: c.Open}
	if len(c.Items) > 1 {
		out.Items = make([]LineItem, 0, len(c.Items)-1)
		out.Items = append(out.Items, c.Items[:i]...)
		out.Items = append(out.Items, c.Items[i+1:]...)
	}
	return out
}
