package projection

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

type LineView struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	UnitPrice     int64  `json:"unitPrice"`
	UnitPriceText string `json:"unitPriceText"`
	Quantity      int    `json:"quantity"`
	Subtotal      int64  `json:"subtotal"`
	SubtotalText  string `json:"subtotalText"`
}

type LineItemsView struct {
	Items      []LineView `json:"items"`
	TotalCount int        `json:"totalCount"`
	Total      int64      `json:"total"`
	TotalText  string     `json:"totalText"`
	Open       bool       `json:"isOpen"`
}

func LineItemsOf(c cart.Cart) LineItemsView {
	out := LineItemsView{
		Items:      make([]LineView, 0, len(c.Items)),
		TotalCount: c.TotalCount(),
		Total:      c.TotalAmount(),
		Open:       c.Open,
	}
	for _, it := range c.Items {
		sub := it.Subtotal()
		out.Items = append(out.Items, LineView{
			ProductID:     it.ProductID,
			Name:          it.Snapshot.Name,
			Image:         it.Snapshot.Image,
			UnitPrice:     it.Snapshot.Price,
			UnitPriceText: FormatIDR(it.Snapshot.Price),
			Quantity:      it.Quantity,
			Subtotal:      sub,
			SubtotalText:  FormatIDR(sub),
		})
	}
	out.TotalText = FormatIDR(out.Total)
	return out
}

type LineItems = Projection[LineItemsView]

func NewLineItems(src Source, onChange func(LineItemsView)) *LineItems {
	return newProjection(src, LineItemsOf, onChange)
}

// idr is read-only after construction; each Sprintf keeps its own state.
var idr = message.NewPrinter(language.Indonesian)

// FormatIDR renders an amount the way the storefront prices products,
// e.g. 15000 -> "Rp 15.000".
func FormatIDR(amount int64) string {
	return idr.Sprintf("Rp %d", amount)
}
