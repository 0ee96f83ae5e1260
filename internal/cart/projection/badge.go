package projection

import (
	"strconv"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

// BadgeCap is the largest count shown verbatim.
const BadgeCap = 99

type BadgeView struct {
	Count   int    `json:"count"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
}

func FormatBadge(count int) string {
	if count > BadgeCap {
		return strconv.Itoa(BadgeCap) + "+"
	}
	return strconv.Itoa(count)
}

func BadgeOf(c cart.Cart) BadgeView {
	n := c.TotalCount()
	return BadgeView{Count: n, Label: FormatBadge(n), Visible: n > 0}
}

type Badge = Projection[BadgeView]

func NewBadge(src Source, onChange func(BadgeView)) *Badge {
	return newProjection(src, BadgeOf, onChange)
}
