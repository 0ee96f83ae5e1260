// Package codec converts a cart to and from its durable record.
//
// The record layout is
//
//	{"state":{"isOpenFlag":false,"cartItems":[{"productId":"..","name":"..","image":"..","price":0,"quantity":1}]},"version":1}
//
// Decoding is fail-soft: anything unreadable becomes the empty cart.
// Older record versions are migrated forward before validation.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

const CurrentVersion = 1

var validate = validator.New()

type recordV1 struct {
	State   *stateV1 `json:"state" validate:"required"`
	Version *int     `json:"version" validate:"required"`
}

type stateV1 struct {
	IsOpenFlag bool     `json:"isOpenFlag"`
	CartItems  []itemV1 `json:"cartItems" validate:"required,dive"`
}

type itemV1 struct {
	ProductID string `json:"productId" validate:"required"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     *int64 `json:"price" validate:"required,gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// envelope is read first so the version can pick a migration path.
type envelope struct {
	State   json.RawMessage `json:"state"`
	Version *int            `json:"version"`
}

// Encode serializes c at CurrentVersion. Output is deterministic for equal carts.
func Encode(c cart.Cart) (string, error) {
	items := make([]itemV1, 0, len(c.Items))
	for _, it := range c.Items {
		price := it.Snapshot.Price
		items = append(items, itemV1{
			ProductID: it.ProductID,
			Name:      it.Snapshot.Name,
			Image:     it.Snapshot.Image,
			Price:     &price,
			Quantity:  it.Quantity,
		})
	}
	version := CurrentVersion
	raw, err := json.Marshal(recordV1{
		State:   &stateV1{IsOpenFlag: c.Open, CartItems: items},
		Version: &version,
	})
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(raw), nil
}

// Decode never fails: unreadable input yields the empty cart.
func Decode(text string) cart.Cart {
	c, err := Parse(text)
	if err != nil {
		return cart.Empty()
	}
	return c
}

// Parse is the strict form of Decode. Every failure is a *DecodeError.
func Parse(text string) (cart.Cart, error) {
	if text == "" {
		return cart.Empty(), &DecodeError{Reason: ReasonEmpty}
	}

	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return cart.Empty(), &DecodeError{Reason: ReasonMalformed, Err: err}
	}
	if env.Version == nil {
		return cart.Empty(), &DecodeError{Reason: ReasonMissingVersion}
	}
	version := *env.Version

	state, err := migrate(version, env.State)
	if err != nil {
		return cart.Empty(), err
	}

	rec := recordV1{Version: &version}
	if len(state) == 0 || string(state) == "null" {
		return cart.Empty(), &DecodeError{Reason: ReasonSchema, Version: version, Err: fmt.Errorf("missing state")}
	}
	rec.State = &stateV1{}
	if err := json.Unmarshal(state, rec.State); err != nil {
		return cart.Empty(), &DecodeError{Reason: ReasonMalformed, Version: version, Err: err}
	}
	if err := validate.Struct(rec); err != nil {
		return cart.Empty(), &DecodeError{Reason: ReasonSchema, Version: version, Err: err}
	}

	out := cart.Cart{Open: rec.State.IsOpenFlag}
	if len(rec.State.CartItems) > 0 {
		out.Items = make([]cart.LineItem, 0, len(rec.State.CartItems))
	}
	for _, it := range rec.State.CartItems {
		out.Items = append(out.Items, cart.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Snapshot: cart.Snapshot{
				Name:  it.Name,
				Image: it.Image,
				Price: *it.Price,
			},
		})
	}
	if err := out.Check(); err != nil {
		return cart.Empty(), &DecodeError{Reason: ReasonInvariant, Version: version, Err: err}
	}
	return out, nil
}
