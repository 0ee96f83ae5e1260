package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// migration rewrites the state payload of version N into version N+1.
type migration func(state json.RawMessage) (json.RawMessage, error)

// migrations is indexed by the version a record is read at.
var migrations = map[int]migration{
	0: migrateV0,
}

func migrate(version int, state json.RawMessage) (json.RawMessage, error) {
	if version < 0 || version > CurrentVersion {
		return nil, &DecodeError{Reason: ReasonUnsupportedVersion, Version: version}
	}
	for v := version; v < CurrentVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, &DecodeError{Reason: ReasonUnsupportedVersion, Version: version, Err: fmt.Errorf("no migration from v%d", v)}
		}
		next, err := step(state)
		if err != nil {
			return nil, &DecodeError{Reason: ReasonSchema, Version: version, Err: err}
		}
		state = next
	}
	return state, nil
}

// Version 0 is the record written by the original storefront:
// items are whole product objects keyed by "id", the panel flag is "isOpen",
// and prices may arrive as numeric strings.
type stateV0 struct {
	IsOpen    bool                         `json:"isOpen"`
	CartItems []map[string]json.RawMessage `json:"cartItems"`
}

func migrateV0(state json.RawMessage) (json.RawMessage, error) {
	if len(state) == 0 || string(state) == "null" {
		return nil, fmt.Errorf("missing state")
	}
	var in stateV0
	if err := json.Unmarshal(state, &in); err != nil {
		return nil, err
	}
	if in.CartItems == nil {
		return nil, fmt.Errorf("missing cartItems")
	}

	out := stateV1{IsOpenFlag: in.IsOpen, CartItems: make([]itemV1, 0, len(in.CartItems))}
	for i, raw := range in.CartItems {
		id, err := scalarString(raw["id"])
		if err != nil || id == "" {
			return nil, fmt.Errorf("item %d: bad id", i)
		}
		price, err := scalarAmount(raw["price"])
		if err != nil {
			return nil, fmt.Errorf("item %d: bad price: %w", i, err)
		}
		var qty int
		if err := json.Unmarshal(raw["quantity"], &qty); err != nil {
			return nil, fmt.Errorf("item %d: bad quantity: %w", i, err)
		}
		name, _ := scalarString(raw["name"])
		image, _ := scalarString(raw["image"])
		out.CartItems = append(out.CartItems, itemV1{
			ProductID: id,
			Name:      name,
			Image:     image,
			Price:     &price,
			Quantity:  qty,
		})
	}
	return json.Marshal(out)
}

// scalarString accepts a JSON string or number.
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// scalarAmount accepts a number or numeric string and rounds to a whole unit.
func scalarAmount(raw json.RawMessage) (int64, error) {
	s, err := scalarString(raw)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, fmt.Errorf("missing")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return int64(math.Round(f)), nil
}
