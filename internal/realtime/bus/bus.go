// Package bus carries cart change notices between processes that share a
// record store.
package bus

import (
	"context"
)

// ChangeNotice says the record under Key was rewritten by the process Origin.
type ChangeNotice struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

type Bus interface {
	Publish(ctx context.Context, notice ChangeNotice) error
	StartForwarder(ctx context.Context, onNotice func(n ChangeNotice)) error
	Close() error
}
