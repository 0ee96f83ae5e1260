// Package projection derives the read-only views cart fragments render.
// A projection recomputes from the durable cart when mounted and on every
// change notification; it never mutates the cart.
package projection

import (
	"context"
	"sync"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
)

// Source is the slice of the cart store a projection needs.
type Source interface {
	GetState(ctx context.Context) cart.Cart
	Subscribe(fn func()) (unsubscribe func())
}

type Projection[V any] struct {
	src      Source
	compute  func(cart.Cart) V
	onChange func(V)

	mu          sync.Mutex
	ctx         context.Context
	view        V
	mounted     bool
	unsubscribe func()
}

func newProjection[V any](src Source, compute func(cart.Cart) V, onChange func(V)) *Projection[V] {
	return &Projection[V]{src: src, compute: compute, onChange: onChange}
}

// Mount computes the first view and starts following change notifications.
// ctx is reused for every re-read until Unmount.
func (p *Projection[V]) Mount(ctx context.Context) V {
	p.mu.Lock()
	if p.mounted {
		v := p.view
		p.mu.Unlock()
		return v
	}
	p.mounted = true
	p.ctx = ctx
	p.mu.Unlock()

	v := p.refresh()
	unsubscribe := p.src.Subscribe(func() { p.refresh() })

	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	return v
}

func (p *Projection[V]) Unmount() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mounted = false
	p.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// View returns the last computed value.
func (p *Projection[V]) View() V {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *Projection[V]) refresh() V {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	v := p.compute(p.src.GetState(ctx))

	p.mu.Lock()
	p.view = v
	p.mu.Unlock()
	if p.onChange != nil {
		p.onChange(v)
	}
	return v
}
