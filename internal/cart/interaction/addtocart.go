// Package interaction drives the add-to-cart button of a product card:
// Idle -> Submitting -> Success|Failure -> Idle, with a transient notice
// shown between the outcome and the return to Idle.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

type Phase int

const (
	Idle Phase = iota
	Submitting
	Success
	Failure
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// DefaultNoticeWindow matches the storefront toast timer.
const DefaultNoticeWindow = 3 * time.Second

var ErrBusy = errors.New("add to cart already in progress")

type Product struct {
	ID       string
	Snapshot cart.Snapshot
}

// Adder is the cart store operation the button calls.
type Adder interface {
	AddItem(ctx context.Context, productID string, snap cart.Snapshot, quantity int) (cart.Cart, error)
}

type Notice struct {
	Kind    Phase
	Message string
	Err     error
}

type State struct {
	Phase     Phase
	ProductID string
	Notice    *Notice
}

// Scheduler runs fn after d and returns a function that cancels it.
type Scheduler func(d time.Duration, fn func()) (cancel func())

func timerScheduler(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type Option func(*AddToCart)

func WithWindow(d time.Duration) Option {
	return func(a *AddToCart) {
		if d > 0 {
			a.window = d
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(a *AddToCart) {
		if s != nil {
			a.schedule = s
		}
	}
}

// WithObserver is called with every state transition, outside the lock.
func WithObserver(fn func(State)) Option {
	return func(a *AddToCart) { a.observer = fn }
}

func WithLogger(log *logger.Logger) Option {
	return func(a *AddToCart) {
		if log != nil {
			a.log = log.With("component", "AddToCart")
		}
	}
}

type AddToCart struct {
	adder    Adder
	window   time.Duration
	schedule Scheduler
	observer func(State)
	log      *logger.Logger

	mu     sync.Mutex
	state  State
	epoch  uint64
	cancel func()
}

func NewAddToCart(adder Adder, opts ...Option) *AddToCart {
	a := &AddToCart{
		adder:    adder,
		window:   DefaultNoticeWindow,
		schedule: timerScheduler,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AddToCart) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Submit adds quantity of p to the cart. A pending notice is dismissed first.
// Submit while another submit is running returns ErrBusy.
func (a *AddToCart) Submit(ctx context.Context, p Product, quantity int) error {
	a.mu.Lock()
	if a.state.Phase == Submitting {
		a.mu.Unlock()
		return ErrBusy
	}
	a.stopTimerLocked()
	a.epoch++
	a.state = State{Phase: Submitting, ProductID: p.ID}
	submitting := a.state
	a.mu.Unlock()
	a.emit(submitting)

	_, err := a.adder.AddItem(ctx, p.ID, p.Snapshot, quantity)

	var verr *cart.ValidationError
	if errors.As(err, &verr) {
		a.logDebug("add to cart ignored", "product_id", p.ID, "reason", verr.Reason)
		a.settle(State{Phase: Idle})
		return err
	}

	next := State{Phase: Success, ProductID: p.ID, Notice: &Notice{Kind: Success, Message: "Added to cart"}}
	if err != nil {
		next = State{Phase: Failure, ProductID: p.ID, Notice: &Notice{Kind: Failure, Message: "Could not update the cart", Err: err}}
	}

	a.mu.Lock()
	a.state = next
	epoch := a.epoch
	a.cancel = a.schedule(a.window, func() { a.expire(epoch) })
	a.mu.Unlock()
	a.emit(next)
	return err
}

// Dismiss returns to Idle immediately, as when the user closes the notice.
func (a *AddToCart) Dismiss() {
	a.mu.Lock()
	if a.state.Phase != Success && a.state.Phase != Failure {
		a.mu.Unlock()
		return
	}
	a.stopTimerLocked()
	a.epoch++
	a.state = State{Phase: Idle}
	a.mu.Unlock()
	a.emit(State{Phase: Idle})
}

func (a *AddToCart) expire(epoch uint64) {
	a.mu.Lock()
	if epoch != a.epoch || (a.state.Phase != Success && a.state.Phase != Failure) {
		a.mu.Unlock()
		return
	}
	a.cancel = nil
	a.state = State{Phase: Idle}
	a.mu.Unlock()
	a.emit(State{Phase: Idle})
}

func (a *AddToCart) settle(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.emit(s)
}

func (a *AddToCart) stopTimerLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *AddToCart) emit(s State) {
	if a.observer != nil {
		a.observer(s)
	}
}

func (a *AddToCart) logDebug(msg string, kv ...interface{}) {
	if a.log != nil {
		a.log.Debug(msg, kv...)
	}
}
