// Package store owns every mutation of a visitor's cart.
//
// Each operation reads the current durable record, applies the change,
// writes it back and only then notifies subscribers. Nothing is cached
// between calls, so fragments holding stale projections cannot clobber
// each other.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/storefront-cart/internal/cart/broadcast"
	"github.com/yungbote/storefront-cart/internal/cart/codec"
	"github.com/yungbote/storefront-cart/internal/domain/cart"
	"github.com/yungbote/storefront-cart/internal/platform/kvstore"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

const (
	OutcomeOK      = "ok"
	OutcomeNoop    = "noop"
	OutcomeFailure = "write_error"

	SignalCartUpdated = "cartUpdated"
	SignalOpenCart    = "openCart"
)

type Store struct {
	records   kvstore.Store
	key       string
	log       *logger.Logger
	metrics   Recorder
	publisher Publisher
	tracer    trace.Tracer

	// mu serializes read-apply-write so concurrent callers never lose updates.
	mu      sync.Mutex
	changes *broadcast.Signal
	open    *broadcast.Signal
}

func New(records kvstore.Store, key string, opts ...Option) (*Store, error) {
	if records == nil {
		return nil, fmt.Errorf("record store required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("record key required")
	}
	s := &Store{
		records: records,
		key:     key,
		metrics: nopRecorder{},
		tracer:  otel.Tracer("storefront-cart/store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		nop, err := logger.New("nop")
		if err != nil {
			return nil, err
		}
		s.log = nop
	}
	s.log = s.log.With("component", "CartStore", "record_key", key)
	s.changes = broadcast.New(SignalCartUpdated, s.log)
	s.open = broadcast.New(SignalOpenCart, s.log)
	return s, nil
}

func (s *Store) Key() string { return s.key }

// GetState returns the cart as currently persisted. Absent, unreadable or
// unreachable records all read as the empty cart.
func (s *Store) GetState(ctx context.Context) cart.Cart {
	c, err := s.read(ctx)
	if err != nil {
		s.log.Warn("cart record unavailable; serving empty cart", "error", err)
		return cart.Empty()
	}
	return c
}

func (s *Store) AddItem(ctx context.Context, productID string, snap cart.Snapshot, quantity int) (cart.Cart, error) {
	return s.mutate(ctx, cart.OpAdd, productID, func(c cart.Cart) (cart.Cart, error) {
		return cart.AddItem(c, productID, snap, quantity)
	})
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) (cart.Cart, error) {
	return s.mutate(ctx, cart.OpSetQuantity, productID, func(c cart.Cart) (cart.Cart, error) {
		return cart.SetQuantity(c, productID, quantity)
	})
}

func (s *Store) RemoveItem(ctx context.Context, productID string) (cart.Cart, error) {
	return s.mutate(ctx, cart.OpRemove, productID, func(c cart.Cart) (cart.Cart, error) {
		return cart.RemoveItem(c, productID)
	})
}

// Clear empties the cart, e.g. after checkout.
func (s *Store) Clear(ctx context.Context) (cart.Cart, error) {
	return s.mutate(ctx, cart.OpClear, "", func(c cart.Cart) (cart.Cart, error) {
		return cart.Clear(c), nil
	})
}

func (s *Store) SetPanelOpen(ctx context.Context, open bool) (cart.Cart, error) {
	return s.mutate(ctx, cart.OpSetPanel, "", func(c cart.Cart) (cart.Cart, error) {
		return cart.SetPanelOpen(c, open), nil
	})
}

// Subscribe registers fn to run after every successful mutation and after
// every change reported by another process. fn should re-read GetState.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// RequestOpen asks the cart panel to show itself. It does not touch the record.
func (s *Store) RequestOpen() {
	s.open.Notify()
}

func (s *Store) SubscribeOpen(fn func()) (unsubscribe func()) {
	return s.open.Subscribe(fn)
}

// ExternalChange re-notifies local subscribers after another process wrote
// the same record.
func (s *Store) ExternalChange() {
	s.log.Debug("cart record changed elsewhere")
	s.changes.Notify()
}

func (s *Store) mutate(ctx context.Context, op, productID string, fn func(cart.Cart) (cart.Cart, error)) (cart.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(
		attribute.String("cart.op", op),
		attribute.String("cart.product_id", productID),
	))
	defer span.End()
	start := time.Now()

	next, err := s.apply(ctx, op, fn)

	var verr *cart.ValidationError
	switch {
	case err == nil:
		s.metrics.ObserveMutation(op, OutcomeOK, time.Since(start))
	case errors.As(err, &verr):
		s.metrics.ObserveMutation(op, OutcomeNoop, time.Since(start))
		s.log.Debug("cart mutation ignored", "op", op, "product_id", productID, "reason", verr.Reason)
		span.SetAttributes(attribute.Bool("cart.noop", true))
		return next, err
	default:
		s.metrics.ObserveMutation(op, OutcomeFailure, time.Since(start))
		s.log.Warn("cart mutation failed", "op", op, "product_id", productID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "cart write failed")
		return next, err
	}

	s.changes.Notify()
	if s.publisher != nil {
		if perr := s.publisher.PublishChange(ctx, s.key); perr != nil {
			s.log.Warn("publish cart change failed", "op", op, "error", perr)
		}
	}
	return next, nil
}

func (s *Store) apply(ctx context.Context, op string, fn func(cart.Cart) (cart.Cart, error)) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		// Without the current value a write would clobber it.
		return cart.Empty(), &WriteError{Op: op, Key: s.key, Err: err}
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	// A record that fails decoding would read back as empty on the next access.
	if cerr := next.Check(); cerr != nil {
		verr := &cart.ValidationError{Op: op, Reason: cart.ReasonUnstorable}
		var ierr *cart.InvariantError
		if errors.As(cerr, &ierr) {
			verr.ProductID = ierr.ProductID
		}
		return current, verr
	}
	text, err := codec.Encode(next)
	if err != nil {
		return current, &WriteError{Op: op, Key: s.key, Err: err}
	}
	if err := s.records.Set(ctx, s.key, text); err != nil {
		return current, &WriteError{Op: op, Key: s.key, Err: err}
	}
	return next, nil
}

// read returns an error only when the backend itself fails.
func (s *Store) read(ctx context.Context) (cart.Cart, error) {
	text, err := s.records.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return cart.Empty(), nil
	}
	if err != nil {
		return cart.Empty(), err
	}
	c, err := codec.Parse(text)
	if err != nil {
		var derr *codec.DecodeError
		reason := "unknown"
		if errors.As(err, &derr) {
			reason = derr.Reason
		}
		s.metrics.ObserveDecodeFailure(reason)
		s.log.Warn("unreadable cart record; treating as empty", "reason", reason, "error", err)
		return cart.Empty(), nil
	}
	return c, nil
}
