package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/storefront-cart/internal/cart/projection"
	"github.com/yungbote/storefront-cart/internal/cart/store"
	"github.com/yungbote/storefront-cart/internal/platform/kvstore"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
	"github.com/yungbote/storefront-cart/internal/realtime"
	"github.com/yungbote/storefront-cart/internal/realtime/bus"
)

const DefaultKeyPrefix = "cart-storage"

// CartEvent is the payload pushed to a visitor's event stream on cartUpdated.
type CartEvent struct {
	Badge projection.BadgeView     `json:"badge"`
	Cart  projection.LineItemsView `json:"cart"`
}

// CartService resolves the Store for a visitor. A Store is shared by every
// caller holding a lease on it and dropped when the last lease is released,
// so cookie-less traffic does not accumulate Stores.
type CartService struct {
	log      *logger.Logger
	records  kvstore.Store
	prefix   string
	recorder store.Recorder
	hub      *realtime.SSEHub
	origin   string

	mu     sync.Mutex
	stores map[string]*lease
	bus    bus.Bus
}

type lease struct {
	st   *store.Store
	refs int
}

type CartServiceOption func(*CartService)

func WithKeyPrefix(prefix string) CartServiceOption {
	return func(cs *CartService) {
		if p := strings.TrimSpace(prefix); p != "" {
			cs.prefix = p
		}
	}
}

func WithRecorder(r store.Recorder) CartServiceOption {
	return func(cs *CartService) { cs.recorder = r }
}

// WithHub forwards every store's signals to the visitor's SSE channel.
func WithHub(hub *realtime.SSEHub) CartServiceOption {
	return func(cs *CartService) { cs.hub = hub }
}

func NewCartService(log *logger.Logger, records kvstore.Store, opts ...CartServiceOption) (*CartService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store required")
	}
	cs := &CartService{
		log:     log.With("service", "CartService"),
		records: records,
		prefix:  DefaultKeyPrefix,
		origin:  uuid.NewString(),
		stores:  make(map[string]*lease),
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs, nil
}

// Key is the durable record key for visitorID.
func (cs *CartService) Key(visitorID string) string {
	return cs.prefix + ":" + visitorID
}

func (cs *CartService) Origin() string { return cs.origin }

// Acquire returns visitorID's Store and a release func. Concurrent holders
// share one Store, so its mutation lock covers all of them. release is
// idempotent.
func (cs *CartService) Acquire(visitorID string) (*store.Store, func(), error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, nil, fmt.Errorf("visitor id required")
	}
	key := cs.Key(visitorID)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	l, ok := cs.stores[key]
	if !ok {
		st, err := cs.newStore(key)
		if err != nil {
			return nil, nil, err
		}
		l = &lease{st: st}
		cs.stores[key] = l
	}
	l.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { cs.release(key, l) })
	}
	return l.st, release, nil
}

func (cs *CartService) release(key string, l *lease) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	l.refs--
	if l.refs <= 0 && cs.stores[key] == l {
		delete(cs.stores, key)
	}
}

func (cs *CartService) newStore(key string) (*store.Store, error) {
	opts := []store.Option{store.WithLogger(cs.log)}
	if cs.recorder != nil {
		opts = append(opts, store.WithRecorder(cs.recorder))
	}
	opts = append(opts, store.WithPublisher(syncPublisher{cs: cs}))
	st, err := store.New(cs.records, key, opts...)
	if err != nil {
		return nil, err
	}
	if cs.hub != nil {
		cs.attachHub(st)
	}
	return st, nil
}

// Active reports how many Stores are currently leased.
func (cs *CartService) Active() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.stores)
}

// Event builds the cartUpdated payload from the store's current record.
func (cs *CartService) Event(ctx context.Context, st *store.Store) CartEvent {
	c := st.GetState(ctx)
	return CartEvent{Badge: projection.BadgeOf(c), Cart: projection.LineItemsOf(c)}
}

func (cs *CartService) attachHub(st *store.Store) {
	key := st.Key()
	st.Subscribe(func() {
		if cs.hub.Listeners(key) == 0 {
			return
		}
		cs.hub.Broadcast(realtime.SSEMessage{
			Channel: key,
			Event:   realtime.SSEEventCartUpdated,
			Data:    cs.Event(context.Background(), st),
		})
	})
	st.SubscribeOpen(func() {
		cs.hub.Broadcast(realtime.SSEMessage{Channel: key, Event: realtime.SSEEventOpenCart})
	})
}

// StartSync publishes this process's writes on b and re-notifies local
// stores when another process reports a write to the same record.
func (cs *CartService) StartSync(ctx context.Context, b bus.Bus) error {
	if b == nil {
		return fmt.Errorf("bus required")
	}
	cs.mu.Lock()
	cs.bus = b
	cs.mu.Unlock()

	if err := b.StartForwarder(ctx, cs.onNotice); err != nil {
		return fmt.Errorf("start cart sync: %w", err)
	}
	cs.log.Info("cart sync started", "origin", cs.origin)
	return nil
}

func (cs *CartService) onNotice(n bus.ChangeNotice) {
	if n.Origin == cs.origin {
		return
	}
	// Only leased Stores can have listeners.
	cs.mu.Lock()
	l, ok := cs.stores[n.Key]
	cs.mu.Unlock()
	if !ok {
		return
	}
	l.st.ExternalChange()
}

func (cs *CartService) currentBus() bus.Bus {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.bus
}

// syncPublisher is a no-op until StartSync installs a bus.
type syncPublisher struct {
	cs *CartService
}

func (p syncPublisher) PublishChange(ctx context.Context, key string) error {
	b := p.cs.currentBus()
	if b == nil {
		return nil
	}
	return b.Publish(ctx, bus.ChangeNotice{Key: key, Origin: p.cs.origin})
}
