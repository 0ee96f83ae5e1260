package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storefront-cart/internal/domain/cart"
	"github.com/yungbote/storefront-cart/internal/platform/kvstore"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

const testKey = "cart-storage:test"

var errDiskFull = errors.New("quota exceeded")

// flakyRecords wraps a memory store and fails writes or reads on demand.
type flakyRecords struct {
	*kvstore.Memory
	mu        sync.Mutex
	failWrite bool
	failRead  bool
}

func (f *flakyRecords) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return "", errors.New("connection refused")
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyRecords) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failWrite
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyRecords) setFailWrite(v bool) {
	f.mu.Lock()
	f.failWrite = v
	f.mu.Unlock()
}

func (f *flakyRecords) setFailRead(v bool) {
	f.mu.Lock()
	f.failRead = v
	f.mu.Unlock()
}

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("nop")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *flakyRecords) {
	t.Helper()
	records := &flakyRecords{Memory: kvstore.NewMemory()}
	opts = append([]Option{WithLogger(mustTestLogger(t))}, opts...)
	s, err := New(records, testKey, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, records
}

func snap(name string, price int64) cart.Snapshot {
	return cart.Snapshot{Name: name, Image: "/img/" + name + ".webp", Price: price}
}

func quantities(c cart.Cart) map[string]int {
	out := make(map[string]int, len(c.Items))
	for _, it := range c.Items {
		out[it.ProductID] = it.Quantity
	}
	return out
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, testKey); err == nil {
		t.Fatalf("expected error for nil record store")
	}
	if _, err := New(kvstore.NewMemory(), "  "); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

func TestGetStateOnAbsentRecordIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	if got := s.GetState(context.Background()); !got.IsEmpty() {
		t.Fatalf("want empty cart got=%+v", got)
	}
}

func TestScenarioAddSameProductTwice(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 0; i < 2; i++ {
		if _, err := s.AddItem(ctx, "A", snap("a", 1000), 1); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	got := s.GetState(ctx)
	if len(got.Items) != 1 || got.Items[0].ProductID != "A" || got.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.TotalCount() != 2 {
		t.Fatalf("total count: want=2 got=%d", got.TotalCount())
	}
}

func TestMergeLawKeepsFirstSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	qs := []int{1, 4, 2, 7}
	want := 0
	for i, q := range qs {
		want += q
		// Later adds carry a different price; the first snapshot must stick.
		if _, err := s.AddItem(ctx, "P", snap("p", int64(1000+i)), q); err != nil {
			t.Fatalf("AddItem: %v", err)
		}
	}

	got := s.GetState(ctx)
	li, ok := got.Find("P")
	if !ok {
		t.Fatalf("product missing: %+v", got)
	}
	if li.Quantity != want {
		t.Fatalf("quantity: want=%d got=%d", want, li.Quantity)
	}
	if li.Snapshot.Price != 1000 {
		t.Fatalf("snapshot price refreshed: want=1000 got=%d", li.Snapshot.Price)
	}
}

func TestScenarioCorruptRecordReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	s, records := newTestStore(t)

	if _, err := s.AddItem(ctx, "A", snap("a", 1000), 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := records.Memory.Set(ctx, testKey, "{{ definitely not a cart"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if got := s.GetState(ctx); !got.IsEmpty() {
		t.Fatalf("want empty cart got=%+v", got)
	}

	// The next mutation starts from the empty cart and repairs the record.
	if _, err := s.AddItem(ctx, "B", snap("b", 500), 2); err != nil {
		t.Fatalf("AddItem after corruption: %v", err)
	}
	if got := quantities(s.GetState(ctx)); len(got) != 1 || got["B"] != 2 {
		t.Fatalf("unexpected cart after repair: %v", got)
	}
}

func TestScenarioSetQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	mustAdd(t, s, "A", 1)
	mustAdd(t, s, "B", 3)
	if _, err := s.SetQuantity(ctx, "A", 0); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}

	got := s.GetState(ctx)
	if len(got.Items) != 1 || got.Items[0].ProductID != "B" || got.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}
	if got.TotalCount() != 3 {
		t.Fatalf("total count: want=3 got=%d", got.TotalCount())
	}
}

func TestRemovalLaw(t *testing.T) {
	ctx := context.Background()
	for _, q := range []int{0, -1} {
		s, _ := newTestStore(t)
		mustAdd(t, s, "P", 2)
		if _, err := s.SetQuantity(ctx, "P", q); err != nil {
			t.Fatalf("SetQuantity(%d): %v", q, err)
		}
		if _, ok := s.GetState(ctx).Find("P"); ok {
			t.Fatalf("SetQuantity(%d) did not remove product", q)
		}
	}

	s, _ := newTestStore(t)
	mustAdd(t, s, "P", 2)
	before := s.GetState(ctx).TotalCount()
	_, err := s.RemoveItem(ctx, "absent")
	var verr *cart.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want *cart.ValidationError got=%v", err)
	}
	if after := s.GetState(ctx).TotalCount(); after != before {
		t.Fatalf("total count changed: before=%d after=%d", before, after)
	}
}

func TestSetQuantityOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mustAdd(t, s, "P", 2)

	if _, err := s.SetQuantity(ctx, "P", 9); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if got := quantities(s.GetState(ctx))["P"]; got != 9 {
		t.Fatalf("quantity: want=9 got=%d", got)
	}
}

func TestValidationErrorsAreNoops(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mustAdd(t, s, "P", 1)

	notified := 0
	s.Subscribe(func() { notified++ })

	cases := []struct {
		name string
		run  func() error
	}{
		{"add zero", func() error { _, err := s.AddItem(ctx, "P", snap("p", 1), 0); return err }},
		{"add negative", func() error { _, err := s.AddItem(ctx, "Q", snap("q", 1), -3); return err }},
		{"add blank id", func() error { _, err := s.AddItem(ctx, " ", snap("q", 1), 1); return err }},
		{"set unknown", func() error { _, err := s.SetQuantity(ctx, "Z", 4); return err }},
		{"set unknown zero", func() error { _, err := s.SetQuantity(ctx, "Z", 0); return err }},
		{"remove unknown", func() error { _, err := s.RemoveItem(ctx, "Z"); return err }},
	}
	for _, tc := range cases {
		var verr *cart.ValidationError
		if err := tc.run(); !errors.As(err, &verr) {
			t.Fatalf("%s: want *cart.ValidationError got=%v", tc.name, err)
		}
	}
	if notified != 0 {
		t.Fatalf("no-op mutations notified subscribers %d times", notified)
	}
	if got := quantities(s.GetState(ctx)); len(got) != 1 || got["P"] != 1 {
		t.Fatalf("cart changed by no-ops: %v", got)
	}
}

func TestUnstorableAddsKeepOtherItems(t *testing.T) {
	ctx := context.Background()
	s, records := newTestStore(t)
	mustAdd(t, s, "A", 3)
	mustAdd(t, s, "B", math.MaxInt)
	before := s.GetState(ctx)

	cases := []struct {
		name string
		run  func() error
	}{
		{"negative price", func() error { _, err := s.AddItem(ctx, "C", snap("c", -1), 1); return err }},
		{"quantity overflow", func() error { _, err := s.AddItem(ctx, "B", snap("b", 1000), 1); return err }},
	}
	for _, tc := range cases {
		var verr *cart.ValidationError
		if err := tc.run(); !errors.As(err, &verr) {
			t.Fatalf("%s: want *cart.ValidationError got=%v", tc.name, err)
		}
		if after := s.GetState(ctx); !after.Equal(before) {
			t.Fatalf("%s: state changed: before=%+v after=%+v", tc.name, before, after)
		}
	}

	text, err := records.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if got := quantities(s.GetState(ctx)); got["A"] != 3 || got["B"] != math.MaxInt {
		t.Fatalf("items lost after rejected adds: %v (record=%s)", got, text)
	}
}

func TestMutationProducingInvalidCartIsNotWritten(t *testing.T) {
	ctx := context.Background()
	s, records := newTestStore(t)
	mustAdd(t, s, "A", 2)
	stored, _ := records.Get(ctx, testKey)

	notified := 0
	s.Subscribe(func() { notified++ })

	_, err := s.mutate(ctx, cart.OpAdd, "A", func(c cart.Cart) (cart.Cart, error) {
		out := c.Clone()
		out.Items = append(out.Items, cart.LineItem{ProductID: "A", Quantity: 1})
		return out, nil
	})
	var verr *cart.ValidationError
	if !errors.As(err, &verr) || verr.Reason != cart.ReasonUnstorable || verr.ProductID != "A" {
		t.Fatalf("want unstorable *cart.ValidationError got=%v", err)
	}
	if got, _ := records.Get(ctx, testKey); got != stored {
		t.Fatalf("record rewritten: want=%s got=%s", stored, got)
	}
	if notified != 0 {
		t.Fatalf("rejected mutation notified subscribers %d times", notified)
	}
}

func TestScenarioWriteFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s, records := newTestStore(t)
	mustAdd(t, s, "A", 1)
	before := s.GetState(ctx)

	notified := 0
	s.Subscribe(func() { notified++ })

	records.setFailWrite(true)
	_, err := s.AddItem(ctx, "C", snap("c", 700), 1)

	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("want *WriteError got=%v", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("write error should wrap backend error, got=%v", err)
	}
	if werr.Op != cart.OpAdd {
		t.Fatalf("op: want=%s got=%s", cart.OpAdd, werr.Op)
	}
	if notified != 0 {
		t.Fatalf("failed write notified subscribers")
	}

	records.setFailWrite(false)
	if after := s.GetState(ctx); !after.Equal(before) {
		t.Fatalf("state changed: before=%+v after=%+v", before, after)
	}
}

func TestReadFailureAbortsMutation(t *testing.T) {
	ctx := context.Background()
	s, records := newTestStore(t)
	mustAdd(t, s, "A", 5)

	records.setFailRead(true)
	_, err := s.AddItem(ctx, "B", snap("b", 1), 1)
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("want *WriteError got=%v", err)
	}
	if got := s.GetState(ctx); !got.IsEmpty() {
		t.Fatalf("unreachable backend should read as empty, got=%+v", got)
	}

	records.setFailRead(false)
	if got := quantities(s.GetState(ctx)); len(got) != 1 || got["A"] != 5 {
		t.Fatalf("record was clobbered: %v", got)
	}
}

func TestSubscribersRereadAfterMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var badge []int
	s.Subscribe(func() { badge = append(badge, s.GetState(ctx).TotalCount()) })

	mustAdd(t, s, "A", 1)
	mustAdd(t, s, "B", 3)
	if _, err := s.RemoveItem(ctx, "A"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}

	want := []int{1, 4, 3}
	if len(badge) != len(want) {
		t.Fatalf("notifications: want=%v got=%v", want, badge)
	}
	for i := range want {
		if badge[i] != want[i] {
			t.Fatalf("notification %d: want=%d got=%d", i, want[i], badge[i])
		}
	}
}

func TestListenerMayMutateFromNotification(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	// A fragment that tops up a free gift once the cart has anything in it.
	s.Subscribe(func() {
		if _, ok := s.GetState(ctx).Find("gift"); !ok {
			if _, err := s.AddItem(ctx, "gift", snap("gift", 0), 1); err != nil {
				t.Errorf("nested AddItem: %v", err)
			}
		}
	})

	mustAdd(t, s, "A", 1)

	got := quantities(s.GetState(ctx))
	if got["A"] != 1 || got["gift"] != 1 {
		t.Fatalf("unexpected cart: %v", got)
	}
}

func TestClearKeepsPanelFlag(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	mustAdd(t, s, "A", 2)
	if _, err := s.SetPanelOpen(ctx, true); err != nil {
		t.Fatalf("SetPanelOpen: %v", err)
	}

	if _, err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got := s.GetState(ctx)
	if !got.IsEmpty() || !got.Open {
		t.Fatalf("unexpected cart after clear: %+v", got)
	}
}

func TestOpenSignalIsSeparateFromChanges(t *testing.T) {
	s, _ := newTestStore(t)
	changes, opens := 0, 0
	s.Subscribe(func() { changes++ })
	s.SubscribeOpen(func() { opens++ })

	s.RequestOpen()

	if opens != 1 || changes != 0 {
		t.Fatalf("want opens=1 changes=0 got opens=%d changes=%d", opens, changes)
	}
}

func TestExternalChangeNotifiesSubscribers(t *testing.T) {
	s, _ := newTestStore(t)
	calls := 0
	s.Subscribe(func() { calls++ })

	s.ExternalChange()

	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) PublishChange(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

func TestPublisherCalledOnlyAfterSuccessfulWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s, records := newTestStore(t, WithPublisher(pub))

	mustAdd(t, s, "A", 1)
	_, _ = s.RemoveItem(ctx, "missing")
	records.setFailWrite(true)
	_, _ = s.AddItem(ctx, "B", snap("b", 1), 1)

	if len(pub.keys) != 1 || pub.keys[0] != testKey {
		t.Fatalf("published keys: want=[%s] got=%v", testKey, pub.keys)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	s, _ := newTestStore(t, WithPublisher(pub))
	mustAdd(t, s, "A", 1)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	decode   int
}

func (r *countingRecorder) ObserveMutation(_ string, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) ObserveDecodeFailure(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decode++
}

func TestRecorderSeesOutcomes(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	s, records := newTestStore(t, WithRecorder(rec))

	mustAdd(t, s, "A", 1)
	_, _ = s.RemoveItem(ctx, "missing")
	records.setFailWrite(true)
	_, _ = s.AddItem(ctx, "B", snap("b", 1), 1)
	records.setFailWrite(false)
	_ = records.Memory.Set(ctx, testKey, "garbage")
	_ = s.GetState(ctx)

	if rec.outcomes[OutcomeOK] != 1 || rec.outcomes[OutcomeNoop] != 1 || rec.outcomes[OutcomeFailure] != 1 {
		t.Fatalf("unexpected outcomes: %v", rec.outcomes)
	}
	if rec.decode != 1 {
		t.Fatalf("decode failures: want=1 got=%d", rec.decode)
	}
}

func TestConcurrentAddsSumExactly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	const workers = 40
	const perWorker = 5
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < perWorker; j++ {
				if _, err := s.AddItem(gctx, "hot", snap("hot", 100), 1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent AddItem failed: %v", err)
	}

	if got := quantities(s.GetState(ctx))["hot"]; got != workers*perWorker {
		t.Fatalf("quantity: want=%d got=%d", workers*perWorker, got)
	}
}

func TestTwoStoresOnSameRecordDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	records := kvstore.NewMemory()
	header, err := New(records, testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	card, err := New(records, testKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := header.AddItem(ctx, "A", snap("a", 1), 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := card.AddItem(ctx, "B", snap("b", 1), 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := header.AddItem(ctx, "A", snap("a", 1), 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	got := quantities(card.GetState(ctx))
	if got["A"] != 2 || got["B"] != 2 {
		t.Fatalf("lost update: %v", got)
	}
}

func mustAdd(t *testing.T, s *Store, productID string, quantity int) {
	t.Helper()
	if _, err := s.AddItem(context.Background(), productID, snap(productID, 1000), quantity); err != nil {
		t.Fatalf("AddItem(%s, %d): %v", productID, quantity, err)
	}
}
