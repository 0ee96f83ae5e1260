package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("nop")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestNotifyReachesSubscribersInOrder(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	var got []string
	sig.Subscribe(func() { got = append(got, "badge") })
	sig.Subscribe(func() { got = append(got, "cart-page") })
	sig.Subscribe(func() { got = append(got, "product-card") })

	sig.Notify()
	sig.Notify()

	want := []string{"badge", "cart-page", "product-card", "badge", "cart-page", "product-card"}
	if len(got) != len(want) {
		t.Fatalf("unexpected deliveries: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery %d: want=%s got=%s", i, want[i], got[i])
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	calls := 0
	unsubscribe := sig.Subscribe(func() { calls++ })

	sig.Notify()
	unsubscribe()
	unsubscribe()
	sig.Notify()

	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
	if sig.Len() != 0 {
		t.Fatalf("subscribers: want=0 got=%d", sig.Len())
	}
}

func TestListenerUnsubscribedDuringDeliveryIsSkipped(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	secondCalls := 0
	var unsubscribeSecond func()
	sig.Subscribe(func() { unsubscribeSecond() })
	unsubscribeSecond = sig.Subscribe(func() { secondCalls++ })

	sig.Notify()

	if secondCalls != 0 {
		t.Fatalf("listener removed mid-delivery should not be called, got=%d", secondCalls)
	}
}

func TestSubscriberAddedDuringDeliveryWaitsForNextNotify(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	lateCalls := 0
	added := false
	sig.Subscribe(func() {
		if !added {
			added = true
			sig.Subscribe(func() { lateCalls++ })
		}
	})

	sig.Notify()
	if lateCalls != 0 {
		t.Fatalf("late subscriber saw in-flight notification: %d", lateCalls)
	}
	sig.Notify()
	if lateCalls != 1 {
		t.Fatalf("late subscriber calls: want=1 got=%d", lateCalls)
	}
}

func TestReentrantNotifyIsQueued(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	var seen []int
	round := 0
	sig.Subscribe(func() {
		round++
		seen = append(seen, round)
		if round == 1 {
			sig.Notify()
			// The nested notification must not be delivered inside this call.
			if len(seen) != 1 {
				t.Errorf("nested notify delivered re-entrantly")
			}
		}
	})

	sig.Notify()

	if len(seen) != 2 {
		t.Fatalf("deliveries: want=2 got=%d", len(seen))
	}
}

func TestPanickingListenerDoesNotStarveOthers(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	calls := 0
	sig.Subscribe(func() { panic("broken fragment") })
	sig.Subscribe(func() { calls++ })

	sig.Notify()

	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestConcurrentNotifyDeliversEveryNotification(t *testing.T) {
	sig := New("cartUpdated", mustTestLogger(t))
	var mu sync.Mutex
	calls := 0
	sig.Subscribe(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig.Notify()
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		got := calls
		mu.Unlock()
		if got == n {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("calls: want=%d got=%d", n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
