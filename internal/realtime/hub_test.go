package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := "cart-storage:visitor-a"

	clientA := hub.NewSSEClient("visitor-a")
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCartUpdated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventOpenCart})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventCartUpdated {
		t.Fatalf("first event: want=%s got=%s", SSEEventCartUpdated, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventOpenCart {
		t.Fatalf("second event: want=%s got=%s", SSEEventOpenCart, got.Event)
	}

	hub.CloseClient(clientA)
	if n := hub.Listeners(channel); n != 0 {
		t.Fatalf("listeners after close: want=0 got=%d", n)
	}

	clientB := hub.NewSSEClient("visitor-a")
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventCartUpdated})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventCartUpdated {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventCartUpdated, got.Event)
	}
}

func TestSSEHubChannelsAreIsolated(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	a := hub.NewSSEClient("a")
	b := hub.NewSSEClient("b")
	hub.AddChannel(a, "cart-storage:a")
	hub.AddChannel(b, "cart-storage:b")

	hub.Broadcast(SSEMessage{Channel: "cart-storage:a", Event: SSEEventCartUpdated})
	recvMessage(t, a.Outbound, time.Second)
	select {
	case msg := <-b.Outbound:
		t.Fatalf("visitor b received %s for visitor a", msg.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubBroadcastDropsWhenFull(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	c := hub.NewSSEClient("a")
	hub.AddChannel(c, "k")
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: "k", Event: SSEEventCartUpdated})
	}
	if got := len(c.Outbound); got != outboundBuffer {
		t.Fatalf("buffered: want=%d got=%d", outboundBuffer, got)
	}
}

func TestSSEHubServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	client := hub.NewSSEClient("a")
	hub.AddChannel(client, "k")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeHTTP(w, r, client, &SSEMessage{Channel: "k", Event: SSEEventCartUpdated, Data: map[string]int{"count": 0}})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: want=text/event-stream got=%s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	if ev, data := readEvent(); ev != "cartUpdated" || data != `{"count":0}` {
		t.Fatalf("initial event: got=%s %s", ev, data)
	}
	hub.Broadcast(SSEMessage{Channel: "k", Event: SSEEventOpenCart})
	if ev, data := readEvent(); ev != "openCart" || data != "null" {
		t.Fatalf("open event: got=%s %s", ev, data)
	}
}
