package bus

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBus delivers notices within one process. Stores opened over the same
// in-memory record store use it to see each other's writes.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[int]func(ChangeNotice)
	next     int
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[int]func(ChangeNotice))}
}

func (b *MemoryBus) Publish(_ context.Context, notice ChangeNotice) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("memory cart bus closed")
	}
	hs := make([]func(ChangeNotice), 0, len(b.handlers))
	for i := 0; i < b.next; i++ {
		if h, ok := b.handlers[i]; ok {
			hs = append(hs, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(notice)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onNotice func(n ChangeNotice)) error {
	if onNotice == nil {
		return fmt.Errorf("onNotice callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory cart bus closed")
	}
	id := b.next
	b.next++
	b.handlers[id] = onNotice
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]func(ChangeNotice))
	return nil
}
