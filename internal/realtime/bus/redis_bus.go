package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

const DefaultChannel = "cart-changes"

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus publishes on channel over rdb. The caller keeps ownership of rdb.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client, channel string) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ch := strings.TrimSpace(channel)
	if ch == "" {
		ch = DefaultChannel
	}
	return &redisBus{
		log:     log.With("service", "RedisCartBus", "channel", ch),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, notice ChangeNotice) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis cart bus not initialized")
	}
	raw, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onNotice func(n ChangeNotice)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis cart bus not initialized")
	}
	if onNotice == nil {
		return fmt.Errorf("onNotice callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var n ChangeNotice
				if err := json.Unmarshal([]byte(m.Payload), &n); err != nil || n.Key == "" {
					b.log.Warn("bad cart change payload", "error", err)
					continue
				}
				onNotice(n)
			}
		}
	}()
	return nil
}

// Close leaves the shared client open; forwarders stop with their context.
func (b *redisBus) Close() error {
	return nil
}
