package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

// SSEClient is one open /cart/stream connection.
type SSEClient struct {
	ID        uuid.UUID
	VisitorID string
	Channels  map[string]bool
	Outbound  chan SSEMessage
	done      chan struct{}
	Logger    *logger.Logger
}
