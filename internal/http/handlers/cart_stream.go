package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/storefront-cart/internal/observability"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
	"github.com/yungbote/storefront-cart/internal/realtime"
	"github.com/yungbote/storefront-cart/internal/services"
)

type CartStreamHandler struct {
	log     *logger.Logger
	carts   *services.CartService
	hub     *realtime.SSEHub
	metrics *observability.Metrics
}

type CartStreamHandlerDeps struct {
	Log     *logger.Logger
	Carts   *services.CartService
	Hub     *realtime.SSEHub
	Metrics *observability.Metrics
}

func NewCartStreamHandlerWithDeps(deps CartStreamHandlerDeps) *CartStreamHandler {
	return &CartStreamHandler{
		log:     deps.Log.With("handler", "CartStreamHandler"),
		carts:   deps.Carts,
		hub:     deps.Hub,
		metrics: deps.Metrics,
	}
}

// GET /api/cart/stream
//
// Opens with a cartUpdated event carrying the current projections, then
// forwards cartUpdated and openCart as the visitor's store signals them.
func (h *CartStreamHandler) Stream(c *gin.Context) {
	// The lease keeps the Store, and its hub bridge, alive for the stream.
	st, visitorID, release, ok := resolveStore(c, h.log, h.carts)
	if !ok {
		return
	}
	defer release()
	client := h.hub.NewSSEClient(visitorID)
	h.hub.AddChannel(client, st.Key())
	h.metrics.StreamOpened()
	defer func() {
		h.hub.CloseClient(client)
		h.metrics.StreamClosed()
	}()

	initial := realtime.SSEMessage{
		Channel: st.Key(),
		Event:   realtime.SSEEventCartUpdated,
		Data:    h.carts.Event(c.Request.Context(), st),
	}
	h.hub.ServeHTTP(c.Writer, c.Request, client, &initial)
}
