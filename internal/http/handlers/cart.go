package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storefront-cart/internal/cart/projection"
	"github.com/yungbote/storefront-cart/internal/cart/store"
	"github.com/yungbote/storefront-cart/internal/domain/cart"
	"github.com/yungbote/storefront-cart/internal/http/response"
	"github.com/yungbote/storefront-cart/internal/platform/apierr"
	"github.com/yungbote/storefront-cart/internal/platform/ctxutil"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
	"github.com/yungbote/storefront-cart/internal/services"
)

// CartResolver leases the Store for a visitor; callers release it when the
// request is done.
type CartResolver interface {
	Acquire(visitorID string) (*store.Store, func(), error)
}

type CartHandler struct {
	log   *logger.Logger
	carts CartResolver
}

func NewCartHandler(log *logger.Logger, carts CartResolver) *CartHandler {
	return &CartHandler{
		log:   log.With("handler", "CartHandler"),
		carts: carts,
	}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     int64  `json:"price" binding:"gte=0"`
	// Quantity defaults to 1 when omitted. Non-positive values reach the
	// store and come back as an unchanged cart.
	Quantity *int `json:"quantity" binding:"omitempty,lte=10000"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,lte=10000"`
}

type setPanelRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	response.RespondOK(c, projection.LineItemsOf(st.GetState(c.Request.Context())))
}

// GET /api/cart/badge
func (h *CartHandler) GetBadge(c *gin.Context) {
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	response.RespondOK(c, projection.BadgeOf(st.GetState(c.Request.Context())))
}

// POST /api/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.InvalidRequest(err))
		return
	}
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	snap := cart.Snapshot{Name: req.Name, Image: req.Image, Price: req.Price}
	next, err := st.AddItem(c.Request.Context(), req.ProductID, snap, qty)
	h.respondMutation(c, next, err)
}

// PUT /api/cart/items/:productId
func (h *CartHandler) SetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.InvalidRequest(err))
		return
	}
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	next, err := st.SetQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity)
	h.respondMutation(c, next, err)
}

// DELETE /api/cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	next, err := st.RemoveItem(c.Request.Context(), c.Param("productId"))
	h.respondMutation(c, next, err)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	next, err := st.Clear(c.Request.Context())
	h.respondMutation(c, next, err)
}

// PUT /api/cart/panel
func (h *CartHandler) SetPanel(c *gin.Context) {
	var req setPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.InvalidRequest(err))
		return
	}
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	next, err := st.SetPanelOpen(c.Request.Context(), *req.Open)
	h.respondMutation(c, next, err)
}

// POST /api/cart/open
func (h *CartHandler) RequestOpen(c *gin.Context) {
	st, release, ok := h.resolve(c)
	if !ok {
		return
	}
	defer release()
	st.RequestOpen()
	c.JSON(http.StatusAccepted, gin.H{"message": "open requested"})
}

func (h *CartHandler) resolve(c *gin.Context) (*store.Store, func(), bool) {
	st, _, release, ok := resolveStore(c, h.log, h.carts)
	return st, release, ok
}

// resolveStore writes the error response itself when it returns false.
// On success the caller owns release.
func resolveStore(c *gin.Context, log *logger.Logger, carts CartResolver) (*store.Store, string, func(), bool) {
	vd := ctxutil.GetVisitor(c.Request.Context())
	if vd == nil || vd.VisitorID == "" {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, errors.New("missing cart session"))
		return nil, "", nil, false
	}
	st, release, err := carts.Acquire(vd.VisitorID)
	if err != nil {
		log.Error("resolve cart store failed", "visitor_id", vd.VisitorID, "error", err)
		response.RespondAPIError(c, err)
		return nil, "", nil, false
	}
	return st, vd.VisitorID, release, true
}

// respondMutation answers with the cart after the mutation. Validation
// failures are no-ops and answer with the unchanged cart.
func (h *CartHandler) respondMutation(c *gin.Context, next cart.Cart, err error) {
	var verr *cart.ValidationError
	var werr *store.WriteError
	switch {
	case err == nil, errors.As(err, &verr):
		response.RespondOK(c, services.CartEvent{
			Badge: projection.BadgeOf(next),
			Cart:  projection.LineItemsOf(next),
		})
	case errors.As(err, &werr):
		_ = c.Error(err)
		response.RespondAPIError(c, apierr.CartUnavailable(err))
	default:
		_ = c.Error(err)
		response.RespondAPIError(c, err)
	}
}
