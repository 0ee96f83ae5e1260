package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	records Pinger
}

func NewHealthHandler(records Pinger) *HealthHandler { return &HealthHandler{records: records} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.records != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.records.Ping(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "record store unreachable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
