package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/storefront-cart/internal/http/handlers"
	httpMW "github.com/yungbote/storefront-cart/internal/http/middleware"
	"github.com/yungbote/storefront-cart/internal/observability"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	SessionMiddleware *httpMW.SessionMiddleware

	HealthHandler     *httpH.HealthHandler
	CartHandler       *httpH.CartHandler
	CartStreamHandler *httpH.CartStreamHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.SessionMiddleware != nil {
		api.Use(cfg.SessionMiddleware.ResolveVisitor())
	}
	{
		// Cart
		if cfg.CartHandler != nil {
			api.GET("/cart", cfg.CartHandler.GetCart)
			api.GET("/cart/badge", cfg.CartHandler.GetBadge)
			api.POST("/cart/items", cfg.CartHandler.AddItem)
			api.PUT("/cart/items/:productId", cfg.CartHandler.SetQuantity)
			api.DELETE("/cart/items/:productId", cfg.CartHandler.RemoveItem)
			api.DELETE("/cart", cfg.CartHandler.Clear)
			api.POST("/cart/open", cfg.CartHandler.RequestOpen)
			api.PUT("/cart/panel", cfg.CartHandler.SetPanel)
		}

		// Realtime (SSE)
		if cfg.CartStreamHandler != nil {
			api.GET("/cart/stream", cfg.CartStreamHandler.Stream)
		}
	}

	return r
}
