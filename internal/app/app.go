package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storefront-cart/internal/http"
	httpH "github.com/yungbote/storefront-cart/internal/http/handlers"
	httpMW "github.com/yungbote/storefront-cart/internal/http/middleware"
	"github.com/yungbote/storefront-cart/internal/observability"
	"github.com/yungbote/storefront-cart/internal/platform/kvstore"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
	"github.com/yungbote/storefront-cart/internal/realtime"
	"github.com/yungbote/storefront-cart/internal/realtime/bus"
	"github.com/yungbote/storefront-cart/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Records  kvstore.Store
	Carts    *services.CartService
	Sessions *services.VisitorSessions
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics
	Server   *http.Server

	bus          bus.Bus
	redis        *goredis.Client
	closeRedis   bool
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.NewWithOutput(cfg.LogMode, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Cfg: cfg}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Cfg
	log := a.Log

	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	log.Info("Opening record store...", "backend", cfg.StoreBackend)
	records, err := a.openRecords()
	if err != nil {
		return err
	}
	a.Records = records

	if cfg.MetricsEnabled {
		a.Metrics = observability.NewMetrics()
	}
	a.SSEHub = realtime.NewSSEHub(log)

	log.Info("Wiring services...")
	opts := []services.CartServiceOption{
		services.WithKeyPrefix(cfg.KeyPrefix),
		services.WithHub(a.SSEHub),
	}
	if a.Metrics != nil {
		opts = append(opts, services.WithRecorder(a.Metrics))
	}
	carts, err := services.NewCartService(log, records, opts...)
	if err != nil {
		return fmt.Errorf("init cart service: %w", err)
	}
	a.Carts = carts

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("CART_SESSION_SECRET not set; sessions will not survive a restart")
	}
	sessions, err := services.NewVisitorSessions(log, secret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("init visitor sessions: %w", err)
	}
	a.Sessions = sessions

	if cfg.SyncEnabled {
		rdb, err := a.redisClient()
		if err != nil {
			return err
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			return fmt.Errorf("init cart bus: %w", err)
		}
		a.bus = b
	}

	log.Info("Wiring HTTP...")
	a.Server = http.NewServer(cfg.HTTPAddr, http.RouterConfig{
		Log:               log,
		ServiceName:       otelServiceName(cfg),
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           a.Metrics,
		SessionMiddleware: httpMW.NewSessionMiddleware(log, sessions, int(cfg.SessionTTL.Seconds()), cfg.SecureCookie),
		HealthHandler:     httpH.NewHealthHandler(records),
		CartHandler:       httpH.NewCartHandler(log, carts),
		CartStreamHandler: httpH.NewCartStreamHandlerWithDeps(httpH.CartStreamHandlerDeps{
			Log:     log,
			Carts:   carts,
			Hub:     a.SSEHub,
			Metrics: a.Metrics,
		}),
	})
	return nil
}

func (a *App) openRecords() (kvstore.Store, error) {
	cfg := a.Cfg
	switch cfg.StoreBackend {
	case BackendMemory:
		return kvstore.NewMemory(), nil
	case BackendRedis:
		r, err := kvstore.NewRedis(a.Log, kvstore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RecordTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("init redis record store: %w", err)
		}
		a.redis = r.Client()
		return r, nil
	case BackendSQLite:
		return openSQL(a.Log, BackendSQLite, cfg.SQLitePath)
	case BackendPostgres:
		return openSQL(a.Log, BackendPostgres, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown CART_STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func openSQL(log *logger.Logger, driver, dsn string) (kvstore.Store, error) {
	s, err := kvstore.OpenSQL(log, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("init %s record store: %w", driver, err)
	}
	return s, nil
}

// redisClient reuses the record store's connection when it is Redis.
func (a *App) redisClient() (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	r, err := kvstore.NewRedis(a.Log, kvstore.RedisOptions{
		Addr:     a.Cfg.RedisAddr,
		Password: a.Cfg.RedisPassword,
		DB:       a.Cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis sync client: %w", err)
	}
	a.redis = r.Client()
	a.closeRedis = true
	return a.redis, nil
}

// Run serves HTTP and, when enabled, cross-process sync until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	if a.bus != nil {
		if err := a.Carts.StartSync(gctx, a.bus); err != nil {
			return err
		}
	}
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Cfg.HTTPAddr)
		return a.Server.Run(gctx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.bus != nil {
		_ = a.bus.Close()
	}
	if a.Records != nil {
		if err := a.Records.Close(); err != nil && a.Log != nil {
			a.Log.Warn("close record store", "error", err)
		}
	}
	if a.closeRedis && a.redis != nil {
		_ = a.redis.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func otelServiceName(cfg Config) string {
	if !cfg.Otel.Enabled {
		return ""
	}
	return cfg.Otel.ServiceName
}
