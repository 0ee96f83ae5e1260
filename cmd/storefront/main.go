// Command storefront is a terminal storefront over a local durable cart:
// a product list with add-to-cart buttons, a header badge and a cart page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yungbote/storefront-cart/internal/catalog"
	"github.com/yungbote/storefront-cart/internal/platform/config"
	"github.com/yungbote/storefront-cart/internal/platform/kvstore"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
	"github.com/yungbote/storefront-cart/internal/realtime/bus"
	"github.com/yungbote/storefront-cart/internal/services"
)

const localVisitor = "local"

// storefrontConfig supplies flag defaults from STOREFRONT_* variables.
type storefrontConfig struct {
	LogMode     string        `env:"LOG_MODE" envDefault:"development"`
	LogFile     string        `env:"LOG_FILE" envDefault:"storefront.log"`
	Backend     string        `env:"BACKEND" envDefault:"sqlite"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"storefront-cart.db"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisTTL    time.Duration `env:"CART_RECORD_TTL" envDefault:"0s"`
	Sync        bool          `env:"SYNC" envDefault:"false"`
	CatalogPath string        `env:"CATALOG_PATH"`
}

func loadConfig(args []string) (storefrontConfig, error) {
	var cfg storefrontConfig
	if err := config.ParseEnvWithPrefix(&cfg, "STOREFRONT_"); err != nil {
		return cfg, err
	}
	fs := flag.NewFlagSet("storefront", flag.ContinueOnError)
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "record store: memory|sqlite|redis")
	fs.StringVar(&cfg.SQLitePath, "sqlite", cfg.SQLitePath, "sqlite file for -backend=sqlite")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for -backend=redis")
	fs.BoolVar(&cfg.Sync, "sync", cfg.Sync, "follow cart changes made by other storefront windows (redis only)")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "product catalog yaml (bundled catalog when empty)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log output path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Println("error:", err)
		os.Exit(2)
	}

	log, err := logger.NewWithOutput(cfg.LogMode, cfg.LogFile)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, cfg); err != nil {
		log.Error("storefront exited", "error", err)
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger, cfg storefrontConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	products, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	list, err := products.List(ctx)
	if err != nil {
		return err
	}

	var (
		records kvstore.Store
		rdb     *kvstore.Redis
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "memory":
		records = kvstore.NewMemory()
	case "sqlite":
		records, err = kvstore.OpenSQL(log, "sqlite", "file:"+cfg.SQLitePath+"?_busy_timeout=5000")
	case "redis":
		rdb, err = kvstore.NewRedis(log, kvstore.RedisOptions{Addr: cfg.RedisAddr, TTL: cfg.RedisTTL})
		records = rdb
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return err
	}
	defer records.Close()

	carts, err := services.NewCartService(log, records)
	if err != nil {
		return err
	}
	if cfg.Sync {
		if rdb == nil {
			return fmt.Errorf("-sync requires -backend=redis")
		}
		b, err := bus.NewRedisBus(log, rdb.Client(), bus.DefaultChannel)
		if err != nil {
			return err
		}
		if err := carts.StartSync(ctx, b); err != nil {
			return err
		}
	}
	st, release, err := carts.Acquire(localVisitor)
	if err != nil {
		return err
	}
	defer release()

	var p *tea.Program
	send := func(msg tea.Msg) {
		if p != nil {
			p.Send(msg)
		}
	}
	m := newModel(ctx, st, list, send)
	p = tea.NewProgram(m)
	_, err = p.Run()
	return err
}
