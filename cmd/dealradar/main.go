// Command dealradar serves the price comparison API.
//
// Configuration comes from the environment (and an optional .env file):
//
//	PORT              listen port (default 8080)
//	VENDORS_FILE      vendor spec YAML; empty uses the built-in vendor set
//	CACHE_DB          SQLite cache path (default dealradar.db)
//	REDIS_URL         use Redis instead of SQLite for the result cache
//	LOG_LEVEL         debug | info | warn | error (default info)
//	SHOW_IMAGES       populate product image URLs
//	CACHE_TTL         result cache TTL (default 6h)
//	REQUEST_TIMEOUT   per vendor-request timeout (default 30s)
//	RATE_LIMIT_DELAY  per-vendor request spacing (default 1.5s)
//	MAX_RETRIES       vendor fetch attempts (default 3)
//	MAX_PER_VENDOR    raw records normalized per vendor (default 20)
//	MIN_DISCOUNT      minimum discount percent to keep a product
//	CONVERSION_RATE   foreign currency conversion rate (default 82.0)
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"dealradar/compare"
	"dealradar/dbopen"
)

type envSettings struct {
	Port        string `envconfig:"PORT" default:"8080"`
	VendorsFile string `envconfig:"VENDORS_FILE"`
	CacheDB     string `envconfig:"CACHE_DB" default:"dealradar.db"`
	RedisURL    string `envconfig:"REDIS_URL"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	ShowImages     bool          `envconfig:"SHOW_IMAGES"`
	CacheTTL       time.Duration `envconfig:"CACHE_TTL"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT"`
	RateLimitDelay time.Duration `envconfig:"RATE_LIMIT_DELAY"`
	MaxRetries     int           `envconfig:"MAX_RETRIES"`
	MaxPerVendor   int           `envconfig:"MAX_PER_VENDOR"`
	MinDiscount    float64       `envconfig:"MIN_DISCOUNT"`
	ConversionRate float64       `envconfig:"CONVERSION_RATE"`
}

func main() {
	godotenv.Load()

	var env envSettings
	if err := envconfig.Process("", &env); err != nil {
		slog.Error("invalid environment", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(env.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := run(logger, env); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, env envSettings) error {
	cfg := compare.Config{
		ConversionRate: env.ConversionRate,
		Timeout:        env.RequestTimeout,
		MaxRetries:     env.MaxRetries,
		RateLimitDelay: env.RateLimitDelay,
		CacheTTL:       env.CacheTTL,
		ShowImages:     env.ShowImages,
		MaxPerVendor:   env.MaxPerVendor,
		MinDiscount:    env.MinDiscount,
	}

	if env.VendorsFile != "" {
		specs, err := compare.LoadVendorSpecs(env.VendorsFile)
		if err != nil {
			return err
		}
		cfg.Vendors = specs
		logger.Info("loaded vendor specs", "file", env.VendorsFile, "vendors", len(specs))
	}

	metrics := compare.NewMetrics()
	opts := []compare.ServiceOption{
		compare.WithLogger(logger),
		compare.WithMetrics(metrics),
	}

	// Cache backend: Redis when configured, embedded SQLite otherwise.
	// The fetch log always lives in SQLite.
	var store *compare.SQLiteCache
	if env.CacheDB != "" {
		db, err := dbopen.Open(env.CacheDB, dbopen.WithMkdirAll())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := compare.ApplyCacheSchema(db); err != nil {
			return err
		}
		store = compare.NewSQLiteCache(db, cfg)
		opts = append(opts, compare.WithFetchLog(store))
	}

	if env.RedisURL != "" {
		ropts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(ropts)
		defer client.Close()
		if err := client.Ping(context.Background()).Err(); err != nil {
			return err
		}
		opts = append(opts, compare.WithCache(compare.NewRedisCache(client, cfg)))
		logger.Info("using redis result cache")
	} else if store != nil {
		opts = append(opts, compare.WithCache(store))
		logger.Info("using sqlite result cache", "path", env.CacheDB)
	}

	svc := compare.New(cfg, opts...)
	srv := newServer(svc, store, metrics, logger)

	httpServer := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr, "vendors", svc.Vendors())
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
