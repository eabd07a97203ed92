package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/toybox-checkout/internal/domain/cart"
	"github.com/xenking/toybox-checkout/internal/domain/checkout"
	"github.com/xenking/toybox-checkout/internal/domain/discount"
	"github.com/xenking/toybox-checkout/internal/handler"
	"github.com/xenking/toybox-checkout/internal/storage/postgres"
	storageredis "github.com/xenking/toybox-checkout/internal/storage/redis"
	"github.com/xenking/toybox-checkout/pkg/health"
	"github.com/xenking/toybox-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis holds live carts and checkout idempotency records.
	rdb := storageredis.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	defer func() {
		if err := rdb.Close(); err != nil {
			lg.Warn("Close redis client", zap.Error(err))
		}
	}()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories and stores.
	productRepo := postgres.NewProductRepository(pool)
	buyerRepo := postgres.NewBuyerRepository(pool)
	locationRepo := postgres.NewLocationRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	checkoutStore := postgres.NewCheckoutStore(pool)
	cartStore := storageredis.NewCartStore(rdb, cfg.CartTTL)
	idemStore := storageredis.NewIdempotencyStore(rdb, cfg.SessionTTL)

	// Domain services.
	cartSvc := cart.NewService(cartStore, productRepo)
	resolver := discount.NewRepoResolver(locationRepo)
	checkoutSvc := checkout.NewService(cartStore, orderRepo, resolver, checkoutStore, idemStore)

	// HTTP handlers.
	security := handler.NewSecurity(tokenRepo, []byte(cfg.TokenPepper))
	h := handler.NewHandler(productRepo, locationRepo, orderRepo, buyerRepo, cartSvc, checkoutSvc, security)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	api := otelhttp.NewHandler(mux, "toybox-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(api,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
