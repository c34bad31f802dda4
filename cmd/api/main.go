package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-resto/internal/app"
	"github.com/noah-isme/backend-resto/internal/audit"
	"github.com/noah-isme/backend-resto/internal/auth"
	"github.com/noah-isme/backend-resto/internal/cache"
	"github.com/noah-isme/backend-resto/internal/cart"
	"github.com/noah-isme/backend-resto/internal/catalog"
	"github.com/noah-isme/backend-resto/internal/checkout"
	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/config"
	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/events"
	"github.com/noah-isme/backend-resto/internal/health"
	"github.com/noah-isme/backend-resto/internal/ledger"
	"github.com/noah-isme/backend-resto/internal/lock"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/order"
	"github.com/noah-isme/backend-resto/internal/promotion"
	"github.com/noah-isme/backend-resto/internal/ratelimit"
	"github.com/noah-isme/backend-resto/internal/resilience"
	"github.com/noah-isme/backend-resto/internal/security"
	"github.com/noah-isme/backend-resto/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "resto")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "resto-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	deps, err := app.Open(startCtx, cfg, logger, app.Options{AppName: "resto-api", RedisMetrics: metricsEnabled})
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer deps.Close(context.Background())

	cartRepo, err := deps.CartRepository(startCtx)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart store")
	}
	logger.Info().Str("cart_store", cfg.CartStore).Msg("cart store ready")

	menuStore := &catalog.Store{DB: deps.DB}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: menuStore,
		Cache: cache.New(deps.Redis, "menu", cfg.MenuCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	settingsProvider := &settings.Cached{
		Source:  &settings.Store{DB: deps.DB},
		Cache:   cache.New(deps.Redis, "settings", cfg.SettingsCacheTTL),
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:  "settings_cache",
			CoolOff: 30 * time.Second,
			Logger:  &logger,
		}),
		Timeout: cfg.StorageTimeout,
	}
	settingsHandler := &settings.Handler{Source: settingsProvider}

	promotionStore := &promotion.Store{DB: deps.DB}
	promotionSvc := &promotion.Service{Store: promotionStore}
	promotionHandler := &promotion.Handler{Store: promotionStore, Svc: promotionSvc}

	cartSvc := &cart.Service{
		Repo:       cartRepo,
		Settings:   settingsProvider,
		Promotions: promotionSvc,
		Menu:       catalogService,
		Locker:     lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.CartLockTTL},
		TTL:        cfg.CartTTL,
		LockTTL:    cfg.CartLockTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Currency: cfg.CurrencyCode}

	ledgerRetry := resilience.Policy{
		Target:      "ledger",
		MaxAttempts: cfg.LedgerMaxAttempts,
		BaseBackoff: cfg.LedgerRetryBase,
		Jitter:      0.2,
		Retryable:   db.IsTransient,
	}
	orderStore := &order.Store{DB: deps.DB}
	bus := &events.Bus{
		Store:     &events.PostgresStore{DB: deps.DB},
		Notifiers: []events.Notifier{events.LogNotifier{}},
	}
	checkoutSvc := &checkout.Service{
		Carts: cartSvc,
		UnitOfWork: &checkout.PostgresUnitOfWork{
			DB:     deps.DB,
			Ledger: ledger.Postgres{DB: deps.DB, Retry: ledgerRetry},
			Orders:    orderStore,
			Retry:     ledgerRetry,
			CartsInTx: cfg.CartStore == config.CartStorePostgres,
			Timeout:   cfg.StorageTimeout,
		},
		Events: bus,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Orders: orderStore}
	orderAdmin := &order.AdminHandler{Orders: orderStore}

	authMiddleware := auth.Middleware{Verifier: auth.Verifier{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		ClockSkew: 30 * time.Second,
	}}

	limiterStore, err := ratelimit.NewRedisStore(deps.Redis, "resto:ratelimit")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	promoLimit, err := ratelimit.New(limiterStore, cfg.PromoRateLimit, ratelimit.CustomerOrIP)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise promotion rate limit")
	}
	promoLimit.OnError = func(err error) {
		logger.Warn().Err(err).Msg("rate limiter unavailable")
	}

	idem := common.Idempotency{Redis: deps.Redis, TTL: cfg.IdempotencyTTL, Prefix: "resto:idem"}

	auditStore := &audit.PostgresStore{DB: deps.DB}
	auditRecorder := audit.Recorder{Service: audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled}}
	audited := func(action, resource, idParam string) func(http.Handler) http.Handler {
		return auditRecorder.Middleware(audit.Change{Action: action, Resource: resource, IDParam: idParam})
	}
	auditHandler := audit.Handler{Store: auditStore}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets, err := obs.ParseBuckets(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring OBS_METRICS_BUCKETS_MS")
		}
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, Quiet: []string{"/health/", "/metrics"}}.Middleware)
	r.Use(security.Headers{
		HSTS:            cfg.IsProduction(),
		NoStorePrefixes: []string{"/api/v1/cart", "/api/v1/checkout", "/api/v1/orders", "/api/v1/promotions", "/api/v1/admin"},
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Checks: deps.HealthChecks()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/menu", catalogHandler.Menu)
		v.Get("/menu/{id}", catalogHandler.Item)

		v.With(authMiddleware.RequireCustomer, promoLimit.Middleware).Post("/promotions/preview", promotionHandler.Preview)

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireCustomer)
			c.Get("/", cartHandler.Get)
			c.Delete("/", cartHandler.Clear)
			c.Post("/items", cartHandler.AddItem)
			c.Patch("/items/{lineId}", cartHandler.UpdateItem)
			c.Delete("/items/{lineId}", cartHandler.RemoveItem)
			c.With(promoLimit.Middleware).Post("/promotion", cartHandler.ApplyPromotion)
			c.Delete("/promotion", cartHandler.RemovePromotion)
		})

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireCustomer)
			authR.With(idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{id}", orderHandler.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireCustomer)
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			admin.Get("/promotions", promotionHandler.List)
			admin.With(audited("promotion.create", "promotion", "")).Post("/promotions", promotionHandler.Create)
			admin.Get("/promotions/{id}", promotionHandler.Get)
			admin.With(audited("promotion.update", "promotion", "id")).Put("/promotions/{id}", promotionHandler.Update)
			admin.With(audited("promotion.deactivate", "promotion", "id")).Post("/promotions/{id}/deactivate", promotionHandler.Deactivate)
			admin.Get("/settings", settingsHandler.Get)
			admin.With(audited("settings.update", "settings", "")).Put("/settings", settingsHandler.Update)
			admin.Get("/orders", orderAdmin.List)
			admin.Get("/audit-logs", auditHandler.List)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
