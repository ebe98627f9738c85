// Package main is the entrypoint for the Pixelift API server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/pixelift/pixelift/internal/analytics"
	"github.com/pixelift/pixelift/internal/cache"
	"github.com/pixelift/pixelift/internal/config"
	"github.com/pixelift/pixelift/internal/handler"
	"github.com/pixelift/pixelift/internal/identity"
	"github.com/pixelift/pixelift/internal/media"
	"github.com/pixelift/pixelift/internal/metrics"
	"github.com/pixelift/pixelift/internal/middleware"
	"github.com/pixelift/pixelift/internal/notify"
	"github.com/pixelift/pixelift/internal/payments"
	"github.com/pixelift/pixelift/internal/repository"
	"github.com/pixelift/pixelift/internal/server"
	"github.com/pixelift/pixelift/internal/service"
	"github.com/pixelift/pixelift/internal/transform"
)

func main() {
	ctx := context.Background()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("failed to run migrations",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Second connection for the notification subsystem (database/sql + lib/pq).
	notifyDB, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open notification db connection",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer notifyDB.Close()

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics
	recorder := metrics.NewInMemory()

	// External provider clients
	mediaClient := media.NewClient(media.Config{
		CloudName: cfg.MediaCloudName,
		APIKey:    cfg.MediaAPIKey,
		APISecret: cfg.MediaAPISecret,
		Folder:    cfg.MediaFolder,
	})
	identityClient := identity.NewClient(cfg.IdentityAPIURL, cfg.IdentityAPIKey)
	identityVerifier, err := identity.NewVerifier(cfg.IdentityWebhookSecret)
	if err != nil {
		logger.Error("invalid identity webhook secret", slog.String("error", err.Error()))
		os.Exit(1)
	}
	paymentClient := payments.NewClient(payments.Config{
		SecretKey:  cfg.PaymentSecretKey,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
	})

	// Notification subsystem
	notifyRepo := notify.NewRepository(notifyDB)
	notifyPublisher := notify.NewPublisher(notifyRepo, logger)
	notifyWorker := notify.NewWorker(notifyRepo, logger, recorder)

	// Services
	userService := service.NewUserService(repo, recorder)
	imageService := service.NewImageService(repo, cacheClient, mediaClient, recorder)
	imageService.SetNotifier(notifyPublisher)
	transactionService := service.NewTransactionService(repo, paymentClient, userService, recorder)

	// Usage event pipeline
	usagePublisher := analytics.NewPublisher(cacheClient.Client(), logger, recorder)
	usageWorker := analytics.NewWorker(cacheClient.Client(), repo, logger, analytics.NewConsumerID(), recorder)

	// Transformation session registry
	registry := transform.NewRegistry(cfg.SessionTTL)

	// Handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	imageHandler := handler.NewImageHandler(imageService, logger)
	userHandler := handler.NewUserHandler(userService, transactionService, logger)
	tokenHandler := handler.NewTokenHandler(logger, repo)
	usageHandler := handler.NewUsageHandler(repo, logger)
	adminHandler := handler.NewAdminHandler(repo, repo, logger)
	notificationHandler := handler.NewNotificationHandler(logger, notifyRepo)
	metricsHandler := handler.NewMetricsHandler(recorder)
	identityWebhookHandler := handler.NewIdentityWebhookHandler(identityVerifier, userService, identityClient, recorder, logger)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(cfg.PaymentWebhookSecret, transactionService, recorder, logger)
	transformHandler := handler.NewTransformHandler(handler.TransformHandlerConfig{
		Registry: registry,
		Ledger:   userService,
		Renderer: mediaClient,
		Store:    imageService,
		Images:   imageService,
		Usage:    usagePublisher,
		Notifier: notifyPublisher,
		Metrics:  recorder,
		Fee:      cfg.CreditFee,
		Debounce: cfg.SessionDebounce,
		Logger:   logger,
	})

	r := setupRouter(routerDeps{
		base:          h,
		health:        healthHandler,
		images:        imageHandler,
		users:         userHandler,
		tokens:        tokenHandler,
		usage:         usageHandler,
		admin:         adminHandler,
		notifications: notificationHandler,
		metrics:       metricsHandler,
		transform:     transformHandler,
		identityHook:  identityWebhookHandler,
		paymentHook:   paymentWebhookHandler,
		repo:          repo,
		cache:         cacheClient,
		cfg:           cfg,
		logger:        logger,
	})

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Background workers. Registered before the workers start so they are
	// the last components stopped on shutdown.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	srv.OnShutdown("transform_registry", registry.Shutdown)
	srv.OnShutdown("usage_worker", usageWorker.Shutdown)
	srv.OnShutdown("notify_worker", func(context.Context) error {
		cancelWorkers()
		return nil
	})

	go func() {
		if err := usageWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("usage worker stopped", slog.String("error", err.Error()))
		}
	}()
	go func() {
		if err := notifyWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notify worker stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runMigrations applies any pending schema migrations at startup.
func runMigrations(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything the router needs.
type routerDeps struct {
	base          *handler.Handler
	health        *handler.HealthHandler
	images        *handler.ImageHandler
	users         *handler.UserHandler
	tokens        *handler.TokenHandler
	usage         *handler.UsageHandler
	admin         *handler.AdminHandler
	notifications *handler.NotificationHandler
	metrics       *handler.MetricsHandler
	transform     *handler.TransformHandler
	identityHook  *handler.IdentityWebhookHandler
	paymentHook   *handler.PaymentWebhookHandler
	repo          *repository.Repository
	cache         *cache.Cache
	cfg           *config.Config
	logger        *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.DefaultSecurityConfig()))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	// Root info endpoint
	r.Get("/", d.base.Root)

	authCfg := middleware.AuthConfig{
		Logger:     d.logger,
		Repository: d.repo,
		Cache:      d.cache,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:               d.logger,
		Cache:                d.cache,
		APIEnabled:           d.cfg.RateLimitAPIEnabled,
		APIRequestsPerMinute: d.cfg.RateLimitAPIRPM,
		APIBurst:             d.cfg.RateLimitAPIBurst,
		WebhookEnabled:       d.cfg.RateLimitWebhookEnabled,
		WebhookRPS:           d.cfg.RateLimitWebhookRPS,
		WebhookBurst:         d.cfg.RateLimitWebhookBurst,
	}

	// Provider webhooks: unauthenticated, signature-verified, IP rate limited.
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Post("/identity", d.identityHook.Handle)
		r.Post("/payment", d.paymentHook.Handle)
	})

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// Image records and the shared gallery
		r.Route("/images", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", d.images.List)
			r.With(middleware.RequireRead()).Get("/{id}", d.images.Get)
			r.With(middleware.RequireWrite()).Post("/", d.images.Create)
			r.With(middleware.RequireWrite()).Patch("/{id}", d.images.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", d.images.Delete)
		})

		// Interactive transformation sessions
		r.Route("/transform/sessions", func(r chi.Router) {
			r.Use(middleware.RequireWrite())
			r.Post("/", d.transform.Start)
			r.Get("/{id}", d.transform.Get)
			r.Patch("/{id}/field", d.transform.EditField)
			r.Put("/{id}/aspect-ratio", d.transform.SelectAspectRatio)
			r.Post("/{id}/apply", d.transform.Apply)
			r.Post("/{id}/save", d.transform.Save)
			r.Delete("/{id}", d.transform.Close)
		})

		// Profile, credits, purchases
		r.With(middleware.RequireRead()).Get("/me", d.users.Me)
		r.With(middleware.RequireRead()).Get("/me/purchases", d.users.Purchases)
		r.With(middleware.RequireRead()).Get("/me/usage", d.usage.GetUsage)
		r.With(middleware.RequireWrite()).Post("/checkout", d.users.Checkout)

		// Access token management
		r.Route("/tokens", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", d.tokens.List)
			r.With(middleware.RequireWrite()).Post("/", d.tokens.Create)
			r.With(middleware.RequireWrite()).Delete("/{token_id}", d.tokens.Revoke)
			r.With(middleware.RequireWrite()).Post("/{token_id}/rotate", d.tokens.Rotate)
		})

		// Outbound notification endpoints
		r.Route("/notifications", func(r chi.Router) {
			r.Use(middleware.RequireWrite())
			r.Route("/endpoints", func(r chi.Router) {
				r.Get("/", d.notifications.ListEndpoints)
				r.Post("/", d.notifications.CreateEndpoint)
				r.Get("/{endpoint_id}", d.notifications.GetEndpoint)
				r.Patch("/{endpoint_id}", d.notifications.UpdateEndpoint)
				r.Delete("/{endpoint_id}", d.notifications.DeleteEndpoint)
				r.Post("/{endpoint_id}/rotate", d.notifications.RotateSecret)
				r.Get("/{endpoint_id}/deliveries", d.notifications.ListDeliveries)
			})
			r.Post("/deliveries/{delivery_id}/retry", d.notifications.RetryDelivery)
		})

		// Admin surface
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/users", d.admin.LookupUser)
			r.Get("/tokens", d.admin.ListTokensByUser)
			r.Get("/stats", d.admin.Stats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
