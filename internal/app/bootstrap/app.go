package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/solhealth/match-booking/internal/api/router"
	"github.com/solhealth/match-booking/internal/booking"
	"github.com/solhealth/match-booking/internal/bookings"
	appconfig "github.com/solhealth/match-booking/internal/config"
	"github.com/solhealth/match-booking/internal/http/handlers"
	httpmiddleware "github.com/solhealth/match-booking/internal/http/middleware"
	"github.com/solhealth/match-booking/internal/matchcache"
	"github.com/solhealth/match-booking/internal/media"
	"github.com/solhealth/match-booking/internal/notify"
	"github.com/solhealth/match-booking/internal/observability/metrics"
	"github.com/solhealth/match-booking/internal/solhealth"
	"github.com/solhealth/match-booking/pkg/logging"
)

// App is the fully wired booking gateway.
type App struct {
	Handler http.Handler
	Limiter *httpmiddleware.RateLimiter
	Redis   *redis.Client
	Pool    *pgxpool.Pool
}

// Close releases the Redis client and database pool.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// Build wires the backend client, orchestrator, handlers and router from
// config. awsCfg may be nil, which disables SES and media presigning. Redis
// and Postgres are optional: without Redis the lock and match cache are
// in-process, without Postgres no attempt audit is kept.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	app := &App{
		Redis: BuildRedisClient(ctx, cfg, logger, true),
		Pool:  BuildPostgresPool(ctx, cfg.DatabaseURL, logger),
	}

	var (
		guard booking.Guard
		cache matchcache.Store
	)
	if app.Redis != nil {
		guard = booking.NewRedisGuard(app.Redis, cfg.BookingLockTTL)
		cache = matchcache.NewRedisStore(app.Redis, cfg.MatchCacheTTL)
	} else {
		guard = booking.NewLocalGuard()
		cache = matchcache.NewMemoryStore(cfg.MatchCacheTTL)
	}

	ops, err := BuildOpsAlerter(cfg, awsCfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	api := solhealth.NewClient(cfg.APIBaseURL, logger,
		solhealth.WithTimeout(cfg.APITimeout),
		solhealth.WithMatchTimeout(cfg.MatchFetchTimeout),
	)

	orchCfg := booking.Config{
		API:             api,
		Guard:           guard,
		Metrics:         bookingMetrics,
		Logger:          logger,
		DefaultLocation: booking.ResolveLocation(cfg.DefaultTimezone, "", nil),
	}
	if ops != nil {
		orchCfg.Ops = ops
	}
	var attempts handlers.AttemptLookup
	if app.Pool != nil {
		svc := bookings.NewService(bookings.NewRepository(app.Pool), logger)
		orchCfg.AttemptLog = svc
		attempts = svc
	}
	orchestrator := booking.NewOrchestrator(orchCfg)

	checks := map[string]handlers.HealthCheck{}
	if app.Redis != nil {
		rdb := app.Redis
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if app.Pool != nil {
		pool := app.Pool
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	if cfg.BookingRateLimit > 0 {
		app.Limiter = httpmiddleware.NewRateLimiter(cfg.BookingRateLimit, cfg.BookingRateBurst)
	}

	app.Handler = router.New(&router.Config{
		Logger: logger,
		MatchHandler: handlers.NewMatchHandler(handlers.MatchHandlerConfig{
			Matches:         api,
			Booker:          orchestrator,
			Cache:           cache,
			Media:           BuildMediaResolver(cfg, awsCfg, logger),
			Metrics:         bookingMetrics,
			Logger:          logger,
			Limit:           cfg.MatchLimit,
			DefaultTimezone: cfg.DefaultTimezone,
		}),
		SlotsHandler:        handlers.NewSlotsHandler(api, cfg.DefaultTimezone, logger),
		ConfirmationHandler: handlers.NewConfirmationHandler(api, attempts, logger),
		HealthHandler:       handlers.NewHealthHandler(checks),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		BookingLimiter:      app.Limiter,
	})

	logger.Info("booking gateway wired",
		"api_base_url", cfg.APIBaseURL,
		"redis", app.Redis != nil,
		"attempt_audit", app.Pool != nil,
		"ops_alerts", ops != nil,
	)
	return app, nil
}

// BuildOpsAlerter selects the email provider and returns nil when no alert
// recipient is configured.
func BuildOpsAlerter(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*notify.OpsAlerter, error) {
	var sesClient *sesv2.Client
	if awsCfg != nil {
		sesClient = sesv2.NewFromConfig(*awsCfg)
	}
	sender, err := notify.NewEmailSender(notify.ProviderConfig{
		Provider: cfg.EmailProvider,
		SendGrid: notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		},
		SES: notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SendGridFromName,
			ConfigurationSet: cfg.SESConfigSet,
		},
	}, sesClient, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: email sender: %w", err)
	}
	return notify.NewOpsAlerter(sender, cfg.OpsAlertEmail, cfg.Env, logger), nil
}

// BuildMediaResolver resolves therapist media against the configured bucket,
// presigning through S3 when enabled and AWS is configured.
func BuildMediaResolver(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *media.Resolver {
	mediaCfg := media.Config{
		Bucket:        cfg.MediaBucket,
		BucketURL:     cfg.MediaBucketURL,
		CloudFrontURL: cfg.MediaCloudFrontURL,
		PresignTTL:    cfg.MediaPresignTTL,
	}
	if cfg.MediaPresign && awsCfg != nil {
		s3Client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		mediaCfg.Presigner = s3.NewPresignClient(s3Client)
	}
	return media.NewResolver(mediaCfg, logger)
}
