package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/sms-dispatch-gateway/internal/api/router"
	"github.com/wolfman30/sms-dispatch-gateway/internal/command"
	appconfig "github.com/wolfman30/sms-dispatch-gateway/internal/config"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dedup"
	"github.com/wolfman30/sms-dispatch-gateway/internal/dispatch"
	"github.com/wolfman30/sms-dispatch-gateway/internal/history"
	"github.com/wolfman30/sms-dispatch-gateway/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/sms-dispatch-gateway/internal/http/middleware"
	"github.com/wolfman30/sms-dispatch-gateway/internal/line"
	"github.com/wolfman30/sms-dispatch-gateway/internal/messaging"
	"github.com/wolfman30/sms-dispatch-gateway/internal/notify"
	"github.com/wolfman30/sms-dispatch-gateway/internal/observability/metrics"
	"github.com/wolfman30/sms-dispatch-gateway/internal/quotation"
	"github.com/wolfman30/sms-dispatch-gateway/internal/recipients"
	batchworker "github.com/wolfman30/sms-dispatch-gateway/internal/worker/batch"
	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const historyCapacity = 500

// Deps carries clients the caller already connected. All fields are
// optional.
type Deps struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
	S3       recipients.S3API
	SES      notify.SESAPI
	Registry *prometheus.Registry

	// Provider and LineReplier replace the configured ones when set.
	Provider    messaging.Provider
	LineReplier line.Replier
}

// Gateway is the assembled service.
type Gateway struct {
	Service  *dispatch.Service
	Pool     *batchworker.Pool
	Handler  http.Handler
	Metrics  *metrics.DispatchMetrics
	Provider string

	cancel context.CancelFunc
}

// BuildGateway wires every component from cfg and starts the worker pool.
// Call Close to stop it.
func BuildGateway(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, deps Deps) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	dispatchMetrics := metrics.NewDispatchMetrics(registry)

	provider := deps.Provider
	if provider == nil {
		var reason string
		provider, reason = messaging.BuildProvider(messaging.ProviderSelectionConfig{
			Preference:       cfg.SMSProvider,
			CountryCode:      cfg.CountryCode,
			THBAPIKey:        cfg.THBAPIKey,
			THBAPISecret:     cfg.THBAPISecret,
			THBBaseURL:       cfg.THBBaseURL,
			THBTimeout:       cfg.THBTimeout,
			THBMaxRetries:    cfg.THBMaxRetries,
			TwilioAccountSID: cfg.TwilioAccountSID,
			TwilioAuthToken:  cfg.TwilioAuthToken,
			TwilioFromNumber: cfg.TwilioFromNumber,
		}, logger)
		if provider == nil {
			return nil, fmt.Errorf("bootstrap: sms provider unavailable: %s", reason)
		}
	}

	store, err := BuildDedupStore(cfg, deps.Redis, SQLDB(deps.Postgres), logger)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		Provider:   provider,
		Store:      store,
		Keys:       dedup.KeyBuilder{IncludeSender: cfg.DedupIncludeSender},
		Normalizer: messaging.NewPhoneNormalizer(cfg.CountryCode),
		Limiter:    dispatch.NewLimiter(cfg.SendInterval),
		Metrics:    dispatchMetrics,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	lists := buildListStore(cfg, deps.S3, logger)
	var runs history.Store = history.NewMemoryStore(historyCapacity)
	if deps.Postgres != nil {
		runs = history.NewPostgresStore(deps.Postgres)
	}

	pool := batchworker.NewPool(cfg.WorkerCount, cfg.JobQueueSize, logger)
	service, err := dispatch.NewService(dispatch.ServiceConfig{
		Sender:       dispatcher,
		Lists:        lists,
		Pool:         pool,
		History:      runs,
		Notifiers:    buildNotifiers(cfg, deps.SES, logger),
		BatchTimeout: cfg.BatchTimeout,
		Metrics:      dispatchMetrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	parser := command.Parser{
		DefaultMessage:  cfg.DefaultMessage,
		DefaultSender:   cfg.THBSenderName,
		ApprovedSenders: cfg.ApprovedSenders,
		Extensions:      cfg.ListExtensions,
	}

	runCtx, cancel := context.WithCancel(ctx)
	routerCfg := &router.Config{
		Logger:           logger,
		Status:           handlers.NewStatusHandler(time.Now()),
		ProviderCallback: handlers.NewProviderCallbackHandler(logger),
		Quotation: handlers.NewQuotationHandler(
			quotation.NewRenderer(cfg.QuotationFontPath, logger), cfg.QuotationVAT, logger,
		),
		AdminBatches: handlers.NewAdminBatchesHandler(handlers.AdminBatchesConfig{
			Service: service,
			Lists:   lists,
			Parser:  parser,
			Logger:  logger,
		}),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if cfg.WebhookRateLimit > 0 {
		routerCfg.PublicLimiter = httpmiddleware.NewRateLimiter(runCtx, cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	}
	if cfg.LineChannelSecret != "" {
		replier := deps.LineReplier
		if replier == nil {
			apiReplier, err := line.NewAPIReplier(cfg.LineChannelAccessToken, "", nil)
			if err != nil {
				cancel()
				return nil, err
			}
			replier = apiReplier
		}
		routerCfg.LineWebhook = line.NewHandler(cfg.LineChannelSecret, parser, service, replier, dispatchMetrics, logger)
	} else {
		logger.Warn("LINE_CHANNEL_SECRET not set; /webhook disabled")
	}
	if cfg.AdminJWTSecret == "" {
		logger.Info("ADMIN_JWT_SECRET not set; admin API disabled")
	}

	pool.Start(runCtx)
	logger.Info("gateway ready",
		"provider", provider.Name(),
		"dedup_backend", cfg.DedupBackend,
		"workers", cfg.WorkerCount,
		"send_interval", cfg.SendInterval.String(),
	)

	return &Gateway{
		Service:  service,
		Pool:     pool,
		Handler:  router.New(routerCfg),
		Metrics:  dispatchMetrics,
		Provider: provider.Name(),
		cancel:   cancel,
	}, nil
}

// Close cancels running jobs and waits for the workers to exit.
func (g *Gateway) Close() {
	if g == nil {
		return
	}
	g.Pool.Stop()
	g.cancel()
}

func buildListStore(cfg *appconfig.Config, s3Client recipients.S3API, logger *logging.Logger) recipients.Store {
	if cfg.ListsS3Bucket != "" && s3Client != nil {
		return recipients.NewS3Source(s3Client, cfg.ListsS3Bucket, cfg.ListsS3Prefix, logger.Logger)
	}
	return recipients.NewDirSource(cfg.ListDir)
}

func buildNotifiers(cfg *appconfig.Config, sesClient notify.SESAPI, logger *logging.Logger) []dispatch.Notifier {
	if cfg.SummaryEmailTo == "" {
		return nil
	}
	var sender notify.Mailer
	switch {
	case cfg.SendGridAPIKey != "":
		sender = notify.NewSendGridMailer(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case sesClient != nil && cfg.SESFromEmail != "":
		sender = notify.NewSESMailer(sesClient, notify.SESConfig{FromEmail: cfg.SESFromEmail}, logger)
	default:
		logger.Warn("SUMMARY_EMAIL_TO set but no email provider configured")
		return nil
	}
	return []dispatch.Notifier{notify.NewSummaryMailer(sender, cfg.SummaryEmailTo, logger)}
}
