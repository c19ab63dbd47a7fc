package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"carbon-scribe/credit-registry-backend/internal/config"
	"carbon-scribe/credit-registry-backend/internal/credits"
	"carbon-scribe/credit-registry-backend/internal/database"
	"carbon-scribe/credit-registry-backend/internal/events"
	"carbon-scribe/credit-registry-backend/internal/ids"
	"carbon-scribe/credit-registry-backend/internal/marketplace"
	"carbon-scribe/credit-registry-backend/internal/middleware"
	"carbon-scribe/credit-registry-backend/internal/portfolio"
	"carbon-scribe/credit-registry-backend/internal/projects"
	"carbon-scribe/credit-registry-backend/internal/router"
	"carbon-scribe/credit-registry-backend/internal/search"
	"carbon-scribe/credit-registry-backend/internal/stakeholders"
	"carbon-scribe/credit-registry-backend/internal/uploads"
	"carbon-scribe/credit-registry-backend/internal/verification"
	"carbon-scribe/credit-registry-backend/pkg/pdf"
	"carbon-scribe/credit-registry-backend/pkg/storage"
)

// app owns every long-lived component of a running server.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	stores    *database.Stores
	bus       *events.Bus
	scheduler *marketplace.ExpiryScheduler
	handler   http.Handler

	// closers run in reverse order on shutdown
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	var err error
	a.stores, err = database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := a.stores.Close(context.Background()); err != nil {
			logger.Warn("Failed to close record store", zap.Error(err))
		}
	})

	// The email sink looks recipients up through the stakeholder service,
	// which itself publishes on the bus. Events only flow once the
	// services below exist.
	var stakeholderService *stakeholders.Service
	recipients := func(ctx context.Context, projectID string) ([]string, error) {
		return stakeholderService.ContactEmails(ctx, projectID)
	}

	sinks, hub, err := a.buildSinks(ctx, recipients)
	if err != nil {
		return nil, err
	}
	a.bus = events.NewBus(logger, cfg.Events.HubBufferSize, sinks...)
	a.closers = append(a.closers, a.bus.Close)

	index, err := a.buildIndex()
	if err != nil {
		return nil, err
	}
	blobs, err := a.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	policy := verification.Policy{StrictTransitions: cfg.Workflow.StrictTransitions}
	if !policy.StrictTransitions {
		logger.Warn("Verification decisions may overwrite terminal states")
	}

	stakeholderService = stakeholders.NewService(a.stores, a.bus, logger)
	projectService := projects.NewService(a.stores, index, a.bus, logger)
	uploadService := uploads.NewService(a.stores, blobs, a.bus, uploads.Options{
		Prefix:      cfg.Storage.Prefix,
		MaxFiles:    cfg.Storage.MaxFiles,
		MaxFileSize: cfg.Storage.MaxUploadSize,
	}, logger)
	verificationService := verification.NewService(a.stores, a.bus, policy, logger)
	creditService := credits.NewService(a.stores, ids.NewSerialGenerator(),
		pdf.NewCertificateRenderer(pdf.DefaultOptions()), a.bus, cfg.Server.BaseURL(), logger)
	marketService := marketplace.NewService(a.stores, a.bus, cfg.Marketplace.DefaultCurrency, logger)
	portfolioService := portfolio.NewService(a.stores, logger)

	a.scheduler = marketplace.NewExpiryScheduler(marketService, cfg.Marketplace.ExpirySchedule, logger)

	var limiter *middleware.RateLimiter
	if cfg.Security.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(rate.Limit(cfg.Security.RequestsPerSecond), cfg.Security.Burst)
		a.closers = append(a.closers, limiter.Close)
	}

	opts := router.Options{
		Config:  cfg,
		Logger:  logger,
		Limiter: limiter,
		Handlers: []router.RouteRegistrar{
			projects.NewHandler(projectService, logger),
			stakeholders.NewHandler(stakeholderService, logger),
			uploads.NewHandler(uploadService, logger),
			verification.NewHandler(verificationService, logger),
			portfolio.NewHandler(portfolioService, logger),
			credits.NewHandler(creditService, logger),
			marketplace.NewHandler(marketService, logger),
		},
	}
	if hub != nil {
		opts.Hub = hub
	}
	a.handler = router.New(opts)
	ready = true
	return a, nil
}

func (a *app) buildSinks(ctx context.Context, recipients events.RecipientLookup) ([]events.Sink, *events.Hub, error) {
	cfg := a.cfg.Events
	sinks := []events.Sink{events.NewLogSink(a.logger)}

	if cfg.SNSTopicARN != "" || cfg.EmailEnabled {
		awsCfg, err := config.LoadAWS(ctx, a.cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SNSTopicARN != "" {
			sinks = append(sinks, events.NewSNSSink(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN))
			a.logger.Info("Publishing events to SNS", zap.String("topic", cfg.SNSTopicARN))
		}
		if cfg.EmailEnabled {
			sinks = append(sinks, events.NewEmailSink(sesv2.NewFromConfig(awsCfg), cfg.EmailFrom, recipients))
			a.logger.Info("Emailing stakeholders on verification decisions", zap.String("from", cfg.EmailFrom))
		}
	}

	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, nc.Close)
		sinks = append(sinks, events.NewNATSSink(nc, cfg.NATSSubject))
		a.logger.Info("Publishing events to NATS", zap.String("subject", cfg.NATSSubject))
	}

	var hub *events.Hub
	if cfg.WebSocketHub {
		hub = events.NewHub(a.logger, a.cfg.Security.AllowedOrigins, cfg.HubBufferSize)
		a.closers = append(a.closers, hub.Close)
		sinks = append(sinks, hub)
	}
	return sinks, hub, nil
}

func (a *app) buildIndex() (search.Index, error) {
	cfg := a.cfg.Search
	if len(cfg.Addresses) == 0 {
		return search.NewStoreIndex(a.stores.Projects), nil
	}
	index, err := search.NewElasticIndex(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}, cfg.Index)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Project search backed by Elasticsearch", zap.Strings("addresses", cfg.Addresses))
	return index, nil
}

func (a *app) buildBlobStore(ctx context.Context) (storage.BlobStore, error) {
	cfg := a.cfg.Storage
	switch cfg.Driver {
	case "", "local":
		return storage.NewLocalStore(cfg.LocalPath)
	case "s3":
		awsCfg, err := config.LoadAWS(ctx, a.cfg.AWS)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = a.cfg.AWS.Endpoint != ""
		})
		a.logger.Info("Storing uploads in S3", zap.String("bucket", cfg.Bucket))
		return storage.NewS3Store(client, cfg.Bucket), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
