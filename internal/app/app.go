package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/stripe-gateway/internal/config"
	"github.com/utafrali/stripe-gateway/internal/event"
	"github.com/utafrali/stripe-gateway/internal/gateway"
	handler "github.com/utafrali/stripe-gateway/internal/handler/http"
	"github.com/utafrali/stripe-gateway/internal/provider"
	mockprovider "github.com/utafrali/stripe-gateway/internal/provider/mock"
	"github.com/utafrali/stripe-gateway/internal/provider/stripe"
	"github.com/utafrali/stripe-gateway/internal/service"
	"github.com/utafrali/stripe-gateway/pkg/health"
	"github.com/utafrali/stripe-gateway/pkg/httpclient"
	pkgkafka "github.com/utafrali/stripe-gateway/pkg/kafka"
	"github.com/utafrali/stripe-gateway/pkg/tracing"
)

// App wires together all dependencies and runs the gateway service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// HTTP client with circuit breaker for provider calls.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = cfg.ProviderTimeout()
	baseClient := httpclient.New(clientCfg)

	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "stripe-api",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)

	build := providerBuilder(cfg, cbClient, logger)
	factory := gateway.NewFactory(build, cfg.Stripe.SecretAPIKey, service.NewSlogAudit(logger), logger)
	logger.Info("payment provider configured",
		slog.String("provider", cfg.Provider),
		slog.String("base_url", cfg.Stripe.BaseURL),
		slog.Bool("process_key_set", cfg.Stripe.SecretAPIKey != ""),
	)

	healthHandler := health.NewHandler(cfg.Tracing.ServiceName)
	healthHandler.Register("provider_circuit", func(context.Context) error {
		if cbClient.Open() {
			return httpclient.ErrCircuitOpen
		}
		return nil
	})

	// Kafka transaction events are optional.
	var producer *pkgkafka.Producer
	var events handler.EventPublisher
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(producer, cfg.KafkaTopic, logger)
		healthHandler.Register("kafka", producer.Ping)
		logger.Info("kafka producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("topic", cfg.KafkaTopic),
		)
	}

	source := func(actx gateway.AdapterContext) (gateway.PaymentGatewayAdapter, error) {
		adapter, err := factory.CreateAdapter(actx)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}
	gatewayHandler := handler.NewGatewayHandler(source, events, logger)

	// HTTP router.
	router := handler.NewRouter(gatewayHandler, healthHandler, cfg.Tracing.ServiceName, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.ProviderTimeout() * 3,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// providerBuilder returns the per-adapter provider constructor. The mock
// backend is shared so intents survive across requests.
func providerBuilder(cfg *config.Config, doer httpclient.Doer, logger *slog.Logger) gateway.ProviderBuilder {
	if cfg.Provider == config.ProviderMock {
		shared := mockprovider.NewProvider()
		return func(gateway.Credentials) provider.Provider { return shared }
	}
	return func(creds gateway.Credentials) provider.Provider {
		return stripe.NewClient(doer, cfg.Stripe.BaseURL, creds.SecretAPIKey, logger)
	}
}

// Run serves HTTP until ctx is canceled or the listener fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	case err := <-serveErr:
		return errors.Join(err, a.Shutdown())
	}
}

type shutdownStep struct {
	name    string
	timeout time.Duration
	run     func(context.Context) error
}

// Shutdown stops components in order: the HTTP server drains in-flight
// calls first, so their spans and events are flushed by the later steps.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	steps := []shutdownStep{
		{"http server", 5 * time.Second, a.httpServer.Shutdown},
		{"tracer", 3 * time.Second, a.tracerShutdown},
	}
	if a.producer != nil {
		steps = append(steps, shutdownStep{"kafka producer", 0, func(context.Context) error {
			return a.producer.Close()
		}})
	}

	var errs []error
	for _, step := range steps {
		if step.run == nil {
			continue
		}
		if err := a.runStep(step); err != nil {
			a.logger.Error("shutdown step failed",
				slog.String("component", step.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) runStep(step shutdownStep) error {
	ctx := context.Background()
	if step.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.timeout)
		defer cancel()
	}
	return step.run(ctx)
}
