package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tournevent/shipgate/internal/config"
	"github.com/tournevent/shipgate/internal/events"
	"github.com/tournevent/shipgate/internal/telemetry"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/bluedart"
	"github.com/tournevent/shipgate/pkg/shipper/cache"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/delhivery"
	"github.com/tournevent/shipgate/pkg/shipper/ecomexpress"
	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/tournevent/shipgate/pkg/shipper/health"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/tournevent/shipgate/pkg/shipper/waybill"
	"github.com/tournevent/shipgate/pkg/shipper/xpressbees"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

func initMetrics() (*prometheus.Registry, *telemetry.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, telemetry.NewMetrics(reg)
}

// app holds the wired gateway and everything that needs closing.
type app struct {
	cfg      *config.Config
	logger   *otelzap.Logger
	metrics  *telemetry.Metrics
	registry *shipper.Registry
	gateway  *gateway.Gateway
	monitor  *health.Monitor
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, logger *otelzap.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics}

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
	}

	store, err := initCredentials(cfg, rdb, metrics, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	counter := transport.NewCounter()
	counter.OnCall = metrics.RecordCarrierCall
	a.registry = initShipperRegistry(cfg, counter, store, logger)

	rates, closeRates, err := initRateCards(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if closeRates != nil {
		a.closers = append(a.closers, closeRates)
	}

	publisher := initPublisher(cfg, logger)
	a.closers = append(a.closers, publisher.Close)

	a.monitor = initMonitor(cfg, a.registry, store, counter, metrics, publisher, logger)

	var backlog waybill.Backlog = waybill.NewMemoryBacklog()
	if rdb != nil {
		backlog = waybill.NewRedisBacklog(rdb, "")
	}
	pool := waybill.NewPool(waybill.Config{
		Floor:  cfg.WaybillFloor,
		OnSize: metrics.SetWaybillBacklog,
	}, backlog, logger)

	gwCfg := gateway.DefaultConfig()
	gwCfg.CallTimeout = cfg.CallTimeout
	gwCfg.MaxAttempts = cfg.MaxAttempts
	gwCfg.OnCall = func(carrier, operation string, kind shipper.Kind, d time.Duration) {
		status := "success"
		if kind != "" {
			status = "error"
			metrics.RecordError(carrier, string(kind))
		}
		metrics.RecordRequest(operation, carrier, status, d.Seconds())
	}

	opts := []gateway.Option{
		gateway.WithWaybillPool(pool),
		gateway.WithPublisher(publisher),
		gateway.WithHealthMonitor(a.monitor),
	}
	if rates != nil {
		opts = append(opts, gateway.WithRateCards(rates))
	}
	a.gateway = gateway.New(gwCfg, a.registry, store, logger, tracer, opts...)

	return a, nil
}

func initCredentials(cfg *config.Config, rdb redis.UniversalClient, metrics *telemetry.Metrics, logger *otelzap.Logger) (*credentials.Store, error) {
	var tokens cache.Cache = cache.NewMemory(256, 24*time.Hour)
	if rdb != nil {
		tokens = cache.NewRedis(rdb, "shipgate:tokens:")
	}

	store := credentials.NewStore(credentials.Config{SafetyMargin: cfg.TokenMargin}, tokens, logger)
	store.OnRefresh(metrics.RecordTokenRefresh)

	for _, id := range cfg.Identities() {
		store.RegisterIdentity(id)
	}
	if cfg.RateCardsFile != "" {
		ids, err := config.LoadIdentities(cfg.RateCardsFile)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			store.RegisterIdentity(id)
		}
	}
	return store, nil
}

func initShipperRegistry(cfg *config.Config, counter *transport.Counter, store *credentials.Store, logger *otelzap.Logger) *shipper.Registry {
	registry := shipper.NewRegistry()

	// Register enabled carriers
	if cfg.DelhiveryEnabled {
		registry.Register(delhivery.New(delhivery.Config{
			BaseURL:        cfg.DelhiveryBaseURL,
			PickupLocation: cfg.DelhiveryPickupLocation,
			RateLimit:      cfg.DelhiveryRateLimit,
			UseMock:        cfg.DelhiveryUseMock,
		}, counter, logger))
	}

	if cfg.XpressbeesEnabled {
		xb := xpressbees.New(xpressbees.Config{
			BaseURL:       cfg.XpressbeesBaseURL,
			OriginPincode: cfg.XpressbeesOriginPincode,
			CourierIDs:    cfg.XpressbeesCourierIDs,
			RateLimit:     cfg.XpressbeesRateLimit,
			UseMock:       cfg.XpressbeesUseMock,
		}, counter, logger)
		registry.Register(xb)
		store.RegisterAuthenticator(xb.Name(), xb.Authenticator())
	}

	if cfg.BluedartEnabled {
		registry.Register(bluedart.New(bluedart.Config{
			BaseURL:      cfg.BluedartBaseURL,
			LoginID:      cfg.BluedartLoginID,
			LicenceKey:   cfg.BluedartLicenceKey,
			CustomerCode: cfg.BluedartCustomerCode,
			OriginArea:   cfg.BluedartOriginArea,
			RateLimit:    cfg.BluedartRateLimit,
			UseMock:      cfg.BluedartUseMock,
		}, counter, logger))
	}

	if cfg.EcomEnabled {
		registry.Register(ecomexpress.New(ecomexpress.Config{
			BaseURL:   cfg.EcomBaseURL,
			AWBType:   cfg.EcomAWBType,
			RateLimit: cfg.EcomRateLimit,
			UseMock:   cfg.EcomUseMock,
		}, counter, logger))
	}

	return registry
}

// initRateCards prefers Postgres when configured, then the rate-card file.
// With neither, only carriers with live rating can be quoted.
func initRateCards(ctx context.Context, cfg *config.Config) (rating.Source, func() error, error) {
	if cfg.PostgresDSN != "" {
		pg, err := rating.OpenPostgresRateCards(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	if cfg.RateCardsFile != "" {
		cards, err := rating.LoadStaticRateCards(cfg.RateCardsFile)
		if err != nil {
			return nil, nil, err
		}
		return cards, nil, nil
	}
	return nil, nil, nil
}

type closingPublisher interface {
	gateway.Publisher
	Close() error
}

func initPublisher(cfg *config.Config, logger *otelzap.Logger) closingPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Nop{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
}

func initMonitor(cfg *config.Config, registry *shipper.Registry, store *credentials.Store, counter *transport.Counter, metrics *telemetry.Metrics, publisher gateway.Publisher, logger *otelzap.Logger) *health.Monitor {
	creds := func(ctx context.Context, carrier string) (credentials.Credential, error) {
		id, err := store.Identity(carrier, "")
		if err != nil {
			return credentials.Credential{}, err
		}
		return store.Credential(ctx, id)
	}

	for _, name := range registry.Names() {
		metrics.SetHealth(name, string(health.StateUnknown))
	}

	return health.NewMonitor(health.Config{
		Interval:     cfg.MonitorInterval,
		SLA:          cfg.MonitorSLA,
		ProbePincode: cfg.ProbePincode,
		OnTransition: func(t health.Transition) {
			metrics.SetHealth(t.Carrier, string(t.To))

			ev := events.HealthEvent{
				Carrier: t.Carrier,
				From:    string(t.From),
				To:      string(t.To),
				At:      t.At,
			}
			if t.Err != nil {
				ev.Error = t.Err.Error()
			}
			if err := publisher.Publish(context.Background(), events.TopicCarrierHealth, t.Carrier, ev); err != nil {
				logger.Warn("Failed to publish health transition", zap.String("carrier", t.Carrier), zap.Error(err))
			}
		},
	}, registry, creds, counter, logger)
}
