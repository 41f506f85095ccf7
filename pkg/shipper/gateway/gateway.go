// Package gateway is the single entry point for carrier operations. It selects
// adapters, supplies credentials, retries transient failures and normalizes
// every result and error before returning it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/health"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
	"github.com/tournevent/shipgate/pkg/shipper/waybill"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Topics published by the gateway.
const (
	TopicShipmentBooked    = "shipment.booked"
	TopicShipmentCancelled = "shipment.cancelled"
)

// CredentialSource supplies carrier credentials. *credentials.Store implements it.
type CredentialSource interface {
	Identity(carrier, tier string) (credentials.Identity, error)
	Credential(ctx context.Context, id credentials.Identity) (credentials.Credential, error)
	Invalidate(ctx context.Context, id credentials.Identity) error
}

// Publisher receives domain events. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Config holds gateway settings.
type Config struct {
	CallTimeout     time.Duration // per attempt
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// OnCall is invoked once per carrier operation with the final error kind,
	// empty on success.
	OnCall func(carrier, operation string, kind shipper.Kind, d time.Duration)
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		CallTimeout:     30 * time.Second,
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Option configures optional gateway collaborators.
type Option func(*Gateway)

// WithWaybillPool makes bookings for bulk-fetch carriers draw from pool.
func WithWaybillPool(pool *waybill.Pool) Option {
	return func(g *Gateway) { g.pool = pool }
}

// WithRateCards sets the rate-card source used for carriers without live rating.
func WithRateCards(src rating.Source) Option {
	return func(g *Gateway) { g.rates = src }
}

// WithZoneResolver overrides the default zone tables.
func WithZoneResolver(z *rating.ZoneResolver) Option {
	return func(g *Gateway) { g.zones = z }
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.events = p }
}

// WithHealthMonitor exposes monitor state through Health.
func WithHealthMonitor(m *health.Monitor) Option {
	return func(g *Gateway) { g.monitor = m }
}

// Gateway orchestrates calls across registered carrier adapters.
type Gateway struct {
	config   Config
	registry *shipper.Registry
	creds    CredentialSource
	logger   *otelzap.Logger
	tracer   trace.Tracer

	pool    *waybill.Pool
	rates   rating.Source
	zones   *rating.ZoneResolver
	events  Publisher
	monitor *health.Monitor
}

// New creates a gateway. A nil tracer uses the global tracer provider.
func New(cfg Config, registry *shipper.Registry, creds CredentialSource, logger *otelzap.Logger, tracer trace.Tracer, opts ...Option) *Gateway {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/shipgate/gateway")
	}

	g := &Gateway{
		config:   cfg,
		registry: registry,
		creds:    creds,
		logger:   logger,
		tracer:   tracer,
		zones:    rating.NewZoneResolver(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.pool != nil {
		g.registerWaybillSources()
	}
	return g
}

// registerWaybillSources wires every bulk-fetch carrier into the pool. The
// fetch goes through the same credential and retry path as user calls.
func (g *Gateway) registerWaybillSources() {
	for _, a := range g.registry.All() {
		caps := a.Capabilities()
		if !caps.WaybillFetch {
			continue
		}
		adapter := a
		g.pool.Register(adapter.Name(), caps.MaxWaybillBatch, func(ctx context.Context, count int) ([]shipper.Waybill, error) {
			return call(ctx, g, adapter, "", "FetchWaybills", func(ctx context.Context, cred credentials.Credential) ([]shipper.Waybill, error) {
				return adapter.FetchWaybills(ctx, cred, count)
			})
		})
	}
}

// call runs one adapter operation with a per-attempt timeout, retries
// transient failures with exponential backoff, and on an authentication
// failure invalidates the credential and retries exactly once.
func call[T any](ctx context.Context, g *Gateway, a shipper.Adapter, tier, op string, fn func(ctx context.Context, cred credentials.Credential) (T, error)) (T, error) {
	var zero T
	carrier := a.Name()
	start := time.Now()

	ctx, span := g.tracer.Start(ctx, "gateway."+op, trace.WithAttributes(
		attribute.String("carrier", carrier),
		attribute.String("service_tier", tier),
	))
	defer span.End()

	result, err := g.invoke(ctx, carrier, tier, op, func(ctx context.Context, cred credentials.Credential) (any, error) {
		return fn(ctx, cred)
	})

	var kind shipper.Kind
	if err != nil {
		shipErr := shipper.Normalize(carrier, err)
		kind = shipErr.Kind
		span.RecordError(shipErr)
		span.SetStatus(codes.Error, string(kind))
		g.logger.Ctx(ctx).Warn("Carrier call failed",
			zap.String("carrier", carrier),
			zap.String("operation", op),
			zap.String("kind", string(kind)),
			zap.String("code", shipErr.Code),
			zap.Error(shipErr.Cause),
		)
		err = shipErr
	}
	if g.config.OnCall != nil {
		g.config.OnCall(carrier, op, kind, time.Since(start))
	}
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

func (g *Gateway) invoke(ctx context.Context, carrier, tier, op string, fn func(ctx context.Context, cred credentials.Credential) (any, error)) (any, error) {
	id, err := g.creds.Identity(carrier, tier)
	if err != nil {
		return nil, shipper.NewError(carrier, shipper.KindAuthenticationFailed, "NO_IDENTITY", "no credentials configured").WithCause(err)
	}
	refreshed := false
	cred, err := g.creds.Credential(ctx, id)
	var authErr *credentials.AuthError
	if errors.As(err, &authErr) {
		refreshed = true
		g.logger.Ctx(ctx).Info("Forcing credential refresh after failed login",
			zap.String("carrier", carrier),
			zap.String("operation", op),
			zap.Error(err),
		)
		if err := g.creds.Invalidate(ctx, id); err != nil {
			g.logger.Ctx(ctx).Warn("Failed to invalidate credential", zap.String("carrier", carrier), zap.Error(err))
		}
		cred, err = g.creds.Credential(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	attempt := 0
	operation := func() (any, error) {
		attempt++
		res, err := g.attempt(ctx, cred, fn)
		if err == nil {
			return res, nil
		}

		kind := shipper.KindOf(err)
		if kind == shipper.KindAuthenticationFailed && !refreshed {
			refreshed = true
			g.logger.Ctx(ctx).Info("Refreshing credential after authentication failure",
				zap.String("carrier", carrier),
				zap.String("operation", op),
			)
			if err := g.creds.Invalidate(ctx, id); err != nil {
				g.logger.Ctx(ctx).Warn("Failed to invalidate credential", zap.String("carrier", carrier), zap.Error(err))
			}
			cred, err = g.creds.Credential(ctx, id)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			res, err = g.attempt(ctx, cred, fn)
			if err == nil {
				return res, nil
			}
			kind = shipper.KindOf(err)
		}

		if !kind.Transient() {
			return nil, backoff.Permanent(err)
		}
		g.logger.Ctx(ctx).Debug("Retrying carrier call",
			zap.String("carrier", carrier),
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.config.InitialInterval
	b.MaxInterval = g.config.MaxInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.config.MaxAttempts)),
	)
}

func (g *Gateway) attempt(ctx context.Context, cred credentials.Credential, fn func(ctx context.Context, cred credentials.Credential) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.CallTimeout)
	defer cancel()
	return fn(ctx, cred)
}

func (g *Gateway) adapter(carrier string) (shipper.Adapter, error) {
	a, err := g.registry.Get(carrier)
	if err != nil {
		return nil, shipper.Normalize(carrier, err)
	}
	return a, nil
}

func (g *Gateway) publish(ctx context.Context, topic, key string, payload any) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(context.WithoutCancel(ctx), topic, key, payload); err != nil {
		g.logger.Ctx(ctx).Warn("Failed to publish event",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func validation(code, format string, args ...any) *shipper.Error {
	return shipper.NewError("", shipper.KindValidationFailed, code, fmt.Sprintf(format, args...))
}
