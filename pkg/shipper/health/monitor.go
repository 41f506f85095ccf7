// Package health probes carriers on a fixed schedule and tracks a per-carrier
// health state. The state is advisory; callers are never blocked on it.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is a carrier health state.
type State string

const (
	StateUnknown   State = "unknown"
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status is the latest probe outcome of a carrier.
type Status struct {
	Carrier   string
	State     State
	LastProbe time.Time
	Latency   time.Duration
	LastError string
	Requests  int64
}

// Transition describes a state change.
type Transition struct {
	Carrier string
	From    State
	To      State
	At      time.Time
	Err     error
}

// CredentialFunc resolves the credential used to probe a carrier.
type CredentialFunc func(ctx context.Context, carrier string) (credentials.Credential, error)

// Config holds monitor settings.
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	SLA          time.Duration
	ProbePincode string

	// OnTransition is called after each state change.
	OnTransition func(Transition)
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     time.Minute,
		Timeout:      10 * time.Second,
		SLA:          2 * time.Second,
		ProbePincode: "110001",
	}
}

// Monitor runs serviceability probes against every registered adapter.
type Monitor struct {
	config   Config
	registry *shipper.Registry
	creds    CredentialFunc
	counter  *transport.Counter
	logger   *otelzap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a monitor. counter may be nil.
func NewMonitor(cfg Config, registry *shipper.Registry, creds CredentialFunc, counter *transport.Counter, logger *otelzap.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SLA <= 0 {
		cfg.SLA = def.SLA
	}
	if cfg.ProbePincode == "" {
		cfg.ProbePincode = def.ProbePincode
	}
	return &Monitor{
		config:   cfg,
		registry: registry,
		creds:    creds,
		counter:  counter,
		logger:   logger,
		now:      time.Now,
		statuses: make(map[string]Status),
	}
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.ProbeAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered carrier concurrently and waits for all of them.
func (m *Monitor) ProbeAll(ctx context.Context) {
	var g errgroup.Group
	for _, a := range m.registry.All() {
		g.Go(func() error {
			m.probe(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Monitor) probe(ctx context.Context, a shipper.Adapter) {
	probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	start := m.now()
	err := m.check(probeCtx, a)
	latency := m.now().Sub(start)

	m.record(a.Name(), Classify(err, latency, m.config.SLA), latency, err)
}

func (m *Monitor) check(ctx context.Context, a shipper.Adapter) error {
	cred, err := m.creds(ctx, a.Name())
	if err != nil {
		return err
	}
	_, err = a.CheckServiceability(ctx, cred, m.config.ProbePincode, "")
	return err
}

// Classify maps a probe outcome to a state.
func Classify(err error, latency, sla time.Duration) State {
	if err == nil {
		if latency > sla {
			return StateDegraded
		}
		return StateHealthy
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StateUnhealthy
	}
	switch shipper.KindOf(err) {
	case shipper.KindValidationFailed, shipper.KindNotServiceable, shipper.KindRateLimited, shipper.KindNotFound:
		return StateDegraded
	default:
		return StateUnhealthy
	}
}

func (m *Monitor) record(carrier string, state State, latency time.Duration, err error) {
	now := m.now()

	m.mu.Lock()
	prev, ok := m.statuses[carrier]
	if !ok {
		prev.State = StateUnknown
	}
	status := Status{
		Carrier:   carrier,
		State:     state,
		LastProbe: now,
		Latency:   latency,
	}
	if err != nil {
		status.LastError = err.Error()
	}
	m.statuses[carrier] = status
	m.mu.Unlock()

	if prev.State == state {
		return
	}

	fields := []zap.Field{
		zap.String("carrier", carrier),
		zap.String("from", string(prev.State)),
		zap.String("to", string(state)),
		zap.Duration("latency", latency),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if state == StateUnhealthy {
		m.logger.Warn("Carrier health changed", fields...)
	} else {
		m.logger.Info("Carrier health changed", fields...)
	}

	if m.config.OnTransition != nil {
		m.config.OnTransition(Transition{Carrier: carrier, From: prev.State, To: state, At: now, Err: err})
	}
}

// State returns the current state of carrier, StateUnknown before its first probe.
func (m *Monitor) State(carrier string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.statuses[carrier]; ok {
		return s.State
	}
	return StateUnknown
}

// Snapshot returns the status of every registered carrier, ordered by name.
func (m *Monitor) Snapshot() []Status {
	names := m.registry.Names()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(names))
	for _, name := range names {
		s, ok := m.statuses[name]
		if !ok {
			s = Status{Carrier: name, State: StateUnknown}
		}
		if m.counter != nil {
			s.Requests = m.counter.Count(name)
		}
		out = append(out, s)
	}
	return out
}
