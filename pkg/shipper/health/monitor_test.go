package health_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/health"
	"github.com/tournevent/shipgate/pkg/shipper/mock"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func staticCreds(ctx context.Context, carrier string) (credentials.Credential, error) {
	return credentials.Credential{Scheme: credentials.SchemeStaticToken, Token: "tok"}, nil
}

func newMonitor(t *testing.T, cfg health.Config, adapters ...shipper.Adapter) *health.Monitor {
	t.Helper()
	registry := shipper.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	return health.NewMonitor(cfg, registry, staticCreds, nil, otelzap.New(zap.NewNop()))
}

func TestClassify(t *testing.T) {
	sla := time.Second

	tests := []struct {
		name    string
		err     error
		latency time.Duration
		want    health.State
	}{
		{"fast success", nil, 100 * time.Millisecond, health.StateHealthy},
		{"slow success", nil, 3 * time.Second, health.StateDegraded},
		{"rate limited", shipper.NewError("x", shipper.KindRateLimited, "429", "slow down"), 0, health.StateDegraded},
		{"validation", shipper.NewError("x", shipper.KindValidationFailed, "BAD", "bad pincode"), 0, health.StateDegraded},
		{"not serviceable", shipper.NewError("x", shipper.KindNotServiceable, "NS", "no"), 0, health.StateDegraded},
		{"auth", shipper.NewError("x", shipper.KindAuthenticationFailed, "401", "denied"), 0, health.StateUnhealthy},
		{"unavailable", shipper.NewError("x", shipper.KindServiceUnavailable, "503", "down"), 0, health.StateUnhealthy},
		{"bad shape", shipper.NewError("x", shipper.KindUnexpectedResponseShape, "DECODE", "garbage"), 0, health.StateUnhealthy},
		{"timeout", context.DeadlineExceeded, 0, health.StateUnhealthy},
		{"login failed", &credentials.AuthError{Carrier: "x", Cause: errors.New("bad password")}, 0, health.StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, health.Classify(tt.err, tt.latency, sla))
		})
	}
}

func TestMonitor_UnknownBeforeFirstProbe(t *testing.T) {
	m := newMonitor(t, health.Config{}, mock.New("delhivery"))

	assert.Equal(t, health.StateUnknown, m.State("delhivery"))
	assert.Equal(t, health.StateUnknown, m.State("nobody"))

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, health.StateUnknown, snap[0].State)
}

func TestMonitor_ProbeAll(t *testing.T) {
	healthy := mock.New("delhivery")

	down := mock.New("xpressbees")
	down.OnCheckServiceability = func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
		return nil, shipper.NewError("xpressbees", shipper.KindServiceUnavailable, "503", "maintenance")
	}

	throttled := mock.New("bluedart")
	throttled.OnCheckServiceability = func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
		return nil, shipper.NewError("bluedart", shipper.KindRateLimited, "429", "too many requests")
	}

	var mu sync.Mutex
	var transitions []health.Transition
	m := newMonitor(t, health.Config{
		ProbePincode: "400001",
		OnTransition: func(tr health.Transition) {
			mu.Lock()
			transitions = append(transitions, tr)
			mu.Unlock()
		},
	}, healthy, down, throttled)

	m.ProbeAll(context.Background())

	assert.Equal(t, health.StateHealthy, m.State("delhivery"))
	assert.Equal(t, health.StateUnhealthy, m.State("xpressbees"))
	assert.Equal(t, health.StateDegraded, m.State("bluedart"))

	snap := m.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "bluedart", snap[0].Carrier)
	assert.Contains(t, snap[2].LastError, "maintenance")
	assert.False(t, snap[1].LastProbe.IsZero())

	mu.Lock()
	assert.Len(t, transitions, 3)
	for _, tr := range transitions {
		assert.Equal(t, health.StateUnknown, tr.From)
	}
	mu.Unlock()
}

func TestMonitor_TransitionsOnlyOnChange(t *testing.T) {
	var mu sync.Mutex
	fail := false
	adapter := mock.New("delhivery")
	adapter.OnCheckServiceability = func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return nil, shipper.NewError("delhivery", shipper.KindAuthenticationFailed, "401", "token expired")
		}
		return &shipper.Serviceability{Carrier: "delhivery", Pincode: pincode, Serviceable: true}, nil
	}

	var transitions []health.Transition
	m := newMonitor(t, health.Config{
		OnTransition: func(tr health.Transition) { transitions = append(transitions, tr) },
	}, adapter)

	ctx := context.Background()
	m.ProbeAll(ctx)
	m.ProbeAll(ctx)

	mu.Lock()
	fail = true
	mu.Unlock()
	m.ProbeAll(ctx)

	require.Len(t, transitions, 2)
	assert.Equal(t, health.StateHealthy, transitions[0].To)
	assert.Equal(t, health.StateHealthy, transitions[1].From)
	assert.Equal(t, health.StateUnhealthy, transitions[1].To)
	assert.Error(t, transitions[1].Err)
	assert.Equal(t, 3, adapter.Calls("CheckServiceability"))
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	adapter := mock.New("delhivery")
	adapter.OnCheckServiceability = func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m := newMonitor(t, health.Config{Timeout: 20 * time.Millisecond}, adapter)
	m.ProbeAll(context.Background())

	assert.Equal(t, health.StateUnhealthy, m.State("delhivery"))
}

func TestMonitor_CredentialFailureIsUnhealthy(t *testing.T) {
	registry := shipper.NewRegistry()
	adapter := mock.New("xpressbees")
	registry.Register(adapter)

	creds := func(ctx context.Context, carrier string) (credentials.Credential, error) {
		return credentials.Credential{}, &credentials.AuthError{Carrier: carrier, Cause: errors.New("invalid login")}
	}
	m := health.NewMonitor(health.Config{}, registry, creds, nil, otelzap.New(zap.NewNop()))
	m.ProbeAll(context.Background())

	assert.Equal(t, health.StateUnhealthy, m.State("xpressbees"))
	assert.Equal(t, 0, adapter.Calls("CheckServiceability"))
}

func TestMonitor_SnapshotIncludesRequestCount(t *testing.T) {
	registry := shipper.NewRegistry()
	registry.Register(mock.New("delhivery"))

	counter := transport.NewCounter()
	m := health.NewMonitor(health.Config{}, registry, staticCreds, counter, otelzap.New(zap.NewNop()))
	m.ProbeAll(context.Background())

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(0), snap[0].Requests)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	adapter := mock.New("delhivery")
	m := newMonitor(t, health.Config{Interval: 10 * time.Millisecond}, adapter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return adapter.Calls("CheckServiceability") >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, health.StateHealthy, m.State("delhivery"))
}
