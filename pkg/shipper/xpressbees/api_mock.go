package xpressbees

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/shipgate/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnLogin          func(ctx context.Context, email, password string) (string, error)
	OnServiceability func(ctx context.Context, token string, req *ServiceabilityRequest) ([]CourierOption, error)
	OnCreateShipment func(ctx context.Context, token string, req *ShipmentRequest) (*ShipmentData, error)
	OnTrack          func(ctx context.Context, token, awb string) (*TrackData, error)
	OnCancel         func(ctx context.Context, token, awb string) (*CancelResponse, error)

	seq atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) simulate() error {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
	if m.SimulateErrors {
		return shipper.NewError(carrierName, shipper.KindServiceUnavailable, "MOCK_ERROR", "Simulated API error")
	}
	return nil
}

// Login returns an opaque token.
func (m *MockAPIClient) Login(ctx context.Context, email, password string) (string, error) {
	if err := m.simulate(); err != nil {
		return "", err
	}
	if m.OnLogin != nil {
		return m.OnLogin(ctx, email, password)
	}
	return "xb-mock-" + uuid.New().String()[:8], nil
}

// Serviceability returns a surface and an air option.
func (m *MockAPIClient) Serviceability(ctx context.Context, token string, req *ServiceabilityRequest) ([]CourierOption, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnServiceability != nil {
		return m.OnServiceability(ctx, token, req)
	}

	var cod float64
	if req.PaymentType == "cod" {
		cod = 30
	}
	return []CourierOption{
		{ID: "1", Name: "Surface Xpressbees 0.5 K.G", FreightCharges: 48, CODCharges: cod, TotalCharges: (48 + cod) * 1.18, ChargeableWeight: float64(req.Weight)},
		{ID: "6", Name: "Air Xpressbees 0.5 K.G", FreightCharges: 85, CODCharges: cod, TotalCharges: (85 + cod) * 1.18, ChargeableWeight: float64(req.Weight)},
	}, nil
}

// CreateShipment books with a generated AWB.
func (m *MockAPIClient) CreateShipment(ctx context.Context, token string, req *ShipmentRequest) (*ShipmentData, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, token, req)
	}

	n := m.seq.Add(1)
	awb := fmt.Sprintf("1419%010d", n)
	return &ShipmentData{
		OrderID:     1000 + n,
		ShipmentID:  5000 + n,
		AWBNumber:   awb,
		CourierName: "Surface Xpressbees 0.5 K.G",
		Status:      "booked",
		Label:       fmt.Sprintf("https://shipment.xpressbees.mock/label/%s.pdf", awb),
	}, nil
}

// Track returns a pickup-then-transit history.
func (m *MockAPIClient) Track(ctx context.Context, token, awb string) (*TrackData, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, awb)
	}

	now := time.Now().In(ist)
	return &TrackData{
		AWBNumber: awb,
		Status:    "in transit",
		History: []ScanEvent{
			{StatusCode: "PU", Location: "Delhi", EventTime: now.Add(-6 * time.Hour).Format("2006-01-02 15:04"), Message: "Shipment picked up"},
			{StatusCode: "IT", Location: "Jaipur", EventTime: now.Add(-time.Hour).Format("2006-01-02 15:04"), Message: "In transit"},
		},
	}, nil
}

// Cancel accepts every cancellation.
func (m *MockAPIClient) Cancel(ctx context.Context, token, awb string) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancel != nil {
		return m.OnCancel(ctx, token, awb)
	}
	return &CancelResponse{Status: true, Message: "Shipment cancelled successfully"}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
