package ecomexpress

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnPincode  func(ctx context.Context, login Login, pincode string) ([]PincodeInfo, error)
	OnFetchAWB func(ctx context.Context, login Login, count int, awbType string) ([]string, error)
	OnManifest func(ctx context.Context, login Login, shipments []ManifestShipment) ([]ManifestResult, error)
	OnTrack    func(ctx context.Context, login Login, awb string) (*TrackObject, error)
	OnCancel   func(ctx context.Context, login Login, awbs []string) ([]CancelResult, error)

	next atomic.Int64
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

// Pincode reports an active route.
func (m *MockAPIClient) Pincode(ctx context.Context, login Login, pincode string) ([]PincodeInfo, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnPincode != nil {
		return m.OnPincode(ctx, login, pincode)
	}
	return []PincodeInfo{{Pincode: json.Number(pincode), City: "MOCK", State: "MOCK", Route: "MK/01", DCCode: "MKD", Active: true}}, nil
}

// FetchAWB allocates sequential AWBs.
func (m *MockAPIClient) FetchAWB(ctx context.Context, login Login, count int, awbType string) ([]string, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnFetchAWB != nil {
		return m.OnFetchAWB(ctx, login, count, awbType)
	}
	end := m.next.Add(int64(count))
	awbs := make([]string, 0, count)
	for n := end - int64(count) + 1; n <= end; n++ {
		awbs = append(awbs, strconv.FormatInt(100000000+n, 10))
	}
	return awbs, nil
}

// Manifest accepts every shipment.
func (m *MockAPIClient) Manifest(ctx context.Context, login Login, shipments []ManifestShipment) ([]ManifestResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnManifest != nil {
		return m.OnManifest(ctx, login, shipments)
	}
	results := make([]ManifestResult, len(shipments))
	for i, s := range shipments {
		results[i] = ManifestResult{AWB: json.Number(s.AWBNumber), OrderNumber: s.OrderNumber, Success: true}
	}
	return results, nil
}

// Track returns a manifested-then-picked-up history.
func (m *MockAPIClient) Track(ctx context.Context, login Login, awb string) (*TrackObject, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, login, awb)
	}
	now := time.Now().In(ist)
	scan := func(at time.Time, code, status string) TrackObject {
		return TrackObject{Model: "scan_stages", Fields: []TrackField{
			{Name: "updated_on", Value: at.Format("02 Jan, 2006, 15:04")},
			{Name: "status", Value: status},
			{Name: "reason_code_number", Value: code},
			{Name: "location_city", Value: "DELHI"},
		}}
	}
	return &TrackObject{Model: "awb", Fields: []TrackField{
		{Name: "awb_number", Value: awb},
		{Name: "status", Value: "Shipment Picked Up"},
		{Name: "scans", Type: "related", Objects: []TrackObject{
			scan(now.Add(-2*time.Hour), "0011", "Shipment Picked Up"),
			scan(now.Add(-6*time.Hour), "", "Soft data uploaded"),
		}},
	}}, nil
}

// Cancel accepts every cancellation.
func (m *MockAPIClient) Cancel(ctx context.Context, login Login, awbs []string) ([]CancelResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancel != nil {
		return m.OnCancel(ctx, login, awbs)
	}
	results := make([]CancelResult, len(awbs))
	for i, a := range awbs {
		results[i] = CancelResult{AWB: json.Number(a), Success: true, Reason: "Shipment cancelled"}
	}
	return results, nil
}

var _ APIClient = (*MockAPIClient)(nil)
