package bluedart

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnServicesForPincode func(ctx context.Context, token, pincode string) (*PincodeServices, error)
	OnGenerateWayBill    func(ctx context.Context, token string, req *WayBillRequest) (*WayBillResult, error)
	OnTrack              func(ctx context.Context, token, awb string) (*TrackedShipment, error)
	OnCancelWaybill      func(ctx context.Context, token, awb string) (*CancelResult, error)

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

// ServicesForPincode reports every service available.
func (m *MockAPIClient) ServicesForPincode(ctx context.Context, token, pincode string) (*PincodeServices, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnServicesForPincode != nil {
		return m.OnServicesForPincode(ctx, token, pincode)
	}
	return &PincodeServices{
		PinCode:                pincode,
		AreaCode:               "BOM",
		ApexInbound:            "Yes",
		GroundInbound:          "Yes",
		ETailCODAirInbound:     "Yes",
		ETailPrePaidAirInbound: "Yes",
		ETailCODGroundInbound:  "Yes",
		ETailPrePaidGround:     "Yes",
	}, nil
}

// GenerateWayBill assigns a sequential AWB.
func (m *MockAPIClient) GenerateWayBill(ctx context.Context, token string, req *WayBillRequest) (*WayBillResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnGenerateWayBill != nil {
		return m.OnGenerateWayBill(ctx, token, req)
	}
	n := m.seq.Add(1)
	return &WayBillResult{
		AWBNo:           fmt.Sprintf("7798%07d", n),
		DestinationArea: "BOM",
		Status:          []ResultStatus{{StatusCode: "Valid", StatusInformation: "Waybill Generation Sucessful"}},
	}, nil
}

// Track returns a pickup-then-transit history.
func (m *MockAPIClient) Track(ctx context.Context, token, awb string) (*TrackedShipment, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, awb)
	}
	now := time.Now().In(ist)
	pickup := now.Add(-8 * time.Hour)
	transit := now.Add(-2 * time.Hour)
	return &TrackedShipment{
		WaybillNo: awb,
		Status:    "In Transit",
		Scans: []ScanItem{
			{ScanDetail: ScanDetail{Scan: "In Transit", ScanCode: "002", ScanType: "UD", ScanDate: transit.Format("02-Jan-2006"), ScanTime: transit.Format("15:04"), ScannedLocation: "MUMBAI HUB"}},
			{ScanDetail: ScanDetail{Scan: "Shipment Picked Up", ScanCode: "015", ScanType: "PU", ScanDate: pickup.Format("02-Jan-2006"), ScanTime: pickup.Format("15:04"), ScannedLocation: "DELHI"}},
		},
	}, nil
}

// CancelWaybill accepts every cancellation.
func (m *MockAPIClient) CancelWaybill(ctx context.Context, token, awb string) (*CancelResult, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancelWaybill != nil {
		return m.OnCancelWaybill(ctx, token, awb)
	}
	return &CancelResult{AWBNo: awb, Status: []ResultStatus{{StatusCode: "Valid", StatusInformation: "Waybill Cancelled"}}}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
