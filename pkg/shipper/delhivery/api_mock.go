package delhivery

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnPincodeServiceability func(ctx context.Context, token, pincode string) (*PincodeResponse, error)
	OnInvoiceCharges        func(ctx context.Context, token string, req *ChargesRequest) ([]Charge, error)
	OnFetchWaybills         func(ctx context.Context, token string, count int) ([]string, error)
	OnCreateShipment        func(ctx context.Context, token string, req *CreateRequest) (*CreateResponse, error)
	OnTrack                 func(ctx context.Context, token, waybill string) (*TrackResponse, error)
	OnCancel                func(ctx context.Context, token, waybill string) (*CancelResponse, error)

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

// PincodeServiceability reports every pincode as fully serviced.
func (m *MockAPIClient) PincodeServiceability(ctx context.Context, token, pincode string) (*PincodeResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnPincodeServiceability != nil {
		return m.OnPincodeServiceability(ctx, token, pincode)
	}

	pin, _ := strconv.Atoi(pincode)
	return &PincodeResponse{
		DeliveryCodes: []DeliveryCode{{
			PostalCode: PostalCode{Pin: pin, PrePaid: "Y", Cash: "Y", COD: "Y", Pickup: "Y"},
		}},
	}, nil
}

// InvoiceCharges returns a fixed surface charge.
func (m *MockAPIClient) InvoiceCharges(ctx context.Context, token string, req *ChargesRequest) ([]Charge, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnInvoiceCharges != nil {
		return m.OnInvoiceCharges(ctx, token, req)
	}

	charge := Charge{ChargedWeight: float64(req.WeightGrams), ChargeDL: 62, TaxData: TaxData{IGST: 11.16}}
	if req.PaymentType == "COD" {
		charge.ChargeCOD = 35
		charge.TaxData.IGST += 6.3
	}
	charge.GrossAmount = charge.ChargeDL + charge.ChargeCOD
	charge.TotalAmount = charge.GrossAmount + charge.TaxData.IGST
	return []Charge{charge}, nil
}

// FetchWaybills returns sequential waybills.
func (m *MockAPIClient) FetchWaybills(ctx context.Context, token string, count int) ([]string, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnFetchWaybills != nil {
		return m.OnFetchWaybills(ctx, token, count)
	}

	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("1490%010d", m.seq.Add(1))
	}
	return out, nil
}

// CreateShipment accepts every shipment.
func (m *MockAPIClient) CreateShipment(ctx context.Context, token string, req *CreateRequest) (*CreateResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, token, req)
	}

	resp := &CreateResponse{Success: true}
	for _, s := range req.Shipments {
		resp.Packages = append(resp.Packages, PackageResult{Waybill: s.Waybill, Status: "Success", RefNum: s.Order})
	}
	return resp, nil
}

// Track returns a manifested-then-in-transit history.
func (m *MockAPIClient) Track(ctx context.Context, token, waybill string) (*TrackResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnTrack != nil {
		return m.OnTrack(ctx, token, waybill)
	}

	now := time.Now().In(ist)
	layout := "2006-01-02T15:04:05.000"
	return &TrackResponse{
		ShipmentData: []ShipmentData{{
			Shipment: TrackedShipment{
				AWB:    waybill,
				Status: ShipmentStat{Status: "In Transit", StatusType: "UD"},
				Scans: []ScanItem{
					{ScanDetail: ScanDetail{Scan: "Manifested", ScanType: "UD", ScanDateTime: now.Add(-4 * time.Hour).Format(layout), ScannedLocation: "Mumbai_Bhiwandi_HB (Maharashtra)"}},
					{ScanDetail: ScanDetail{Scan: "In Transit", ScanType: "UD", ScanDateTime: now.Add(-time.Hour).Format(layout), ScannedLocation: "Pune_Sanaswadi_GW (Maharashtra)"}},
				},
			},
		}},
	}, nil
}

// Cancel accepts every cancellation.
func (m *MockAPIClient) Cancel(ctx context.Context, token, waybill string) (*CancelResponse, error) {
	if err := m.simulate(); err != nil {
		return nil, err
	}
	if m.OnCancel != nil {
		return m.OnCancel(ctx, token, waybill)
	}
	return &CancelResponse{Status: true, Waybill: waybill, Remark: "Shipment has been cancelled"}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
