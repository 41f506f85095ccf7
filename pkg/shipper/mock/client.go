// Package mock provides a mock carrier adapter for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

// Client is a mock carrier adapter. Every operation returns canned data unless
// the matching On* hook is set.
type Client struct {
	name string
	caps shipper.Capabilities

	OnCheckServiceability func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error)
	OnCalculateRate       func(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error)
	OnBookShipment        func(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error)
	OnTrackShipment       func(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error)
	OnCancelShipment      func(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error)
	OnFetchWaybills       func(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error)

	mu    sync.Mutex
	calls map[string]int
	seq   atomic.Int64
}

// New creates a mock adapter with no optional capabilities.
func New(name string) *Client {
	return &Client{name: name, calls: make(map[string]int)}
}

// WithCapabilities sets the advertised capabilities.
func (c *Client) WithCapabilities(caps shipper.Capabilities) *Client {
	c.caps = caps
	return c
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Client) record(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Capabilities returns the configured capabilities.
func (c *Client) Capabilities() shipper.Capabilities {
	return c.caps
}

// CheckServiceability reports every pincode as serviceable.
func (c *Client) CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
	c.record("CheckServiceability")
	if c.OnCheckServiceability != nil {
		return c.OnCheckServiceability(ctx, cred, pincode, tier)
	}
	return &shipper.Serviceability{
		Carrier:          c.name,
		Pincode:          pincode,
		Serviceable:      true,
		CODAvailable:     true,
		PrepaidAvailable: true,
	}, nil
}

// CalculateRate returns a flat live rate when live rating is advertised.
func (c *Client) CalculateRate(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error) {
	c.record("CalculateRate")
	if c.OnCalculateRate != nil {
		return c.OnCalculateRate(ctx, cred, req)
	}
	if !c.caps.LiveRating {
		return nil, shipper.ErrRatingUnsupported
	}
	return &shipper.RawRate{
		Carrier:          c.name,
		ServiceTier:      req.ServiceTier,
		ServiceName:      c.name + " Surface",
		ChargeableWeight: req.Weight,
		Freight:          50,
		Tax:              9,
		Total:            59,
	}, nil
}

// BookShipment books using the supplied waybill, or generates one.
func (c *Client) BookShipment(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error) {
	c.record("BookShipment")
	if c.OnBookShipment != nil {
		return c.OnBookShipment(ctx, cred, req, wb)
	}
	number := wb.Number
	if number == "" {
		number = fmt.Sprintf("%s-AWB-%06d", c.name, c.seq.Add(1))
	}
	return &shipper.BookingResult{
		Carrier:    c.name,
		ExternalID: number,
		Waybill:    number,
		Status:     shipper.StatusManifested,
		LabelURL:   fmt.Sprintf("https://labels.%s.mock/%s.pdf", c.name, number),
	}, nil
}

// TrackShipment returns a two-event timeline.
func (c *Client) TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error) {
	c.record("TrackShipment")
	if c.OnTrackShipment != nil {
		return c.OnTrackShipment(ctx, cred, externalID)
	}
	now := time.Now()
	return shipper.NewTimeline(c.name, externalID, []shipper.TrackingEvent{
		{Timestamp: now.Add(-2 * time.Hour), Status: shipper.StatusManifested, Location: "Mumbai", RawStatus: "Manifested"},
		{Timestamp: now.Add(-time.Hour), Status: shipper.StatusInTransit, Location: "Pune", RawStatus: "In Transit"},
	}), nil
}

// CancelShipment always succeeds.
func (c *Client) CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
	c.record("CancelShipment")
	if c.OnCancelShipment != nil {
		return c.OnCancelShipment(ctx, cred, externalID)
	}
	return &shipper.CancelResult{
		Carrier:    c.name,
		ExternalID: externalID,
		Cancelled:  true,
	}, nil
}

// FetchWaybills returns sequential waybills, or the manual marker batch when
// waybill fetch is not advertised.
func (c *Client) FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error) {
	c.record("FetchWaybills")
	if c.OnFetchWaybills != nil {
		return c.OnFetchWaybills(ctx, cred, count)
	}
	if !c.caps.WaybillFetch {
		return shipper.ManualWaybills(c.name), nil
	}
	out := make([]shipper.Waybill, count)
	for i := range out {
		out[i] = shipper.Waybill{Number: fmt.Sprintf("%s-%08d", c.name, c.seq.Add(1)), Carrier: c.name}
	}
	return out, nil
}

var _ shipper.Adapter = (*Client)(nil)
