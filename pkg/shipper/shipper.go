// Package shipper provides an abstraction layer for courier carriers.
package shipper

import (
	"context"

	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

// Adapter defines the capability set every carrier integration implements.
// Adapters translate carrier field names, date formats and status codes into
// the shapes in this package; nothing carrier-specific crosses this boundary.
type Adapter interface {
	// Name returns the carrier identifier (e.g., "delhivery", "xpressbees").
	Name() string

	// Capabilities reports optional features such as live rating and bulk waybill fetch.
	Capabilities() Capabilities

	// CheckServiceability reports whether the carrier delivers to a pincode.
	CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*Serviceability, error)

	// CalculateRate returns a live rate, or ErrRatingUnsupported.
	CalculateRate(ctx context.Context, cred credentials.Credential, req *RateRequest) (*RawRate, error)

	// BookShipment creates a shipment. wb is the zero value for carriers that
	// assign waybills themselves.
	BookShipment(ctx context.Context, cred credentials.Credential, req *BookingRequest, wb Waybill) (*BookingResult, error)

	// TrackShipment returns the current tracking timeline.
	TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*TrackingTimeline, error)

	// CancelShipment cancels an existing shipment.
	CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*CancelResult, error)

	// FetchWaybills reserves a batch of waybills. Carriers without bulk fetch
	// return ManualWaybills instead of an error.
	FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]Waybill, error)
}
