package gateway

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/health"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ValidPincode reports whether s is a six-digit Indian postal code.
func ValidPincode(s string) bool {
	return pincodePattern.MatchString(s)
}

// ServiceabilityResult holds per-carrier serviceability plus the carriers that failed.
type ServiceabilityResult struct {
	Results []shipper.Serviceability
	Errors  []*shipper.Error
}

// QuoteRequest describes a shipment to price across carriers.
type QuoteRequest struct {
	Carriers          []string // empty means every registered carrier
	ServiceTier       string
	Origin            shipper.Location
	Destination       shipper.Location
	Weight            float64
	Dimensions        shipper.Dimensions
	PaymentType       shipper.PaymentType
	CollectibleAmount float64
	IncludeRTO        bool
}

// QuoteResult holds every quote, cheapest first, plus the carriers that failed.
type QuoteResult struct {
	Zone   shipper.Zone
	Quotes []shipper.ShipmentQuote
	Errors []*shipper.Error
}

// CheckServiceability checks a pincode against the named carriers, or all of them.
func (g *Gateway) CheckServiceability(ctx context.Context, pincode, tier string, carriers []string) (*ServiceabilityResult, error) {
	if !ValidPincode(pincode) {
		return nil, validation("INVALID_PINCODE", "invalid pincode %q", pincode)
	}

	adapters, errs := g.registry.Select(carriers)
	result := &ServiceabilityResult{Errors: errs}

	var mu sync.Mutex
	var eg errgroup.Group
	for _, a := range adapters {
		eg.Go(func() error {
			res, err := call(ctx, g, a, tier, "CheckServiceability", func(ctx context.Context, cred credentials.Credential) (*shipper.Serviceability, error) {
				return a.CheckServiceability(ctx, cred, pincode, tier)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, shipper.Normalize(a.Name(), err))
				return nil
			}
			result.Results = append(result.Results, *res)
			return nil
		})
	}
	_ = eg.Wait()

	sortByCarrier(result.Results, func(s shipper.Serviceability) string { return s.Carrier })
	sortByCarrier(result.Errors, func(e *shipper.Error) string { return e.Carrier })
	return result, nil
}

// GetQuotes prices a shipment on every selected carrier. Carriers with live
// rating are asked directly; the rest are priced from rate cards, one quote
// per matching card. A failing carrier never aborts the others.
func (g *Gateway) GetQuotes(ctx context.Context, req *QuoteRequest) (*QuoteResult, error) {
	if req.PaymentType == "" {
		req.PaymentType = shipper.PaymentPrepaid
	}
	zone := g.zones.DetermineZone(req.Origin, req.Destination)
	in := rating.QuoteInput{
		Zone:              zone,
		Weight:            req.Weight,
		Dimensions:        req.Dimensions,
		PaymentType:       req.PaymentType,
		CollectibleAmount: req.CollectibleAmount,
		IncludeRTO:        req.IncludeRTO,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if req.PaymentType != shipper.PaymentPrepaid && req.PaymentType != shipper.PaymentCOD {
		return nil, validation("INVALID_PAYMENT_TYPE", "unknown payment type %q", req.PaymentType)
	}

	adapters, errs := g.registry.Select(req.Carriers)
	result := &QuoteResult{Zone: zone, Errors: errs}

	var mu sync.Mutex
	var eg errgroup.Group
	for _, a := range adapters {
		eg.Go(func() error {
			quotes, err := g.quoteCarrier(ctx, a, req, in)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, shipper.Normalize(a.Name(), err))
				return nil
			}
			result.Quotes = append(result.Quotes, quotes...)
			return nil
		})
	}
	_ = eg.Wait()

	shipper.RankQuotes(result.Quotes)
	sortByCarrier(result.Errors, func(e *shipper.Error) string { return e.Carrier })
	return result, nil
}

func (g *Gateway) quoteCarrier(ctx context.Context, a shipper.Adapter, req *QuoteRequest, in rating.QuoteInput) ([]shipper.ShipmentQuote, error) {
	if a.Capabilities().LiveRating {
		raw, err := call(ctx, g, a, req.ServiceTier, "CalculateRate", func(ctx context.Context, cred credentials.Credential) (*shipper.RawRate, error) {
			return a.CalculateRate(ctx, cred, &shipper.RateRequest{
				ServiceTier:       req.ServiceTier,
				Origin:            req.Origin,
				Destination:       req.Destination,
				Weight:            req.Weight,
				Dimensions:        req.Dimensions,
				PaymentType:       req.PaymentType,
				CollectibleAmount: req.CollectibleAmount,
			})
		})
		switch {
		case err == nil:
			return []shipper.ShipmentQuote{rating.QuoteFromRate(raw, in)}, nil
		case !errors.Is(err, shipper.ErrRatingUnsupported):
			return nil, err
		}
	}

	if g.rates == nil {
		return nil, shipper.NewError(a.Name(), shipper.KindNotServiceable, "NO_RATE_CARD", "no rate cards configured")
	}
	cards, err := g.rates.RatesForZone(ctx, in.Zone, a.Name())
	if err != nil {
		return nil, shipper.NewError(a.Name(), shipper.KindServiceUnavailable, "RATE_CARDS", "rate cards unavailable").WithCause(err)
	}

	quotes := make([]shipper.ShipmentQuote, 0, len(cards))
	for _, card := range cards {
		if req.ServiceTier != "" && card.ServiceTier != "" && card.ServiceTier != req.ServiceTier {
			continue
		}
		q, err := rating.ComputeQuote(in, card)
		if err != nil {
			return nil, err
		}
		if q.Carrier == "" {
			q.Carrier = a.Name()
		}
		quotes = append(quotes, *q)
	}
	if len(quotes) == 0 {
		return nil, shipper.NewError(a.Name(), shipper.KindNotServiceable, "NO_RATE_CARD", "no rate card for zone "+string(in.Zone))
	}
	return quotes, nil
}

// BookShipment books a shipment on one carrier. Bulk-fetch carriers consume a
// pooled waybill first; the waybill is spent even if the booking then fails.
func (g *Gateway) BookShipment(ctx context.Context, carrier string, req *shipper.BookingRequest) (*shipper.BookingResult, error) {
	a, err := g.adapter(carrier)
	if err != nil {
		return nil, err
	}
	if err := validateBooking(req); err != nil {
		err.Carrier = carrier
		return nil, err
	}
	if req.Reference == "" {
		req.Reference = uuid.NewString()
	}

	var wb shipper.Waybill
	if a.Capabilities().WaybillFetch && g.pool != nil {
		wbs, err := g.pool.Take(ctx, carrier, 1)
		if err != nil {
			return nil, shipper.Normalize(carrier, err)
		}
		wb = wbs[0]
	}

	res, err := call(ctx, g, a, req.ServiceTier, "BookShipment", func(ctx context.Context, cred credentials.Credential) (*shipper.BookingResult, error) {
		return a.BookShipment(ctx, cred, req, wb)
	})
	if err != nil {
		if wb.Number != "" {
			g.logger.Ctx(ctx).Warn("Booking failed, waybill discarded",
				zap.String("carrier", carrier),
				zap.String("waybill", wb.Number),
				zap.String("reference", req.Reference),
			)
		}
		return nil, err
	}

	g.logger.Ctx(ctx).Info("Shipment booked",
		zap.String("carrier", carrier),
		zap.String("external_id", res.ExternalID),
		zap.String("reference", req.Reference),
	)
	g.publish(ctx, TopicShipmentBooked, res.ExternalID, BookedEvent{
		Carrier:    carrier,
		Reference:  req.Reference,
		ExternalID: res.ExternalID,
		Waybill:    res.Waybill,
		Status:     res.Status,
	})
	return res, nil
}

// TrackShipment fetches the current tracking timeline.
func (g *Gateway) TrackShipment(ctx context.Context, carrier, externalID string) (*shipper.TrackingTimeline, error) {
	a, err := g.adapter(carrier)
	if err != nil {
		return nil, err
	}
	if externalID == "" {
		return nil, validation("MISSING_ID", "external id is required")
	}
	return call(ctx, g, a, "", "TrackShipment", func(ctx context.Context, cred credentials.Credential) (*shipper.TrackingTimeline, error) {
		return a.TrackShipment(ctx, cred, externalID)
	})
}

// CancelShipment cancels a shipment.
func (g *Gateway) CancelShipment(ctx context.Context, carrier, externalID string) (*shipper.CancelResult, error) {
	a, err := g.adapter(carrier)
	if err != nil {
		return nil, err
	}
	if externalID == "" {
		return nil, validation("MISSING_ID", "external id is required")
	}
	res, err := call(ctx, g, a, "", "CancelShipment", func(ctx context.Context, cred credentials.Credential) (*shipper.CancelResult, error) {
		return a.CancelShipment(ctx, cred, externalID)
	})
	if err != nil {
		return nil, err
	}
	if res.Cancelled {
		g.publish(ctx, TopicShipmentCancelled, externalID, CancelledEvent{
			Carrier:    carrier,
			ExternalID: externalID,
		})
	}
	return res, nil
}

// Health returns the advisory health of every registered carrier.
func (g *Gateway) Health(_ context.Context) []health.Status {
	if g.monitor != nil {
		return g.monitor.Snapshot()
	}
	names := g.registry.Names()
	out := make([]health.Status, 0, len(names))
	for _, name := range names {
		out = append(out, health.Status{Carrier: name, State: health.StateUnknown})
	}
	return out
}

// Registry returns the adapter registry.
func (g *Gateway) Registry() *shipper.Registry {
	return g.registry
}

// BookedEvent is published on TopicShipmentBooked.
type BookedEvent struct {
	Carrier    string                 `json:"carrier"`
	Reference  string                 `json:"reference"`
	ExternalID string                 `json:"external_id"`
	Waybill    string                 `json:"waybill"`
	Status     shipper.ShipmentStatus `json:"status"`
}

// CancelledEvent is published on TopicShipmentCancelled.
type CancelledEvent struct {
	Carrier    string `json:"carrier"`
	ExternalID string `json:"external_id"`
}

func validateBooking(req *shipper.BookingRequest) *shipper.Error {
	switch {
	case req == nil:
		return validation("INVALID_BOOKING", "booking request is required")
	case !ValidPincode(req.Pickup.Pincode):
		return validation("INVALID_PINCODE", "invalid pickup pincode %q", req.Pickup.Pincode)
	case !ValidPincode(req.Consignee.Pincode):
		return validation("INVALID_PINCODE", "invalid consignee pincode %q", req.Consignee.Pincode)
	case rating.ValidateWeight(req.Parcel.Weight) != nil:
		return validation("INVALID_WEIGHT", "parcel weight must be positive and at most %v kg", rating.MaxBillableWeight)
	case rating.ValidateDimensions(req.Parcel.Dimensions) != nil:
		return validation("INVALID_DIMENSIONS", "parcel sides must be non-negative and at most %v cm", rating.MaxDimension)
	case req.PaymentType != shipper.PaymentPrepaid && req.PaymentType != shipper.PaymentCOD:
		return validation("INVALID_PAYMENT_TYPE", "unknown payment type %q", req.PaymentType)
	case req.PaymentType == shipper.PaymentCOD && req.CollectibleAmount <= 0:
		return validation("INVALID_COLLECTIBLE", "COD shipments need a collectible amount")
	}
	return nil
}

func sortByCarrier[T any](items []T, carrier func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return carrier(items[i]) < carrier(items[j])
	})
}
