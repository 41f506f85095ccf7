// Package xpressbees provides integration with the XpressBees shipment API.
package xpressbees

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const carrierName = "xpressbees"

var ist = time.FixedZone("IST", 5*60*60+30*60)

// Config holds XpressBees configuration.
type Config struct {
	BaseURL       string
	OriginPincode string            // warehouse pincode used for serviceability checks
	CourierIDs    map[string]string // service tier -> XpressBees courier id
	RateLimit     float64
	UseMock       bool // When true, uses mock API client
}

// Client is the XpressBees carrier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
}

// New creates a new XpressBees adapter.
func New(cfg Config, counter *transport.Counter, logger *otelzap.Logger) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:   cfg.BaseURL,
			Timeout:   30 * time.Second,
			RateLimit: cfg.RateLimit,
			Counter:   counter,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger)
}

// NewWithAPIClient creates an XpressBees adapter with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities reports live rating. XpressBees assigns AWBs at booking time.
func (c *Client) Capabilities() shipper.Capabilities {
	return shipper.Capabilities{LiveRating: true}
}

// Authenticator returns the login call the credential store uses to obtain
// XpressBees JWTs.
func (c *Client) Authenticator() credentials.Authenticator {
	return credentials.AuthenticatorFunc(func(ctx context.Context, id credentials.Identity) (*credentials.LoginResult, error) {
		token, err := c.apiClient.Login(ctx, id.Username, id.Password)
		if err != nil {
			return nil, err
		}
		// The lifetime comes from the JWT exp claim.
		return &credentials.LoginResult{Token: token}, nil
	})
}

// CheckServiceability checks the lane from the configured warehouse to pincode.
func (c *Client) CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
	result := &shipper.Serviceability{Carrier: carrierName, Pincode: pincode}

	req := &ServiceabilityRequest{
		Origin:      c.config.OriginPincode,
		Destination: pincode,
		PaymentType: "cod",
		OrderAmount: 1,
		Weight:      500,
	}
	options, err := c.apiClient.Serviceability(ctx, cred.Token, req)
	if err != nil {
		c.logger.Error("XpressBees API error", zap.String("op", "serviceability"), zap.Error(err))
		return nil, err
	}
	if len(options) > 0 {
		result.Serviceable = true
		result.CODAvailable = true
		result.PrepaidAvailable = true
		return result, nil
	}

	req.PaymentType = "prepaid"
	options, err = c.apiClient.Serviceability(ctx, cred.Token, req)
	if err != nil {
		c.logger.Error("XpressBees API error", zap.String("op", "serviceability"), zap.Error(err))
		return nil, err
	}
	result.PrepaidAvailable = len(options) > 0
	result.Serviceable = result.PrepaidAvailable
	return result, nil
}

// CalculateRate prices the lane and picks the option matching the service tier.
func (c *Client) CalculateRate(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error) {
	payment := "prepaid"
	amount := req.CollectibleAmount
	if req.PaymentType == shipper.PaymentCOD {
		payment = "cod"
	}

	options, err := c.apiClient.Serviceability(ctx, cred.Token, &ServiceabilityRequest{
		Origin:      req.Origin.Pincode,
		Destination: req.Destination.Pincode,
		PaymentType: payment,
		OrderAmount: amount,
		Weight:      grams(req.Weight),
		Length:      req.Dimensions.Length,
		Breadth:     req.Dimensions.Width,
		Height:      req.Dimensions.Height,
	})
	if err != nil {
		c.logger.Error("XpressBees API error", zap.String("op", "rate"), zap.Error(err))
		return nil, err
	}

	opt, ok := pickOption(options, req.ServiceTier)
	if !ok {
		return nil, shipper.NewError(carrierName, shipper.KindNotServiceable, "NO_COURIER",
			fmt.Sprintf("no %s option from %s to %s", tierOrDefault(req.ServiceTier), req.Origin.Pincode, req.Destination.Pincode))
	}

	chargeable := req.Weight
	if opt.ChargeableWeight > 0 {
		chargeable = opt.ChargeableWeight / 1000
	}
	return &shipper.RawRate{
		Carrier:          carrierName,
		ServiceTier:      req.ServiceTier,
		ServiceName:      opt.Name,
		ChargeableWeight: chargeable,
		Freight:          opt.FreightCharges,
		COD:              opt.CODCharges,
		Tax:              math.Max(0, opt.TotalCharges-opt.FreightCharges-opt.CODCharges),
		Total:            opt.TotalCharges,
	}, nil
}

// BookShipment books a shipment. The waybill argument is ignored because
// XpressBees assigns the AWB.
func (c *Client) BookShipment(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error) {
	c.logger.Info("Creating XpressBees shipment",
		zap.String("reference", req.Reference),
		zap.String("destination_pincode", req.Consignee.Pincode),
	)

	apiReq := &ShipmentRequest{
		OrderNumber:       req.Reference,
		PaymentType:       "prepaid",
		OrderAmount:       req.InvoiceValue,
		PackageWeight:     grams(req.Parcel.Weight),
		PackageLength:     req.Parcel.Dimensions.Length,
		PackageBreadth:    req.Parcel.Dimensions.Width,
		PackageHeight:     req.Parcel.Dimensions.Height,
		RequestAutoPickup: "yes",
		Consignee:         toParty(req.Consignee),
		Pickup:            toParty(req.Pickup),
		OrderItems: []OrderItem{{
			Name:  orDefault(req.Parcel.Description, "Goods"),
			Qty:   max(req.Parcel.Quantity, 1),
			Price: req.InvoiceValue,
		}},
		CourierID: c.config.CourierIDs[req.ServiceTier],
	}
	apiReq.Pickup.WarehouseName = req.Pickup.Company
	if req.PaymentType == shipper.PaymentCOD {
		apiReq.PaymentType = "cod"
		apiReq.CollectableAmount = req.CollectibleAmount
	}

	data, err := c.apiClient.CreateShipment(ctx, cred.Token, apiReq)
	if err != nil {
		c.logger.Error("XpressBees API error", zap.String("op", "create"), zap.Error(err))
		return nil, err
	}
	if data.AWBNumber == "" {
		return nil, transport.ShapeError(carrierName, "booking response has no awb_number")
	}

	status := mapStatus(data.Status)
	if status == shipper.StatusUnknown || status == shipper.StatusPending {
		status = shipper.StatusManifested
	}
	return &shipper.BookingResult{
		Carrier:    carrierName,
		ExternalID: data.AWBNumber,
		Waybill:    data.AWBNumber,
		Status:     status,
		LabelURL:   data.Label,
	}, nil
}

// TrackShipment returns the normalized scan history.
func (c *Client) TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error) {
	data, err := c.apiClient.Track(ctx, cred.Token, externalID)
	if err != nil {
		return nil, err
	}

	events := make([]shipper.TrackingEvent, 0, len(data.History))
	for _, h := range data.History {
		ts, err := parseTimestamp(h.EventTime)
		if err != nil {
			c.logger.Warn("Skipping XpressBees scan with bad timestamp",
				zap.String("awb", externalID),
				zap.String("timestamp", h.EventTime),
			)
			continue
		}
		events = append(events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      mapStatus(h.StatusCode),
			Location:    h.Location,
			Description: h.Message,
			RawStatus:   h.StatusCode,
		})
	}

	return shipper.NewTimeline(carrierName, externalID, events), nil
}

// CancelShipment cancels a booked AWB.
func (c *Client) CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
	c.logger.Info("Cancelling XpressBees shipment", zap.String("awb", externalID))

	resp, err := c.apiClient.Cancel(ctx, cred.Token, externalID)
	if err != nil {
		c.logger.Error("XpressBees API error", zap.String("op", "cancel"), zap.Error(err))
		return nil, err
	}
	return &shipper.CancelResult{
		Carrier:    carrierName,
		ExternalID: externalID,
		Cancelled:  resp.Status,
		Message:    resp.Message,
	}, nil
}

// FetchWaybills returns the manual-process marker batch; XpressBees has no
// bulk waybill API.
func (c *Client) FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error) {
	return shipper.ManualWaybills(carrierName), nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func toParty(a shipper.Address) Party {
	return Party{
		Name:     a.Name,
		Address:  a.Line1,
		Address2: a.Line2,
		City:     a.City,
		State:    a.State,
		Pincode:  a.Pincode,
		Phone:    a.Phone,
	}
}

// pickOption returns the cheapest option whose mode matches the tier:
// "express"/"air" select air services, anything else surface.
func pickOption(options []CourierOption, tier string) (CourierOption, bool) {
	wantAir := strings.EqualFold(tier, "express") || strings.EqualFold(tier, "air")

	var best CourierOption
	found := false
	for _, o := range options {
		isAir := strings.Contains(strings.ToLower(o.Name), "air")
		if isAir != wantAir {
			continue
		}
		if !found || o.TotalCharges < best.TotalCharges {
			best, found = o, true
		}
	}
	return best, found
}

func tierOrDefault(tier string) string {
	if tier == "" {
		return "surface"
	}
	return tier
}

func grams(kg float64) int {
	return int(math.Round(kg * 1000))
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"02-01-2006 15:04",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, ist); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// mapStatus maps XpressBees status codes and booking states.
func mapStatus(code string) shipper.ShipmentStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "BOOKED", "MANIFESTED":
		return shipper.StatusManifested
	case "PP", "PENDING PICKUP":
		return shipper.StatusPending
	case "PU", "PICKED UP":
		return shipper.StatusPickedUp
	case "IT", "RAD", "IN TRANSIT":
		return shipper.StatusInTransit
	case "OFD", "OUT FOR DELIVERY":
		return shipper.StatusOutForDelivery
	case "DL", "DELIVERED":
		return shipper.StatusDelivered
	case "UD", "NDR", "UNDELIVERED":
		return shipper.StatusUndelivered
	case "RT", "RT-IT", "RTO":
		return shipper.StatusRTOInitiated
	case "RT-DL", "RTO DELIVERED":
		return shipper.StatusRTODelivered
	case "LT", "LOST":
		return shipper.StatusLost
	case "CN", "CANCELLED", "CANCELED":
		return shipper.StatusCancelled
	case "EX", "EXCEPTION":
		return shipper.StatusException
	default:
		return shipper.StatusUnknown
	}
}

var _ shipper.Adapter = (*Client)(nil)
