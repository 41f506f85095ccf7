// Package ecomexpress provides integration with the Ecom Express API.
package ecomexpress

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

const (
	carrierName     = "ecomexpress"
	maxWaybillBatch = 1000
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

// Config holds Ecom Express configuration.
type Config struct {
	BaseURL   string
	AWBType   string // series fetched into the waybill pool, "PPD" or "COD"
	RateLimit float64
	UseMock   bool // When true, uses mock API client
}

// Client is the Ecom Express carrier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
}

// New creates a new Ecom Express adapter.
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

// NewWithAPIClient creates an Ecom Express adapter with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger) *Client {
	if cfg.AWBType == "" {
		cfg.AWBType = "PPD"
	}
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

// Capabilities reports bulk waybill fetch. Rates come from rate cards.
func (c *Client) Capabilities() shipper.Capabilities {
	return shipper.Capabilities{
		WaybillFetch:    true,
		MaxWaybillBatch: maxWaybillBatch,
	}
}

func login(cred credentials.Credential) Login {
	return Login{Username: cred.Username, Password: cred.Password}
}

// CheckServiceability reports whether any active route serves the pincode.
func (c *Client) CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
	rows, err := c.apiClient.Pincode(ctx, login(cred), pincode)
	if err != nil {
		c.logger.Error("Ecom Express API error", zap.String("op", "pincode"), zap.Error(err))
		return nil, err
	}

	result := &shipper.Serviceability{Carrier: carrierName, Pincode: pincode}
	for _, row := range rows {
		if !row.Active {
			continue
		}
		result.Serviceable = true
		result.PrepaidAvailable = true
		if row.CODEnabled == nil || *row.CODEnabled {
			result.CODAvailable = true
		}
	}
	return result, nil
}

// CalculateRate is not offered by Ecom Express; quotes come from rate cards.
func (c *Client) CalculateRate(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error) {
	return nil, shipper.ErrRatingUnsupported
}

// BookShipment manifests a shipment against a pooled AWB.
func (c *Client) BookShipment(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error) {
	if wb.Manual || wb.Number == "" {
		return nil, shipper.NewError(carrierName, shipper.KindValidationFailed, "WAYBILL_REQUIRED",
			"Ecom Express bookings need a pre-fetched AWB")
	}

	c.logger.Info("Manifesting Ecom Express shipment",
		zap.String("reference", req.Reference),
		zap.String("awb", wb.Number),
		zap.String("destination_pincode", req.Consignee.Pincode),
	)

	results, err := c.apiClient.Manifest(ctx, login(cred), []ManifestShipment{toManifest(req, wb)})
	if err != nil {
		c.logger.Error("Ecom Express API error", zap.String("op", "manifest"), zap.Error(err))
		return nil, err
	}
	if len(results) == 0 {
		return nil, transport.ShapeError(carrierName, "manifest response has no shipments")
	}
	r := results[0]
	if !r.Success {
		return nil, rejection(r.Reason, "manifest rejected")
	}

	awb := r.AWB.String()
	if awb == "" {
		awb = wb.Number
	}
	return &shipper.BookingResult{
		Carrier:    carrierName,
		ExternalID: awb,
		Waybill:    awb,
		Status:     shipper.StatusManifested,
	}, nil
}

// TrackShipment returns the normalized scan history.
func (c *Client) TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error) {
	obj, err := c.apiClient.Track(ctx, login(cred), externalID)
	if err != nil {
		return nil, err
	}

	scans := obj.Scans()
	events := make([]shipper.TrackingEvent, 0, len(scans))
	for _, scan := range scans {
		updated := scan.Field("updated_on")
		ts, err := parseTimestamp(updated)
		if err != nil {
			c.logger.Warn("Skipping Ecom Express scan with bad timestamp",
				zap.String("awb", externalID),
				zap.String("timestamp", updated),
			)
			continue
		}
		code := scan.Field("reason_code_number")
		text := scan.Field("status")
		events = append(events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      mapStatus(code, text),
			Location:    scan.Field("location_city"),
			Description: text,
			RawStatus:   code,
		})
	}

	return shipper.NewTimeline(carrierName, externalID, events), nil
}

// CancelShipment cancels an AWB. A refusal is reported in the result.
func (c *Client) CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
	c.logger.Info("Cancelling Ecom Express shipment", zap.String("awb", externalID))

	results, err := c.apiClient.Cancel(ctx, login(cred), []string{externalID})
	if err != nil {
		c.logger.Error("Ecom Express API error", zap.String("op", "cancel"), zap.Error(err))
		return nil, err
	}
	if len(results) == 0 {
		return nil, transport.ShapeError(carrierName, "cancel response is empty")
	}
	return &shipper.CancelResult{
		Carrier:    carrierName,
		ExternalID: externalID,
		Cancelled:  results[0].Success,
		Message:    results[0].Reason,
	}, nil
}

// FetchWaybills reserves up to maxWaybillBatch AWBs of the configured series.
func (c *Client) FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error) {
	if count > maxWaybillBatch {
		count = maxWaybillBatch
	}

	numbers, err := c.apiClient.FetchAWB(ctx, login(cred), count, c.config.AWBType)
	if err != nil {
		c.logger.Error("Ecom Express API error", zap.String("op", "fetch_awb"), zap.Error(err))
		return nil, err
	}

	out := make([]shipper.Waybill, len(numbers))
	for i, n := range numbers {
		out[i] = shipper.Waybill{Number: n, Carrier: carrierName}
	}
	return out, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func toManifest(req *shipper.BookingRequest, wb shipper.Waybill) ManifestShipment {
	d := req.Parcel.Dimensions
	m := ManifestShipment{
		AWBNumber:          wb.Number,
		OrderNumber:        req.Reference,
		Product:            "PPD",
		Consignee:          req.Consignee.Name,
		ConsigneeAddress1:  req.Consignee.Line1,
		ConsigneeAddress2:  req.Consignee.Line2,
		DestinationCity:    req.Consignee.City,
		Pincode:            req.Consignee.Pincode,
		State:              req.Consignee.State,
		Mobile:             req.Consignee.Phone,
		ItemDescription:    req.Parcel.Description,
		Pieces:             max(req.Parcel.Quantity, 1),
		DeclaredValue:      req.InvoiceValue,
		ActualWeight:       req.Parcel.Weight,
		VolumetricWeight:   math.Round(d.Length*d.Width*d.Height/5000*1000) / 1000,
		Length:             d.Length,
		Breadth:            d.Width,
		Height:             d.Height,
		PickupName:         req.Pickup.Company,
		PickupAddressLine1: req.Pickup.Line1,
		PickupAddressLine2: req.Pickup.Line2,
		PickupPincode:      req.Pickup.Pincode,
		PickupMobile:       req.Pickup.Phone,
		DGShipment:         "false",
	}
	if req.PaymentType == shipper.PaymentCOD {
		m.Product = "COD"
		m.CollectableValue = req.CollectibleAmount
	}

	ret := req.Pickup
	if req.Return != nil {
		ret = *req.Return
	}
	m.ReturnName = ret.Company
	if m.ReturnName == "" {
		m.ReturnName = ret.Name
	}
	m.ReturnAddressLine1 = ret.Line1
	m.ReturnAddressLine2 = ret.Line2
	m.ReturnPincode = ret.Pincode
	m.ReturnMobile = ret.Phone
	return m
}

var timestampLayouts = []string{
	"02 Jan, 2006, 15:04",
	"02 Jan, 2006, 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
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

// mapStatus maps an Ecom Express reason code, falling back to the status text.
func mapStatus(code, text string) shipper.ShipmentStatus {
	switch strings.TrimSpace(code) {
	case "001", "0011":
		return shipper.StatusPickedUp
	case "002", "003", "004", "005", "100":
		return shipper.StatusInTransit
	case "006":
		return shipper.StatusOutForDelivery
	case "999":
		return shipper.StatusDelivered
	case "777":
		return shipper.StatusRTOInitiated
	case "888":
		return shipper.StatusRTODelivered
	case "333":
		return shipper.StatusLost
	}

	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "rto") && strings.Contains(t, "delivered"):
		return shipper.StatusRTODelivered
	case strings.Contains(t, "rto") || strings.Contains(t, "return"):
		return shipper.StatusRTOInitiated
	case strings.Contains(t, "out for delivery"):
		return shipper.StatusOutForDelivery
	case strings.Contains(t, "undelivered") || strings.Contains(t, "not delivered") ||
		strings.Contains(t, "refused"):
		return shipper.StatusUndelivered
	case strings.Contains(t, "delivered"):
		return shipper.StatusDelivered
	case strings.Contains(t, "picked up") || strings.Contains(t, "pickup"):
		return shipper.StatusPickedUp
	case strings.Contains(t, "in-scan") || strings.Contains(t, "bagged") ||
		strings.Contains(t, "transit") || strings.Contains(t, "arrived"):
		return shipper.StatusInTransit
	case strings.Contains(t, "manifest") || strings.Contains(t, "soft data"):
		return shipper.StatusManifested
	case strings.Contains(t, "cancel"):
		return shipper.StatusCancelled
	case strings.Contains(t, "lost"):
		return shipper.StatusLost
	default:
		return shipper.StatusUnknown
	}
}

var _ shipper.Adapter = (*Client)(nil)
