// Package delhivery provides integration with the Delhivery express API.
package delhivery

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	carrierName     = "delhivery"
	maxWaybillBatch = 10000
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

// Config holds Delhivery configuration.
type Config struct {
	BaseURL        string
	PickupLocation string // warehouse name registered with Delhivery
	RateLimit      float64
	UseMock        bool // When true, uses mock API client
}

// Client is the Delhivery carrier adapter. It implements shipper.Adapter and
// delegates API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
}

// New creates a new Delhivery adapter.
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

// NewWithAPIClient creates a Delhivery adapter with a custom API client.
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

// Capabilities reports live rating and bulk waybill fetch.
func (c *Client) Capabilities() shipper.Capabilities {
	return shipper.Capabilities{
		LiveRating:      true,
		WaybillFetch:    true,
		MaxWaybillBatch: maxWaybillBatch,
	}
}

// CheckServiceability checks whether Delhivery delivers to a pincode.
func (c *Client) CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
	resp, err := c.apiClient.PincodeServiceability(ctx, cred.Token, pincode)
	if err != nil {
		c.logger.Error("Delhivery API error", zap.String("op", "pincode"), zap.Error(err))
		return nil, err
	}

	result := &shipper.Serviceability{Carrier: carrierName, Pincode: pincode}
	if len(resp.DeliveryCodes) == 0 {
		return result, nil
	}

	pc := resp.DeliveryCodes[0].PostalCode
	if strings.EqualFold(pc.Remarks, "embargo") {
		return result, nil
	}
	result.PrepaidAvailable = isYes(pc.PrePaid)
	result.CODAvailable = isYes(pc.COD) || isYes(pc.Cash)
	result.Serviceable = result.PrepaidAvailable || result.CODAvailable
	return result, nil
}

// CalculateRate returns Delhivery's live invoice charge.
func (c *Client) CalculateRate(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error) {
	paymentType := "Pre-paid"
	var codAmount float64
	if req.PaymentType == shipper.PaymentCOD {
		paymentType = "COD"
		codAmount = req.CollectibleAmount
	}

	charges, err := c.apiClient.InvoiceCharges(ctx, cred.Token, &ChargesRequest{
		Mode:          modeCode(req.ServiceTier),
		OriginPin:     req.Origin.Pincode,
		DestPin:       req.Destination.Pincode,
		WeightGrams:   grams(req.Weight),
		PaymentType:   paymentType,
		CODAmount:     codAmount,
		ShipmentState: "Delivered",
	})
	if err != nil {
		c.logger.Error("Delhivery API error", zap.String("op", "charges"), zap.Error(err))
		return nil, err
	}
	if len(charges) == 0 {
		return nil, transport.ShapeError(carrierName, "empty charges response")
	}

	ch := charges[0]
	return &shipper.RawRate{
		Carrier:          carrierName,
		ServiceTier:      req.ServiceTier,
		ServiceName:      serviceName(req.ServiceTier),
		ChargeableWeight: ch.ChargedWeight / 1000,
		Freight:          ch.ChargeDL,
		COD:              ch.ChargeCOD,
		RTO:              ch.ChargeRTO,
		Tax:              ch.TaxData.IGST + ch.TaxData.CGST + ch.TaxData.SGST,
		Total:            ch.TotalAmount,
	}, nil
}

// BookShipment manifests a shipment against a pre-fetched waybill.
func (c *Client) BookShipment(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error) {
	if wb.Number == "" || wb.Manual {
		return nil, shipper.NewError(carrierName, shipper.KindValidationFailed, "WAYBILL_REQUIRED", "a pre-fetched waybill is required")
	}

	c.logger.Info("Creating Delhivery shipment",
		zap.String("waybill", wb.Number),
		zap.String("reference", req.Reference),
		zap.String("destination_pincode", req.Consignee.Pincode),
	)

	pickup := c.config.PickupLocation
	if pickup == "" {
		pickup = req.Pickup.Name
	}

	resp, err := c.apiClient.CreateShipment(ctx, cred.Token, &CreateRequest{
		Shipments:      []Shipment{toShipment(req, wb.Number)},
		PickupLocation: PickupLocation{Name: pickup},
	})
	if err != nil {
		c.logger.Error("Delhivery API error", zap.String("op", "create"), zap.Error(err))
		return nil, err
	}

	if !resp.Success || len(resp.Packages) == 0 || !strings.EqualFold(resp.Packages[0].Status, "success") {
		return nil, manifestError(resp)
	}

	number := resp.Packages[0].Waybill
	if number == "" {
		number = wb.Number
	}
	return &shipper.BookingResult{
		Carrier:    carrierName,
		ExternalID: number,
		Waybill:    number,
		Status:     shipper.StatusManifested,
		LabelURL:   strings.TrimRight(c.config.BaseURL, "/") + "/api/p/packing_slip?wbns=" + number,
	}, nil
}

// TrackShipment returns the normalized scan history for a waybill.
func (c *Client) TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error) {
	resp, err := c.apiClient.Track(ctx, cred.Token, externalID)
	if err != nil {
		return nil, err
	}
	if len(resp.ShipmentData) == 0 {
		return nil, shipper.NewError(carrierName, shipper.KindNotFound, "WAYBILL_NOT_FOUND", "no shipment data for waybill")
	}

	shipment := resp.ShipmentData[0].Shipment
	events := make([]shipper.TrackingEvent, 0, len(shipment.Scans))
	for _, s := range shipment.Scans {
		d := s.ScanDetail
		ts, err := parseTimestamp(d.ScanDateTime)
		if err != nil {
			c.logger.Warn("Skipping Delhivery scan with bad timestamp",
				zap.String("waybill", externalID),
				zap.String("timestamp", d.ScanDateTime),
			)
			continue
		}
		events = append(events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      mapStatus(d.ScanType, d.Scan),
			Location:    d.ScannedLocation,
			Description: d.Instructions,
			RawStatus:   d.Scan,
		})
	}

	return shipper.NewTimeline(carrierName, externalID, events), nil
}

// CancelShipment cancels a manifested waybill.
func (c *Client) CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
	c.logger.Info("Cancelling Delhivery shipment", zap.String("waybill", externalID))

	resp, err := c.apiClient.Cancel(ctx, cred.Token, externalID)
	if err != nil {
		c.logger.Error("Delhivery API error", zap.String("op", "cancel"), zap.Error(err))
		return nil, err
	}

	return &shipper.CancelResult{
		Carrier:    carrierName,
		ExternalID: externalID,
		Cancelled:  resp.Status,
		Message:    resp.Remark,
	}, nil
}

// FetchWaybills reserves up to maxWaybillBatch waybills.
func (c *Client) FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error) {
	if count > maxWaybillBatch {
		count = maxWaybillBatch
	}

	numbers, err := c.apiClient.FetchWaybills(ctx, cred.Token, count)
	if err != nil {
		c.logger.Error("Delhivery API error", zap.String("op", "waybills"), zap.Error(err))
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

func toShipment(req *shipper.BookingRequest, waybill string) Shipment {
	cons := req.Consignee
	s := Shipment{
		Waybill:        waybill,
		Order:          req.Reference,
		Name:           cons.Name,
		Add:            joinLines(cons.Line1, cons.Line2),
		Pin:            cons.Pincode,
		City:           cons.City,
		State:          cons.State,
		Country:        "India",
		Phone:          cons.Phone,
		PaymentMode:    "Prepaid",
		TotalAmount:    req.InvoiceValue,
		ProductsDesc:   req.Parcel.Description,
		Weight:         float64(grams(req.Parcel.Weight)),
		ShipmentLength: req.Parcel.Dimensions.Length,
		ShipmentWidth:  req.Parcel.Dimensions.Width,
		ShipmentHeight: req.Parcel.Dimensions.Height,
		ShippingMode:   serviceMode(req.ServiceTier),
		SellerName:     req.Pickup.Company,
	}
	if req.Parcel.Quantity > 0 {
		s.Quantity = strconv.Itoa(req.Parcel.Quantity)
	}
	if req.PaymentType == shipper.PaymentCOD {
		s.PaymentMode = "COD"
		s.CODAmount = req.CollectibleAmount
	}
	if r := req.Return; r != nil {
		s.ReturnName = r.Name
		s.ReturnAdd = joinLines(r.Line1, r.Line2)
		s.ReturnPin = r.Pincode
		s.ReturnCity = r.City
		s.ReturnState = r.State
		s.ReturnPhone = r.Phone
	}
	return s
}

func manifestError(resp *CreateResponse) *shipper.Error {
	var remarks []string
	if resp.Remark != "" {
		remarks = append(remarks, resp.Remark)
	}
	for _, p := range resp.Packages {
		remarks = append(remarks, p.Remarks...)
	}
	msg := strings.Join(remarks, "; ")
	if msg == "" {
		msg = "manifest rejected"
	}

	kind := shipper.KindValidationFailed
	if isNotServiceable(strings.ToLower(msg)) {
		kind = shipper.KindNotServiceable
	}
	return shipper.NewError(carrierName, kind, "MANIFEST_REJECTED", msg)
}

func joinLines(a, b string) string {
	if b == "" {
		return a
	}
	return a + ", " + b
}

func grams(kg float64) int {
	return int(math.Round(kg * 1000))
}

func isYes(flag string) bool {
	return strings.EqualFold(flag, "Y")
}

func modeCode(tier string) string {
	if strings.EqualFold(tier, "express") {
		return "E"
	}
	return "S"
}

func serviceMode(tier string) string {
	if strings.EqualFold(tier, "express") {
		return "Express"
	}
	return "Surface"
}

func serviceName(tier string) string {
	return fmt.Sprintf("Delhivery %s", serviceMode(tier))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses Delhivery scan times, which are IST unless an offset is given.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, ist); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// mapStatus maps a Delhivery scan type and scan label to the shared vocabulary.
func mapStatus(scanType, scan string) shipper.ShipmentStatus {
	s := strings.ToLower(strings.TrimSpace(scan))

	switch strings.ToUpper(scanType) {
	case "RT":
		if strings.Contains(s, "delivered") {
			return shipper.StatusRTODelivered
		}
		return shipper.StatusRTOInitiated
	case "DL":
		if strings.Contains(s, "rto") {
			return shipper.StatusRTODelivered
		}
		return shipper.StatusDelivered
	case "CN":
		return shipper.StatusCancelled
	}

	switch s {
	case "manifested":
		return shipper.StatusManifested
	case "not picked", "open", "pickup scheduled":
		return shipper.StatusPending
	case "picked up", "picked":
		return shipper.StatusPickedUp
	case "in transit", "pending", "reached at destination hub":
		return shipper.StatusInTransit
	case "dispatched", "out for delivery":
		return shipper.StatusOutForDelivery
	case "delivered":
		return shipper.StatusDelivered
	case "undelivered":
		return shipper.StatusUndelivered
	case "lost":
		return shipper.StatusLost
	case "canceled", "cancelled":
		return shipper.StatusCancelled
	default:
		return shipper.StatusUnknown
	}
}

var _ shipper.Adapter = (*Client)(nil)
