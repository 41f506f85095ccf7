// Package bluedart provides integration with the Blue Dart API gateway.
package bluedart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const carrierName = "bluedart"

var ist = time.FixedZone("IST", 5*60*60+30*60)

// Config holds Blue Dart configuration.
type Config struct {
	BaseURL      string
	LoginID      string
	LicenceKey   string
	CustomerCode string
	OriginArea   string // three-letter Blue Dart area code of the pickup location
	RateLimit    float64
	UseMock      bool // When true, uses mock API client
}

// Client is the Blue Dart carrier adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	now       func() time.Time
}

// New creates a new Blue Dart adapter.
func New(cfg Config, counter *transport.Counter, logger *otelzap.Logger) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:    cfg.BaseURL,
			LoginID:    cfg.LoginID,
			LicenceKey: cfg.LicenceKey,
			Timeout:    30 * time.Second,
			RateLimit:  cfg.RateLimit,
			Counter:    counter,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger)
}

// NewWithAPIClient creates a Blue Dart adapter with a custom API client.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		now:       time.Now,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Capabilities reports no optional features: rates come from rate cards and
// the AWB is assigned by GenerateWayBill.
func (c *Client) Capabilities() shipper.Capabilities {
	return shipper.Capabilities{}
}

// CheckServiceability reads the pincode finder flags for the requested mode.
func (c *Client) CheckServiceability(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
	svc, err := c.apiClient.ServicesForPincode(ctx, cred.Token, pincode)
	if err != nil {
		c.logger.Error("Blue Dart API error", zap.String("op", "serviceability"), zap.Error(err))
		return nil, err
	}

	result := &shipper.Serviceability{Carrier: carrierName, Pincode: pincode}
	if svc.IsError {
		// An unknown pincode is reported in-band.
		c.logger.Debug("Blue Dart pincode not serviceable",
			zap.String("pincode", pincode),
			zap.String("message", svc.ErrorMessage),
		)
		return result, nil
	}

	if isAir(tier) {
		result.CODAvailable = yes(svc.ETailCODAirInbound)
		result.PrepaidAvailable = yes(svc.ETailPrePaidAirInbound) || yes(svc.ApexInbound)
	} else {
		result.CODAvailable = yes(svc.ETailCODGroundInbound)
		result.PrepaidAvailable = yes(svc.ETailPrePaidGround) || yes(svc.GroundInbound)
	}
	result.Serviceable = result.CODAvailable || result.PrepaidAvailable
	return result, nil
}

// CalculateRate is not offered by Blue Dart; quotes come from rate cards.
func (c *Client) CalculateRate(ctx context.Context, cred credentials.Credential, req *shipper.RateRequest) (*shipper.RawRate, error) {
	return nil, shipper.ErrRatingUnsupported
}

// BookShipment generates a waybill. The waybill argument is ignored because
// Blue Dart assigns the AWB.
func (c *Client) BookShipment(ctx context.Context, cred credentials.Credential, req *shipper.BookingRequest, wb shipper.Waybill) (*shipper.BookingResult, error) {
	c.logger.Info("Generating Blue Dart waybill",
		zap.String("reference", req.Reference),
		zap.String("destination_pincode", req.Consignee.Pincode),
	)

	apiReq := c.toWayBillRequest(req)
	result, err := c.apiClient.GenerateWayBill(ctx, cred.Token, apiReq)
	if err != nil {
		c.logger.Error("Blue Dart API error", zap.String("op", "generate_waybill"), zap.Error(err))
		return nil, err
	}
	if result.IsError {
		return nil, statusError(result.Status, "waybill generation failed")
	}
	if result.AWBNo == "" {
		return nil, transport.ShapeError(carrierName, "waybill response has no AWBNo")
	}

	return &shipper.BookingResult{
		Carrier:    carrierName,
		ExternalID: result.AWBNo,
		Waybill:    result.AWBNo,
		Status:     shipper.StatusManifested,
	}, nil
}

// TrackShipment returns the normalized scan history.
func (c *Client) TrackShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.TrackingTimeline, error) {
	shipment, err := c.apiClient.Track(ctx, cred.Token, externalID)
	if err != nil {
		return nil, err
	}

	events := make([]shipper.TrackingEvent, 0, len(shipment.Scans))
	for _, item := range shipment.Scans {
		scan := item.ScanDetail
		ts, err := parseScanTime(scan.ScanDate, scan.ScanTime)
		if err != nil {
			c.logger.Warn("Skipping Blue Dart scan with bad timestamp",
				zap.String("awb", externalID),
				zap.String("date", scan.ScanDate),
				zap.String("time", scan.ScanTime),
			)
			continue
		}
		events = append(events, shipper.TrackingEvent{
			Timestamp:   ts,
			Status:      mapStatus(scan.ScanType, scan.Scan),
			Location:    scan.ScannedLocation,
			Description: scan.Scan,
			RawStatus:   scan.ScanCode,
		})
	}

	return shipper.NewTimeline(carrierName, externalID, events), nil
}

// CancelShipment cancels a generated AWB. A refusal is reported in the result.
func (c *Client) CancelShipment(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
	c.logger.Info("Cancelling Blue Dart waybill", zap.String("awb", externalID))

	result, err := c.apiClient.CancelWaybill(ctx, cred.Token, externalID)
	if err != nil {
		c.logger.Error("Blue Dart API error", zap.String("op", "cancel"), zap.Error(err))
		return nil, err
	}

	msg := ""
	if len(result.Status) > 0 {
		msg = result.Status[0].StatusInformation
	}
	return &shipper.CancelResult{
		Carrier:    carrierName,
		ExternalID: externalID,
		Cancelled:  !result.IsError,
		Message:    msg,
	}, nil
}

// FetchWaybills returns the manual-process marker batch.
func (c *Client) FetchWaybills(ctx context.Context, cred credentials.Credential, count int) ([]shipper.Waybill, error) {
	return shipper.ManualWaybills(carrierName), nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func (c *Client) toWayBillRequest(req *shipper.BookingRequest) *WayBillRequest {
	product := "E"
	if isAir(req.ServiceTier) {
		product = "A"
	}
	subProduct := "P"
	var collectable float64
	if req.PaymentType == shipper.PaymentCOD {
		subProduct = "C"
		collectable = req.CollectibleAmount
	}

	pieces := max(req.Parcel.Quantity, 1)
	declared := req.Parcel.DeclaredValue
	if declared == 0 {
		declared = req.InvoiceValue
	}

	body := WayBillBody{
		Consignee: Consignee{
			ConsigneeName:     req.Consignee.Name,
			ConsigneeAddress1: req.Consignee.Line1,
			ConsigneeAddress2: req.Consignee.Line2,
			ConsigneeAddress3: req.Consignee.City,
			ConsigneePincode:  req.Consignee.Pincode,
			ConsigneeMobile:   req.Consignee.Phone,
			ConsigneeEmailID:  req.Consignee.Email,
		},
		Shipper: Shipper{
			CustomerCode:     c.config.CustomerCode,
			OriginArea:       c.config.OriginArea,
			CustomerName:     req.Pickup.Company,
			CustomerAddress1: req.Pickup.Line1,
			CustomerAddress2: req.Pickup.Line2,
			CustomerAddress3: req.Pickup.City,
			CustomerPincode:  req.Pickup.Pincode,
			CustomerMobile:   req.Pickup.Phone,
			Sender:           req.Pickup.Name,
		},
		Services: Services{
			ProductCode:       product,
			SubProductCode:    subProduct,
			PieceCount:        pieces,
			ActualWeight:      req.Parcel.Weight,
			CollectableAmount: collectable,
			DeclaredValue:     declared,
			CreditReferenceNo: req.Reference,
			PickupDate:        c.now().In(ist).Format("2006-01-02"),
			PickupTime:        "1600",
			RegisterPickup:    true,
			Dimensions: []Dimension{{
				Length:  req.Parcel.Dimensions.Length,
				Breadth: req.Parcel.Dimensions.Width,
				Height:  req.Parcel.Dimensions.Height,
				Count:   pieces,
			}},
			ItemCount: pieces,
			Commodity: CommodityDet{CommodityDetail1: req.Parcel.Description},
		},
	}
	if req.Return != nil {
		body.Returnadds = &Returnadds{
			ReturnAddress1: req.Return.Line1,
			ReturnAddress2: req.Return.Line2,
			ReturnPincode:  req.Return.Pincode,
			ReturnMobile:   req.Return.Phone,
		}
	}
	return &WayBillRequest{Request: body}
}

func isAir(tier string) bool {
	t := strings.ToLower(tier)
	return t == "express" || t == "air" || t == "apex"
}

func yes(flag string) bool {
	return strings.EqualFold(strings.TrimSpace(flag), "yes")
}

var scanDateLayouts = []string{
	"02-Jan-2006 15:04",
	"02 Jan 2006 15:04",
	"02-01-2006 15:04",
}

// parseScanTime combines the separate date and time fields of a scan.
func parseScanTime(date, clock string) (time.Time, error) {
	s := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	for _, layout := range scanDateLayouts {
		if t, err := time.ParseInLocation(layout, s, ist); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised scan time %q", s)
}

// mapStatus maps the Blue Dart scan type, falling back to the scan text.
func mapStatus(scanType, scan string) shipper.ShipmentStatus {
	switch strings.ToUpper(strings.TrimSpace(scanType)) {
	case "PU":
		return shipper.StatusPickedUp
	case "DL":
		return shipper.StatusDelivered
	case "RT":
		return shipper.StatusRTOInitiated
	case "CN":
		return shipper.StatusCancelled
	}

	text := strings.ToLower(scan)
	switch {
	case strings.Contains(text, "return") && strings.Contains(text, "delivered"):
		return shipper.StatusRTODelivered
	case strings.Contains(text, "return") || strings.Contains(text, "rto"):
		return shipper.StatusRTOInitiated
	case strings.Contains(text, "out for delivery"):
		return shipper.StatusOutForDelivery
	case strings.Contains(text, "undelivered") || strings.Contains(text, "not delivered") ||
		strings.Contains(text, "consignee not available"):
		return shipper.StatusUndelivered
	case strings.Contains(text, "delivered"):
		return shipper.StatusDelivered
	case strings.Contains(text, "picked up") || strings.Contains(text, "pickup"):
		return shipper.StatusPickedUp
	case strings.Contains(text, "transit") || strings.Contains(text, "connected") ||
		strings.Contains(text, "arrived") || strings.Contains(text, "departed"):
		return shipper.StatusInTransit
	case strings.Contains(text, "waybill generated") || strings.Contains(text, "manifest"):
		return shipper.StatusManifested
	case strings.Contains(text, "cancel"):
		return shipper.StatusCancelled
	case strings.Contains(text, "lost"):
		return shipper.StatusLost
	case strings.Contains(text, "damage") || strings.Contains(text, "held"):
		return shipper.StatusException
	default:
		return shipper.StatusUnknown
	}
}

var _ shipper.Adapter = (*Client)(nil)
