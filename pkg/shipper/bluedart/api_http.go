package bluedart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	http    *transport.Client
	profile Profile
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL    string
	LoginID    string
	LicenceKey string
	Timeout    time.Duration
	RateLimit  float64
	Counter    *transport.Counter
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	return &HTTPAPIClient{
		http: transport.New(transport.Config{
			Carrier:    carrierName,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			Burst:      2,
			Counter:    cfg.Counter,
			ParseError: parseError,
		}),
		profile: Profile{LoginID: cfg.LoginID, LicenceKey: cfg.LicenceKey, APIType: "S"},
	}
}

func jwtHeader(token string) http.Header {
	return http.Header{"JWTToken": {token}}
}

// ServicesForPincode looks up the services at a pincode.
// POST /finder/v1/GetServicesforPincode
func (c *HTTPAPIClient) ServicesForPincode(ctx context.Context, token, pincode string) (*PincodeServices, error) {
	var resp struct {
		Result *PincodeServices `json:"GetServicesforPincodeResult"`
	}
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/finder/v1/GetServicesforPincode",
		Header: jwtHeader(token),
		JSON:   PincodeRequest{PinCode: pincode, Profile: c.profile},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, transport.ShapeError(carrierName, "pincode response has no GetServicesforPincodeResult")
	}
	return resp.Result, nil
}

// GenerateWayBill books a shipment.
// POST /waybill/v1/GenerateWayBill
func (c *HTTPAPIClient) GenerateWayBill(ctx context.Context, token string, req *WayBillRequest) (*WayBillResult, error) {
	body := *req
	body.Profile = c.profile

	var resp struct {
		Result *WayBillResult `json:"GenerateWayBillResult"`
	}
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/waybill/v1/GenerateWayBill",
		Header: jwtHeader(token),
		JSON:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, transport.ShapeError(carrierName, "waybill response has no GenerateWayBillResult")
	}
	return resp.Result, nil
}

// Track fetches the scans of an AWB.
// GET /tracking/v1/shipment?handler=tnt&numbers={awb}&format=json&scan=1
func (c *HTTPAPIClient) Track(ctx context.Context, token, awb string) (*TrackedShipment, error) {
	query := url.Values{}
	query.Set("handler", "tnt")
	query.Set("action", "custawbquery")
	query.Set("loginid", c.profile.LoginID)
	query.Set("numbers", awb)
	query.Set("format", "json")
	query.Set("lickey", c.profile.LicenceKey)
	query.Set("verno", "1")
	query.Set("scan", "1")

	var resp TrackResponse
	err := c.http.JSON(ctx, transport.Request{
		Path:   "/tracking/v1/shipment",
		Query:  query,
		Header: jwtHeader(token),
	}, &resp)
	if err != nil {
		return nil, err
	}
	for i := range resp.ShipmentData.Shipment {
		if resp.ShipmentData.Shipment[i].WaybillNo == awb {
			return &resp.ShipmentData.Shipment[i], nil
		}
	}
	msg := resp.ShipmentData.Error
	if msg == "" {
		msg = "no tracking data for " + awb
	}
	return nil, shipper.NewError(carrierName, shipper.KindNotFound, "AWB_NOT_FOUND", msg)
}

// CancelWaybill cancels an AWB.
// POST /waybill/v1/CancelWaybill
func (c *HTTPAPIClient) CancelWaybill(ctx context.Context, token, awb string) (*CancelResult, error) {
	var req CancelRequest
	req.Request.AWBNo = awb
	req.Profile = c.profile

	var resp struct {
		Result *CancelResult `json:"CancelWaybillResult"`
	}
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/waybill/v1/CancelWaybill",
		Header: jwtHeader(token),
		JSON:   req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, transport.ShapeError(carrierName, "cancel response has no CancelWaybillResult")
	}
	return resp.Result, nil
}

// errorResponse is the body Blue Dart returns with non-2xx statuses.
type errorResponse struct {
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	ErrorResponse []ResultStatus `json:"error-response"`
}

func (e errorResponse) text() string {
	parts := make([]string, 0, len(e.ErrorResponse))
	for _, s := range e.ErrorResponse {
		if s.StatusInformation != "" {
			parts = append(parts, s.StatusInformation)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Title
}

func parseError(status int, body []byte) *shipper.Error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	msg := resp.text()
	if msg == "" {
		return nil
	}

	kind := shipper.KindForStatus(status)
	if status == http.StatusBadRequest {
		kind = statusKind(resp.ErrorResponse)
	}
	return shipper.NewError(carrierName, kind, fmt.Sprintf("HTTP_%d", status), msg)
}

// statusKind classifies the Status list of a rejected request.
func statusKind(statuses []ResultStatus) shipper.Kind {
	for _, s := range statuses {
		code := strings.ToLower(s.StatusCode)
		info := strings.ToLower(s.StatusInformation)
		switch {
		case strings.Contains(code, "token") || strings.Contains(info, "jwt") || strings.Contains(info, "licen"):
			return shipper.KindAuthenticationFailed
		case strings.Contains(info, "not serviceable") || strings.Contains(info, "invalid pincode") ||
			strings.Contains(code, "pincode"):
			return shipper.KindNotServiceable
		}
	}
	return shipper.KindValidationFailed
}

// statusError builds the error for a result carrying IsError=true.
func statusError(statuses []ResultStatus, fallback string) *shipper.Error {
	code := "REJECTED"
	msgs := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if s.StatusCode != "" && code == "REJECTED" {
			code = s.StatusCode
		}
		if s.StatusInformation != "" {
			msgs = append(msgs, s.StatusInformation)
		}
	}
	msg := fallback
	if len(msgs) > 0 {
		msg = strings.Join(msgs, "; ")
	}
	return shipper.NewError(carrierName, statusKind(statuses), code, msg)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
