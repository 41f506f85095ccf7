package delhivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/transport"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	http *transport.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Counter   *transport.Counter
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	return &HTTPAPIClient{
		http: transport.New(transport.Config{
			Carrier:    carrierName,
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			Burst:      5,
			Counter:    cfg.Counter,
			ParseError: parseError,
		}),
	}
}

// Delhivery authenticates every call with a static API token.
func authHeader(token string) http.Header {
	return http.Header{"Authorization": {"Token " + token}}
}

// PincodeServiceability fetches pincode details.
// GET /c/api/pin-codes/json/?filter_codes={pincode}
func (c *HTTPAPIClient) PincodeServiceability(ctx context.Context, token, pincode string) (*PincodeResponse, error) {
	var result PincodeResponse
	err := c.http.JSON(ctx, transport.Request{
		Path:   "/c/api/pin-codes/json/",
		Query:  url.Values{"filter_codes": {pincode}},
		Header: authHeader(token),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// InvoiceCharges fetches the live charge for a consignment.
// GET /api/kinko/v1/invoice/charges/.json
func (c *HTTPAPIClient) InvoiceCharges(ctx context.Context, token string, req *ChargesRequest) ([]Charge, error) {
	q := url.Values{
		"md":    {req.Mode},
		"ss":    {req.ShipmentState},
		"o_pin": {req.OriginPin},
		"d_pin": {req.DestPin},
		"cgm":   {strconv.Itoa(req.WeightGrams)},
		"pt":    {req.PaymentType},
	}
	if req.CODAmount > 0 {
		q.Set("cod", strconv.FormatFloat(req.CODAmount, 'f', 2, 64))
	}

	var result []Charge
	err := c.http.JSON(ctx, transport.Request{
		Path:   "/api/kinko/v1/invoice/charges/.json",
		Query:  q,
		Header: authHeader(token),
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FetchWaybills reserves a batch of waybills.
// GET /waybill/api/bulk/json/?count={count}
// The endpoint answers with a comma-separated JSON string; some accounts get an array.
func (c *HTTPAPIClient) FetchWaybills(ctx context.Context, token string, count int) ([]string, error) {
	body, err := c.http.Do(ctx, transport.Request{
		Path:   "/waybill/api/bulk/json/",
		Query:  url.Values{"count": {strconv.Itoa(count)}, "token": {token}},
		Header: authHeader(token),
	})
	if err != nil {
		return nil, err
	}

	var joined string
	if err := json.Unmarshal(body, &joined); err == nil {
		return splitWaybills(joined), nil
	}

	var list []string
	if err := transport.DecodeJSON(carrierName, body, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func splitWaybills(joined string) []string {
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CreateShipment manifests shipments.
// POST /api/cmu/create.json with form fields format=json and data={json}
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, token string, req *CreateRequest) (*CreateResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	var result CreateResponse
	err = c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/cmu/create.json",
		Header: authHeader(token),
		Form:   url.Values{"format": {"json"}, "data": {string(data)}},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Track fetches the scan history for a waybill.
// GET /api/v1/packages/json/?waybill={waybill}
func (c *HTTPAPIClient) Track(ctx context.Context, token, waybill string) (*TrackResponse, error) {
	var result struct {
		TrackResponse
		Error string `json:"Error"`
	}
	err := c.http.JSON(ctx, transport.Request{
		Path:   "/api/v1/packages/json/",
		Query:  url.Values{"waybill": {waybill}},
		Header: authHeader(token),
	}, &result)
	if err != nil {
		return nil, err
	}

	if result.Error != "" || len(result.ShipmentData) == 0 {
		msg := result.Error
		if msg == "" {
			msg = "no shipment data for waybill"
		}
		return nil, shipper.NewError(carrierName, shipper.KindNotFound, "WAYBILL_NOT_FOUND", msg)
	}
	return &result.TrackResponse, nil
}

// Cancel cancels a waybill through the edit API.
// POST /api/p/edit
func (c *HTTPAPIClient) Cancel(ctx context.Context, token, waybill string) (*CancelResponse, error) {
	var result CancelResponse
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/p/edit",
		Header: authHeader(token),
		JSON:   CancelRequest{Waybill: waybill, Cancellation: "true"},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// parseError recognises Delhivery error bodies. Unrecognised bodies fall back
// to the status-code mapping.
func parseError(status int, body []byte) *shipper.Error {
	var apiErr struct {
		Remark string `json:"rmk"`
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}

	msg := firstNonEmpty(apiErr.Remark, apiErr.Error, apiErr.Detail)
	if msg == "" {
		return nil
	}

	kind := shipper.KindForStatus(status)
	switch lower := strings.ToLower(msg); {
	case strings.Contains(lower, "login or api key") || strings.Contains(lower, "invalid token"):
		kind = shipper.KindAuthenticationFailed
	case isNotServiceable(lower):
		kind = shipper.KindNotServiceable
	}
	return shipper.NewError(carrierName, kind, fmt.Sprintf("HTTP_%d", status), msg)
}

func isNotServiceable(lower string) bool {
	return strings.Contains(lower, "non serviceable") ||
		strings.Contains(lower, "non-serviceable") ||
		strings.Contains(lower, "not serviceable") ||
		strings.Contains(lower, "nsz")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
