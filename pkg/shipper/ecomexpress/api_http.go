package ecomexpress

import (
	"bytes"
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

// Ecom Express takes the account credentials in every form body.
func form(login Login) url.Values {
	return url.Values{
		"username": {login.Username},
		"password": {login.Password},
	}
}

// Pincode fetches the serviceability rows of a pincode.
// POST /apiv2/pincode/
func (c *HTTPAPIClient) Pincode(ctx context.Context, login Login, pincode string) ([]PincodeInfo, error) {
	f := form(login)
	f.Set("pincode", pincode)

	body, err := c.http.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/apiv2/pincode/",
		Form:   f,
	})
	if err != nil {
		return nil, err
	}
	if err := inBandError(body); err != nil {
		return nil, err
	}

	var rows []PincodeInfo
	if err := transport.DecodeJSON(carrierName, body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchAWB reserves a batch of AWBs.
// POST /apiv2/fetch_awb/
func (c *HTTPAPIClient) FetchAWB(ctx context.Context, login Login, count int, awbType string) ([]string, error) {
	f := form(login)
	f.Set("count", strconv.Itoa(count))
	f.Set("type", awbType)

	var resp FetchAWBResponse
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/apiv2/fetch_awb/",
		Form:   f,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Success, "yes") {
		return nil, rejection(strings.Join(resp.Error, "; "), "awb allocation refused")
	}
	return numbersToStrings(resp.AWB), nil
}

// Manifest books shipments.
// POST /apiv2/manifest_awb/
func (c *HTTPAPIClient) Manifest(ctx context.Context, login Login, shipments []ManifestShipment) ([]ManifestResult, error) {
	input, err := json.Marshal(shipments)
	if err != nil {
		return nil, shipper.NewError(carrierName, shipper.KindValidationFailed, "BAD_REQUEST", "failed to encode manifest").WithCause(err)
	}
	f := form(login)
	f.Set("json_input", string(input))

	var resp struct {
		Shipments []ManifestResult `json:"shipments"`
	}
	err = c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/apiv2/manifest_awb/",
		Form:   f,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Shipments, nil
}

// Track fetches the tracking document of an AWB.
// GET /track_me/api/mawbd/?awb={awb}
func (c *HTTPAPIClient) Track(ctx context.Context, login Login, awb string) (*TrackObject, error) {
	q := form(login)
	q.Set("awb", awb)

	var doc TrackDocument
	err := c.http.XML(ctx, transport.Request{
		Path:  "/track_me/api/mawbd/",
		Query: q,
	}, &doc)
	if err != nil {
		return nil, err
	}
	for i := range doc.Objects {
		if doc.Objects[i].Model == "awb" && doc.Objects[i].Field("awb_number") == awb {
			return &doc.Objects[i], nil
		}
	}
	return nil, shipper.NewError(carrierName, shipper.KindNotFound, "AWB_NOT_FOUND", "no tracking data for "+awb)
}

// Cancel cancels AWBs.
// POST /apiv2/cancel_awb/
func (c *HTTPAPIClient) Cancel(ctx context.Context, login Login, awbs []string) ([]CancelResult, error) {
	f := form(login)
	f.Set("awbs", strings.Join(awbs, ","))

	var results []CancelResult
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/apiv2/cancel_awb/",
		Form:   f,
	}, &results)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// inBandError recognises the {"error": ...} object Ecom Express returns with
// HTTP 200 where a list was expected.
func inBandError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var obj struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil
	}
	msg := obj.Message
	if s, ok := obj.Error.(string); ok && s != "" {
		msg = s
	}
	if msg == "" {
		return transport.ShapeError(carrierName, "expected a list, got an object")
	}
	return rejection(msg, "request rejected")
}

// rejection classifies an in-band refusal by its text.
func rejection(message, fallback string) *shipper.Error {
	if message == "" {
		message = fallback
	}
	lower := strings.ToLower(message)

	kind := shipper.KindValidationFailed
	switch {
	case strings.Contains(lower, "username") || strings.Contains(lower, "password") ||
		strings.Contains(lower, "unauthori") || strings.Contains(lower, "authentication"):
		kind = shipper.KindAuthenticationFailed
	case strings.Contains(lower, "not serviceable") || strings.Contains(lower, "non serviceable") ||
		strings.Contains(lower, "pincode"):
		kind = shipper.KindNotServiceable
	case strings.Contains(lower, "not enough awb") || strings.Contains(lower, "awb exhausted"):
		kind = shipper.KindWaybillExhausted
	}
	return shipper.NewError(carrierName, kind, "REJECTED", message)
}

func parseError(status int, body []byte) *shipper.Error {
	if status != http.StatusBadRequest && status != http.StatusUnauthorized && status != http.StatusForbidden {
		return nil
	}
	var obj struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	msg := obj.Error
	if msg == "" {
		msg = obj.Message
	}
	if msg == "" {
		return nil
	}
	e := rejection(msg, "")
	if status != http.StatusBadRequest {
		e.Kind = shipper.KindAuthenticationFailed
	}
	e.Code = fmt.Sprintf("HTTP_%d", status)
	return e
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
