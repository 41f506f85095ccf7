package xpressbees

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

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

// Login exchanges credentials for a JWT.
// POST /api/users/login
func (c *HTTPAPIClient) Login(ctx context.Context, email, password string) (string, error) {
	var env Envelope[string]
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/users/login",
		JSON:   LoginRequest{Email: email, Password: password},
	}, &env)
	if err != nil {
		return "", err
	}
	if !env.Status || env.Data == "" {
		return "", shipper.NewError(carrierName, shipper.KindAuthenticationFailed, "LOGIN_REJECTED", orDefault(env.Message, "login rejected"))
	}
	return env.Data, nil
}

// Serviceability lists priced courier options for a lane.
// POST /api/courier/serviceability
func (c *HTTPAPIClient) Serviceability(ctx context.Context, token string, req *ServiceabilityRequest) ([]CourierOption, error) {
	var env Envelope[[]CourierOption]
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/courier/serviceability",
		Header: bearer(token),
		JSON:   req,
	}, &env)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		// An unserviceable lane is reported as status=false with a message.
		if isNotServiceable(env.Message) {
			return nil, nil
		}
		return nil, envelopeError(env.Message)
	}
	return env.Data, nil
}

// CreateShipment books a shipment.
// POST /api/shipments2
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, token string, req *ShipmentRequest) (*ShipmentData, error) {
	var env Envelope[ShipmentData]
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/shipments2",
		Header: bearer(token),
		JSON:   req,
	}, &env)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, envelopeError(env.Message)
	}
	return &env.Data, nil
}

// Track fetches the scan history of an AWB.
// GET /api/shipments2/track/{awb}
func (c *HTTPAPIClient) Track(ctx context.Context, token, awb string) (*TrackData, error) {
	var env Envelope[TrackData]
	err := c.http.JSON(ctx, transport.Request{
		Path:   "/api/shipments2/track/" + url.PathEscape(awb),
		Header: bearer(token),
	}, &env)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, shipper.NewError(carrierName, shipper.KindNotFound, "AWB_NOT_FOUND", orDefault(env.Message, "awb not found"))
	}
	return &env.Data, nil
}

// Cancel cancels an AWB.
// POST /api/shipments2/cancel
func (c *HTTPAPIClient) Cancel(ctx context.Context, token, awb string) (*CancelResponse, error) {
	var result CancelResponse
	err := c.http.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/shipments2/cancel",
		Header: bearer(token),
		JSON:   CancelRequest{AWB: awb},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// envelopeError classifies a status=false response delivered with HTTP 200.
func envelopeError(message string) *shipper.Error {
	msg := orDefault(message, "request rejected")
	lower := strings.ToLower(msg)

	kind := shipper.KindValidationFailed
	switch {
	case strings.Contains(lower, "token") || strings.Contains(lower, "unauthori"):
		kind = shipper.KindAuthenticationFailed
	case isNotServiceable(msg):
		kind = shipper.KindNotServiceable
	}
	return shipper.NewError(carrierName, kind, "REJECTED", msg)
}

func parseError(status int, body []byte) *shipper.Error {
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return nil
	}
	e := envelopeError(env.Message)
	if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests || status >= 500 {
		e.Kind = shipper.KindForStatus(status)
	}
	e.Code = fmt.Sprintf("HTTP_%d", status)
	return e
}

func isNotServiceable(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "not serviceable") || strings.Contains(lower, "non serviceable")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
