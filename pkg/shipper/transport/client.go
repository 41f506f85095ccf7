// Package transport is the HTTP plumbing shared by carrier API clients:
// timeouts, rate limiting, request counting and status-to-kind mapping.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"golang.org/x/time/rate"
)

const maxErrorBody = 64 << 10

// ErrorParser turns a non-2xx carrier response into a classified error.
// Returning nil falls back to the status-code mapping.
type ErrorParser func(status int, body []byte) *shipper.Error

// Config holds configuration for a carrier HTTP client.
type Config struct {
	Carrier    string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second; 0 disables limiting
	Burst      int
	UserAgent  string
	Counter    *Counter
	ParseError ErrorParser
}

// Client performs requests against one carrier's API.
type Client struct {
	carrier    string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	counter    *Counter
	parseError ErrorParser
}

// New creates a carrier HTTP client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "shipgate/1.0"
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		carrier: cfg.Carrier,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    limiter,
		userAgent:  userAgent,
		counter:    cfg.Counter,
		parseError: cfg.ParseError,
	}
}

// Carrier returns the carrier this client talks to.
func (c *Client) Carrier() string {
	return c.carrier
}

// Request describes one carrier call. At most one of JSON and Form is set.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	JSON   any
	Form   url.Values
}

// Do sends the request and returns the body of a 2xx response. Every failure
// is returned as a *shipper.Error.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	body, err := c.do(ctx, r)
	if c.counter != nil {
		c.counter.observe(c.carrier, err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, r Request) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, shipper.Normalize(c.carrier, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, shipper.NewError(c.carrier, shipper.KindValidationFailed, "BAD_REQUEST", "failed to build request").WithCause(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, shipper.Normalize(c.carrier, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.classify(resp.StatusCode, b)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shipper.Normalize(c.carrier, err)
	}
	return b, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := c.baseURL + r.Path
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	var contentType string
	switch {
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	return req, nil
}

// classify maps a non-2xx response to an error, letting the carrier parser
// refine the kind when it recognises the body.
func (c *Client) classify(status int, body []byte) *shipper.Error {
	if c.parseError != nil {
		if e := c.parseError(status, body); e != nil {
			if e.Carrier == "" {
				e.Carrier = c.carrier
			}
			if e.StatusCode == 0 {
				e.StatusCode = status
			}
			return e
		}
	}

	return shipper.NewError(c.carrier, shipper.KindForStatus(status), fmt.Sprintf("HTTP_%d", status), errorMessage(body)).
		WithStatusCode(status)
}

// errorMessage pulls a human-readable message out of common error bodies.
func errorMessage(body []byte) string {
	var simple struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &simple); err == nil {
		if s, ok := simple.Error.(string); ok && s != "" {
			return s
		}
		if simple.Message != "" {
			return simple.Message
		}
		if simple.Detail != "" {
			return simple.Detail
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return msg
}

// JSON sends r and decodes the JSON response into out. A nil out discards the body.
func (c *Client) JSON(ctx context.Context, r Request, out any) error {
	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	return DecodeJSON(c.carrier, body, out)
}

// XML sends r and decodes the XML response into out.
func (c *Client) XML(ctx context.Context, r Request, out any) error {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set("Accept", "application/xml")

	body, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return shipper.NewError(c.carrier, shipper.KindUnexpectedResponseShape, "DECODE", "failed to decode XML response").WithCause(err)
	}
	return nil
}

// DecodeJSON unmarshals a carrier body, reporting failures as UnexpectedResponseShape.
func DecodeJSON(carrier string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return shipper.NewError(carrier, shipper.KindUnexpectedResponseShape, "DECODE", "failed to decode JSON response").WithCause(err)
	}
	return nil
}

// ShapeError reports a response that decoded but lacked expected fields.
func ShapeError(carrier, format string, args ...any) *shipper.Error {
	return shipper.NewError(carrier, shipper.KindUnexpectedResponseShape, "SHAPE", fmt.Sprintf(format, args...))
}
