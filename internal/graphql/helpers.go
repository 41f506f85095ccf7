package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/tournevent/shipgate/pkg/shipper/health"
)

// Input parsing. Arguments arrive as the generic values produced by the
// query parser: maps for input objects, []interface{} for lists.

func parseQuoteInput(data map[string]interface{}) (*gateway.QuoteRequest, error) {
	if data == nil {
		return nil, errors.New("missing or invalid 'input' argument")
	}
	req := &gateway.QuoteRequest{
		Carriers:          stringList(data["carriers"]),
		ServiceTier:       stringValue(data["serviceTier"]),
		Weight:            floatValue(data["weight"]),
		PaymentType:       paymentType(data["paymentType"]),
		CollectibleAmount: floatValue(data["collectibleAmount"]),
		IncludeRTO:        boolValue(data["includeRto"]),
	}
	if origin, ok := data["origin"].(map[string]interface{}); ok {
		req.Origin = parseLocation(origin)
	}
	if dest, ok := data["destination"].(map[string]interface{}); ok {
		req.Destination = parseLocation(dest)
	}
	if dims, ok := data["dimensions"].(map[string]interface{}); ok {
		req.Dimensions = parseDimensions(dims)
	}
	return req, nil
}

func parseBookingInput(data map[string]interface{}) (*shipper.BookingRequest, error) {
	if data == nil {
		return nil, errors.New("missing or invalid 'input' argument")
	}
	req := &shipper.BookingRequest{
		ServiceTier:       stringValue(data["serviceTier"]),
		Reference:         stringValue(data["reference"]),
		PaymentType:       paymentType(data["paymentType"]),
		CollectibleAmount: floatValue(data["collectibleAmount"]),
		InvoiceValue:      floatValue(data["invoiceValue"]),
	}
	if pickup, ok := data["pickup"].(map[string]interface{}); ok {
		req.Pickup = parseAddress(pickup)
	}
	if consignee, ok := data["consignee"].(map[string]interface{}); ok {
		req.Consignee = parseAddress(consignee)
	}
	if ret, ok := data["returnAddress"].(map[string]interface{}); ok {
		addr := parseAddress(ret)
		req.Return = &addr
	}
	if parcel, ok := data["parcel"].(map[string]interface{}); ok {
		req.Parcel = shipper.Parcel{
			Weight:        floatValue(parcel["weight"]),
			DeclaredValue: floatValue(parcel["declaredValue"]),
			Description:   stringValue(parcel["description"]),
			Quantity:      int(floatValue(parcel["quantity"])),
		}
		if dims, ok := parcel["dimensions"].(map[string]interface{}); ok {
			req.Parcel.Dimensions = parseDimensions(dims)
		}
	}
	if req.InvoiceValue == 0 {
		req.InvoiceValue = req.Parcel.DeclaredValue
	}
	return req, nil
}

func parseLocation(data map[string]interface{}) shipper.Location {
	return shipper.Location{
		Pincode: stringValue(data["pincode"]),
		City:    stringValue(data["city"]),
		State:   stringValue(data["state"]),
		Region:  stringValue(data["region"]),
	}
}

func parseDimensions(data map[string]interface{}) shipper.Dimensions {
	return shipper.Dimensions{
		Length: floatValue(data["length"]),
		Width:  floatValue(data["width"]),
		Height: floatValue(data["height"]),
	}
}

func parseAddress(data map[string]interface{}) shipper.Address {
	addr := shipper.Address{
		Name:    stringValue(data["name"]),
		Company: stringValue(data["company"]),
		Line1:   stringValue(data["line1"]),
		Line2:   stringValue(data["line2"]),
		City:    stringValue(data["city"]),
		State:   stringValue(data["state"]),
		Pincode: stringValue(data["pincode"]),
		Country: stringValue(data["country"]),
		Phone:   stringValue(data["phone"]),
		Email:   stringValue(data["email"]),
	}
	if addr.Country == "" {
		addr.Country = "IN"
	}
	return addr
}

func paymentType(v interface{}) shipper.PaymentType {
	s := stringValue(v)
	if s == "" {
		return ""
	}
	return shipper.PaymentType(strings.ToLower(s))
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolValue(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func floatValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

// Conversions to response types.

func carrierErrorsToGraphQL(errs []*shipper.Error) []CarrierError {
	out := make([]CarrierError, 0, len(errs))
	for _, e := range errs {
		out = append(out, CarrierError{
			Carrier: e.Carrier,
			Kind:    string(e.Kind),
			Code:    e.Code,
			Message: e.Message,
		})
	}
	return out
}

func serviceabilityToGraphQL(res *gateway.ServiceabilityResult) *ServiceabilityResult {
	out := &ServiceabilityResult{
		Results: make([]Serviceability, 0, len(res.Results)),
		Errors:  carrierErrorsToGraphQL(res.Errors),
	}
	for _, s := range res.Results {
		out.Results = append(out.Results, Serviceability{
			Carrier:          s.Carrier,
			Pincode:          s.Pincode,
			Serviceable:      s.Serviceable,
			CODAvailable:     s.CODAvailable,
			PrepaidAvailable: s.PrepaidAvailable,
		})
	}
	return out
}

func quotesToGraphQL(res *gateway.QuoteResult) *QuoteResult {
	out := &QuoteResult{
		Zone:   string(res.Zone),
		Quotes: make([]Quote, 0, len(res.Quotes)),
		Errors: carrierErrorsToGraphQL(res.Errors),
	}
	for _, q := range res.Quotes {
		out.Quotes = append(out.Quotes, Quote{
			Carrier:          q.Carrier,
			ServiceTier:      q.ServiceTier,
			Zone:             string(q.Zone),
			ActualWeight:     q.ActualWeight,
			VolumetricWeight: q.VolumetricWeight,
			ChargeableWeight: q.ChargeableWeight,
			Multiplier:       q.Multiplier,
			Base:             q.Base,
			Additional:       q.Additional,
			Shipping:         q.Shipping,
			COD:              q.COD,
			RTO:              q.RTO,
			GST:              q.GST,
			Total:            q.Total,
			Live:             q.Live,
		})
	}
	return out
}

func timelineToGraphQL(tl *shipper.TrackingTimeline) *TrackingTimeline {
	out := &TrackingTimeline{
		Carrier:    tl.Carrier,
		ExternalID: tl.ExternalID,
		Status:     string(tl.Status),
		FetchedAt:  tl.FetchedAt.UTC().Format(time.RFC3339),
		Events:     make([]TrackingEvent, 0, len(tl.Events)),
	}
	for _, e := range tl.Events {
		out.Events = append(out.Events, TrackingEvent{
			Timestamp:   e.Timestamp.Format(time.RFC3339),
			Status:      string(e.Status),
			Location:    e.Location,
			Description: e.Description,
			RawStatus:   e.RawStatus,
		})
	}
	return out
}

func bookingToGraphQL(res *shipper.BookingResult) *BookingResult {
	return &BookingResult{
		Carrier:    res.Carrier,
		ExternalID: res.ExternalID,
		Waybill:    res.Waybill,
		Status:     string(res.Status),
		LabelURL:   res.LabelURL,
	}
}

func cancelToGraphQL(res *shipper.CancelResult) *CancelResult {
	return &CancelResult{
		Carrier:    res.Carrier,
		ExternalID: res.ExternalID,
		Cancelled:  res.Cancelled,
		Message:    res.Message,
	}
}

func healthToGraphQL(statuses []health.Status) []CarrierHealth {
	out := make([]CarrierHealth, 0, len(statuses))
	for _, s := range statuses {
		h := CarrierHealth{
			Carrier:  s.Carrier,
			State:    string(s.State),
			Requests: s.Requests,
		}
		if !s.LastProbe.IsZero() {
			probe := s.LastProbe.UTC().Format(time.RFC3339)
			latency := s.Latency.Milliseconds()
			h.LastProbe = &probe
			h.LatencyMs = &latency
		}
		if s.LastError != "" {
			lastErr := s.LastError
			h.LastError = &lastErr
		}
		out = append(out, h)
	}
	return out
}

// errorExtensions exposes the classified error without the raw carrier cause.
func errorExtensions(err error) (string, map[string]interface{}) {
	var shipErr *shipper.Error
	if !errors.As(err, &shipErr) {
		return err.Error(), nil
	}
	ext := map[string]interface{}{
		"kind": string(shipErr.Kind),
		"code": shipErr.Code,
	}
	if shipErr.Carrier != "" {
		ext["carrier"] = shipErr.Carrier
	}
	msg := shipErr.Message
	if shipErr.Carrier != "" {
		msg = fmt.Sprintf("%s: %s", shipErr.Carrier, shipErr.Message)
	}
	return msg, ext
}
