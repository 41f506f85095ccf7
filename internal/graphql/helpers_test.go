package graphql

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/health"
)

func TestParseQuoteInput(t *testing.T) {
	input := map[string]interface{}{
		"carriers":    []interface{}{"Delhivery", "xpressbees", ""},
		"serviceTier": "surface",
		"origin": map[string]interface{}{
			"pincode": "400001",
			"city":    "Mumbai",
			"state":   "Maharashtra",
		},
		"destination": map[string]interface{}{
			"city":   "Pune",
			"state":  "Maharashtra",
			"region": "west",
		},
		"weight":            1.5,
		"dimensions":        map[string]interface{}{"length": 10, "width": int64(20), "height": json.Number("30")},
		"paymentType":       "COD",
		"collectibleAmount": 1200.0,
		"includeRto":        true,
	}

	req, err := parseQuoteInput(input)
	require.NoError(t, err)

	assert.Equal(t, []string{"delhivery", "xpressbees"}, req.Carriers)
	assert.Equal(t, "surface", req.ServiceTier)
	assert.Equal(t, shipper.Location{Pincode: "400001", City: "Mumbai", State: "Maharashtra"}, req.Origin)
	assert.Equal(t, "west", req.Destination.Region)
	assert.Equal(t, 1.5, req.Weight)
	assert.Equal(t, shipper.Dimensions{Length: 10, Width: 20, Height: 30}, req.Dimensions)
	assert.Equal(t, shipper.PaymentCOD, req.PaymentType)
	assert.Equal(t, 1200.0, req.CollectibleAmount)
	assert.True(t, req.IncludeRTO)
}

func TestParseQuoteInput_Nil(t *testing.T) {
	_, err := parseQuoteInput(nil)
	assert.Error(t, err)
}

func TestParseBookingInput(t *testing.T) {
	address := func(name, pincode string) map[string]interface{} {
		return map[string]interface{}{
			"name":    name,
			"line1":   "1 Main Road",
			"city":    "Mumbai",
			"state":   "Maharashtra",
			"pincode": pincode,
			"phone":   "9999999999",
		}
	}
	input := map[string]interface{}{
		"reference":     "ORD-7",
		"pickup":        address("Warehouse", "400001"),
		"consignee":     address("Asha", "411001"),
		"returnAddress": address("Returns", "400002"),
		"parcel": map[string]interface{}{
			"weight":        0.75,
			"declaredValue": 1499.0,
			"quantity":      int64(2),
			"dimensions":    map[string]interface{}{"length": 20.0, "width": 15.0, "height": 5.0},
		},
		"paymentType": "PREPAID",
	}

	req, err := parseBookingInput(input)
	require.NoError(t, err)

	assert.Equal(t, "ORD-7", req.Reference)
	assert.Equal(t, "400001", req.Pickup.Pincode)
	assert.Equal(t, "IN", req.Pickup.Country)
	assert.Equal(t, "Asha", req.Consignee.Name)
	require.NotNil(t, req.Return)
	assert.Equal(t, "400002", req.Return.Pincode)
	assert.Equal(t, 0.75, req.Parcel.Weight)
	assert.Equal(t, 2, req.Parcel.Quantity)
	assert.Equal(t, 20.0, req.Parcel.Dimensions.Length)
	assert.Equal(t, shipper.PaymentPrepaid, req.PaymentType)
	assert.Equal(t, 1499.0, req.InvoiceValue, "invoice value defaults to declared value")
}

func TestFloatValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{1.25, 1.25},
		{float32(2), 2},
		{3, 3},
		{int64(4), 4},
		{json.Number("5.5"), 5.5},
		{"6.5", 6.5},
		{nil, 0},
		{true, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, floatValue(tt.in), "%v", tt.in)
	}
}

func TestHealthToGraphQL(t *testing.T) {
	probed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := healthToGraphQL([]health.Status{
		{Carrier: "bluedart", State: health.StateUnknown},
		{Carrier: "delhivery", State: health.StateUnhealthy, LastProbe: probed, Latency: 1500 * time.Millisecond, LastError: "timeout", Requests: 12},
	})

	require.Len(t, out, 2)
	assert.Nil(t, out[0].LastProbe)
	assert.Nil(t, out[0].LatencyMs)
	assert.Nil(t, out[0].LastError)

	require.NotNil(t, out[1].LastProbe)
	assert.Equal(t, "2026-03-01T10:00:00Z", *out[1].LastProbe)
	assert.Equal(t, int64(1500), *out[1].LatencyMs)
	assert.Equal(t, "timeout", *out[1].LastError)
	assert.Equal(t, int64(12), out[1].Requests)
}

func TestTimelineToGraphQL(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	out := timelineToGraphQL(&shipper.TrackingTimeline{
		Carrier:    "delhivery",
		ExternalID: "AWB1",
		Status:     shipper.StatusInTransit,
		FetchedAt:  ts,
		Events: []shipper.TrackingEvent{
			{Timestamp: ts, Status: shipper.StatusInTransit, Location: "Pune", RawStatus: "In Transit"},
		},
	})

	assert.Equal(t, "in_transit", out.Status)
	assert.Equal(t, "2026-03-01T09:30:00Z", out.FetchedAt)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "Pune", out.Events[0].Location)
}

func TestErrorExtensions(t *testing.T) {
	err := shipper.NewError("xpressbees", shipper.KindRateLimited, "429", "too many requests").
		WithCause(errors.New("raw body"))

	msg, ext := errorExtensions(err)
	assert.Equal(t, "xpressbees: too many requests", msg)
	assert.Equal(t, "RATE_LIMITED", ext["kind"])
	assert.Equal(t, "429", ext["code"])
	assert.Equal(t, "xpressbees", ext["carrier"])

	msg, ext = errorExtensions(errors.New("plain"))
	assert.Equal(t, "plain", msg)
	assert.Nil(t, ext)
}
