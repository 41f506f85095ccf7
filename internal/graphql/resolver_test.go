package graphql_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/internal/graphql"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/cache"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/tournevent/shipgate/pkg/shipper/mock"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestResolver(adapters ...*mock.Client) *graphql.Resolver {
	logger := otelzap.New(zap.NewNop())

	registry := shipper.NewRegistry()
	store := credentials.NewStore(credentials.Config{}, cache.NewMemory(16, time.Hour), logger)
	for _, a := range adapters {
		registry.Register(a)
		store.RegisterIdentity(credentials.Identity{
			Carrier: a.Name(),
			Tier:    "surface",
			Scheme:  credentials.SchemeStaticToken,
			Token:   a.Name() + "-token",
		})
	}

	cards := rating.NewStaticRateCards([]rating.RateCard{
		{Carrier: "delhivery", ServiceTier: "surface", Zone: shipper.ZoneWithinState, BaseRate: 45, AddlRate: 18},
	})

	gw := gateway.New(gateway.Config{
		CallTimeout:     50 * time.Millisecond,
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}, registry, store, logger, nil, gateway.WithRateCards(cards))

	return graphql.NewResolver(gw, logger)
}

func quoteInput() map[string]interface{} {
	return map[string]interface{}{
		"origin":      map[string]interface{}{"pincode": "400001", "city": "Mumbai", "state": "Maharashtra"},
		"destination": map[string]interface{}{"pincode": "411001", "city": "Pune", "state": "Maharashtra"},
		"weight":      1.2,
	}
}

func bookingInput(payment string) map[string]interface{} {
	address := func(name, city, pincode string) map[string]interface{} {
		return map[string]interface{}{
			"name": name, "line1": "1 Main Road", "city": city,
			"state": "Maharashtra", "pincode": pincode, "phone": "9999999999",
		}
	}
	return map[string]interface{}{
		"reference":   "ORD-42",
		"pickup":      address("Warehouse", "Mumbai", "400001"),
		"consignee":   address("Asha", "Pune", "411001"),
		"parcel":      map[string]interface{}{"weight": 0.5, "declaredValue": 499.0},
		"paymentType": payment,
	}
}

func TestQuery_Carriers(t *testing.T) {
	resolver := newTestResolver(
		mock.New("xpressbees").WithCapabilities(shipper.Capabilities{LiveRating: true}),
		mock.New("delhivery").WithCapabilities(shipper.Capabilities{WaybillFetch: true, MaxWaybillBatch: 100}),
	)

	carriers, err := resolver.Query().Carriers(context.Background())
	require.NoError(t, err)
	require.Len(t, carriers, 2)

	assert.Equal(t, "delhivery", carriers[0].Name)
	assert.True(t, carriers[0].WaybillFetch)
	assert.False(t, carriers[0].LiveRating)
	assert.Equal(t, "unknown", carriers[0].Health)
	assert.Equal(t, "xpressbees", carriers[1].Name)
	assert.True(t, carriers[1].LiveRating)
}

func TestQuery_Quotes(t *testing.T) {
	resolver := newTestResolver(
		mock.New("delhivery"),
		mock.New("xpressbees").WithCapabilities(shipper.Capabilities{LiveRating: true}),
		mock.New("ecomexpress"),
	)

	res, err := resolver.Query().Quotes(context.Background(), quoteInput())
	require.NoError(t, err)

	assert.Equal(t, "within_state", res.Zone)
	require.Len(t, res.Quotes, 2)
	assert.Equal(t, "xpressbees", res.Quotes[0].Carrier)
	assert.True(t, res.Quotes[0].Live)
	assert.Equal(t, 59.0, res.Quotes[0].Total)
	assert.Equal(t, "delhivery", res.Quotes[1].Carrier)
	assert.False(t, res.Quotes[1].Live)
	assert.Equal(t, 3, res.Quotes[1].Multiplier)
	assert.Equal(t, 95.58, res.Quotes[1].Total)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "ecomexpress", res.Errors[0].Carrier)
	assert.Equal(t, "NOT_SERVICEABLE", res.Errors[0].Kind)
}

func TestQuery_QuotesRejectsMissingInput(t *testing.T) {
	resolver := newTestResolver(mock.New("delhivery"))

	_, err := resolver.Query().Quotes(context.Background(), nil)
	assert.Error(t, err)
}

func TestQuery_Serviceability(t *testing.T) {
	closed := mock.New("bluedart")
	closed.OnCheckServiceability = func(ctx context.Context, cred credentials.Credential, pincode, tier string) (*shipper.Serviceability, error) {
		return &shipper.Serviceability{Carrier: "bluedart", Pincode: pincode}, nil
	}
	resolver := newTestResolver(mock.New("delhivery"), closed)

	res, err := resolver.Query().Serviceability(context.Background(), "411001", "", nil)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "bluedart", res.Results[0].Carrier)
	assert.False(t, res.Results[0].Serviceable)
	assert.True(t, res.Results[1].Serviceable)
	assert.Empty(t, res.Errors)

	_, err = resolver.Query().Serviceability(context.Background(), "41100", "", nil)
	assert.ErrorIs(t, err, shipper.ErrValidationFailed)
}

func TestQuery_Track(t *testing.T) {
	resolver := newTestResolver(mock.New("delhivery"))

	tl, err := resolver.Query().Track(context.Background(), "delhivery", "AWB123")
	require.NoError(t, err)
	assert.Equal(t, "AWB123", tl.ExternalID)
	assert.Equal(t, "in_transit", tl.Status)
	assert.Len(t, tl.Events, 2)
}

func TestMutation_BookShipment(t *testing.T) {
	resolver := newTestResolver(mock.New("bluedart"))

	res, err := resolver.Mutation().BookShipment(context.Background(), "bluedart", bookingInput("PREPAID"))
	require.NoError(t, err)
	assert.Equal(t, "bluedart", res.Carrier)
	assert.Equal(t, "bluedart-AWB-000001", res.Waybill)
	assert.Equal(t, "manifested", res.Status)
}

func TestMutation_BookShipmentValidation(t *testing.T) {
	resolver := newTestResolver(mock.New("bluedart"))

	_, err := resolver.Mutation().BookShipment(context.Background(), "bluedart", bookingInput("COD"))
	assert.ErrorIs(t, err, shipper.ErrValidationFailed)
}

func TestMutation_CancelShipment(t *testing.T) {
	carrier := mock.New("ecomexpress")
	carrier.OnCancelShipment = func(ctx context.Context, cred credentials.Credential, externalID string) (*shipper.CancelResult, error) {
		return &shipper.CancelResult{Carrier: "ecomexpress", ExternalID: externalID, Message: "already delivered"}, nil
	}
	resolver := newTestResolver(carrier)

	res, err := resolver.Mutation().CancelShipment(context.Background(), "ecomexpress", "AWB9")
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, "already delivered", res.Message)

	_, err = resolver.Mutation().CancelShipment(context.Background(), "nonexistent", "AWB9")
	assert.ErrorIs(t, err, shipper.ErrValidationFailed)
}
