package ecomexpress_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/credentials"
	"github.com/tournevent/shipgate/pkg/shipper/ecomexpress"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var cred = credentials.Credential{Scheme: credentials.SchemeFormCredentials, Username: "ecom", Password: "pw"}

func newTestClient(mockClient *ecomexpress.MockAPIClient) *ecomexpress.Client {
	return ecomexpress.NewWithAPIClient(ecomexpress.Config{}, mockClient, otelzap.New(zap.NewNop()))
}

func TestClient_Capabilities(t *testing.T) {
	client := newTestClient(ecomexpress.NewMockAPIClient())
	caps := client.Capabilities()
	assert.False(t, caps.LiveRating)
	assert.True(t, caps.WaybillFetch)
	assert.Equal(t, 1000, caps.MaxWaybillBatch)
}

func TestClient_CheckServiceability(t *testing.T) {
	noCOD := false
	mockAPI := ecomexpress.NewMockAPIClient()
	mockAPI.OnPincode = func(ctx context.Context, login ecomexpress.Login, pincode string) ([]ecomexpress.PincodeInfo, error) {
		assert.Equal(t, "ecom", login.Username)
		assert.Equal(t, "pw", login.Password)
		switch pincode {
		case "560001":
			return []ecomexpress.PincodeInfo{{Active: false}, {Active: true, CODEnabled: &noCOD}}, nil
		default:
			return []ecomexpress.PincodeInfo{{Active: false}}, nil
		}
	}
	client := newTestClient(mockAPI)

	got, err := client.CheckServiceability(context.Background(), cred, "560001", "")
	require.NoError(t, err)
	assert.True(t, got.Serviceable)
	assert.True(t, got.PrepaidAvailable)
	assert.False(t, got.CODAvailable)

	got, err = client.CheckServiceability(context.Background(), cred, "194101", "")
	require.NoError(t, err)
	assert.False(t, got.Serviceable)
}

func TestClient_FetchWaybillsClampsAndUsesSeries(t *testing.T) {
	mockAPI := ecomexpress.NewMockAPIClient()
	var asked int
	mockAPI.OnFetchAWB = func(ctx context.Context, login ecomexpress.Login, count int, awbType string) ([]string, error) {
		asked = count
		assert.Equal(t, "COD", awbType)
		return []string{"100000001", "100000002"}, nil
	}
	client := ecomexpress.NewWithAPIClient(ecomexpress.Config{AWBType: "COD"}, mockAPI, otelzap.New(zap.NewNop()))

	wbs, err := client.FetchWaybills(context.Background(), cred, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1000, asked)
	require.Len(t, wbs, 2)
	assert.Equal(t, "100000001", wbs[0].Number)
	assert.Equal(t, "ecomexpress", wbs[0].Carrier)
	assert.False(t, wbs[0].Manual)
}

func TestClient_BookShipmentRequiresWaybill(t *testing.T) {
	client := newTestClient(ecomexpress.NewMockAPIClient())

	_, err := client.BookShipment(context.Background(), cred, &shipper.BookingRequest{}, shipper.Waybill{Manual: true})
	assert.True(t, errors.Is(err, shipper.ErrValidationFailed))
}

func TestClient_BookShipment(t *testing.T) {
	mockAPI := ecomexpress.NewMockAPIClient()
	mockAPI.OnManifest = func(ctx context.Context, login ecomexpress.Login, shipments []ecomexpress.ManifestShipment) ([]ecomexpress.ManifestResult, error) {
		require.Len(t, shipments, 1)
		s := shipments[0]
		assert.Equal(t, "100000042", s.AWBNumber)
		assert.Equal(t, "COD", s.Product)
		assert.Equal(t, 300.0, s.CollectableValue)
		assert.Equal(t, 2.4, s.VolumetricWeight)
		assert.Equal(t, "Acme", s.ReturnName)
		assert.Equal(t, "110001", s.ReturnPincode)
		return []ecomexpress.ManifestResult{{AWB: json.Number("100000042"), Success: true}}, nil
	}
	client := newTestClient(mockAPI)

	res, err := client.BookShipment(context.Background(), cred, &shipper.BookingRequest{
		Reference:         "ORD-3",
		Pickup:            shipper.Address{Company: "Acme", Pincode: "110001"},
		Consignee:         shipper.Address{Name: "S", Pincode: "560001"},
		Parcel:            shipper.Parcel{Weight: 1, Dimensions: shipper.Dimensions{Length: 20, Width: 20, Height: 30}},
		PaymentType:       shipper.PaymentCOD,
		CollectibleAmount: 300,
	}, shipper.Waybill{Number: "100000042", Carrier: "ecomexpress"})
	require.NoError(t, err)
	assert.Equal(t, "100000042", res.ExternalID)
	assert.Equal(t, shipper.StatusManifested, res.Status)
}

func TestClient_BookShipmentRejected(t *testing.T) {
	mockAPI := ecomexpress.NewMockAPIClient()
	mockAPI.OnManifest = func(ctx context.Context, login ecomexpress.Login, shipments []ecomexpress.ManifestShipment) ([]ecomexpress.ManifestResult, error) {
		return []ecomexpress.ManifestResult{{Success: false, Reason: "Pincode 194101 is not serviceable"}}, nil
	}
	client := newTestClient(mockAPI)

	_, err := client.BookShipment(context.Background(), cred, &shipper.BookingRequest{}, shipper.Waybill{Number: "1"})
	assert.True(t, errors.Is(err, shipper.ErrNotServiceable))
}

func TestClient_TrackShipment(t *testing.T) {
	client := newTestClient(ecomexpress.NewMockAPIClient())

	tl, err := client.TrackShipment(context.Background(), cred, "100000042")
	require.NoError(t, err)
	require.Len(t, tl.Events, 2)
	assert.Equal(t, shipper.StatusPickedUp, tl.Status)
	assert.Equal(t, shipper.StatusManifested, tl.Events[1].Status)
}

func TestClient_CancelShipment(t *testing.T) {
	mockAPI := ecomexpress.NewMockAPIClient()
	mockAPI.OnCancel = func(ctx context.Context, login ecomexpress.Login, awbs []string) ([]ecomexpress.CancelResult, error) {
		assert.Equal(t, []string{"100000042"}, awbs)
		return []ecomexpress.CancelResult{{Success: false, Reason: "Shipment already in transit"}}, nil
	}
	client := newTestClient(mockAPI)

	res, err := client.CancelShipment(context.Background(), cred, "100000042")
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, "Shipment already in transit", res.Message)
}
