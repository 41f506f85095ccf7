package ecomexpress

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"strconv"
	"strings"
)

// Login carries the account username and password sent in every form body.
type Login struct {
	Username string
	Password string
}

// APIClient defines the Ecom Express API operations the adapter uses.
type APIClient interface {
	// Pincode returns the serviceability rows of a pincode
	Pincode(ctx context.Context, login Login, pincode string) ([]PincodeInfo, error)

	// FetchAWB reserves count AWBs of the given type ("PPD" or "COD")
	FetchAWB(ctx context.Context, login Login, count int, awbType string) ([]string, error)

	// Manifest books shipments against pre-fetched AWBs
	Manifest(ctx context.Context, login Login, shipments []ManifestShipment) ([]ManifestResult, error)

	// Track returns the tracking objects of an AWB
	Track(ctx context.Context, login Login, awb string) (*TrackObject, error)

	// Cancel cancels AWBs
	Cancel(ctx context.Context, login Login, awbs []string) ([]CancelResult, error)
}

// ============================================================================
// POST /apiv2/pincode/
// ============================================================================

// PincodeInfo is a pincode row.
type PincodeInfo struct {
	Pincode    json.Number `json:"pincode"`
	City       string      `json:"city"`
	State      string      `json:"state"`
	Route      string      `json:"route"`
	DCCode     string      `json:"dccode"`
	Active     bool        `json:"active"`
	CODEnabled *bool       `json:"cod_enabled,omitempty"`
}

// ============================================================================
// POST /apiv2/fetch_awb/
// ============================================================================

// FetchAWBResponse is the AWB allocation response. AWBs arrive as numbers.
type FetchAWBResponse struct {
	ReferenceID json.Number   `json:"reference_id"`
	Success     string        `json:"success"`
	Error       []string      `json:"error"`
	AWB         []json.Number `json:"awb"`
}

// ============================================================================
// POST /apiv2/manifest_awb/
// ============================================================================

// ManifestShipment is an entry of the json_input array.
type ManifestShipment struct {
	AWBNumber          string  `json:"AWB_NUMBER"`
	OrderNumber        string  `json:"ORDER_NUMBER"`
	Product            string  `json:"PRODUCT"` // "PPD" or "COD"
	Consignee          string  `json:"CONSIGNEE"`
	ConsigneeAddress1  string  `json:"CONSIGNEE_ADDRESS1"`
	ConsigneeAddress2  string  `json:"CONSIGNEE_ADDRESS2"`
	DestinationCity    string  `json:"DESTINATION_CITY"`
	Pincode            string  `json:"PINCODE"`
	State              string  `json:"STATE"`
	Mobile             string  `json:"MOBILE"`
	ItemDescription    string  `json:"ITEM_DESCRIPTION"`
	Pieces             int     `json:"PIECES"`
	CollectableValue   float64 `json:"COLLECTABLE_VALUE"`
	DeclaredValue      float64 `json:"DECLARED_VALUE"`
	ActualWeight       float64 `json:"ACTUAL_WEIGHT"`
	VolumetricWeight   float64 `json:"VOLUMETRIC_WEIGHT"`
	Length             float64 `json:"LENGTH"`
	Breadth            float64 `json:"BREADTH"`
	Height             float64 `json:"HEIGHT"`
	PickupName         string  `json:"PICKUP_NAME"`
	PickupAddressLine1 string  `json:"PICKUP_ADDRESS_LINE1"`
	PickupAddressLine2 string  `json:"PICKUP_ADDRESS_LINE2"`
	PickupPincode      string  `json:"PICKUP_PINCODE"`
	PickupMobile       string  `json:"PICKUP_MOBILE"`
	ReturnName         string  `json:"RETURN_NAME"`
	ReturnAddressLine1 string  `json:"RETURN_ADDRESS_LINE1"`
	ReturnAddressLine2 string  `json:"RETURN_ADDRESS_LINE2"`
	ReturnPincode      string  `json:"RETURN_PINCODE"`
	ReturnMobile       string  `json:"RETURN_MOBILE"`
	DGShipment         string  `json:"DG_SHIPMENT"`
}

// ManifestResult is the per-shipment manifest outcome.
type ManifestResult struct {
	AWB         json.Number `json:"awb"`
	OrderNumber string      `json:"order_number"`
	Success     bool        `json:"success"`
	Reason      string      `json:"reason"`
}

// ============================================================================
// POST /apiv2/cancel_awb/
// ============================================================================

// CancelResult is the per-AWB cancellation outcome.
type CancelResult struct {
	AWB         json.Number `json:"awb"`
	OrderNumber string      `json:"order_number"`
	Success     bool        `json:"success"`
	Reason      string      `json:"reason"`
}

// ============================================================================
// GET /track_me/api/mawbd/ (XML)
// ============================================================================

// TrackDocument is the <ecomexpress-objects> root.
type TrackDocument struct {
	XMLName xml.Name      `xml:"ecomexpress-objects"`
	Objects []TrackObject `xml:"object"`
}

// TrackObject is a Django-serialized model instance: an "awb" or a "scan_stages" row.
type TrackObject struct {
	Model  string       `xml:"model,attr"`
	Fields []TrackField `xml:"field"`
}

// TrackField is a named field. Related fields nest further objects.
type TrackField struct {
	Name    string        `xml:"name,attr"`
	Type    string        `xml:"type,attr"`
	Value   string        `xml:",chardata"`
	Objects []TrackObject `xml:"object"`
}

// Field returns the trimmed value of the named field.
func (o TrackObject) Field(name string) string {
	for _, f := range o.Fields {
		if f.Name == name {
			return strings.TrimSpace(f.Value)
		}
	}
	return ""
}

// Scans returns the nested scan_stages objects.
func (o TrackObject) Scans() []TrackObject {
	for _, f := range o.Fields {
		if f.Name == "scans" {
			return f.Objects
		}
	}
	return nil
}

func numbersToStrings(ns []json.Number) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		s := n.String()
		if _, err := strconv.ParseInt(s, 10, 64); err != nil || s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
