package delhivery

import (
	"context"
)

// APIClient defines the Delhivery API operations the adapter uses.
// Implementations: HTTPAPIClient for production, MockAPIClient for tests.
type APIClient interface {
	// PincodeServiceability looks up a delivery pincode
	PincodeServiceability(ctx context.Context, token, pincode string) (*PincodeResponse, error)

	// InvoiceCharges returns the live shipping charge for a consignment
	InvoiceCharges(ctx context.Context, token string, req *ChargesRequest) ([]Charge, error)

	// FetchWaybills reserves count waybills
	FetchWaybills(ctx context.Context, token string, count int) ([]string, error)

	// CreateShipment manifests shipments against pre-fetched waybills
	CreateShipment(ctx context.Context, token string, req *CreateRequest) (*CreateResponse, error)

	// Track returns the scan history of a waybill
	Track(ctx context.Context, token, waybill string) (*TrackResponse, error)

	// Cancel cancels a manifested waybill
	Cancel(ctx context.Context, token, waybill string) (*CancelResponse, error)
}

// ============================================================================
// Pincode serviceability: GET /c/api/pin-codes/json/?filter_codes=
// ============================================================================

// PincodeResponse is the pin-codes endpoint response. An empty DeliveryCodes
// list means the pincode is not serviced.
type PincodeResponse struct {
	DeliveryCodes []DeliveryCode `json:"delivery_codes"`
}

// DeliveryCode wraps a single pincode record.
type DeliveryCode struct {
	PostalCode PostalCode `json:"postal_code"`
}

// PostalCode describes what Delhivery supports at a pincode. Flags are "Y"/"N".
type PostalCode struct {
	Pin       int    `json:"pin"`
	City      string `json:"city"`
	District  string `json:"district"`
	StateCode string `json:"state_code"`
	PrePaid   string `json:"pre_paid"`
	Cash      string `json:"cash"`
	COD       string `json:"cod"`
	Pickup    string `json:"pickup"`
	Remarks   string `json:"remarks"`
}

// ============================================================================
// Invoice charges: GET /api/kinko/v1/invoice/charges/.json
// ============================================================================

// ChargesRequest is the query for the invoice charges endpoint.
type ChargesRequest struct {
	Mode          string // "S" surface, "E" express
	OriginPin     string
	DestPin       string
	WeightGrams   int
	PaymentType   string // "Pre-paid" or "COD"
	CODAmount     float64
	ShipmentState string // "Delivered" or "RTO"
}

// Charge is one line of the charges response.
type Charge struct {
	ChargedWeight float64 `json:"charged_weight"`
	ChargeDL      float64 `json:"charge_DL"`
	ChargeCOD     float64 `json:"charge_COD"`
	ChargeRTO     float64 `json:"charge_RTO"`
	GrossAmount   float64 `json:"gross_amount"`
	TotalAmount   float64 `json:"total_amount"`
	TaxData       TaxData `json:"tax_data"`
	Zone          string  `json:"zone"`
}

// TaxData holds the GST components.
type TaxData struct {
	IGST float64 `json:"IGST"`
	CGST float64 `json:"CGST"`
	SGST float64 `json:"SGST"`
}

// ============================================================================
// Manifest: POST /api/cmu/create.json (form: format=json&data=<json>)
// ============================================================================

// CreateRequest is the JSON document sent in the data form field.
type CreateRequest struct {
	Shipments      []Shipment     `json:"shipments"`
	PickupLocation PickupLocation `json:"pickup_location"`
}

// PickupLocation names the registered warehouse.
type PickupLocation struct {
	Name string `json:"name"`
}

// Shipment is a single consignment in a manifest request.
type Shipment struct {
	Waybill        string  `json:"waybill"`
	Order          string  `json:"order"`
	Name           string  `json:"name"`
	Add            string  `json:"add"`
	Pin            string  `json:"pin"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Country        string  `json:"country"`
	Phone          string  `json:"phone"`
	PaymentMode    string  `json:"payment_mode"` // "Prepaid" or "COD"
	CODAmount      float64 `json:"cod_amount"`
	TotalAmount    float64 `json:"total_amount"`
	ProductsDesc   string  `json:"products_desc,omitempty"`
	Quantity       string  `json:"quantity,omitempty"`
	Weight         float64 `json:"weight"` // grams
	ShipmentLength float64 `json:"shipment_length,omitempty"`
	ShipmentWidth  float64 `json:"shipment_width,omitempty"`
	ShipmentHeight float64 `json:"shipment_height,omitempty"`
	ShippingMode   string  `json:"shipping_mode,omitempty"` // "Surface" or "Express"
	SellerName     string  `json:"seller_name,omitempty"`
	ReturnName     string  `json:"return_name,omitempty"`
	ReturnAdd      string  `json:"return_add,omitempty"`
	ReturnPin      string  `json:"return_pin,omitempty"`
	ReturnCity     string  `json:"return_city,omitempty"`
	ReturnState    string  `json:"return_state,omitempty"`
	ReturnPhone    string  `json:"return_phone,omitempty"`
}

// CreateResponse is the manifest response.
type CreateResponse struct {
	Success   bool            `json:"success"`
	Packages  []PackageResult `json:"packages"`
	Remark    string          `json:"rmk"`
	UploadWBN string          `json:"upload_wbn"`
	Error     bool            `json:"error"`
}

// PackageResult is the per-shipment manifest outcome.
type PackageResult struct {
	Waybill string   `json:"waybill"`
	Status  string   `json:"status"`
	RefNum  string   `json:"refnum"`
	Remarks []string `json:"remarks"`
}

// ============================================================================
// Tracking: GET /api/v1/packages/json/?waybill=
// ============================================================================

// TrackResponse is the packages endpoint response.
type TrackResponse struct {
	ShipmentData []ShipmentData `json:"ShipmentData"`
}

// ShipmentData wraps a tracked shipment.
type ShipmentData struct {
	Shipment TrackedShipment `json:"Shipment"`
}

// TrackedShipment is the shipment summary plus its scans.
type TrackedShipment struct {
	AWB         string       `json:"AWB"`
	ReferenceNo string       `json:"ReferenceNo"`
	Status      ShipmentStat `json:"Status"`
	Scans       []ScanItem   `json:"Scans"`
}

// ShipmentStat is the current status block.
type ShipmentStat struct {
	Status         string `json:"Status"`
	StatusType     string `json:"StatusType"`
	StatusDateTime string `json:"StatusDateTime"`
	StatusLocation string `json:"StatusLocation"`
	Instructions   string `json:"Instructions"`
}

// ScanItem wraps a scan.
type ScanItem struct {
	ScanDetail ScanDetail `json:"ScanDetail"`
}

// ScanDetail is a single scan.
type ScanDetail struct {
	Scan            string `json:"Scan"`
	ScanType        string `json:"ScanType"` // UD forward, DL delivered, RT return, PU pickup, CN cancelled
	ScanDateTime    string `json:"ScanDateTime"`
	ScannedLocation string `json:"ScannedLocation"`
	Instructions    string `json:"Instructions"`
	StatusCode      string `json:"StatusCode"`
}

// ============================================================================
// Cancellation: POST /api/p/edit
// ============================================================================

// CancelRequest is the edit-API cancellation body.
type CancelRequest struct {
	Waybill      string `json:"waybill"`
	Cancellation string `json:"cancellation"`
}

// CancelResponse is the edit-API response.
type CancelResponse struct {
	Status  bool   `json:"status"`
	Waybill string `json:"waybill"`
	Remark  string `json:"remark"`
}
