package bluedart

import (
	"context"
)

// APIClient defines the Blue Dart API gateway operations the adapter uses.
// Every call carries the OAuth2 access token in the JWTToken header.
type APIClient interface {
	// ServicesForPincode returns the services available at a pincode
	ServicesForPincode(ctx context.Context, token, pincode string) (*PincodeServices, error)

	// GenerateWayBill books a shipment; Blue Dart assigns the AWB
	GenerateWayBill(ctx context.Context, token string, req *WayBillRequest) (*WayBillResult, error)

	// Track returns the scan history of an AWB
	Track(ctx context.Context, token, awb string) (*TrackedShipment, error)

	// CancelWaybill cancels a generated AWB
	CancelWaybill(ctx context.Context, token, awb string) (*CancelResult, error)
}

// Profile identifies the Blue Dart customer account on every request.
type Profile struct {
	LoginID    string `json:"LoginID"`
	LicenceKey string `json:"LicenceKey"`
	APIType    string `json:"Api_type"`
}

// ResultStatus is an entry of the Status list on Blue Dart results.
type ResultStatus struct {
	StatusCode        string `json:"StatusCode"`
	StatusInformation string `json:"StatusInformation"`
}

// ============================================================================
// POST /finder/v1/GetServicesforPincode
// ============================================================================

// PincodeRequest is the pincode finder request.
type PincodeRequest struct {
	PinCode string  `json:"pinCode"`
	Profile Profile `json:"profile"`
}

// PincodeServices describes the services at a pincode. Flags are "Yes"/"No".
type PincodeServices struct {
	PinCode                string `json:"PinCode"`
	PinDescription         string `json:"PinDescription"`
	AreaCode               string `json:"AreaCode"`
	ApexInbound            string `json:"ApexInbound"`
	GroundInbound          string `json:"GroundInbound"`
	ETailCODAirInbound     string `json:"eTailCODAirInbound"`
	ETailPrePaidAirInbound string `json:"eTailPrePaidAirInbound"`
	ETailCODGroundInbound  string `json:"eTailCODGroundInbound"`
	ETailPrePaidGround     string `json:"eTailPrePaidGroundInbound"`
	IsError                bool   `json:"IsError"`
	ErrorMessage           string `json:"ErrorMessage"`
}

// ============================================================================
// POST /waybill/v1/GenerateWayBill
// ============================================================================

// WayBillRequest is the waybill generation request.
type WayBillRequest struct {
	Request WayBillBody `json:"Request"`
	Profile Profile     `json:"Profile"`
}

// WayBillBody carries consignee, shipper and service details.
type WayBillBody struct {
	Consignee  Consignee   `json:"Consignee"`
	Shipper    Shipper     `json:"Shipper"`
	Services   Services    `json:"Services"`
	Returnadds *Returnadds `json:"Returnadds,omitempty"`
}

// Consignee is the delivery party.
type Consignee struct {
	ConsigneeName     string `json:"ConsigneeName"`
	ConsigneeAddress1 string `json:"ConsigneeAddress1"`
	ConsigneeAddress2 string `json:"ConsigneeAddress2"`
	ConsigneeAddress3 string `json:"ConsigneeAddress3"`
	ConsigneePincode  string `json:"ConsigneePincode"`
	ConsigneeMobile   string `json:"ConsigneeMobile"`
	ConsigneeEmailID  string `json:"ConsigneeEmailID,omitempty"`
}

// Shipper is the pickup party.
type Shipper struct {
	CustomerCode     string `json:"CustomerCode"`
	OriginArea       string `json:"OriginArea"`
	CustomerName     string `json:"CustomerName"`
	CustomerAddress1 string `json:"CustomerAddress1"`
	CustomerAddress2 string `json:"CustomerAddress2"`
	CustomerAddress3 string `json:"CustomerAddress3"`
	CustomerPincode  string `json:"CustomerPincode"`
	CustomerMobile   string `json:"CustomerMobile"`
	Sender           string `json:"Sender"`
}

// Returnadds is the optional return address.
type Returnadds struct {
	ReturnAddress1 string `json:"ReturnAddress1"`
	ReturnAddress2 string `json:"ReturnAddress2"`
	ReturnPincode  string `json:"ReturnPincode"`
	ReturnMobile   string `json:"ReturnMobile"`
}

// Services describes the product and the parcel.
type Services struct {
	ProductCode       string       `json:"ProductCode"`    // "A" Apex, "E" Ground
	SubProductCode    string       `json:"SubProductCode"` // "P" prepaid, "C" COD
	PieceCount        int          `json:"PieceCount"`
	ActualWeight      float64      `json:"ActualWeight"`
	CollectableAmount float64      `json:"CollectableAmount"`
	DeclaredValue     float64      `json:"DeclaredValue"`
	CreditReferenceNo string       `json:"CreditReferenceNo"`
	PickupDate        string       `json:"PickupDate"`
	PickupTime        string       `json:"PickupTime"`
	RegisterPickup    bool         `json:"RegisterPickup"`
	Dimensions        []Dimension  `json:"Dimensions"`
	ItemCount         int          `json:"itemCount"`
	Commodity         CommodityDet `json:"Commodity"`
}

// Dimension is a piece's size in centimetres.
type Dimension struct {
	Length  float64 `json:"Length"`
	Breadth float64 `json:"Breadth"`
	Height  float64 `json:"Height"`
	Count   int     `json:"Count"`
}

// CommodityDet describes the contents.
type CommodityDet struct {
	CommodityDetail1 string `json:"CommodityDetail1"`
}

// WayBillResult is the GenerateWayBillResult payload.
type WayBillResult struct {
	AWBNo               string         `json:"AWBNo"`
	DestinationArea     string         `json:"DestinationArea"`
	DestinationLocation string         `json:"DestinationLocation"`
	IsError             bool           `json:"IsError"`
	Status              []ResultStatus `json:"Status"`
	TokenNumber         string         `json:"TokenNumber"`
}

// ============================================================================
// GET /tracking/v1/shipment
// ============================================================================

// TrackResponse is the tracking response.
type TrackResponse struct {
	ShipmentData struct {
		Shipment []TrackedShipment `json:"Shipment"`
		Error    string            `json:"Error"`
	} `json:"ShipmentData"`
}

// TrackedShipment is a shipment and its scans.
type TrackedShipment struct {
	WaybillNo  string     `json:"WaybillNo"`
	RefNo      string     `json:"RefNo"`
	Status     string     `json:"Status"`
	StatusType string     `json:"StatusType"`
	Scans      []ScanItem `json:"Scans"`
}

// ScanItem wraps a scan.
type ScanItem struct {
	ScanDetail ScanDetail `json:"ScanDetail"`
}

// ScanDetail is a single scan. ScanDate is "02-Jan-2006" and ScanTime "15:04", IST.
type ScanDetail struct {
	Scan            string `json:"Scan"`
	ScanCode        string `json:"ScanCode"`
	ScanType        string `json:"ScanType"`
	ScanDate        string `json:"ScanDate"`
	ScanTime        string `json:"ScanTime"`
	ScannedLocation string `json:"ScannedLocation"`
}

// ============================================================================
// POST /waybill/v1/CancelWaybill
// ============================================================================

// CancelRequest is the cancellation request.
type CancelRequest struct {
	Request struct {
		AWBNo string `json:"AWBNo"`
	} `json:"Request"`
	Profile Profile `json:"Profile"`
}

// CancelResult is the CancelWaybillResult payload.
type CancelResult struct {
	AWBNo   string         `json:"AWBNo"`
	IsError bool           `json:"IsError"`
	Status  []ResultStatus `json:"Status"`
}
