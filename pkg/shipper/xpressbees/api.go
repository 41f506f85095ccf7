package xpressbees

import (
	"context"
)

// APIClient defines the XpressBees API operations the adapter uses.
type APIClient interface {
	// Login exchanges account credentials for a JWT
	Login(ctx context.Context, email, password string) (string, error)

	// Serviceability lists the courier options, with charges, for a lane
	Serviceability(ctx context.Context, token string, req *ServiceabilityRequest) ([]CourierOption, error)

	// CreateShipment books a shipment; XpressBees assigns the AWB
	CreateShipment(ctx context.Context, token string, req *ShipmentRequest) (*ShipmentData, error)

	// Track returns the scan history of an AWB
	Track(ctx context.Context, token, awb string) (*TrackData, error)

	// Cancel cancels a booked AWB
	Cancel(ctx context.Context, token, awb string) (*CancelResponse, error)
}

// Envelope is the common response wrapper: {"status": bool, "message": "...", "data": ...}.
type Envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// LoginRequest is POST /api/users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServiceabilityRequest is POST /api/courier/serviceability.
// Weight is in grams and dimensions in centimetres.
type ServiceabilityRequest struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	PaymentType string  `json:"payment_type"` // "cod" or "prepaid"
	OrderAmount float64 `json:"order_amount"`
	Weight      int     `json:"weight"`
	Length      float64 `json:"length"`
	Breadth     float64 `json:"breadth"`
	Height      float64 `json:"height"`
}

// CourierOption is one priced service on a lane.
type CourierOption struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	FreightCharges   float64 `json:"freight_charges"`
	CODCharges       float64 `json:"cod_charges"`
	TotalCharges     float64 `json:"total_charges"`
	MinWeight        float64 `json:"min_weight"`
	ChargeableWeight float64 `json:"chargeable_weight"`
}

// ShipmentRequest is POST /api/shipments2.
type ShipmentRequest struct {
	OrderNumber       string      `json:"order_number"`
	PaymentType       string      `json:"payment_type"`
	OrderAmount       float64     `json:"order_amount"`
	CollectableAmount float64     `json:"collectable_amount"`
	PackageWeight     int         `json:"package_weight"`
	PackageLength     float64     `json:"package_length"`
	PackageBreadth    float64     `json:"package_breadth"`
	PackageHeight     float64     `json:"package_height"`
	RequestAutoPickup string      `json:"request_auto_pickup"`
	Consignee         Party       `json:"consignee"`
	Pickup            Party       `json:"pickup"`
	OrderItems        []OrderItem `json:"order_items"`
	CourierID         string      `json:"courier_id,omitempty"`
}

// Party is a consignee or pickup address.
type Party struct {
	WarehouseName string `json:"warehouse_name,omitempty"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	Address2      string `json:"address_2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	Pincode       string `json:"pincode"`
	Phone         string `json:"phone"`
}

// OrderItem is a line item on the shipment.
type OrderItem struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// ShipmentData is the booking response payload.
type ShipmentData struct {
	OrderID     int64  `json:"order_id"`
	ShipmentID  int64  `json:"shipment_id"`
	AWBNumber   string `json:"awb_number"`
	CourierID   string `json:"courier_id"`
	CourierName string `json:"courier_name"`
	Status      string `json:"status"`
	Label       string `json:"label"`
}

// TrackData is GET /api/shipments2/track/{awb}.
type TrackData struct {
	AWBNumber string      `json:"awb_number"`
	Status    string      `json:"status"`
	History   []ScanEvent `json:"history"`
}

// ScanEvent is a single scan. EventTime is "2006-01-02 15:04" IST.
type ScanEvent struct {
	StatusCode string `json:"status_code"`
	Location   string `json:"location"`
	EventTime  string `json:"event_time"`
	Message    string `json:"message"`
}

// CancelRequest is POST /api/shipments2/cancel.
type CancelRequest struct {
	AWB string `json:"awb"`
}

// CancelResponse is the cancellation response.
type CancelResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}
