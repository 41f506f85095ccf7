package shipper

import (
	"sort"
	"time"
)

// ShipmentStatus is the carrier-agnostic tracking vocabulary.
type ShipmentStatus string

const (
	StatusPending        ShipmentStatus = "pending"
	StatusManifested     ShipmentStatus = "manifested"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusUndelivered    ShipmentStatus = "undelivered"
	StatusRTOInitiated   ShipmentStatus = "rto_initiated"
	StatusRTODelivered   ShipmentStatus = "rto_delivered"
	StatusCancelled      ShipmentStatus = "cancelled"
	StatusLost           ShipmentStatus = "lost"
	StatusException      ShipmentStatus = "exception"
	StatusUnknown        ShipmentStatus = "unknown"
)

// PaymentType is how the consignee pays for the shipment.
type PaymentType string

const (
	PaymentPrepaid PaymentType = "prepaid"
	PaymentCOD     PaymentType = "cod"
)

// Zone is a coarse origin/destination proximity class.
type Zone string

const (
	ZoneSpecial      Zone = "special"
	ZoneWithinCity   Zone = "within_city"
	ZoneWithinState  Zone = "within_state"
	ZoneWithinRegion Zone = "within_region"
	ZoneMetroToMetro Zone = "metro_to_metro"
	ZoneRestOfIndia  Zone = "rest_of_india"
)

// Location is the geographic data used for zoning.
type Location struct {
	Pincode string
	City    string
	State   string
	Region  string // optional; derived from State when empty
}

// Dimensions of a parcel in centimetres.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Address is a pickup or delivery address.
type Address struct {
	Name    string
	Company string
	Line1   string
	Line2   string
	City    string
	State   string
	Pincode string
	Country string
	Phone   string
	Email   string
}

// Location returns the zoning view of the address.
func (a Address) Location() Location {
	return Location{Pincode: a.Pincode, City: a.City, State: a.State}
}

// Parcel is a single package. Weight is in kilograms.
type Parcel struct {
	Weight        float64
	Dimensions    Dimensions
	DeclaredValue float64
	Description   string
	Quantity      int
}

// Capabilities advertises optional adapter features.
type Capabilities struct {
	LiveRating      bool
	WaybillFetch    bool
	MaxWaybillBatch int
}

// Serviceability is the normalized pincode check result.
type Serviceability struct {
	Carrier          string
	Pincode          string
	Serviceable      bool
	CODAvailable     bool
	PrepaidAvailable bool
}

// RateRequest describes a shipment to be rated live by a carrier.
type RateRequest struct {
	ServiceTier       string
	Origin            Location
	Destination       Location
	Weight            float64
	Dimensions        Dimensions
	PaymentType       PaymentType
	CollectibleAmount float64
}

// RawRate is a carrier's live rating result, already stripped of carrier field names.
type RawRate struct {
	Carrier          string
	ServiceTier      string
	ServiceName      string
	ChargeableWeight float64
	Freight          float64
	COD              float64
	RTO              float64
	Tax              float64
	Total            float64
}

// ShipmentQuote is a fully itemized quote.
// Total = Shipping + RTO + COD + GST, where Shipping = Base + Additional.
type ShipmentQuote struct {
	Carrier          string
	ServiceTier      string
	Zone             Zone
	ActualWeight     float64
	VolumetricWeight float64
	ChargeableWeight float64
	Multiplier       int
	Base             float64
	Additional       float64
	Shipping         float64
	COD              float64
	RTO              float64
	GST              float64
	Total            float64
	Live             bool
}

// RankQuotes orders quotes by total, cheapest first, keeping every quote.
func RankQuotes(quotes []ShipmentQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].Total != quotes[j].Total {
			return quotes[i].Total < quotes[j].Total
		}
		if quotes[i].Carrier != quotes[j].Carrier {
			return quotes[i].Carrier < quotes[j].Carrier
		}
		return quotes[i].ServiceTier < quotes[j].ServiceTier
	})
}

// Waybill is a reserved carrier shipment identifier (AWB).
type Waybill struct {
	Number  string
	Carrier string
	Manual  bool // marker for carriers that assign AWBs at booking time
}

// ManualWaybillBatch is the fixed size of the marker batch returned by carriers
// without bulk waybill fetch.
const ManualWaybillBatch = 1

// ManualWaybills returns the manual-process marker batch for a carrier.
func ManualWaybills(carrier string) []Waybill {
	markers := make([]Waybill, ManualWaybillBatch)
	for i := range markers {
		markers[i] = Waybill{Carrier: carrier, Manual: true}
	}
	return markers
}

// BookingRequest is the request for booking a shipment.
type BookingRequest struct {
	ServiceTier       string
	Reference         string // seller order number, used for idempotency by most carriers
	Pickup            Address
	Consignee         Address
	Return            *Address
	Parcel            Parcel
	PaymentType       PaymentType
	CollectibleAmount float64
	InvoiceValue      float64
}

// BookingResult is the normalized booking response.
type BookingResult struct {
	Carrier    string
	ExternalID string
	Waybill    string
	Status     ShipmentStatus
	LabelURL   string
}

// TrackingEvent is a single normalized scan.
type TrackingEvent struct {
	Timestamp   time.Time
	Status      ShipmentStatus
	Location    string
	Description string
	RawStatus   string
}

// TrackingTimeline is a newest-first sequence of events. A fetch replaces the
// whole timeline; it is never mutated in place.
type TrackingTimeline struct {
	Carrier    string
	ExternalID string
	Status     ShipmentStatus
	Events     []TrackingEvent
	FetchedAt  time.Time
}

// NewTimeline builds a timeline ordered newest first. The events slice is copied.
func NewTimeline(carrier, externalID string, events []TrackingEvent) *TrackingTimeline {
	sorted := make([]TrackingEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	status := StatusUnknown
	if len(sorted) > 0 {
		status = sorted[0].Status
	}

	return &TrackingTimeline{
		Carrier:    carrier,
		ExternalID: externalID,
		Status:     status,
		Events:     sorted,
		FetchedAt:  time.Now(),
	}
}

// CancelResult is the normalized cancellation response.
type CancelResult struct {
	Carrier    string
	ExternalID string
	Cancelled  bool
	Message    string
}
