package graphql

// Response types mirror the schema; JSON names are the GraphQL field names.

type CarrierError struct {
	Carrier string `json:"carrier"`
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type Carrier struct {
	Name         string `json:"name"`
	LiveRating   bool   `json:"liveRating"`
	WaybillFetch bool   `json:"waybillFetch"`
	Health       string `json:"health"`
}

type CarrierHealth struct {
	Carrier   string  `json:"carrier"`
	State     string  `json:"state"`
	LastProbe *string `json:"lastProbe"`
	LatencyMs *int64  `json:"latencyMs"`
	LastError *string `json:"lastError"`
	Requests  int64   `json:"requests"`
}

type Serviceability struct {
	Carrier          string `json:"carrier"`
	Pincode          string `json:"pincode"`
	Serviceable      bool   `json:"serviceable"`
	CODAvailable     bool   `json:"codAvailable"`
	PrepaidAvailable bool   `json:"prepaidAvailable"`
}

type ServiceabilityResult struct {
	Results []Serviceability `json:"results"`
	Errors  []CarrierError   `json:"errors"`
}

type Quote struct {
	Carrier          string  `json:"carrier"`
	ServiceTier      string  `json:"serviceTier"`
	Zone             string  `json:"zone"`
	ActualWeight     float64 `json:"actualWeight"`
	VolumetricWeight float64 `json:"volumetricWeight"`
	ChargeableWeight float64 `json:"chargeableWeight"`
	Multiplier       int     `json:"multiplier"`
	Base             float64 `json:"base"`
	Additional       float64 `json:"additional"`
	Shipping         float64 `json:"shipping"`
	COD              float64 `json:"cod"`
	RTO              float64 `json:"rto"`
	GST              float64 `json:"gst"`
	Total            float64 `json:"total"`
	Live             bool    `json:"live"`
}

type QuoteResult struct {
	Zone   string         `json:"zone"`
	Quotes []Quote        `json:"quotes"`
	Errors []CarrierError `json:"errors"`
}

type TrackingEvent struct {
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Location    string `json:"location"`
	Description string `json:"description"`
	RawStatus   string `json:"rawStatus"`
}

type TrackingTimeline struct {
	Carrier    string          `json:"carrier"`
	ExternalID string          `json:"externalId"`
	Status     string          `json:"status"`
	FetchedAt  string          `json:"fetchedAt"`
	Events     []TrackingEvent `json:"events"`
}

type BookingResult struct {
	Carrier    string `json:"carrier"`
	ExternalID string `json:"externalId"`
	Waybill    string `json:"waybill"`
	Status     string `json:"status"`
	LabelURL   string `json:"labelUrl"`
}

type CancelResult struct {
	Carrier    string `json:"carrier"`
	ExternalID string `json:"externalId"`
	Cancelled  bool   `json:"cancelled"`
	Message    string `json:"message"`
}
