package rating

import (
	"fmt"
	"math"

	"github.com/tournevent/shipgate/pkg/shipper"
)

const (
	// GSTRate is the goods and services tax applied to courier charges.
	GSTRate = 0.18

	// MaxBillableWeight is the heaviest shipment, actual or volumetric, in kg
	// that can be quoted or booked.
	MaxBillableWeight = 1000.0
	// MaxDimension bounds each side of a parcel, in cm.
	MaxDimension = 500.0

	defaultDimensionalFactor = 5000
	defaultBillingUnit       = 0.5
)

// RateCard is a carrier's price table for one zone and service tier.
type RateCard struct {
	Carrier           string       `mapstructure:"carrier" json:"carrier"`
	ServiceTier       string       `mapstructure:"service_tier" json:"service_tier"`
	Zone              shipper.Zone `mapstructure:"zone" json:"zone"`
	BaseRate          float64      `mapstructure:"base_rate" json:"base_rate"`
	AddlRate          float64      `mapstructure:"addl_rate" json:"addl_rate"`
	CODFee            float64      `mapstructure:"cod_fee" json:"cod_fee"`
	CODPercent        float64      `mapstructure:"cod_percent" json:"cod_percent"` // percentage points: 2 means 2%
	RTORate           float64      `mapstructure:"rto_rate" json:"rto_rate"`
	MinBillableWeight float64      `mapstructure:"min_billable_weight" json:"min_billable_weight"`
	DimensionalFactor float64      `mapstructure:"dimensional_factor" json:"dimensional_factor"`
	BillingUnit       float64      `mapstructure:"billing_unit" json:"billing_unit"`
}

// QuoteInput is the shipment being quoted.
type QuoteInput struct {
	Zone              shipper.Zone
	Weight            float64 // kg
	Dimensions        shipper.Dimensions
	PaymentType       shipper.PaymentType
	CollectibleAmount float64
	IncludeRTO        bool
}

// Validate rejects inputs no rate card can price.
func (in QuoteInput) Validate() error {
	if err := ValidateWeight(in.Weight); err != nil {
		return err
	}
	if err := ValidateDimensions(in.Dimensions); err != nil {
		return err
	}
	if in.CollectibleAmount < 0 || math.IsNaN(in.CollectibleAmount) || math.IsInf(in.CollectibleAmount, 0) {
		return validation("collectible amount must be a non-negative number")
	}
	return nil
}

// ValidateWeight rejects weights that are not positive, not finite or above
// MaxBillableWeight.
func ValidateWeight(kg float64) error {
	switch {
	case math.IsNaN(kg) || math.IsInf(kg, 0) || kg <= 0:
		return validation("weight must be positive, got %v", kg)
	case kg > MaxBillableWeight:
		return validation("weight %v kg exceeds the %v kg limit", kg, MaxBillableWeight)
	}
	return nil
}

// ValidateDimensions rejects sides that are negative, not finite or above
// MaxDimension.
func ValidateDimensions(d shipper.Dimensions) error {
	for _, side := range []float64{d.Length, d.Width, d.Height} {
		switch {
		case math.IsNaN(side) || math.IsInf(side, 0) || side < 0:
			return validation("dimensions must be non-negative numbers")
		case side > MaxDimension:
			return validation("dimension %v cm exceeds the %v cm limit", side, MaxDimension)
		}
	}
	return nil
}

// VolumetricWeight returns L×W×H divided by the dimensional factor.
func VolumetricWeight(d shipper.Dimensions, factor float64) float64 {
	if factor <= 0 {
		factor = defaultDimensionalFactor
	}
	return d.Length * d.Width * d.Height / factor
}

// CODCharge returns the larger of the fixed fee and the percentage of the
// collectible amount. Prepaid shipments pay no COD charge.
func CODCharge(payment shipper.PaymentType, collectible float64, card RateCard) float64 {
	if payment != shipper.PaymentCOD {
		return 0
	}
	var fixed, percent float64
	if card.CODFee > 0 {
		fixed = card.CODFee
	}
	if card.CODPercent > 0 && collectible > 0 {
		percent = card.CODPercent / 100 * collectible
	}
	return math.Max(fixed, percent)
}

// ComputeQuote prices a shipment against a rate card. Each component is
// rounded to paise in a fixed order so totals are reproducible:
// total = shipping + rto + cod + gst.
func ComputeQuote(in QuoteInput, card RateCard) (*shipper.ShipmentQuote, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	unit := card.BillingUnit
	if unit <= 0 {
		unit = defaultBillingUnit
	}

	volumetric := VolumetricWeight(in.Dimensions, card.DimensionalFactor)
	chargeable := math.Max(in.Weight, volumetric)
	if chargeable > MaxBillableWeight {
		return nil, validation("chargeable weight %.2f kg exceeds the %v kg limit", chargeable, MaxBillableWeight)
	}
	billable := math.Max(chargeable, card.MinBillableWeight)

	// The epsilon keeps exact multiples like 1.5/0.5 from rounding up a step.
	units := math.Ceil(billable/unit - 1e-9)
	if units > math.MaxInt32 {
		return nil, validation("billable weight %v kg is too large for billing unit %v", billable, unit)
	}
	multiplier := int(units)
	if multiplier < 1 {
		multiplier = 1
	}

	base := round2(card.BaseRate)
	additional := round2(card.AddlRate * float64(multiplier-1))
	shipping := round2(base + additional)

	var rto float64
	if in.IncludeRTO {
		rto = round2(card.RTORate * float64(multiplier))
	}
	cod := round2(CODCharge(in.PaymentType, in.CollectibleAmount, card))
	gst := round2(GSTRate * (shipping + rto + cod))
	total := round2(shipping + rto + cod + gst)

	return &shipper.ShipmentQuote{
		Carrier:          card.Carrier,
		ServiceTier:      card.ServiceTier,
		Zone:             in.Zone,
		ActualWeight:     in.Weight,
		VolumetricWeight: volumetric,
		ChargeableWeight: chargeable,
		Multiplier:       multiplier,
		Base:             base,
		Additional:       additional,
		Shipping:         shipping,
		COD:              cod,
		RTO:              rto,
		GST:              gst,
		Total:            total,
	}, nil
}

// QuoteFromRate converts a carrier's live rate into a quote. Carriers price
// the whole shipment, so Base carries the freight and Additional is zero.
func QuoteFromRate(raw *shipper.RawRate, in QuoteInput) shipper.ShipmentQuote {
	volumetric := VolumetricWeight(in.Dimensions, 0)
	chargeable := raw.ChargeableWeight
	if chargeable <= 0 {
		chargeable = math.Max(in.Weight, volumetric)
	}
	total := raw.Total
	if total <= 0 {
		total = raw.Freight + raw.RTO + raw.COD + raw.Tax
	}
	return shipper.ShipmentQuote{
		Carrier:          raw.Carrier,
		ServiceTier:      raw.ServiceTier,
		Zone:             in.Zone,
		ActualWeight:     in.Weight,
		VolumetricWeight: volumetric,
		ChargeableWeight: chargeable,
		Multiplier:       1,
		Base:             round2(raw.Freight),
		Shipping:         round2(raw.Freight),
		COD:              round2(raw.COD),
		RTO:              round2(raw.RTO),
		GST:              round2(raw.Tax),
		Total:            round2(total),
		Live:             true,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validation(format string, args ...any) error {
	return shipper.NewError("", shipper.KindValidationFailed, "INVALID_QUOTE_INPUT", fmt.Sprintf(format, args...))
}
