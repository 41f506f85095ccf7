package rating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/tournevent/shipgate/pkg/shipper/rating"
)

func loc(city, state string) shipper.Location {
	return shipper.Location{City: city, State: state}
}

func TestDetermineZone(t *testing.T) {
	tests := []struct {
		name        string
		origin      shipper.Location
		destination shipper.Location
		want        shipper.Zone
	}{
		{"same city", loc("Mumbai", "Maharashtra"), loc("Mumbai", "Maharashtra"), shipper.ZoneWithinCity},
		{"city alias", loc("Bombay", "Maharashtra"), loc(" mumbai ", "MAHARASHTRA"), shipper.ZoneWithinCity},
		{"same state", loc("Mumbai", "Maharashtra"), loc("Pune", "Maharashtra"), shipper.ZoneWithinState},
		{"state alias", loc("Bhubaneswar", "Orissa"), loc("Cuttack", "Odisha"), shipper.ZoneWithinState},
		{"same region", loc("Jaipur", "Rajasthan"), loc("Lucknow", "Uttar Pradesh"), shipper.ZoneWithinRegion},
		{"metro to metro", loc("Mumbai", "Maharashtra"), loc("New Delhi", "Delhi"), shipper.ZoneMetroToMetro},
		{"metro alias", loc("Bangalore", "Karnataka"), loc("Calcutta", "West Bengal"), shipper.ZoneMetroToMetro},
		{"rest of india", loc("Indore", "Madhya Pradesh"), loc("Kochi", "Kerala"), shipper.ZoneRestOfIndia},
		{"special destination", loc("Delhi", "Delhi"), loc("Srinagar", "J&K"), shipper.ZoneSpecial},
		{"special beats same city", loc("Guwahati", "Assam"), loc("Guwahati", "Assam"), shipper.ZoneSpecial},
		{"special origin only", loc("Shillong", "Meghalaya"), loc("Indore", "Madhya Pradesh"), shipper.ZoneRestOfIndia},
		{"declared region", shipper.Location{City: "A", State: "X", Region: "Deccan"}, shipper.Location{City: "B", State: "Y", Region: "deccan"}, shipper.ZoneWithinRegion},
		{"empty locations", shipper.Location{}, shipper.Location{}, shipper.ZoneRestOfIndia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rating.DetermineZone(tt.origin, tt.destination))
		})
	}
}

func TestDetermineZone_Deterministic(t *testing.T) {
	o, d := loc("Chennai", "Tamil Nadu"), loc("Hyderabad", "Telangana")
	first := rating.DetermineZone(o, d)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, rating.DetermineZone(o, d))
	}
}

func TestZoneResolverWith(t *testing.T) {
	z := rating.NewZoneResolverWith([]string{"Goa"}, []string{"Indore", "Kochi"})

	assert.Equal(t, shipper.ZoneSpecial, z.DetermineZone(loc("Mumbai", "Maharashtra"), loc("Panaji", "Goa")))
	assert.Equal(t, shipper.ZoneMetroToMetro, z.DetermineZone(loc("Indore", "Madhya Pradesh"), loc("Kochi", "Kerala")))
	assert.Equal(t, shipper.ZoneWithinState, z.DetermineZone(loc("Srinagar", "Jammu and Kashmir"), loc("Jammu", "J&K")))
}
