// Package rating resolves shipping zones and turns rate cards into itemized quotes.
package rating

import (
	"strings"

	"github.com/tournevent/shipgate/pkg/shipper"
)

var cityAliases = map[string]string{
	"bombay":       "mumbai",
	"new mumbai":   "navi mumbai",
	"bangalore":    "bengaluru",
	"calcutta":     "kolkata",
	"madras":       "chennai",
	"new delhi":    "delhi",
	"gurgaon":      "gurugram",
	"poona":        "pune",
	"mysore":       "mysuru",
	"trivandrum":   "thiruvananthapuram",
	"baroda":       "vadodara",
	"cochin":       "kochi",
	"vizag":        "visakhapatnam",
	"secunderabad": "hyderabad",
}

var stateAliases = map[string]string{
	"j&k":                    "jammu and kashmir",
	"jk":                     "jammu and kashmir",
	"orissa":                 "odisha",
	"pondicherry":            "puducherry",
	"uttaranchal":            "uttarakhand",
	"nct of delhi":           "delhi",
	"new delhi":              "delhi",
	"andaman and nicobar":    "andaman and nicobar islands",
	"dadra and nagar haveli": "dadra and nagar haveli and daman and diu",
	"daman and diu":          "dadra and nagar haveli and daman and diu",
	"tamilnadu":              "tamil nadu",
	"chattisgarh":            "chhattisgarh",
}

var defaultSpecialStates = []string{
	"jammu and kashmir", "ladakh", "himachal pradesh",
	"andaman and nicobar islands", "lakshadweep",
	"assam", "arunachal pradesh", "manipur", "meghalaya",
	"mizoram", "nagaland", "sikkim", "tripura",
}

var defaultMetros = []string{
	"mumbai", "delhi", "kolkata", "chennai",
	"bengaluru", "hyderabad", "ahmedabad", "pune",
}

var defaultRegions = map[string]string{
	"delhi": "north", "haryana": "north", "punjab": "north", "chandigarh": "north",
	"uttar pradesh": "north", "uttarakhand": "north", "rajasthan": "north",
	"himachal pradesh": "north", "jammu and kashmir": "north", "ladakh": "north",

	"maharashtra": "west", "gujarat": "west", "goa": "west",
	"dadra and nagar haveli and daman and diu": "west",

	"karnataka": "south", "kerala": "south", "tamil nadu": "south", "andhra pradesh": "south",
	"telangana": "south", "puducherry": "south", "lakshadweep": "south",
	"andaman and nicobar islands": "south",

	"west bengal": "east", "odisha": "east", "bihar": "east", "jharkhand": "east",

	"madhya pradesh": "central", "chhattisgarh": "central",

	"assam": "northeast", "arunachal pradesh": "northeast", "manipur": "northeast",
	"meghalaya": "northeast", "mizoram": "northeast", "nagaland": "northeast",
	"sikkim": "northeast", "tripura": "northeast",
}

// ZoneResolver classifies origin/destination pairs into zones.
type ZoneResolver struct {
	special map[string]bool
	metros  map[string]bool
	regions map[string]string
}

// NewZoneResolver creates a resolver with the standard Indian courier zoning tables.
func NewZoneResolver() *ZoneResolver {
	return NewZoneResolverWith(defaultSpecialStates, defaultMetros)
}

// NewZoneResolverWith creates a resolver with custom special states and metro cities.
func NewZoneResolverWith(specialStates, metros []string) *ZoneResolver {
	z := &ZoneResolver{
		special: make(map[string]bool, len(specialStates)),
		metros:  make(map[string]bool, len(metros)),
		regions: defaultRegions,
	}
	for _, s := range specialStates {
		z.special[normalizeState(s)] = true
	}
	for _, c := range metros {
		z.metros[normalizeCity(c)] = true
	}
	return z
}

var defaultResolver = NewZoneResolver()

// DetermineZone classifies a lane with the standard zoning tables.
func DetermineZone(origin, destination shipper.Location) shipper.Zone {
	return defaultResolver.DetermineZone(origin, destination)
}

// DetermineZone returns the first matching zone in precedence order: special,
// within city, within state, within region, metro to metro, rest of India.
func (z *ZoneResolver) DetermineZone(origin, destination shipper.Location) shipper.Zone {
	oCity, dCity := normalizeCity(origin.City), normalizeCity(destination.City)
	oState, dState := normalizeState(origin.State), normalizeState(destination.State)

	switch {
	case z.special[dState]:
		return shipper.ZoneSpecial
	case oCity != "" && oCity == dCity:
		return shipper.ZoneWithinCity
	case oState != "" && oState == dState:
		return shipper.ZoneWithinState
	}

	oRegion, dRegion := z.region(origin.Region, oState), z.region(destination.Region, dState)
	switch {
	case oRegion != "" && oRegion == dRegion:
		return shipper.ZoneWithinRegion
	case z.metros[oCity] && z.metros[dCity]:
		return shipper.ZoneMetroToMetro
	default:
		return shipper.ZoneRestOfIndia
	}
}

func (z *ZoneResolver) region(declared, state string) string {
	if r := normalize(declared); r != "" {
		return r
	}
	return z.regions[state]
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "&", " and ")
	return strings.Join(strings.Fields(s), " ")
}

func normalizeCity(s string) string {
	c := normalize(s)
	if alias, ok := cityAliases[c]; ok {
		return alias
	}
	return c
}

func normalizeState(s string) string {
	raw := strings.ToLower(strings.TrimSpace(s))
	if alias, ok := stateAliases[raw]; ok {
		return alias
	}
	st := normalize(s)
	if alias, ok := stateAliases[st]; ok {
		return alias
	}
	return st
}
