package rating

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/tournevent/shipgate/pkg/shipper"
)

// Source looks up the rate cards for a zone. An empty carrier matches every carrier.
type Source interface {
	RatesForZone(ctx context.Context, zone shipper.Zone, carrier string) ([]RateCard, error)
}

// StaticRateCards serves rate cards held in memory.
type StaticRateCards struct {
	cards []RateCard
}

// NewStaticRateCards creates a source over a fixed set of cards.
func NewStaticRateCards(cards []RateCard) *StaticRateCards {
	return &StaticRateCards{cards: cards}
}

// LoadStaticRateCards reads the "rate_cards" list from a YAML, JSON or TOML file.
func LoadStaticRateCards(path string) (*StaticRateCards, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rate card file %s: %w", path, err)
	}

	var cards []RateCard
	if err := v.UnmarshalKey("rate_cards", &cards); err != nil {
		return nil, fmt.Errorf("failed to parse rate cards: %w", err)
	}
	for i, c := range cards {
		if c.Carrier == "" || c.Zone == "" {
			return nil, fmt.Errorf("rate card %d: carrier and zone are required", i)
		}
		cards[i].Carrier = strings.ToLower(c.Carrier)
	}
	return NewStaticRateCards(cards), nil
}

// RatesForZone returns the cards for zone, optionally narrowed to one carrier.
func (s *StaticRateCards) RatesForZone(_ context.Context, zone shipper.Zone, carrier string) ([]RateCard, error) {
	var out []RateCard
	for _, c := range s.cards {
		if c.Zone != zone {
			continue
		}
		if carrier != "" && c.Carrier != carrier {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Len returns the number of cards held.
func (s *StaticRateCards) Len() int {
	return len(s.cards)
}

var _ Source = (*StaticRateCards)(nil)
