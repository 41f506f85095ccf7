package rating

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/tournevent/shipgate/pkg/shipper"
)

// PostgresRateCards reads rate cards from the rate_cards table.
type PostgresRateCards struct {
	db *sql.DB
}

// OpenPostgresRateCards connects to Postgres and verifies the connection.
func OpenPostgresRateCards(ctx context.Context, dsn string) (*PostgresRateCards, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres db: %w", err)
	}
	return NewPostgresRateCards(db), nil
}

// NewPostgresRateCards wraps an open database handle.
func NewPostgresRateCards(db *sql.DB) *PostgresRateCards {
	return &PostgresRateCards{db: db}
}

const rateCardsQuery = `
	SELECT carrier, service_tier, zone, base_rate, addl_rate, cod_fee, cod_percent,
	       rto_rate, min_billable_weight, dimensional_factor, billing_unit
	FROM rate_cards
	WHERE zone = $1 AND ($2 = '' OR carrier = $2)
	ORDER BY carrier, service_tier`

// RatesForZone returns the cards for zone, optionally narrowed to one carrier.
func (p *PostgresRateCards) RatesForZone(ctx context.Context, zone shipper.Zone, carrier string) ([]RateCard, error) {
	rows, err := p.db.QueryContext(ctx, rateCardsQuery, string(zone), carrier)
	if err != nil {
		return nil, fmt.Errorf("failed to query rate cards: %w", err)
	}
	defer rows.Close()

	var cards []RateCard
	for rows.Next() {
		var c RateCard
		var zoneName string
		var dimFactor, billingUnit sql.NullFloat64
		if err := rows.Scan(
			&c.Carrier,
			&c.ServiceTier,
			&zoneName,
			&c.BaseRate,
			&c.AddlRate,
			&c.CODFee,
			&c.CODPercent,
			&c.RTORate,
			&c.MinBillableWeight,
			&dimFactor,
			&billingUnit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rate card: %w", err)
		}
		c.Zone = shipper.Zone(zoneName)
		c.DimensionalFactor = dimFactor.Float64
		c.BillingUnit = billingUnit.Float64
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rate cards: %w", err)
	}
	return cards, nil
}

// Close closes the database handle.
func (p *PostgresRateCards) Close() error {
	return p.db.Close()
}

var _ Source = (*PostgresRateCards)(nil)
