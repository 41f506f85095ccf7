package graphql

import (
	"context"

	"github.com/tournevent/shipgate/pkg/shipper/gateway"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Gateway *gateway.Gateway
	Logger  *otelzap.Logger
}

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(gw *gateway.Gateway, logger *otelzap.Logger) *Resolver {
	return &Resolver{
		Gateway: gw,
		Logger:  logger,
	}
}

// Query returns the query resolver.
func (r *Resolver) Query() *QueryResolver {
	return &QueryResolver{r}
}

// Mutation returns the mutation resolver.
func (r *Resolver) Mutation() *MutationResolver {
	return &MutationResolver{r}
}

// QueryResolver resolves Query fields.
type QueryResolver struct{ *Resolver }

// Health returns the advisory health of every carrier.
func (q *QueryResolver) Health(ctx context.Context) ([]CarrierHealth, error) {
	return healthToGraphQL(q.Gateway.Health(ctx)), nil
}

// Carriers lists the registered carriers with their capabilities.
func (q *QueryResolver) Carriers(ctx context.Context) ([]Carrier, error) {
	states := make(map[string]string)
	for _, s := range q.Gateway.Health(ctx) {
		states[s.Carrier] = string(s.State)
	}

	adapters := q.Gateway.Registry().All()
	out := make([]Carrier, 0, len(adapters))
	for _, a := range adapters {
		caps := a.Capabilities()
		out = append(out, Carrier{
			Name:         a.Name(),
			LiveRating:   caps.LiveRating,
			WaybillFetch: caps.WaybillFetch,
			Health:       states[a.Name()],
		})
	}
	return out, nil
}

// Serviceability checks a pincode across carriers.
func (q *QueryResolver) Serviceability(ctx context.Context, pincode, serviceTier string, carriers []string) (*ServiceabilityResult, error) {
	res, err := q.Gateway.CheckServiceability(ctx, pincode, serviceTier, carriers)
	if err != nil {
		return nil, err
	}
	return serviceabilityToGraphQL(res), nil
}

// Quotes prices a shipment across carriers.
func (q *QueryResolver) Quotes(ctx context.Context, input map[string]interface{}) (*QuoteResult, error) {
	req, err := parseQuoteInput(input)
	if err != nil {
		return nil, err
	}
	res, err := q.Gateway.GetQuotes(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		q.Logger.Ctx(ctx).Info("Quote request completed with carrier errors",
			zap.Int("quotes", len(res.Quotes)),
			zap.Int("errors", len(res.Errors)),
		)
	}
	return quotesToGraphQL(res), nil
}

// Track fetches a tracking timeline.
func (q *QueryResolver) Track(ctx context.Context, carrier, externalID string) (*TrackingTimeline, error) {
	tl, err := q.Gateway.TrackShipment(ctx, carrier, externalID)
	if err != nil {
		return nil, err
	}
	return timelineToGraphQL(tl), nil
}

// MutationResolver resolves Mutation fields.
type MutationResolver struct{ *Resolver }

// BookShipment books a shipment on a carrier.
func (m *MutationResolver) BookShipment(ctx context.Context, carrier string, input map[string]interface{}) (*BookingResult, error) {
	req, err := parseBookingInput(input)
	if err != nil {
		return nil, err
	}
	res, err := m.Gateway.BookShipment(ctx, carrier, req)
	if err != nil {
		return nil, err
	}
	return bookingToGraphQL(res), nil
}

// CancelShipment cancels a shipment.
func (m *MutationResolver) CancelShipment(ctx context.Context, carrier, externalID string) (*CancelResult, error) {
	res, err := m.Gateway.CancelShipment(ctx, carrier, externalID)
	if err != nil {
		return nil, err
	}
	return cancelToGraphQL(res), nil
}
