// Package waybill pools pre-fetched carrier waybills (AWBs) so bookings do
// not pay a bulk-fetch round trip each time.
package waybill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/shipgate/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher reserves a batch of waybills from a carrier.
type Fetcher func(ctx context.Context, count int) ([]shipper.Waybill, error)

// Config holds pool settings.
type Config struct {
	// Floor is the minimum replenishment batch.
	Floor int
	// FetchTimeout bounds a replenishment, which outlives the caller that started it.
	FetchTimeout time.Duration
	// OnSize, when set, receives the backlog size after each take or replenish.
	OnSize func(carrier string, size int)
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Floor:        1000,
		FetchTimeout: 30 * time.Second,
	}
}

type source struct {
	maxBatch int
	fetch    Fetcher
}

// Pool hands out waybills exactly once. Waybills are never returned to the
// pool after Take, even when the booking that used them fails.
type Pool struct {
	config  Config
	backlog Backlog
	logger  *otelzap.Logger

	mu      sync.RWMutex
	sources map[string]source
	group   singleflight.Group
}

// NewPool creates a pool over the given backlog.
func NewPool(cfg Config, backlog Backlog, logger *otelzap.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Floor <= 0 {
		cfg.Floor = def.Floor
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Pool{
		config:  cfg,
		backlog: backlog,
		logger:  logger,
		sources: make(map[string]source),
	}
}

// Register attaches the bulk-fetch source of a carrier.
func (p *Pool) Register(carrier string, maxBatch int, fetch Fetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[carrier] = source{maxBatch: maxBatch, fetch: fetch}
}

// Registered reports whether carrier has a fetch source.
func (p *Pool) Registered(carrier string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.sources[carrier]
	return ok
}

// Take removes count waybills from the carrier's backlog, replenishing it
// when short. A non-positive count returns nothing and fetches nothing.
func (p *Pool) Take(ctx context.Context, carrier string, count int) ([]shipper.Waybill, error) {
	if count <= 0 {
		return []shipper.Waybill{}, nil
	}

	p.mu.RLock()
	src, ok := p.sources[carrier]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no waybill source", shipper.ErrCarrierNotFound, carrier)
	}

	got, err := p.backlog.Pop(ctx, carrier, count)
	if err != nil {
		return nil, exhausted(carrier, "backlog read failed", err)
	}

	var fetchErr error
	// Concurrent takers may drain a shared replenishment, so allow one more round.
	for round := 0; len(got) < count && round < 2; round++ {
		if fetchErr = p.replenish(ctx, carrier, src, count); fetchErr != nil {
			break
		}
		more, err := p.backlog.Pop(ctx, carrier, count-len(got))
		if err != nil {
			fetchErr = err
			break
		}
		got = append(got, more...)
	}

	if len(got) < count {
		// Nothing was handed out, so the partial batch goes back.
		if len(got) > 0 {
			if err := p.backlog.Push(context.WithoutCancel(ctx), carrier, got); err != nil {
				p.logger.Error("Failed to restore partial waybill batch",
					zap.String("carrier", carrier),
					zap.Int("count", len(got)),
					zap.Error(err),
				)
			}
		}
		p.reportSize(ctx, carrier)
		return nil, exhausted(carrier, fmt.Sprintf("wanted %d waybills, %d available", count, len(got)), fetchErr)
	}

	p.reportSize(ctx, carrier)
	return got, nil
}

// Size reports the number of waybills held for carrier.
func (p *Pool) Size(ctx context.Context, carrier string) (int, error) {
	return p.backlog.Len(ctx, carrier)
}

// replenish runs one bulk fetch per carrier at a time; concurrent callers
// wait for the in-flight fetch.
func (p *Pool) replenish(ctx context.Context, carrier string, src source, count int) error {
	size := max(2*count, p.config.Floor)
	if src.maxBatch > 0 && size > src.maxBatch {
		size = src.maxBatch
	}

	ch := p.group.DoChan(carrier, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.config.FetchTimeout)
		defer cancel()

		p.logger.Info("Replenishing waybill pool",
			zap.String("carrier", carrier),
			zap.Int("batch", size),
		)

		wbs, err := src.fetch(fetchCtx, size)
		if err != nil {
			p.logger.Error("Waybill fetch failed", zap.String("carrier", carrier), zap.Error(err))
			return 0, err
		}

		usable := make([]shipper.Waybill, 0, len(wbs))
		for _, wb := range wbs {
			if wb.Manual || wb.Number == "" {
				continue
			}
			wb.Carrier = carrier
			usable = append(usable, wb)
		}
		if err := p.backlog.Push(fetchCtx, carrier, usable); err != nil {
			return 0, err
		}
		return len(usable), nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) reportSize(ctx context.Context, carrier string) {
	if p.config.OnSize == nil {
		return
	}
	if n, err := p.backlog.Len(ctx, carrier); err == nil {
		p.config.OnSize(carrier, n)
	}
}

func exhausted(carrier, msg string, cause error) error {
	e := shipper.NewError(carrier, shipper.KindWaybillExhausted, "POOL_EMPTY", msg)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}
