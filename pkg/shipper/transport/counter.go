package transport

import (
	"sync"

	"github.com/tournevent/shipgate/pkg/shipper"
)

// Counter tracks outbound requests per carrier. It is shared by every carrier
// client and read by the health monitor.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int64

	// OnCall is invoked after each request with the outcome ("ok" or an error kind).
	OnCall func(carrier, outcome string)
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

// Count returns the number of requests made to carrier.
func (c *Counter) Count(carrier string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[carrier]
}

// Snapshot returns a copy of all counts.
func (c *Counter) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func (c *Counter) observe(carrier string, err error) {
	c.mu.Lock()
	c.counts[carrier]++
	hook := c.OnCall
	c.mu.Unlock()

	if hook == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(shipper.KindOf(err))
	}
	hook(carrier, outcome)
}
