package arataga

import (
	"context"
	"net/netip"
	"time"

	"golang.org/x/sync/singleflight"
)

// lookupConductorOptions configures one [lookupConductor].
type lookupConductorOptions struct {
	TTL          time.Duration
	QueryTimeout time.Duration
}

// lookupConductor is the per-IP-family request-coalescing lookup layer
// (§4.6 "Lookup conductor"): concurrent requests for the same name
// produce exactly one outbound nameserver query. It sits between
// the cache and the nameserver interactor: a cache hit answers
// immediately, a cache miss is coalesced with any other in-flight lookup
// for the same name via [golang.org/x/sync/singleflight] rather than a
// hand-rolled waiter map, then stored back in the cache for subsequent
// lookups.
// familyLookuper is the narrow interface a [lookupConductor] needs from a
// nameserver interactor, kept separate so tests can substitute a fake
// without standing up real UDP sockets.
type familyLookuper interface {
	lookupFamily(ctx context.Context, name string, wantV6 bool) ([]netip.Addr, error)
}

type lookupConductor struct {
	opt        lookupConductorOptions
	wantV6     bool
	cache      *dnsCache
	interactor familyLookuper
	group      singleflight.Group
	metrics    *dnsMetrics
	clock      func() time.Time
}

func newLookupConductor(opt lookupConductorOptions, wantV6 bool, interactor familyLookuper, metrics *dnsMetrics) *lookupConductor {
	return &lookupConductor{
		opt:        opt,
		wantV6:     wantV6,
		cache:      newDNSCache(),
		interactor: interactor,
		metrics:    metrics,
		clock:      time.Now,
	}
}

// resolve returns the address list for name, consulting the cache first
// and coalescing concurrent misses into a single nameserver round trip.
func (c *lookupConductor) resolve(ctx context.Context, name string) ([]netip.Addr, error) {
	now := c.clock()
	if addrs, ok := c.cache.resolve(name, c.opt.TTL, now); ok {
		c.metrics.cacheHits.Add(1)
		return addrs, nil
	}
	c.metrics.cacheMisses.Add(1)

	result, err, shared := c.group.Do(name, func() (interface{}, error) {
		c.metrics.nameserverQs.Add(1)
		qctx := ctx
		if c.opt.QueryTimeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, c.opt.QueryTimeout)
			defer cancel()
		}
		addrs, err := c.interactor.lookupFamily(qctx, name, c.wantV6)
		if err != nil {
			return nil, err
		}
		c.cache.add(name, addrs, c.clock())
		return addrs, nil
	})
	if shared {
		c.metrics.coalesced.Add(1)
	}
	if err != nil {
		c.metrics.failed.Add(1)
		return nil, err
	}
	c.metrics.successful.Add(1)
	return result.([]netip.Addr), nil
}

// OnTick sweeps outdated cache entries, implementing [Ticker] so the
// conductor can be registered with a [TickBroadcaster] (§4.6 "Cache":
// remove_outdated runs on every tick).
func (c *lookupConductor) OnTick(now time.Time) {
	c.cache.removeOutdated(c.opt.TTL, now)
}
