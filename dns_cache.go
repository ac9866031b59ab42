package arataga

import (
	"net/netip"
	"sync"
	"time"
)

// dnsCacheEntry is one cached name's address list plus the time it was
// populated (§3 "DNS cache entry", §4.6 "Cache"). An entry is outdated
// when now-CreatedAt >= ttl.
type dnsCacheEntry struct {
	Addresses []netip.Addr
	CreatedAt time.Time
}

// dnsCache is the map domain_name -> (addresses, creation_timestamp)
// owned by the lookup conductor (§4.6 "Cache"). It is read and written
// from every goroutine that calls the conductor and from the tick
// broadcaster's sweep, so all access goes through mu. It is a plain map
// since arataga's DNS cache has no capacity bound: it is swept by TTL
// only, not LRU-evicted (§4.6, §8 invariant 5).
type dnsCache struct {
	mu      sync.Mutex
	entries map[string]dnsCacheEntry
}

func newDNSCache() *dnsCache {
	return &dnsCache{entries: make(map[string]dnsCacheEntry)}
}

// resolve returns the cached addresses for name if a fresh entry exists.
func (c *dnsCache) resolve(name string, ttl time.Duration, now time.Time) ([]netip.Addr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if now.Sub(e.CreatedAt) >= ttl {
		delete(c.entries, name)
		return nil, false
	}
	return e.Addresses, true
}

// add populates the cache with all addresses returned for a name
// (§4.6: "Successful lookups populate the cache with all addresses").
func (c *dnsCache) add(name string, addrs []netip.Addr, now time.Time) {
	c.mu.Lock()
	c.entries[name] = dnsCacheEntry{Addresses: addrs, CreatedAt: now}
	c.mu.Unlock()
}

// removeOutdated evicts every entry whose age is >= ttl and returns the
// count removed (§4.6 "Cache": remove_outdated; §8 invariant 5).
func (c *dnsCache) removeOutdated(ttl time.Duration, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for name, e := range c.entries {
		if now.Sub(e.CreatedAt) >= ttl {
			delete(c.entries, name)
			removed++
		}
	}
	return removed
}

// clear empties the cache entirely.
func (c *dnsCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]dnsCacheEntry)
	c.mu.Unlock()
}

// size reports the number of live entries, used by tests and stats.
func (c *dnsCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pickAddress selects one address of the requested IP version from the
// list cached for a name, falling back to an IPv4-mapped IPv6 address
// when no pure match of the requested family exists (§4.6 step 2).
func pickAddress(addrs []netip.Addr, wantV6 bool) (netip.Addr, bool) {
	for _, a := range addrs {
		if a.Is4() && !wantV6 {
			return a, true
		}
		if a.Is6() && !a.Is4In6() && wantV6 {
			return a, true
		}
	}
	// Fall back to an IPv4-mapped IPv6 address, or any address at all.
	for _, a := range addrs {
		if wantV6 && a.Is4In6() {
			return a, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return netip.Addr{}, false
}
