package arataga

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDNSCacheHitAndMiss(t *testing.T) {
	c := newDNSCache()
	now := time.Now()

	_, ok := c.resolve("example.com", time.Minute, now)
	require.False(t, ok)

	addr := netip.MustParseAddr("93.184.216.34")
	c.add("example.com", []netip.Addr{addr}, now)

	got, ok := c.resolve("example.com", time.Minute, now.Add(30*time.Second))
	require.True(t, ok)
	require.Equal(t, []netip.Addr{addr}, got)
}

func TestDNSCacheEntryExpires(t *testing.T) {
	c := newDNSCache()
	now := time.Now()
	c.add("example.com", []netip.Addr{netip.MustParseAddr("93.184.216.34")}, now)

	_, ok := c.resolve("example.com", time.Minute, now.Add(time.Minute))
	require.False(t, ok)
	require.Equal(t, 0, c.size())
}

func TestDNSCacheRemoveOutdated(t *testing.T) {
	c := newDNSCache()
	now := time.Now()
	c.add("a.example.com", []netip.Addr{netip.MustParseAddr("10.0.0.1")}, now)
	c.add("b.example.com", []netip.Addr{netip.MustParseAddr("10.0.0.2")}, now.Add(50*time.Second))

	removed := c.removeOutdated(time.Minute, now.Add(70*time.Second))
	require.Equal(t, 1, removed)
	require.Equal(t, 1, c.size())
}

func TestPickAddressPrefersRequestedFamily(t *testing.T) {
	v4 := netip.MustParseAddr("10.0.0.1")
	v6 := netip.MustParseAddr("2001:db8::1")

	got, ok := pickAddress([]netip.Addr{v4, v6}, false)
	require.True(t, ok)
	require.Equal(t, v4, got)

	got, ok = pickAddress([]netip.Addr{v4, v6}, true)
	require.True(t, ok)
	require.Equal(t, v6, got)
}
