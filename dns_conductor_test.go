package arataga

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingLookuper answers one lookup at a time and counts how many times
// lookupFamily was actually invoked, used to assert coalescing collapses
// concurrent callers into a single upstream exchange.
type blockingLookuper struct {
	release chan struct{}
	calls   int32
	addr    netip.Addr
}

func (b *blockingLookuper) lookupFamily(ctx context.Context, name string, wantV6 bool) ([]netip.Addr, error) {
	atomic.AddInt32(&b.calls, 1)
	<-b.release
	return []netip.Addr{b.addr}, nil
}

func TestLookupConductorCoalescesConcurrentRequests(t *testing.T) {
	fake := &blockingLookuper{release: make(chan struct{}), addr: netip.MustParseAddr("93.184.216.34")}
	c := newLookupConductor(lookupConductorOptions{TTL: time.Minute}, false, fake, newDNSMetrics("test-coalesce"))

	const callers = 10
	var wg sync.WaitGroup
	results := make([]netip.Addr, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addrs, err := c.resolve(context.Background(), "example.com")
			errs[i] = err
			if err == nil && len(addrs) > 0 {
				results[i] = addrs[0]
			}
		}(i)
	}

	// Give every goroutine a chance to join the in-flight call before
	// releasing the fake upstream exchange.
	time.Sleep(50 * time.Millisecond)
	close(fake.release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&fake.calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, fake.addr, results[i])
	}
}

func TestLookupConductorCachesSuccessfulResult(t *testing.T) {
	fake := &blockingLookuper{release: make(chan struct{}), addr: netip.MustParseAddr("10.0.0.9")}
	close(fake.release)
	c := newLookupConductor(lookupConductorOptions{TTL: time.Minute}, false, fake, newDNSMetrics("test-cache"))

	_, err := c.resolve(context.Background(), "cached.example.com")
	require.NoError(t, err)
	_, err = c.resolve(context.Background(), "cached.example.com")
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(&fake.calls))
}

type failingLookuper struct{ err error }

func (f failingLookuper) lookupFamily(ctx context.Context, name string, wantV6 bool) ([]netip.Addr, error) {
	return nil, f.err
}

func TestLookupConductorPropagatesFailure(t *testing.T) {
	c := newLookupConductor(lookupConductorOptions{TTL: time.Minute}, false, failingLookuper{err: QueryTimeoutError{Name: "example.com"}}, newDNSMetrics("test-fail"))
	_, err := c.resolve(context.Background(), "example.com")
	require.Error(t, err)
}

func TestLookupConductorOnTickSweepsCache(t *testing.T) {
	fake := &blockingLookuper{release: make(chan struct{}), addr: netip.MustParseAddr("10.0.0.1")}
	close(fake.release)
	c := newLookupConductor(lookupConductorOptions{TTL: time.Minute}, false, fake, newDNSMetrics("test-sweep"))

	now := time.Now()
	c.clock = func() time.Time { return now }
	_, err := c.resolve(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, 1, c.cache.size())

	c.OnTick(now.Add(2 * time.Minute))
	require.Equal(t, 0, c.cache.size())
}
