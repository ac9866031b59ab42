package arataga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBandlimManagerConstructInheritsDefaults(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{In: 0, Out: 2000}, BandlimConfig{In: 1000, Out: 1000})
	gt := m.GeneralTraffic()
	require.Equal(t, BandlimValue(1000), gt.TargetEndTraffic.Quote.Value())
	require.Equal(t, BandlimValue(2000), gt.UserEndTraffic.Quote.Value())
}

func TestBandlimManagerDomainLifecycle(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{}, BandlimConfig{})
	h := m.MakeDomainLimits("example.com", BandlimConfig{In: 500, Out: 500})
	require.Equal(t, 1, m.DomainCount())

	h2 := m.MakeDomainLimits("example.com", BandlimConfig{In: 500, Out: 500})
	require.Equal(t, 1, m.DomainCount())

	m.ConnectionRemoved(h)
	require.Equal(t, 1, m.DomainCount())
	m.ConnectionRemoved(h2)
	require.Equal(t, 0, m.DomainCount())
}

func TestBandlimManagerCarryOverAcrossTick(t *testing.T) {
	// in=1000 bytes/sec, 1200 bytes transferred during tick T, exact
	// 1000ms gap to tick T+1 => 200 bytes carried over, 800 allowance left.
	clock := time.Now()
	m := newBandlimManagerAt(BandlimConfig{In: 1000, Out: 1000}, BandlimConfig{}, func() time.Time { return clock })

	gt := m.GeneralTraffic()
	require.Equal(t, BandlimValue(1000), gt.TargetEndTraffic.Quote.Value())

	gt.TargetEndTraffic.Actual = 1200

	clock = clock.Add(time.Second)
	m.UpdateTrafficCountersForNewTurn()

	gt = m.GeneralTraffic()
	require.Equal(t, BandlimValue(200), gt.TargetEndTraffic.Actual)
	require.Equal(t, BandlimValue(1000), gt.TargetEndTraffic.Quote.Value())

	allowance := gt.TargetEndTraffic.Quote.Value() - (gt.TargetEndTraffic.Reserved + gt.TargetEndTraffic.Actual)
	require.Equal(t, BandlimValue(800), allowance)
}

func TestBandlimManagerSequenceNumberMonotonic(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{}, BandlimConfig{})
	require.Equal(t, SequenceNumber(0), m.SequenceNumber())
	m.UpdateTrafficCountersForNewTurn()
	require.Equal(t, SequenceNumber(1), m.SequenceNumber())
	m.UpdateTrafficCountersForNewTurn()
	require.Equal(t, SequenceNumber(2), m.SequenceNumber())
}

func TestBandlimManagerUpdatePersonalLimitsDeferred(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{In: 1000, Out: 1000}, BandlimConfig{})
	m.UpdatePersonalLimits(BandlimConfig{In: 2000, Out: 2000}, BandlimConfig{})

	// Current tick's quote is unchanged until the next tick.
	require.Equal(t, BandlimValue(1000), m.GeneralTraffic().TargetEndTraffic.Quote.Value())

	m.UpdateTrafficCountersForNewTurn()
	require.Equal(t, BandlimValue(2000), m.GeneralTraffic().TargetEndTraffic.Quote.Value())
}

func TestUnlimitedQuoteNeverOverflows(t *testing.T) {
	q := NewQuote(Unlimited)
	require.Equal(t, BandlimValue(quoteMax), q.Value())
	require.Equal(t, BandlimValue(quoteMax), scaleQuote(q, 1000.0))
}
