package arataga

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectionAllowanceRespectsConsumed(t *testing.T) {
	ch := newChannelLimitsData(0, BandlimConfig{In: 1000, Out: 500})
	require.Equal(t, uint64(500), directionAllowance(&ch, true))
	require.Equal(t, uint64(1000), directionAllowance(&ch, false))

	ch.UserEndTraffic.Actual = 500
	require.Equal(t, uint64(0), directionAllowance(&ch, true))

	ch.TargetEndTraffic.Reserved = 900
	require.Equal(t, uint64(100), directionAllowance(&ch, false))
}

func TestWaitForAllowanceCapsAtBufferSize(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{In: 10_000_000, Out: 10_000_000}, BandlimConfig{})
	opt := dataTransferOptions{Bandlim: m}

	got := waitForAllowance(opt, true, 4096)
	require.Equal(t, 4096, got)
}

func TestWaitForAllowancePicksSmallerOfGeneralAndDomain(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{In: 10_000, Out: 10_000}, BandlimConfig{})
	h := m.MakeDomainLimits("example.com", BandlimConfig{In: 100, Out: 100})
	opt := dataTransferOptions{Bandlim: m, DomainHand: h, HasDomain: true}

	got := waitForAllowance(opt, true, 4096)
	require.Equal(t, 100, got)
}

func TestConsumeAllowanceUpdatesBothGeneralAndDomain(t *testing.T) {
	m := NewBandlimManager(BandlimConfig{In: 10_000, Out: 10_000}, BandlimConfig{})
	h := m.MakeDomainLimits("example.com", BandlimConfig{In: 10_000, Out: 10_000})
	opt := dataTransferOptions{Bandlim: m, DomainHand: h, HasDomain: true}

	consumeAllowance(opt, true, 250)

	require.Equal(t, BandlimValue(250), m.GeneralTraffic().UserEndTraffic.Actual)
	require.Equal(t, BandlimValue(250), m.DomainTraffic(h).UserEndTraffic.Actual)
}

func TestClassifyTransferError(t *testing.T) {
	require.Equal(t, ReasonNormalCompletion, classifyTransferError(nil))
}
