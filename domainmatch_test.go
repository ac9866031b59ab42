package arataga

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainLimitsTrieLongestSuffixWins(t *testing.T) {
	tr := newDomainLimitsTrie()
	tr.add("example.com", BandlimConfig{In: 1000, Out: 1000})
	tr.add("images.example.com", BandlimConfig{In: 5000, Out: 5000})

	l, ok := tr.lookup("cdn.images.example.com")
	require.True(t, ok)
	require.Equal(t, BandlimValue(5000), l.In)

	l, ok = tr.lookup("www.example.com")
	require.True(t, ok)
	require.Equal(t, BandlimValue(1000), l.In)

	_, ok = tr.lookup("example.org")
	require.False(t, ok)
}

func TestDomainLimitsTrieExactMatchNotSubdomain(t *testing.T) {
	tr := newDomainLimitsTrie()
	tr.add("example.com", BandlimConfig{In: 1000, Out: 1000})

	l, ok := tr.lookup("example.com")
	require.True(t, ok)
	require.Equal(t, BandlimValue(1000), l.In)
}
