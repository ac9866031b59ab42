package arataga

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverShortCircuitsIPLiteral(t *testing.T) {
	r := NewResolver(ResolverOptions{Nameservers: []string{"127.0.0.1:5300"}})
	res := r.Resolve(context.Background(), "93.184.216.34", false)
	require.NoError(t, res.Err)
	require.Equal(t, netip.MustParseAddr("93.184.216.34"), res.Address)
	require.NotEmpty(t, res.Token)
}

func TestResolverRejectsMismatchedLiteralFamily(t *testing.T) {
	r := NewResolver(ResolverOptions{Nameservers: []string{"127.0.0.1:5300"}})
	res := r.Resolve(context.Background(), "93.184.216.34", true)
	require.Error(t, res.Err)
}

func TestResolverTokensAreUnique(t *testing.T) {
	r := NewResolver(ResolverOptions{Nameservers: []string{"127.0.0.1:5300"}})
	a := r.Resolve(context.Background(), "93.184.216.34", false)
	b := r.Resolve(context.Background(), "93.184.216.34", false)
	require.NotEqual(t, a.Token, b.Token)
}
