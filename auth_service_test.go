package arataga

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthenticatorByIP(t *testing.T) {
	a := NewAuthenticator("test")
	ip := netip.MustParseAddr("203.0.113.7")
	a.Install([]User{{ID: "u1", IP: ip, Bandlims: BandlimConfig{In: 1000, Out: 1000}}}, nil, 0, BandlimConfig{})

	res := a.Authenticate(context.Background(), AuthRequest{UserIP: ip, TargetHost: "example.com", TargetPort: 443})
	require.True(t, res.Success)
	require.Equal(t, "u1", res.UserID)
}

func TestAuthenticatorUnknownUser(t *testing.T) {
	a := NewAuthenticator("test")
	res := a.Authenticate(context.Background(), AuthRequest{UserIP: netip.MustParseAddr("203.0.113.8"), TargetPort: 80})
	require.False(t, res.Success)
	require.Equal(t, FailureUnknownUser, res.Reason)
}

func TestAuthenticatorByLogin(t *testing.T) {
	a := NewAuthenticator("test")
	a.Install([]User{{ID: "u2", Username: "alice", Password: "secret"}}, nil, 0, BandlimConfig{})

	require.True(t, a.Authenticate(context.Background(), AuthRequest{Username: "alice", Password: "secret", TargetPort: 80}).Success)
	require.False(t, a.Authenticate(context.Background(), AuthRequest{Username: "alice", Password: "wrong", TargetPort: 80}).Success)
}

func TestAuthenticatorDeniedPort(t *testing.T) {
	a := NewAuthenticator("test")
	ip := netip.MustParseAddr("203.0.113.9")
	a.Install([]User{{ID: "u3", IP: ip}}, []uint16{25}, 0, BandlimConfig{})

	res := a.Authenticate(context.Background(), AuthRequest{UserIP: ip, TargetPort: 25})
	require.False(t, res.Success)
	require.Equal(t, FailureTargetBlocked, res.Reason)
}

func TestAuthenticatorSiteLimitsLongestSuffix(t *testing.T) {
	a := NewAuthenticator("test")
	ip := netip.MustParseAddr("203.0.113.10")
	a.Install([]User{{
		ID: "u4",
		IP: ip,
		SiteLimits: map[string]BandlimConfig{
			"example.com":        {In: 1000, Out: 1000},
			"images.example.com": {In: 9000, Out: 9000},
		},
	}}, nil, 0, BandlimConfig{})

	res := a.Authenticate(context.Background(), AuthRequest{UserIP: ip, TargetHost: "cdn.images.example.com", TargetPort: 443})
	require.True(t, res.Success)
	require.NotNil(t, res.DomainLimits)
	require.Equal(t, BandlimValue(9000), res.DomainLimits.In)
}

func TestAuthenticatorInstallIsIdempotent(t *testing.T) {
	a := NewAuthenticator("test")
	ip := netip.MustParseAddr("203.0.113.11")
	users := []User{{ID: "u5", IP: ip, Bandlims: BandlimConfig{In: 1000, Out: 1000}}}

	a.Install(users, nil, 0, BandlimConfig{})
	first := a.snapshot.Load()
	a.Install(users, nil, 0, BandlimConfig{})
	second := a.snapshot.Load()
	require.Same(t, first, second)
}

func TestAuthenticatorFailedAuthTimesOut(t *testing.T) {
	a := NewAuthenticator("test")
	a.Install(nil, nil, 50*time.Millisecond, BandlimConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	res := a.Authenticate(ctx, AuthRequest{UserIP: netip.MustParseAddr("203.0.113.12"), TargetPort: 80})
	require.False(t, res.Success)
	require.Equal(t, FailureAuthTimedOut, res.Reason)
}
