package arataga

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// ResolverOptions configures a [Resolver].
type ResolverOptions struct {
	Nameservers  []string
	TTL          time.Duration
	QueryTimeout time.Duration
	Retries      int
}

// LookupResult is the outcome of a single [Resolver.Resolve] call,
// carrying the completion token so a caller can correlate an
// asynchronously logged result with the request that produced it
// (§3 "Completion token").
type LookupResult struct {
	Token   string
	Name    string
	Address netip.Addr
	Err     error
}

// Resolver is the facade tying the cache, the per-IP-family lookup
// conductors and the nameserver interactor together (§4.6 "DNS
// resolver"). A single Resolver is shared by every ACL worker; it holds
// no per-connection state, so it is safe for concurrent use.
type Resolver struct {
	v4 *lookupConductor
	v6 *lookupConductor
}

// NewResolver builds a Resolver with one lookup conductor per IP family,
// both backed by the same nameserver interactor (§4.6).
func NewResolver(opt ResolverOptions) *Resolver {
	interactor := newNameserverInteractor(NameserverInteractorOptions{
		Nameservers:  opt.Nameservers,
		QueryTimeout: opt.QueryTimeout,
		Retries:      opt.Retries,
	})
	condOpt := lookupConductorOptions{TTL: opt.TTL, QueryTimeout: opt.QueryTimeout}
	return &Resolver{
		v4: newLookupConductor(condOpt, false, interactor, newDNSMetrics("v4")),
		v6: newLookupConductor(condOpt, true, interactor, newDNSMetrics("v6")),
	}
}

// Resolve looks up name for the requested IP family (§4.6 step 2: "a
// syntactic IP literal is returned as-is without touching the cache or
// the nameserver"). The returned token can be attached to log lines and
// to the debug-dns-resolve admin probe response.
func (r *Resolver) Resolve(ctx context.Context, name string, wantV6 bool) LookupResult {
	token := uuid.NewString()

	if addr, err := netip.ParseAddr(name); err == nil {
		if addr.Is6() != wantV6 && !(addr.Is4In6() && !wantV6) {
			return LookupResult{Token: token, Name: name, Err: fmt.Errorf("%w: literal %s is not %s", errIPVersionMismatch, name, familyLabel(wantV6))}
		}
		return LookupResult{Token: token, Name: name, Address: addr}
	}

	conductor := r.v4
	if wantV6 {
		conductor = r.v6
	}
	addrs, err := conductor.resolve(ctx, name)
	if err != nil {
		return LookupResult{Token: token, Name: name, Err: err}
	}
	addr, ok := pickAddress(addrs, wantV6)
	if !ok {
		return LookupResult{Token: token, Name: name, Err: fmt.Errorf("%s: no %s address available", name, familyLabel(wantV6))}
	}
	return LookupResult{Token: token, Name: name, Address: addr}
}

// RegisterTick attaches the resolver's per-family cache sweeps to a
// [TickBroadcaster] (§4.6 "Cache": remove_outdated on every tick).
func (r *Resolver) RegisterTick(b *TickBroadcaster) {
	b.Register(r.v4)
	b.Register(r.v6)
}

func familyLabel(wantV6 bool) string {
	if wantV6 {
		return "IPv6"
	}
	return "IPv4"
}

var errIPVersionMismatch = fmt.Errorf("ip version mismatch")
