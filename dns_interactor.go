package arataga

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// NameserverInteractorOptions configures the UDP nameserver interactor
// (§4.6 "Nameserver interactor").
type NameserverInteractorOptions struct {
	// Nameservers to query, tried in order for each lookup.
	Nameservers []string

	// QueryTimeout bounds a single UDP exchange.
	QueryTimeout time.Duration

	// Retries is how many nameservers to try before giving up: the
	// interactor performs its own UDP retry strategy before reporting
	// failure (§7).
	Retries int
}

// nameserverInteractor issues and correlates nameserver queries over UDP,
// using github.com/miekg/dns for wire encode/decode. It never panics the
// process; every failure is returned as an error that the caller (the
// lookup conductor) turns into a failed_resolve for every coalesced
// waiter (§4.6 "Failure model").
type nameserverInteractor struct {
	opt    NameserverInteractorOptions
	client *dns.Client
}

func newNameserverInteractor(opt NameserverInteractorOptions) *nameserverInteractor {
	if opt.QueryTimeout == 0 {
		opt.QueryTimeout = 3 * time.Second
	}
	if opt.Retries <= 0 {
		opt.Retries = len(opt.Nameservers)
		if opt.Retries == 0 {
			opt.Retries = 1
		}
	}
	return &nameserverInteractor{
		opt: opt,
		client: &dns.Client{
			Net:     "udp",
			Timeout: opt.QueryTimeout,
		},
	}
}

// lookup resolves name to a list of addresses using A and AAAA queries
// against the configured nameservers, retrying across nameservers (not
// re-querying an already-answered request, per §7 "DNS lookups are not
// retried at the core layer").
func (n *nameserverInteractor) lookup(ctx context.Context, name string) ([]netip.Addr, error) {
	if len(n.opt.Nameservers) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}

	fqdn := dns.Fqdn(name)
	var addrs []netip.Addr
	var lastErr error

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		a, err := n.exchangeWithRetry(ctx, fqdn, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		addrs = append(addrs, a...)
	}

	if len(addrs) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no records found for %q", name)
	}
	return addrs, nil
}

// lookupFamily resolves name to addresses of a single IP family, used by
// a per-family [lookupConductor] so a lookup for an IPv6-only ACL never
// waits on (or coalesces with) an unrelated A query (§4.6).
func (n *nameserverInteractor) lookupFamily(ctx context.Context, name string, wantV6 bool) ([]netip.Addr, error) {
	if len(n.opt.Nameservers) == 0 {
		return nil, fmt.Errorf("no nameservers configured")
	}
	qtype := dns.TypeA
	if wantV6 {
		qtype = dns.TypeAAAA
	}
	return n.exchangeWithRetry(ctx, dns.Fqdn(name), qtype)
}

func (n *nameserverInteractor) exchangeWithRetry(ctx context.Context, fqdn string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = true

	var lastErr error
	tries := n.opt.Retries
	if tries > len(n.opt.Nameservers) {
		tries = len(n.opt.Nameservers)
	}
	for i := 0; i < tries; i++ {
		ns := n.opt.Nameservers[i%len(n.opt.Nameservers)]
		deadline, ok := ctx.Deadline()
		timeout := n.opt.QueryTimeout
		if ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		qctx, cancel := context.WithTimeout(ctx, timeout)
		resp, _, err := n.client.ExchangeContext(qctx, msg, ns)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("nameserver %s returned rcode %s", ns, dns.RcodeToString[resp.Rcode])
			continue
		}
		return addressesFromAnswer(resp.Answer), nil
	}
	if lastErr == nil {
		lastErr = QueryTimeoutError{Name: fqdn}
	}
	return nil, lastErr
}

func addressesFromAnswer(rrs []dns.RR) []netip.Addr {
	var out []netip.Addr
	for _, rr := range rrs {
		switch rec := rr.(type) {
		case *dns.A:
			if a, ok := netip.AddrFromSlice(rec.A.To4()); ok {
				out = append(out, a)
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(rec.AAAA.To16()); ok {
				out = append(out, a)
			}
		}
	}
	return out
}
