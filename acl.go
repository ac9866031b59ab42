package arataga

import (
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// ACLConfig describes one access control listener: the address it binds
// to, the authentication mode, and the timeouts and DNS/bandwidth
// dependencies it shares with every connection it accepts (§4 "ACL").
type ACLConfig struct {
	ID   string
	Bind netip.AddrPort

	// RequireAuth selects the SOCKS5 method the ACL accepts:
	// username/password (by-login authentication) when true, no-auth
	// (by-IP) otherwise (§4.7). The HTTP handler does not consult it: a
	// request carrying Proxy-Authorization authenticates by login, one
	// without it by IP.
	RequireAuth bool

	ConnectTimeout   time.Duration
	IdleTimeout      time.Duration
	DNSLookupTimeout time.Duration

	// ProtocolDetectTimeout bounds how long the first-byte peek (§4.1)
	// may wait before the connection is closed as timed out.
	ProtocolDetectTimeout time.Duration
	// SocksHandshakeTimeout bounds the SOCKS5 method negotiation through
	// the command PDU (§4.2 "socks-handshake-phase timeout").
	SocksHandshakeTimeout time.Duration
	// HTTPHeadersCompleteTimeout bounds reading one request's headers
	// (§4.3 "http-headers-complete timeout").
	HTTPHeadersCompleteTimeout time.Duration
	// SocksBindTimeout bounds how long a SOCKS5 BIND listener waits for
	// the second connection to arrive (§4.2).
	SocksBindTimeout time.Duration
	// AuthTimeout bounds a single authentication round trip, distinct
	// from FailedAuthReplyDelay which deliberately slows down a failed
	// attempt rather than bounding it (§4.7).
	AuthTimeout time.Duration

	// IOChunkSize is the largest read/write the data-transfer pipe
	// issues between bandwidth-quota checks (§4.4).
	IOChunkSize int

	DefaultBandlims BandlimConfig
}

// ACL owns one listening socket and the per-connection state machine for
// every client it accepts (§4 "ACL"). One worker goroutine runs its
// accept loop; each accepted connection gets its own goroutine, so an
// ACL's Authenticator and Resolver must themselves be concurrency-safe
// (they are: see [Authenticator], [Resolver]).
type ACL struct {
	ID     string
	cfg    ACLConfig
	auth   *Authenticator
	dns    *Resolver
	ln     net.Listener
	nextID atomic.Uint64

	metrics *aclMetrics

	mu       sync.Mutex
	bandlims map[string]*BandlimManager
}

// NewACL constructs an ACL bound to cfg.Bind, sharing the given
// Authenticator and Resolver (both are shared across every ACL in the
// process, per SPEC_FULL's DOMAIN STACK).
func NewACL(cfg ACLConfig, auth *Authenticator, resolver *Resolver) *ACL {
	return &ACL{
		ID:       cfg.ID,
		cfg:      cfg,
		auth:     auth,
		dns:      resolver,
		metrics:  newACLMetrics(cfg.ID),
		bandlims: make(map[string]*BandlimManager),
	}
}

// Listen opens the listening socket. Separated from Serve so a caller
// can report bind failures before handing the ACL to a goroutine.
func (a *ACL) Listen() error {
	ln, err := net.Listen("tcp", a.cfg.Bind.String())
	if err != nil {
		return err
	}
	a.ln = ln
	return nil
}

// Serve runs the accept loop until the listener is closed (§4 "ACL
// worker"). Each accepted connection is dispatched to its own
// goroutine; Serve itself never blocks on a single connection's
// lifetime.
func (a *ACL) Serve() {
	Log.Info("ACL listening", "acl", a.ID, "addr", a.cfg.Bind)
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			Log.Info("ACL listener stopped", "acl", a.ID, "error", err)
			return
		}
		a.metrics.accepted.Add(1)
		id := a.nextID.Add(1)
		c := newConnection(a, id, conn)
		go c.run()
	}
}

// Close stops accepting new connections.
func (a *ACL) Close() error {
	if a.ln == nil {
		return nil
	}
	return a.ln.Close()
}

// bandlimFor returns the BandlimManager for an authenticated user,
// creating one on first use (§4.5 "construct").
func (a *ACL) bandlimFor(userID string, personal BandlimConfig) *BandlimManager {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.bandlims[userID]
	if !ok {
		m = NewBandlimManager(personal, a.cfg.DefaultBandlims)
		a.bandlims[userID] = m
	}
	return m
}

// OnTick recomputes every user's bandwidth accounting for the new turn
// (§4.3 "Bandwidth tick"). Implements [Ticker] for registration with a
// [TickBroadcaster].
func (a *ACL) OnTick(now time.Time) {
	a.mu.Lock()
	managers := make([]*BandlimManager, 0, len(a.bandlims))
	for _, m := range a.bandlims {
		managers = append(managers, m)
	}
	a.mu.Unlock()

	for _, m := range managers {
		m.UpdateTrafficCountersForNewTurn()
	}
}
