package arataga

import (
	"context"
	"maps"
	"net/netip"
	"sync/atomic"
	"time"
)

// User is one entry of the installed user list (§4.7, grounded on
// user_list_auth_data.hpp's per-user record as referenced from
// authentificator/pub.hpp). A user authenticates either by source IP
// (Username/Password empty) or by login/password, never both.
type User struct {
	ID       string
	IP       netip.Addr
	Username string
	Password string

	// ProxyAddr/ProxyPort optionally scope this entry to a single ACL's
	// bind address instead of matching the login/IP on every ACL sharing
	// this Authenticator (§4.7 "auth requests carry acl_in_addr,
	// acl_port"). The zero value leaves the entry unscoped.
	ProxyAddr netip.Addr
	ProxyPort uint16

	Bandlims BandlimConfig

	// SiteLimits overrides Bandlims for specific destination domains and
	// their subdomains, resolved by longest suffix match.
	SiteLimits map[string]BandlimConfig
}

func (u User) byIP() bool { return u.Username == "" }

func (u User) scoped() bool { return u.ProxyAddr.IsValid() }

type loginKey struct {
	ProxyAddr netip.Addr
	ProxyPort uint16
	Username  string
}

type ipKey struct {
	ProxyAddr netip.Addr
	ProxyPort uint16
	UserIP    netip.Addr
}

// authSnapshot is the whole-snapshot installed user list plus the
// denied-ports table, replaced atomically by [Authenticator.Install]
// (§8 "snapshot install is atomic"). scopedByIP/scopedByLogin hold
// entries qualified to one ACL; byIP/byLogin hold entries that match
// regardless of which ACL received the request.
type authSnapshot struct {
	byIP          map[netip.Addr]*User
	byLogin       map[string]*User
	scopedByIP    map[ipKey]*User
	scopedByLogin map[loginKey]*User
	deniedPorts   map[uint16]struct{}
	userDomains   map[string]*domainLimitsTrie
	defaults      BandlimConfig

	// failedAuthReplyDelay is applied before reporting a failed
	// authentication, making online credential guessing costly (§4.7
	// step 2), grounded on the original's
	// updated_auth_params_t::m_failed_auth_reply_timeout.
	failedAuthReplyDelay time.Duration
}

func newAuthSnapshot(users []User, deniedPorts []uint16, failedAuthReplyDelay time.Duration, defaults BandlimConfig) *authSnapshot {
	s := &authSnapshot{
		byIP:                 make(map[netip.Addr]*User),
		byLogin:              make(map[string]*User),
		scopedByIP:           make(map[ipKey]*User),
		scopedByLogin:        make(map[loginKey]*User),
		deniedPorts:          make(map[uint16]struct{}, len(deniedPorts)),
		userDomains:          make(map[string]*domainLimitsTrie),
		defaults:             defaults,
		failedAuthReplyDelay: failedAuthReplyDelay,
	}
	for _, p := range deniedPorts {
		s.deniedPorts[p] = struct{}{}
	}
	for i := range users {
		u := &users[i]
		switch {
		case u.byIP() && u.scoped():
			s.scopedByIP[ipKey{u.ProxyAddr, u.ProxyPort, u.IP}] = u
		case u.byIP():
			s.byIP[u.IP] = u
		case u.scoped():
			s.scopedByLogin[loginKey{u.ProxyAddr, u.ProxyPort, u.Username}] = u
		default:
			s.byLogin[u.Username] = u
		}
		if len(u.SiteLimits) > 0 {
			trie := newDomainLimitsTrie()
			for domain, limits := range u.SiteLimits {
				trie.add(domain, limits)
			}
			s.userDomains[u.ID] = trie
		}
	}
	return s
}

// lookupByLogin checks the ACL-scoped table before falling back to the
// unscoped one, so a login that was installed without ProxyAddr still
// authenticates on every ACL (§4.7).
func (s *authSnapshot) lookupByLogin(req AuthRequest) (*User, bool) {
	if u, ok := s.scopedByLogin[loginKey{req.ProxyInAddr, req.ProxyPort, req.Username}]; ok && u.Password == req.Password {
		return u, true
	}
	if u, ok := s.byLogin[req.Username]; ok && u.Password == req.Password {
		return u, true
	}
	return nil, false
}

func (s *authSnapshot) lookupByIP(req AuthRequest) (*User, bool) {
	if u, ok := s.scopedByIP[ipKey{req.ProxyInAddr, req.ProxyPort, req.UserIP}]; ok {
		return u, true
	}
	if u, ok := s.byIP[req.UserIP]; ok {
		return u, true
	}
	return nil, false
}

// equal reports whether two snapshots describe the same state, used to
// make re-installing an unchanged snapshot a no-op (§8 "installing the
// same snapshot twice is idempotent").
func (s *authSnapshot) equal(other *authSnapshot) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if len(s.byIP) != len(other.byIP) || len(s.byLogin) != len(other.byLogin) ||
		len(s.scopedByIP) != len(other.scopedByIP) || len(s.scopedByLogin) != len(other.scopedByLogin) ||
		len(s.deniedPorts) != len(other.deniedPorts) ||
		s.failedAuthReplyDelay != other.failedAuthReplyDelay ||
		s.defaults != other.defaults {
		return false
	}
	for ip, u := range s.byIP {
		ou, ok := other.byIP[ip]
		if !ok || !sameUser(u, ou) {
			return false
		}
	}
	for login, u := range s.byLogin {
		ou, ok := other.byLogin[login]
		if !ok || !sameUser(u, ou) {
			return false
		}
	}
	for k, u := range s.scopedByIP {
		ou, ok := other.scopedByIP[k]
		if !ok || !sameUser(u, ou) {
			return false
		}
	}
	for k, u := range s.scopedByLogin {
		ou, ok := other.scopedByLogin[k]
		if !ok || !sameUser(u, ou) {
			return false
		}
	}
	for p := range s.deniedPorts {
		if _, ok := other.deniedPorts[p]; !ok {
			return false
		}
	}
	return true
}

func sameUser(a, b *User) bool {
	return a.ID == b.ID && a.IP == b.IP && a.Username == b.Username && a.Password == b.Password &&
		a.ProxyAddr == b.ProxyAddr && a.ProxyPort == b.ProxyPort && a.Bandlims == b.Bandlims &&
		maps.Equal(a.SiteLimits, b.SiteLimits)
}

// Authenticator maps an incoming connection's identity (by IP or by
// login) plus a requested target into an [AuthResult] (§4.7). It holds
// no per-connection state: every ACL worker shares one Authenticator,
// consulting it synchronously on the connection's goroutine.
type Authenticator struct {
	snapshot atomic.Pointer[authSnapshot]
	metrics  *authMetrics
}

// NewAuthenticator builds an Authenticator with an empty user list; call
// [Authenticator.Install] before serving traffic.
func NewAuthenticator(id string) *Authenticator {
	a := &Authenticator{metrics: newAuthMetrics(id)}
	a.snapshot.Store(newAuthSnapshot(nil, nil, 750*time.Millisecond, BandlimConfig{}))
	return a
}

// Install atomically replaces the user list, denied-ports table and
// failed-auth-reply delay. Installing an unchanged snapshot is a no-op
// (§8 round-trip property).
func (a *Authenticator) Install(users []User, deniedPorts []uint16, failedAuthReplyDelay time.Duration, defaults BandlimConfig) {
	next := newAuthSnapshot(users, deniedPorts, failedAuthReplyDelay, defaults)
	if cur := a.snapshot.Load(); cur.equal(next) {
		return
	}
	a.snapshot.Store(next)
}

// Authenticate resolves req against the currently installed snapshot
// (§4.7 "authenticate"). By-IP ACLs pass an empty Username; by-login
// ACLs must have already parsed the SOCKS5/HTTP credentials into req.
// ctx bounds the whole call: if it expires while the failed-auth-reply
// delay is being applied, the result reports FailureAuthTimedOut instead
// of the real reason.
func (a *Authenticator) Authenticate(ctx context.Context, req AuthRequest) AuthResult {
	a.metrics.requests.Add(1)
	snap := a.snapshot.Load()

	var user *User
	if req.Username != "" {
		if u, ok := snap.lookupByLogin(req); ok {
			user = u
		}
	} else {
		if u, ok := snap.lookupByIP(req); ok {
			user = u
		}
	}

	if user == nil {
		a.metrics.unknownUser.Add(1)
		return a.delayedFailure(ctx, snap, FailureUnknownUser)
	}

	if _, denied := snap.deniedPorts[req.TargetPort]; denied {
		a.metrics.blocked.Add(1)
		return a.delayedFailure(ctx, snap, FailureTargetBlocked)
	}

	result := AuthResult{
		Success:      true,
		UserID:       user.ID,
		UserBandlims: mergeBandlimConfig(user.Bandlims, snap.defaults),
	}
	if trie, ok := snap.userDomains[user.ID]; ok {
		if limits, matched := trie.lookup(req.TargetHost); matched {
			result.DomainLimits = &limits
		}
	}
	a.metrics.successful.Add(1)
	return result
}

// delayedFailure waits out the snapshot's failed-auth-reply delay
// before reporting reason, so online credential guessing costs real
// wall-clock time (§4.7 step 2). It reports FailureAuthTimedOut instead
// if ctx expires first.
func (a *Authenticator) delayedFailure(ctx context.Context, snap *authSnapshot, reason FailureReason) AuthResult {
	if snap.failedAuthReplyDelay <= 0 {
		return AuthResult{Success: false, Reason: reason}
	}
	select {
	case <-time.After(snap.failedAuthReplyDelay):
		return AuthResult{Success: false, Reason: reason}
	case <-ctx.Done():
		a.metrics.timedOut.Add(1)
		return AuthResult{Success: false, Reason: FailureAuthTimedOut}
	}
}
