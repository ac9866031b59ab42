package arataga

import (
	"expvar"
	"fmt"
)

// getVarInt returns a process-wide *expvar.Int for the given path,
// creating it on first use. Used by [ACL], [Resolver] and [Authenticator]
// to publish the counters exposed via current-stats (see [Admin]).
func getVarInt(base, id, name string) *expvar.Int {
	fullname := fmt.Sprintf("arataga.%s.%s.%s", base, id, name)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Int)
	}
	return expvar.NewInt(fullname)
}

// getVarMap returns a process-wide *expvar.Map for the given path.
func getVarMap(base, id, name string) *expvar.Map {
	fullname := fmt.Sprintf("arataga.%s.%s.%s", base, id, name)
	if v := expvar.Get(fullname); v != nil {
		return v.(*expvar.Map)
	}
	return expvar.NewMap(fullname)
}

// aclMetrics are the per-ACL counters surfaced through current-stats.
type aclMetrics struct {
	accepted   *expvar.Int
	refused    *expvar.Int
	byReason   *expvar.Map
	byProtocol *expvar.Map
}

func newACLMetrics(aclID string) *aclMetrics {
	return &aclMetrics{
		accepted:   getVarInt("acl", aclID, "accepted"),
		refused:    getVarInt("acl", aclID, "refused"),
		byReason:   getVarMap("acl", aclID, "removal_reason"),
		byProtocol: getVarMap("acl", aclID, "protocol"),
	}
}

func (m *aclMetrics) recordRemoval(reason RemovalReason) {
	m.byReason.Add(reason.String(), 1)
}

// dnsMetrics are the counters for the DNS resolver subsystem (§4.6).
type dnsMetrics struct {
	cacheHits    *expvar.Int
	cacheMisses  *expvar.Int
	coalesced    *expvar.Int
	successful   *expvar.Int
	failed       *expvar.Int
	nameserverQs *expvar.Int
}

func newDNSMetrics(id string) *dnsMetrics {
	return &dnsMetrics{
		cacheHits:    getVarInt("dns", id, "cache_hits"),
		cacheMisses:  getVarInt("dns", id, "cache_misses"),
		coalesced:    getVarInt("dns", id, "coalesced"),
		successful:   getVarInt("dns", id, "successful"),
		failed:       getVarInt("dns", id, "failed"),
		nameserverQs: getVarInt("dns", id, "nameserver_queries"),
	}
}

// authMetrics are the counters for the authentication service (§4.7).
type authMetrics struct {
	requests    *expvar.Int
	successful  *expvar.Int
	unknownUser *expvar.Int
	blocked     *expvar.Int
	timedOut    *expvar.Int
}

func newAuthMetrics(id string) *authMetrics {
	return &authMetrics{
		requests:    getVarInt("auth", id, "requests"),
		successful:  getVarInt("auth", id, "successful"),
		unknownUser: getVarInt("auth", id, "unknown_user"),
		blocked:     getVarInt("auth", id, "target_blocked"),
		timedOut:    getVarInt("auth", id, "timed_out"),
	}
}
