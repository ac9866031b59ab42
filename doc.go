/*
Package arataga implements a multi-protocol forwarding proxy core.

It accepts client connections on configured ACLs (access control listeners),
detects whether each client speaks SOCKS5 or HTTP/1.1, authenticates the
client against a user list, resolves the destination host through a caching
DNS layer, opens an outbound TCP connection and shuttles bytes between the
two sockets while enforcing per-user and per-domain bandwidth quotas.

# Core components

The ACL acceptor ([ACL], [NewACL]) owns a listening socket and an I/O worker;
each accepted [Connection] is driven through a protocol-specific state
machine (protocol detection, then SOCKS5 or HTTP phases) until it either
fails or reaches the data-transfer phase.

The bandwidth-limit manager ([BandlimManager]) owns per-user and per-domain
traffic quotas and recomputes them on every one-second tick ([TickBroadcaster]).

The DNS resolver ([Resolver]) combines a TTL'd cache, a request-coalescing
lookup conductor and a nameserver interactor that speaks the DNS wire
protocol over UDP.

The authentication service ([Authenticator]) maps an incoming client
(by IP or by username/password) plus a target host to an authorization
verdict, consulting a denied-ports table and per-user, per-domain limits.

Configuration and user-list updates are delivered from outside the core
(see [Admin]) as whole-snapshot replacements installed atomically.
*/
package arataga
