package arataga

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Connection is a single accepted client connection, driven through the
// protocol-detect -> SOCKS5|HTTP -> data-transfer phases until it either
// fails or the tunnel is established (§4 "Connection", §5 "Connection
// lifecycle").
type Connection struct {
	ACL    *ACL
	ID     uint64
	SpanID string

	client     net.Conn
	clientAddr netip.AddrPort
	reader     *bufio.Reader

	bandlim *BandlimManager
	domain  DomainTrafficHandle
	hasDom  bool
}

func newConnection(acl *ACL, id uint64, client net.Conn) *Connection {
	addr, _ := netip.ParseAddrPort(client.RemoteAddr().String())
	return &Connection{
		ACL:        acl,
		ID:         id,
		SpanID:     uuid.NewString(),
		client:     client,
		clientAddr: addr,
		reader:     bufio.NewReader(client),
	}
}

// log returns a logger tagged with this connection's identifying fields
// (§4 "every phase transition ... correlated in the log stream").
func (c *Connection) log() *slog.Logger {
	return connLogger(c.ACL.ID, c.ID, c.SpanID)
}

// run drives the connection through protocol detection and the
// matching phase handler, always finishing with exactly one classified
// [RemovalReason] (§6) recorded for the connection's lifetime.
func (c *Connection) run() {
	defer c.client.Close()

	if c.ACL.cfg.ProtocolDetectTimeout > 0 {
		c.client.SetReadDeadline(time.Now().Add(c.ACL.cfg.ProtocolDetectTimeout))
	}
	proto, err := detectProtocol(c.reader)
	c.client.SetReadDeadline(time.Time{})
	if err != nil {
		herr := timeoutAware(newHandlerError(KindProtocolError, ReasonUnsupportedProtocol, err))
		c.fail(herr)
		return
	}

	c.ACL.metrics.byProtocol.Add(proto.String(), 1)

	switch proto {
	case protoSOCKS5:
		c.runSOCKS5()
	case protoHTTP:
		c.runHTTP()
	}
}

func (c *Connection) fail(e *HandlerError) {
	c.ACL.metrics.recordRemoval(e.Reason)
	if e.Reason.ClientSide() {
		c.log().Info("connection closed", "reason", e.Reason, "err", e.Err)
	} else {
		c.log().Warn("connection closed", "reason", e.Reason, "err", e.Err)
	}
}

func (c *Connection) succeed() {
	c.ACL.metrics.recordRemoval(ReasonNormalCompletion)
	c.log().Debug("connection closed normally")
}

// releaseBandlim drops this connection's reference on its domain's
// traffic entry, if it has one (§4.5 "connection_removed").
func (c *Connection) releaseBandlim() {
	if c.bandlim == nil {
		return
	}
	if c.hasDom {
		c.bandlim.ConnectionRemoved(c.domain)
	}
}

// connectToTarget dials the resolved address, applying the same
// IO-error classification regardless of which phase initiated the
// connect (§4.2 step "connect", §4.3 step "connect").
func connectToTarget(addr netip.AddrPort, timeout time.Duration) (net.Conn, *HandlerError) {
	conn, err := net.DialTimeout("tcp", addr.String(), timeout)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, fmt.Errorf("%w: %v", errConnectTimeout, err))
		}
		return nil, newHandlerError(KindIOError, ReasonTargetEndBroken, err)
	}
	return conn, nil
}
