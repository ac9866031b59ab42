package arataga

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// runSOCKS5 drives a connection detected as SOCKS5 through the
// handshake, authentication, target resolution and either CONNECT or
// BIND command handling (§4.2).
func (c *Connection) runSOCKS5() {
	if c.ACL.cfg.SocksHandshakeTimeout > 0 {
		c.client.SetReadDeadline(time.Now().Add(c.ACL.cfg.SocksHandshakeTimeout))
	}
	req, herr := readSOCKS5Request(c.reader, c.client, c.ACL.cfg.RequireAuth)
	if c.ACL.cfg.SocksHandshakeTimeout > 0 {
		c.client.SetReadDeadline(time.Time{})
	}
	if herr != nil {
		c.fail(timeoutAware(herr))
		return
	}

	actx := context.Background()
	if c.ACL.cfg.AuthTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(actx, c.ACL.cfg.AuthTimeout)
		defer cancel()
	}
	authReq := AuthRequest{
		ProxyInAddr: c.ACL.cfg.Bind.Addr(),
		ProxyPort:   c.ACL.cfg.Bind.Port(),
		UserIP:      c.clientAddr.Addr(),
		Username:    req.Username,
		Password:    req.Password,
		TargetHost:  req.TargetHost,
		TargetPort:  req.TargetPort,
	}
	result := c.ACL.auth.Authenticate(actx, authReq)
	if !result.Success {
		herr := newHandlerError(KindAccessDenied, ReasonAccessDenied, nil)
		if result.Reason == FailureAuthTimedOut {
			herr = newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, errAuthTimedOut)
		}
		writeSOCKS5Reply(c.client, socks5ReplyForError(herr), netip.AddrPort{})
		c.fail(herr)
		return
	}

	c.bandlim = c.ACL.bandlimFor(result.UserID, result.UserBandlims)
	if result.DomainLimits != nil {
		c.domain = c.bandlim.MakeDomainLimits(req.TargetHost, *result.DomainLimits)
		c.hasDom = true
	}
	defer c.releaseBandlim()

	switch req.Command {
	case socks5CmdConnect:
		c.socks5Connect(req)
	case socks5CmdBind:
		c.socks5Bind(req)
	default:
		writeSOCKS5Reply(c.client, socks5RepCommandNotSupported, netip.AddrPort{})
		c.fail(newHandlerError(KindProtocolError, ReasonProtocolError, nil))
	}
}

func (c *Connection) resolveTarget(host string) (netip.Addr, *HandlerError) {
	wantV6 := c.clientAddr.Addr().Is6() && !c.clientAddr.Addr().Is4In6()

	ctx := context.Background()
	if c.ACL.cfg.DNSLookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ACL.cfg.DNSLookupTimeout)
		defer cancel()
	}

	res := c.ACL.dns.Resolve(ctx, host, wantV6)
	if res.Err != nil {
		if ctx.Err() != nil {
			return netip.Addr{}, newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, res.Err)
		}
		return netip.Addr{}, newHandlerError(KindUnresolvedTarget, ReasonUnresolvedTarget, res.Err)
	}
	return res.Address, nil
}

func (c *Connection) socks5Connect(req *socks5Request) {
	addr, herr := c.resolveTarget(req.TargetHost)
	if herr != nil {
		writeSOCKS5Reply(c.client, socks5ReplyForError(herr), netip.AddrPort{})
		c.fail(herr)
		return
	}

	target, herr := connectToTarget(netip.AddrPortFrom(addr, req.TargetPort), c.ACL.cfg.ConnectTimeout)
	if herr != nil {
		writeSOCKS5Reply(c.client, socks5ReplyForError(herr), netip.AddrPort{})
		c.fail(herr)
		return
	}
	defer target.Close()

	bound, _ := netip.ParseAddrPort(target.LocalAddr().String())
	if err := writeSOCKS5Reply(c.client, socks5RepSucceeded, bound); err != nil {
		c.fail(newHandlerError(KindIOError, ReasonUserEndBroken, err))
		return
	}

	reason := runDataTransfer(dataTransferOptions{
		Client:      c.client,
		Target:      target,
		Bandlim:     c.bandlim,
		DomainHand:  c.domain,
		HasDomain:   c.hasDom,
		IdleTimeout: c.ACL.cfg.IdleTimeout,
		ChunkSize:   c.ACL.cfg.IOChunkSize,
	})
	if reason == ReasonNormalCompletion {
		c.succeed()
	} else {
		c.fail(newHandlerError(KindIOError, reason, nil))
	}
}

// socks5Bind implements the SOCKS5 BIND command (§4.2): a second
// listening socket is opened on the ACL's bind address, its address is
// reported back to the client in the first reply, and the connection
// that arrives on it is reported in the second reply before data
// transfer starts. If no connection arrives within SocksBindTimeout,
// the second reply reports ttl_expired and the connection closes with
// current_operation_timed_out.
func (c *Connection) socks5Bind(req *socks5Request) {
	ln, err := net.Listen("tcp", c.ACL.cfg.Bind.Addr().String()+":0")
	if err != nil {
		writeSOCKS5Reply(c.client, socks5RepGeneralFailure, netip.AddrPort{})
		c.fail(newHandlerError(KindIOError, ReasonIOError, err))
		return
	}
	defer ln.Close()

	bound, _ := netip.ParseAddrPort(ln.Addr().String())
	if err := writeSOCKS5Reply(c.client, socks5RepSucceeded, bound); err != nil {
		c.fail(newHandlerError(KindIOError, ReasonUserEndBroken, err))
		return
	}

	if tl, ok := ln.(*net.TCPListener); ok && c.ACL.cfg.SocksBindTimeout > 0 {
		tl.SetDeadline(time.Now().Add(c.ACL.cfg.SocksBindTimeout))
	}
	target, err := ln.Accept()
	if err != nil {
		rep := byte(socks5RepGeneralFailure)
		herr := newHandlerError(KindIOError, ReasonTargetEndBroken, err)
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			rep = socks5RepTTLExpired
			herr = newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, err)
		}
		writeSOCKS5Reply(c.client, rep, netip.AddrPort{})
		c.fail(herr)
		return
	}
	defer target.Close()

	peerAddr, _ := netip.ParseAddrPort(target.RemoteAddr().String())
	if err := writeSOCKS5Reply(c.client, socks5RepSucceeded, peerAddr); err != nil {
		c.fail(newHandlerError(KindIOError, ReasonUserEndBroken, err))
		return
	}

	reason := runDataTransfer(dataTransferOptions{
		Client:      c.client,
		Target:      target,
		Bandlim:     c.bandlim,
		DomainHand:  c.domain,
		HasDomain:   c.hasDom,
		IdleTimeout: c.ACL.cfg.IdleTimeout,
		ChunkSize:   c.ACL.cfg.IOChunkSize,
	})
	if reason == ReasonNormalCompletion {
		c.succeed()
	} else {
		c.fail(newHandlerError(KindIOError, reason, nil))
	}
}
