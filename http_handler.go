package arataga

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// maxKeepAliveRequests bounds how many requests one HTTP/1.1 connection
// may forward before it is closed, a finite cap on an otherwise
// unbounded keep-alive loop (§4.3 "HTTP phases").
const maxKeepAliveRequests = 100

// runHTTP drives a connection detected as HTTP/1.1 through request
// parsing, authentication, target extraction, DNS resolution, connect
// and either tunneling (CONNECT) or forwarding (every other method),
// repeating for as long as the client keeps the connection alive
// (§4.3). Exactly one terminal [RemovalReason] is recorded for the
// whole connection, regardless of how many requests it served.
func (c *Connection) runHTTP() {
	if c.ACL.cfg.IOChunkSize > 0 && c.ACL.cfg.IOChunkSize < protocolDetectBufferSize {
		c.fail(newHandlerError(KindUnexpected, ReasonUnhandledException,
			fmt.Errorf("io-chunk-size %d smaller than the %d bytes an HTTP connection needs buffered", c.ACL.cfg.IOChunkSize, protocolDetectBufferSize)))
		return
	}

	for i := 0; i < maxKeepAliveRequests; i++ {
		if !c.runOneHTTPIteration(i) {
			return
		}
	}
	c.succeed()
}

// runOneHTTPIteration parses and services one request, reporting
// whether the caller should read a further request from the same
// socket. A false return always means the terminal [RemovalReason] has
// already been recorded. It recovers from an internal panic so one
// malformed request can never take a whole ACL worker down (§7
// "unhandled_exception").
func (c *Connection) runOneHTTPIteration(i int) (keepGoing bool) {
	defer func() {
		if r := recover(); r != nil {
			herr := newHandlerError(KindUnexpected, ReasonUnhandledException, fmt.Errorf("%w: %v", errUnexpectedParsingError, r))
			c.client.Write([]byte(responseForHandlerError(herr)))
			c.fail(herr)
			keepGoing = false
		}
	}()

	if c.ACL.cfg.HTTPHeadersCompleteTimeout > 0 {
		c.client.SetReadDeadline(time.Now().Add(c.ACL.cfg.HTTPHeadersCompleteTimeout))
	}
	req, err := http.ReadRequest(c.reader)
	if c.ACL.cfg.HTTPHeadersCompleteTimeout > 0 {
		c.client.SetReadDeadline(time.Time{})
	}
	if err != nil {
		if i == 0 {
			herr := newHandlerError(KindProtocolError, ReasonHTTPNoIncomingRequest, err)
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				herr = newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, fmt.Errorf("%w: %v", errHeadersCompleteTimeout, err))
			}
			c.client.Write([]byte(responseForHandlerError(herr)))
			c.fail(herr)
		} else {
			c.succeed()
		}
		return false
	}

	username, password, herr := extractProxyAuth(req)
	if herr != nil {
		c.failHTTP(herr)
		return false
	}

	host, port, herr := extractTarget(req)
	if herr != nil {
		c.failHTTP(herr)
		return false
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
		Username:    username,
		Password:    password,
		TargetHost:  host,
		TargetPort:  port,
	}
	result := c.ACL.auth.Authenticate(actx, authReq)
	if !result.Success {
		herr := newHandlerError(KindAccessDenied, ReasonAccessDenied, nil)
		if result.Reason == FailureAuthTimedOut {
			herr = newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, errAuthTimedOut)
		}
		c.failHTTP(herr)
		return false
	}

	c.bandlim = c.ACL.bandlimFor(result.UserID, result.UserBandlims)
	if result.DomainLimits != nil {
		c.domain = c.bandlim.MakeDomainLimits(host, *result.DomainLimits)
		c.hasDom = true
	}

	keepAlive, herr := c.handleOneHTTPRequest(req, host, port)
	c.releaseBandlim()
	c.hasDom = false
	if herr != nil {
		c.fail(herr)
		return false
	}
	if !keepAlive {
		c.succeed()
		return false
	}
	return true
}

// handleOneHTTPRequest services a single parsed request, returning
// whether the connection should keep reading further requests and, on
// failure, the reason it must close. Any canned error response has
// already been written to the client when herr is non-nil.
func (c *Connection) handleOneHTTPRequest(req *http.Request, host string, port uint16) (bool, *HandlerError) {
	addr, herr := c.resolveTarget(host)
	if herr != nil {
		c.client.Write([]byte(responseForHandlerError(herr)))
		return false, herr
	}

	target, herr := connectToTarget(netip.AddrPortFrom(addr, port), c.ACL.cfg.ConnectTimeout)
	if herr != nil {
		c.client.Write([]byte(responseForHandlerError(herr)))
		return false, herr
	}
	defer target.Close()

	if req.Method == http.MethodConnect {
		return c.handleConnectMethod(target)
	}
	return c.forwardNonConnect(req, target)
}

// handleConnectMethod replies 200 and switches to the bandwidth-aware
// pipe; CONNECT always ends the request loop for this connection
// because the socket now carries an opaque tunnel (§4.3 "CONNECT
// method"). The terminal reason is reported to the caller rather than
// recorded here, so runOneHTTPIteration remains the single place that
// records it.
func (c *Connection) handleConnectMethod(target net.Conn) (bool, *HandlerError) {
	if _, err := c.client.Write([]byte(httpRespOkForConnectMethod)); err != nil {
		return false, newHandlerError(KindIOError, ReasonUserEndBroken, err)
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
		return false, nil
	}
	return false, newHandlerError(KindIOError, reason, nil)
}

// forwardNonConnect rewrites the request to origin-form, forwards it to
// the target, relays the response back to the client, and reports
// whether the connection can be kept alive for a further request
// (§4.3 "non-CONNECT forwarding"). It never records the connection's
// terminal reason itself; the caller does that exactly once.
func (c *Connection) forwardNonConnect(req *http.Request, target net.Conn) (bool, *HandlerError) {
	req.RequestURI = ""
	req.URL.Scheme = ""
	req.URL.Host = ""
	req.Header.Del("Proxy-Authorization")
	req.Header.Del("Proxy-Connection")

	if err := req.Write(target); err != nil {
		herr := newHandlerError(KindIOError, ReasonTargetEndBroken, err)
		c.client.Write([]byte(responseForHandlerError(herr)))
		return false, herr
	}

	targetReader := bufio.NewReader(target)
	resp, err := http.ReadResponse(targetReader, req)
	if err != nil {
		herr := newHandlerError(KindIOError, ReasonTargetEndBroken, fmt.Errorf("%w: %v", errInvalidOriginResponse, err))
		c.client.Write([]byte(responseForHandlerError(herr)))
		return false, herr
	}
	defer resp.Body.Close()

	if err := resp.Write(c.client); err != nil {
		return false, newHandlerError(KindIOError, ReasonUserEndBroken, err)
	}

	return !resp.Close && !req.Close, nil
}

func (c *Connection) failHTTP(e *HandlerError) {
	c.client.Write([]byte(responseForHandlerError(e)))
	c.fail(e)
}

// extractProxyAuth pulls a Basic Proxy-Authorization header into
// username/password, if present (§4.3 "auth params extraction").
func extractProxyAuth(req *http.Request) (string, string, *HandlerError) {
	h := req.Header.Get("Proxy-Authorization")
	if h == "" {
		return "", "", nil
	}
	const prefix = "Basic "
	if !strings.HasPrefix(h, prefix) {
		return "", "", newHandlerError(KindProtocolError, ReasonProtocolError, errAuthParamsExtraction)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h, prefix))
	if err != nil {
		return "", "", newHandlerError(KindProtocolError, ReasonProtocolError, fmt.Errorf("%w: %v", errAuthParamsExtraction, err))
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", newHandlerError(KindProtocolError, ReasonProtocolError, errAuthParamsExtraction)
	}
	return parts[0], parts[1], nil
}

// extractTarget derives the target host/port from a request: CONNECT
// carries it in the request-target itself, every other method carries
// it either in an absolute-form request-target or in the Host header
// (§4.3 "target-host extraction").
func extractTarget(req *http.Request) (string, uint16, *HandlerError) {
	var hostport string
	if req.Method == http.MethodConnect {
		hostport = req.RequestURI
	} else if req.URL.Host != "" {
		hostport = req.URL.Host
	} else {
		hostport = req.Host
	}
	if hostport == "" {
		return "", 0, newHandlerError(KindProtocolError, ReasonProtocolError, errTargetHostExtraction)
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
		portStr = "80"
		if req.Method == http.MethodConnect {
			portStr = "443"
		}
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, newHandlerError(KindProtocolError, ReasonProtocolError, fmt.Errorf("%w: %v", errInvalidRequestTarget, err))
	}
	return host, uint16(port), nil
}
