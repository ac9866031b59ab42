package arataga

import (
	"errors"
	"fmt"
	"net"
)

// RemovalReason is the single terminal classification emitted when a
// connection closes (§6). Exactly one is recorded per connection.
type RemovalReason int

const (
	ReasonNormalCompletion RemovalReason = iota
	ReasonIOError
	ReasonCurrentOperationTimedOut
	ReasonUnsupportedProtocol
	ReasonProtocolError
	ReasonUnexpectedError
	ReasonNoActivityForTooLong
	ReasonCurrentOperationCanceled
	ReasonUnhandledException
	ReasonIPVersionMismatch
	ReasonAccessDenied
	ReasonUnresolvedTarget
	ReasonTargetEndBroken
	ReasonUserEndBroken
	ReasonEarlyHTTPResponse
	ReasonUserEndClosedByClient
	ReasonHTTPNoIncomingRequest
)

var removalReasonNames = [...]string{
	"normal_completion",
	"io_error",
	"current_operation_timed_out",
	"unsupported_protocol",
	"protocol_error",
	"unexpected_error",
	"no_activity_for_too_long",
	"current_operation_canceled",
	"unhandled_exception",
	"ip_version_mismatch",
	"access_denied",
	"unresolved_target",
	"target_end_broken",
	"user_end_broken",
	"early_http_response",
	"user_end_closed_by_client",
	"http_no_incoming_request",
}

func (r RemovalReason) String() string {
	if int(r) < 0 || int(r) >= len(removalReasonNames) {
		return "unknown_removal_reason"
	}
	return removalReasonNames[r]
}

// ClientSide reports whether the reason originates from client behavior
// (logged at info) as opposed to a system-side failure (logged at warn),
// per §7's "logs at warn or info depending on whether the cause is
// client-side or system-side".
func (r RemovalReason) ClientSide() bool {
	switch r {
	case ReasonNormalCompletion,
		ReasonProtocolError,
		ReasonUnsupportedProtocol,
		ReasonAccessDenied,
		ReasonUserEndClosedByClient,
		ReasonUserEndBroken,
		ReasonHTTPNoIncomingRequest,
		ReasonCurrentOperationCanceled:
		return true
	default:
		return false
	}
}

// PhaseErrorKind is the error taxonomy a handler phase can fail with
// (§7). It is translated into a [RemovalReason] (and, for client-visible
// protocols, into a wire-level reply) at the phase boundary.
type PhaseErrorKind int

const (
	KindIOError PhaseErrorKind = iota
	KindProtocolError
	KindTimeout
	KindUnresolvedTarget
	KindAccessDenied
	KindUnexpected
)

func (k PhaseErrorKind) String() string {
	switch k {
	case KindIOError:
		return "io_error"
	case KindProtocolError:
		return "protocol_error"
	case KindTimeout:
		return "timeout"
	case KindUnresolvedTarget:
		return "unresolved_target"
	case KindAccessDenied:
		return "access_denied"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// HandlerError is returned by a phase handler when it cannot continue
// normally. The connection's release path translates it into a
// [RemovalReason] and, for SOCKS5/HTTP, into a client-visible reply.
type HandlerError struct {
	Kind   PhaseErrorKind
	Reason RemovalReason
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *HandlerError) Unwrap() error { return e.Err }

func newHandlerError(kind PhaseErrorKind, reason RemovalReason, err error) *HandlerError {
	return &HandlerError{Kind: kind, Reason: reason, Err: err}
}

// QueryTimeoutError is returned by the DNS nameserver-interactor when an
// individual upstream query does not complete in time.
type QueryTimeoutError struct {
	Name string
}

func (e QueryTimeoutError) Error() string {
	return fmt.Sprintf("query for %q timed out", e.Name)
}

// Sentinel causes wrapped into a [HandlerError]'s Err field so a phase
// boundary can recover which specific failure produced a coarse
// Kind/Reason pair, without growing either taxonomy. Checked with
// errors.Is/errors.As, the same pattern errIPVersionMismatch already
// establishes in dns_resolver.go.
var (
	errConnectTimeout = errors.New("connect to target timed out")
	errAuthTimedOut   = errors.New("authentication did not complete before its deadline")
)

// timeoutAware reclassifies e into a phase timeout when its underlying
// error indicates a deadline trip. Used at phase boundaries (protocol
// detection, SOCKS5 handshake) that bound their blocking read with a
// plain net.Conn deadline rather than a context, so the failure arrives
// as an ordinary net.Error rather than a distinguishable Kind.
func timeoutAware(e *HandlerError) *HandlerError {
	var ne net.Error
	if errors.As(e.Err, &ne) && ne.Timeout() {
		return newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, e.Err)
	}
	return e
}
