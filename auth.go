package arataga

import (
	"net/netip"

	"github.com/google/uuid"
)

// FailureReason is why an authentication/authorization attempt was
// refused (§4.7 "Authenticator", grounded on
// authentificator/pub.hpp's failure_reason_t).
type FailureReason int

const (
	// FailureUnknownUser means the client is not present in the user
	// list for the ACL it connected to.
	FailureUnknownUser FailureReason = iota
	// FailureTargetBlocked means the user is known but access to the
	// requested target host/port is denied (denied-ports table or a
	// blocked destination).
	FailureTargetBlocked
	// FailureAuthTimedOut means the authentication step itself did not
	// complete before its deadline.
	FailureAuthTimedOut
)

func (r FailureReason) String() string {
	switch r {
	case FailureUnknownUser:
		return "unknown_user"
	case FailureTargetBlocked:
		return "target_blocked"
	case FailureAuthTimedOut:
		return "auth_operation_timedout"
	default:
		return "unknown_failure_reason"
	}
}

// AuthRequest is a single authentication/authorization attempt (§4.7,
// grounded on authentificator/pub.hpp's auth_request_t). By-IP ACLs
// leave Username/Password empty; by-login ACLs fill them in from the
// SOCKS5 username/password exchange or the HTTP Proxy-Authorization
// header.
type AuthRequest struct {
	ProxyInAddr netip.Addr
	ProxyPort   uint16

	UserIP netip.Addr

	Username string
	Password string

	TargetHost string
	TargetPort uint16
}

// AuthResult is the outcome of an [Authenticator.Authenticate] call
// (grounded on auth_result_t: either failed_auth_t or
// successful_auth_t).
type AuthResult struct {
	Success bool

	// Populated when Success is false.
	Reason FailureReason

	// Populated when Success is true.
	UserID       string
	UserBandlims BandlimConfig
	DomainLimits *BandlimConfig
}

func (r AuthResult) String() string {
	if !r.Success {
		return "(failed: " + r.Reason.String() + ")"
	}
	s := "(successful: user_id=" + r.UserID + ", " + r.UserBandlims.String() + ")"
	if r.DomainLimits != nil {
		s += ", (" + r.DomainLimits.String() + ")"
	}
	return s
}

// newCompletionToken mints a random UUID string for use as a completion
// token (§3 "Completion token"). Nothing in the package calls it:
// [AuthResult] carries no token, and the debug-authenticate admin probe
// responds without one.
func newCompletionToken() string {
	return uuid.NewString()
}
