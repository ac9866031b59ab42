package arataga

import "errors"

// Sentinel causes for the HTTP-specific failures that share a coarse
// Kind/Reason with other phases but need their own canned response
// (§4.3, §7). Checked by responseForHandlerError via errors.Is.
var (
	errUnexpectedParsingError = errors.New("unexpected request parsing error")
	errAuthParamsExtraction   = errors.New("failed to extract proxy-authorization params")
	errTargetHostExtraction   = errors.New("failed to extract target host/port")
	errInvalidRequestTarget   = errors.New("invalid request-target format")
	errInvalidOriginResponse  = errors.New("invalid response received from target host")
	errHeadersCompleteTimeout = errors.New("http headers did not complete before the deadline")
)

// Canned HTTP responses sent back to a client when a phase fails before
// the data-transfer stage is reached (§4.3 "HTTP phases", §7). Each is a
// full HTTP/1.1 response (status line, headers, body) ready to be
// written directly to the client connection and followed by a close.

const httpRespBadRequestParseError = "HTTP/1.1 400 Bad Request\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>400 Bad Request</title></head>\r\n" +
	"<body><h2>400 Bad Request</h2>" +
	"<p>Unable to parse incoming request.</p>" +
	"</body></html>\r\n"

const httpRespBadRequestUnexpectedParsingError = "HTTP/1.1 400 Bad Request\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>400 Bad Request</title></head>\r\n" +
	"<body><h2>400 Bad Request</h2>" +
	"<p>Unexpected request parsing error.</p>" +
	"</body></html>\r\n"

const httpRespBadRequestAuthParamsExtractionFailure = "HTTP/1.1 400 Bad Request\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>400 Bad Request</title></head>\r\n" +
	"<body><h2>400 Bad Request</h2>" +
	"<p>An attempt to extract username/password from Proxy-Authorization failed.</p>" +
	"</body></html>\r\n"

const httpRespBadRequestTargetHostExtractionFailure = "HTTP/1.1 400 Bad Request\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>400 Bad Request</title></head>\r\n" +
	"<body><h2>400 Bad Request</h2>" +
	"<p>An attempt to detect target-host and target-port from incoming request failed.</p>" +
	"</body></html>\r\n"

const httpRespBadRequestInvalidRequestTarget = "HTTP/1.1 400 Bad Request\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>400 Bad Request</title></head>\r\n" +
	"<body><h2>400 Bad Request</h2>" +
	"<p>Invalid request-target format.</p>" +
	"</body></html>\r\n"

const httpRespRequestTimeoutHeadersComplete = "HTTP/1.1 408 Request Timeout\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>408 Request Timeout</title></head>\r\n" +
	"<body><h2>408 Request Timeout</h2>" +
	"<p>Client sends the request too slowly (timeout.http.headers_complete)</p>" +
	"</body></html>\r\n"

const httpRespProxyAuthRequiredAuthTimeout = "HTTP/1.1 407 Proxy Authentication Required\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"proxy-authenticate: Basic\r\n" +
	"\r\n" +
	"<html><head><title>407 Proxy Authentication Required</title></head>\r\n" +
	"<body><h2>407 Proxy Authentication Required</h2>" +
	"<p>Unable to authentificate (timeout.autentification)</p>" +
	"</body></html>\r\n"

const httpRespProxyAuthRequiredNotAuthorized = "HTTP/1.1 407 Proxy Authentication Required\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"proxy-authenticate: Basic\r\n" +
	"\r\n" +
	"<html><head><title>407 Proxy Authentication Required</title></head>\r\n" +
	"<body><h2>407 Proxy Authentication Required</h2>" +
	"<p>Access to requested resource disallowed by administrator or you need " +
	"valid username/password to use this resource</p>" +
	"</body></html>\r\n"

const httpRespRequestTimeoutDNSLookup = "HTTP/1.1 408 Request Timeout\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>408 Request Timeout</title></head>\r\n" +
	"<body><h2>408 Request Timeout</h2>" +
	"<p>DNS lookup procedure timed out (timeout.dns_resolving)</p>" +
	"</body></html>\r\n"

const httpRespBadGatewayDNSLookupFailure = "HTTP/1.1 502 Bad Gateway\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>502 Bad Gateway</title></head>\r\n" +
	"<body><h2>502 Bad Gateway</h2>" +
	"<p>DNS lookup procedure failed</p>" +
	"</body></html>\r\n"

const httpRespBadGatewayConnectTimeout = "HTTP/1.1 502 Bad Gateway\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>502 Bad Gateway</title></head>\r\n" +
	"<body><h2>502 Bad Gateway</h2>" +
	"<p>Connect to the target host timed out (timeout.connect_target)</p>" +
	"</body></html>\r\n"

const httpRespBadGatewayConnectFailure = "HTTP/1.1 502 Bad Gateway\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>502 Bad Gateway</title></head>\r\n" +
	"<body><h2>502 Bad Gateway</h2>" +
	"<p>Unable to connect to the target host</p>" +
	"</body></html>\r\n"

const httpRespBadGatewayInvalidResponse = "HTTP/1.1 502 Bad Gateway\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>502 Bad Gateway</title></head>\r\n" +
	"<body><h2>502 Bad Gateway</h2>" +
	"<p>Invalid respose received from the target host</p>" +
	"</body></html>\r\n"

const httpRespInternalServerError = "HTTP/1.1 500 Internal Server Error\r\n" +
	"connection: close\r\n" +
	"content-type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><title>500 Internal Server Error</title></head>\r\n" +
	"<body><h2>500 Internal Server Error</h2>" +
	"<p>The request can't be processed</p>" +
	"</body></html>\r\n"

const httpRespOkForConnectMethod = "HTTP/1.1 200 Ok\r\n\r\n"

// responseForHandlerError maps a [HandlerError] raised during the HTTP
// phases to the canned response that should be written back to the
// client before closing the connection (§4.3, §7).
func responseForHandlerError(e *HandlerError) string {
	switch {
	case errors.Is(e.Err, errUnexpectedParsingError):
		return httpRespBadRequestUnexpectedParsingError
	case errors.Is(e.Err, errAuthParamsExtraction):
		return httpRespBadRequestAuthParamsExtractionFailure
	case errors.Is(e.Err, errTargetHostExtraction):
		return httpRespBadRequestTargetHostExtractionFailure
	case errors.Is(e.Err, errInvalidRequestTarget):
		return httpRespBadRequestInvalidRequestTarget
	case errors.Is(e.Err, errInvalidOriginResponse):
		return httpRespBadGatewayInvalidResponse
	case errors.Is(e.Err, errConnectTimeout):
		return httpRespBadGatewayConnectTimeout
	case errors.Is(e.Err, errAuthTimedOut):
		return httpRespProxyAuthRequiredAuthTimeout
	case errors.Is(e.Err, errHeadersCompleteTimeout):
		return httpRespRequestTimeoutHeadersComplete
	}

	switch e.Kind {
	case KindProtocolError:
		return httpRespBadRequestParseError
	case KindTimeout:
		return httpRespRequestTimeoutDNSLookup
	case KindAccessDenied:
		return httpRespProxyAuthRequiredNotAuthorized
	case KindUnresolvedTarget:
		return httpRespBadGatewayDNSLookupFailure
	case KindIOError:
		return httpRespBadGatewayConnectFailure
	default:
		return httpRespInternalServerError
	}
}
