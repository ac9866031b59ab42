package arataga

import (
	"bufio"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustReadRequest(t *testing.T, raw string) *http.Request {
	t.Helper()
	req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	require.NoError(t, err)
	return req
}

func TestExtractTargetConnect(t *testing.T) {
	req := mustReadRequest(t, "CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n")
	host, port, herr := extractTarget(req)
	require.Nil(t, herr)
	require.Equal(t, "example.com", host)
	require.Equal(t, uint16(443), port)
}

func TestExtractTargetAbsoluteForm(t *testing.T) {
	req := mustReadRequest(t, "GET http://example.com/index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	host, port, herr := extractTarget(req)
	require.Nil(t, herr)
	require.Equal(t, "example.com", host)
	require.Equal(t, uint16(80), port)
}

func TestExtractTargetHostHeaderFallback(t *testing.T) {
	req := mustReadRequest(t, "GET /index.html HTTP/1.1\r\nHost: example.com:8080\r\n\r\n")
	host, port, herr := extractTarget(req)
	require.Nil(t, herr)
	require.Equal(t, "example.com", host)
	require.Equal(t, uint16(8080), port)
}

func TestExtractTargetMissingHost(t *testing.T) {
	req := mustReadRequest(t, "GET /index.html HTTP/1.0\r\n\r\n")
	req.Host = ""
	_, _, herr := extractTarget(req)
	require.NotNil(t, herr)
	require.Equal(t, KindProtocolError, herr.Kind)
}

func TestExtractProxyAuthAbsent(t *testing.T) {
	req := mustReadRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	user, pass, herr := extractProxyAuth(req)
	require.Nil(t, herr)
	require.Empty(t, user)
	require.Empty(t, pass)
}

func TestExtractProxyAuthBasic(t *testing.T) {
	// base64("alice:s3cret") = YWxpY2U6czNjcmV0
	req := mustReadRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\nProxy-Authorization: Basic YWxpY2U6czNjcmV0\r\n\r\n")
	user, pass, herr := extractProxyAuth(req)
	require.Nil(t, herr)
	require.Equal(t, "alice", user)
	require.Equal(t, "s3cret", pass)
}

func TestExtractProxyAuthMalformed(t *testing.T) {
	req := mustReadRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\nProxy-Authorization: Digest abc\r\n\r\n")
	_, _, herr := extractProxyAuth(req)
	require.NotNil(t, herr)
}
