package arataga

import (
	"bufio"
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSOCKS5RequestNoAuthConnect(t *testing.T) {
	var wire bytes.Buffer
	wire.Write([]byte{socks5Version, 1, socks5AuthNone}) // handshake: 1 method, no-auth
	wire.Write([]byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain})
	wire.WriteByte(byte(len("example.com")))
	wire.WriteString("example.com")
	wire.Write([]byte{0x01, 0xbb}) // port 443

	var out bytes.Buffer
	req, err := readSOCKS5Request(bufio.NewReader(&wire), &out, false)
	require.Nil(t, err)
	require.Equal(t, byte(socks5CmdConnect), req.Command)
	require.Equal(t, "example.com", req.TargetHost)
	require.Equal(t, uint16(443), req.TargetPort)
	require.Equal(t, []byte{socks5Version, socks5AuthNone}, out.Bytes())
}

func TestReadSOCKS5RequestUsernamePassword(t *testing.T) {
	var wire bytes.Buffer
	wire.Write([]byte{socks5Version, 1, socks5AuthUsernamePassword})
	wire.WriteByte(usernamePasswordAuthVersion)
	wire.WriteByte(byte(len("alice")))
	wire.WriteString("alice")
	wire.WriteByte(byte(len("s3cret")))
	wire.WriteString("s3cret")
	wire.Write([]byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrIPv4})
	wire.Write([]byte{127, 0, 0, 1})
	wire.Write([]byte{0x00, 0x50}) // port 80

	var out bytes.Buffer
	req, err := readSOCKS5Request(bufio.NewReader(&wire), &out, true)
	require.Nil(t, err)
	require.Equal(t, "alice", req.Username)
	require.Equal(t, "s3cret", req.Password)
	require.Equal(t, "127.0.0.1", req.TargetHost)
	require.Equal(t, uint16(80), req.TargetPort)
}

func TestReadSOCKS5RequestNoAcceptableMethod(t *testing.T) {
	var wire bytes.Buffer
	wire.Write([]byte{socks5Version, 1, socks5AuthNone})

	var out bytes.Buffer
	_, err := readSOCKS5Request(bufio.NewReader(&wire), &out, true)
	require.Error(t, err)
	require.Equal(t, []byte{socks5Version, socks5AuthNoAcceptable}, out.Bytes())
}

func TestWriteSOCKS5ReplyIPv4(t *testing.T) {
	var out bytes.Buffer
	addr := netip.MustParseAddrPort("192.0.2.1:8080")
	require.NoError(t, writeSOCKS5Reply(&out, socks5RepSucceeded, addr))

	want := []byte{socks5Version, socks5RepSucceeded, 0x00, socks5AddrIPv4, 192, 0, 2, 1, 0x1f, 0x90}
	require.Equal(t, want, out.Bytes())
}

func TestWriteSOCKS5ReplyIPv6(t *testing.T) {
	var out bytes.Buffer
	addr := netip.MustParseAddrPort("[2001:db8::1]:53")
	require.NoError(t, writeSOCKS5Reply(&out, socks5RepSucceeded, addr))

	require.Equal(t, byte(socks5AddrIPv6), out.Bytes()[3])
	require.Len(t, out.Bytes(), 4+16+2)
}

func TestSocks5ReplyForError(t *testing.T) {
	require.Equal(t, byte(socks5RepNotAllowed), socks5ReplyForError(newHandlerError(KindAccessDenied, ReasonAccessDenied, nil)))
	require.Equal(t, byte(socks5RepHostUnreachable), socks5ReplyForError(newHandlerError(KindUnresolvedTarget, ReasonUnresolvedTarget, nil)))
	require.Equal(t, byte(socks5RepTTLExpired), socks5ReplyForError(newHandlerError(KindTimeout, ReasonCurrentOperationTimedOut, nil)))
}
