package arataga

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectProtocolSOCKS5(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x05, 0x01, 0x00}))
	p, err := detectProtocol(r)
	require.NoError(t, err)
	require.Equal(t, protoSOCKS5, p)

	// Peek must not consume the byte.
	b, err := r.Peek(1)
	require.NoError(t, err)
	require.Equal(t, byte(0x05), b[0])
}

func TestDetectProtocolHTTP(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\n\r\n")))
	p, err := detectProtocol(r)
	require.NoError(t, err)
	require.Equal(t, protoHTTP, p)
}

func TestDetectProtocolEmptyStream(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader(nil))
	_, err := detectProtocol(r)
	require.Error(t, err)
}
