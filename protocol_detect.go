package arataga

import (
	"bufio"
	"fmt"
)

// clientProtocol is which application protocol a connection speaks,
// decided by peeking at the first byte without consuming it (§4.1
// "Protocol detection").
type clientProtocol int

const (
	protoSOCKS5 clientProtocol = iota
	protoHTTP
)

// protocolDetectBufferSize is how much of the client's first bytes
// detectProtocol and the HTTP parser that follows it need buffered; an
// ACL whose IOChunkSize is configured smaller than this can never
// actually service an HTTP connection, so the HTTP handler rejects it
// at construction instead of failing confusingly mid-request (§8 "HTTP
// first-chunk larger than io-chunk-size is rejected at construction").
const protocolDetectBufferSize = 512

func (p clientProtocol) String() string {
	if p == protoSOCKS5 {
		return "socks5"
	}
	return "http"
}

// detectProtocol peeks the first byte of the connection: 0x05 is the
// SOCKS5 version byte, anything else is assumed to be the start of an
// HTTP/1.1 request line (§4.1). No bytes are consumed, so the phase
// handler reads the same stream from the start.
func detectProtocol(r *bufio.Reader) (clientProtocol, error) {
	b, err := r.Peek(1)
	if err != nil {
		return 0, fmt.Errorf("peeking first byte: %w", err)
	}
	if b[0] == socks5Version {
		return protoSOCKS5, nil
	}
	return protoHTTP, nil
}
