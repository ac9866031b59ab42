package arataga

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level TOML configuration for an arataga process
// (§4 "Configuration"). It decodes with github.com/BurntSushi/toml:
// nested map[string]X sections keyed by a user-chosen ID.
type Config struct {
	DNS   DNSConfig
	ACLs  map[string]ACLFileConfig
	Admin AdminConfig
}

// DNSConfig configures the shared [Resolver] (§4.6).
type DNSConfig struct {
	Nameservers      []string
	TTLSeconds       int    `toml:"ttl-seconds"`
	QueryTimeoutMS   int    `toml:"query-timeout-ms"`
	Retries          int    `toml:"retries"`
}

// ACLFileConfig is the TOML shape of one ACL entry; ToACLConfig converts
// it to the runtime [ACLConfig].
type ACLFileConfig struct {
	Bind               string
	RequireAuth        bool   `toml:"require-auth"`
	ConnectTimeoutMS   int    `toml:"connect-timeout-ms"`
	IdleTimeoutMS      int    `toml:"idle-timeout-ms"`
	DNSLookupTimeoutMS int    `toml:"dns-lookup-timeout-ms"`
	DefaultIn          uint64 `toml:"default-bandlim-in"`
	DefaultOut         uint64 `toml:"default-bandlim-out"`

	ProtocolDetectTimeoutMS      int `toml:"protocol-detect-timeout-ms"`
	SocksHandshakeTimeoutMS      int `toml:"socks-handshake-timeout-ms"`
	HTTPHeadersCompleteTimeoutMS int `toml:"http-headers-complete-timeout-ms"`
	SocksBindTimeoutMS           int `toml:"socks-bind-timeout-ms"`
	AuthTimeoutMS                int `toml:"auth-timeout-ms"`
	IOChunkSize                  int `toml:"io-chunk-size"`
}

// AdminConfig configures the admin HTTP entry (§4.8 "Admin").
type AdminConfig struct {
	Bind string
}

// ToACLConfig converts the TOML shape to the runtime configuration used
// by [NewACL], defaulting timeouts the way the original's bound_bandlim
// layer treats an absent directive as "use the system default".
func (f ACLFileConfig) ToACLConfig(id string) (ACLConfig, error) {
	bind, err := netip.ParseAddrPort(f.Bind)
	if err != nil {
		return ACLConfig{}, fmt.Errorf("acl %q: invalid bind address %q: %w", id, f.Bind, err)
	}
	connectTimeout := time.Duration(f.ConnectTimeoutMS) * time.Millisecond
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}
	idleTimeout := time.Duration(f.IdleTimeoutMS) * time.Millisecond
	if idleTimeout == 0 {
		idleTimeout = 2 * time.Minute
	}
	dnsTimeout := time.Duration(f.DNSLookupTimeoutMS) * time.Millisecond
	if dnsTimeout == 0 {
		dnsTimeout = 3 * time.Second
	}
	protocolDetectTimeout := time.Duration(f.ProtocolDetectTimeoutMS) * time.Millisecond
	if protocolDetectTimeout == 0 {
		protocolDetectTimeout = 500 * time.Millisecond
	}
	socksHandshakeTimeout := time.Duration(f.SocksHandshakeTimeoutMS) * time.Millisecond
	if socksHandshakeTimeout == 0 {
		socksHandshakeTimeout = time.Second
	}
	httpHeadersCompleteTimeout := time.Duration(f.HTTPHeadersCompleteTimeoutMS) * time.Millisecond
	if httpHeadersCompleteTimeout == 0 {
		httpHeadersCompleteTimeout = time.Second
	}
	socksBindTimeout := time.Duration(f.SocksBindTimeoutMS) * time.Millisecond
	if socksBindTimeout == 0 {
		socksBindTimeout = 1500 * time.Millisecond
	}
	authTimeout := time.Duration(f.AuthTimeoutMS) * time.Millisecond
	if authTimeout == 0 {
		authTimeout = 500 * time.Millisecond
	}
	ioChunkSize := f.IOChunkSize
	if ioChunkSize == 0 {
		ioChunkSize = 1024
	}
	return ACLConfig{
		ID:                         id,
		Bind:                       bind,
		RequireAuth:                f.RequireAuth,
		ConnectTimeout:             connectTimeout,
		IdleTimeout:                idleTimeout,
		DNSLookupTimeout:           dnsTimeout,
		ProtocolDetectTimeout:      protocolDetectTimeout,
		SocksHandshakeTimeout:      socksHandshakeTimeout,
		HTTPHeadersCompleteTimeout: httpHeadersCompleteTimeout,
		SocksBindTimeout:           socksBindTimeout,
		AuthTimeout:                authTimeout,
		IOChunkSize:                ioChunkSize,
		DefaultBandlims:            BandlimConfig{In: f.DefaultIn, Out: f.DefaultOut},
	}, nil
}

// LoadConfig reads and decodes one or more TOML files into a single
// Config, supporting multi-file configuration where later files
// override earlier ones at the top level.
func LoadConfig(paths ...string) (*Config, error) {
	var cfg Config
	for _, p := range paths {
		if _, err := toml.DecodeFile(p, &cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
	}
	if cfg.DNS.TTLSeconds == 0 {
		cfg.DNS.TTLSeconds = 300
	}
	return &cfg, nil
}

// resolverOptions builds the options for [NewResolver] from the
// decoded DNS section.
func (c *Config) resolverOptions() ResolverOptions {
	return ResolverOptions{
		Nameservers:  c.DNS.Nameservers,
		TTL:          time.Duration(c.DNS.TTLSeconds) * time.Second,
		QueryTimeout: time.Duration(c.DNS.QueryTimeoutMS) * time.Millisecond,
		Retries:      c.DNS.Retries,
	}
}
