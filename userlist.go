package arataga

import (
	"fmt"
	"net/netip"

	"github.com/BurntSushi/toml"
)

// UserListConfig is the TOML shape of the user list, installed
// separately from the main [Config] via its own admin endpoint
// (§4.8 "install-user-list-snapshot"): the two snapshots have
// independent lifecycles so the user list can be refreshed without
// touching ACL bind addresses.
type UserListConfig struct {
	DeniedPorts []uint16 `toml:"denied-ports"`
	Users       map[string]UserFileConfig

	// FailedAuthReplyDelayMS is how long a failed authentication attempt
	// waits before its reply, making online credential guessing costly
	// (§4.7 step 2). Zero means the default delay of 750ms.
	FailedAuthReplyDelayMS int `toml:"failed-auth-reply-delay-ms"`
}

// UserFileConfig is the TOML shape of one user entry.
type UserFileConfig struct {
	IP         string
	Username   string
	Password   string
	BandlimIn  uint64                   `toml:"bandlim-in"`
	BandlimOut uint64                   `toml:"bandlim-out"`
	SiteLimits map[string]SiteLimitFile `toml:"site-limits"`

	// AclBindAddr/AclBindPort optionally scope this user to a single
	// ACL instead of every ACL sharing the Authenticator (§4.7).
	AclBindAddr string `toml:"acl-bind-addr"`
	AclBindPort uint16 `toml:"acl-bind-port"`
}

// SiteLimitFile is one per-domain bandwidth override.
type SiteLimitFile struct {
	In  uint64
	Out uint64
}

// ToUsers converts the TOML shape into the []User slice consumed by
// [Authenticator.Install].
func (c UserListConfig) ToUsers() ([]User, error) {
	users := make([]User, 0, len(c.Users))
	for id, f := range c.Users {
		u := User{
			ID:       id,
			Username: f.Username,
			Password: f.Password,
			Bandlims: BandlimConfig{In: f.BandlimIn, Out: f.BandlimOut},
		}
		if f.IP != "" {
			addr, err := netip.ParseAddr(f.IP)
			if err != nil {
				return nil, fmt.Errorf("user %q: invalid ip %q: %w", id, f.IP, err)
			}
			u.IP = addr
		}
		if f.AclBindAddr != "" {
			addr, err := netip.ParseAddr(f.AclBindAddr)
			if err != nil {
				return nil, fmt.Errorf("user %q: invalid acl-bind-addr %q: %w", id, f.AclBindAddr, err)
			}
			u.ProxyAddr = addr
			u.ProxyPort = f.AclBindPort
		}
		if len(f.SiteLimits) > 0 {
			u.SiteLimits = make(map[string]BandlimConfig, len(f.SiteLimits))
			for domain, l := range f.SiteLimits {
				u.SiteLimits[domain] = BandlimConfig{In: l.In, Out: l.Out}
			}
		}
		users = append(users, u)
	}
	return users, nil
}

// LoadUserList reads and decodes a TOML user-list file.
func LoadUserList(path string) (*UserListConfig, error) {
	var cfg UserListConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &cfg, nil
}
