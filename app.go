package arataga

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"
)

// App wires together the components shared by every ACL in one process:
// a single Authenticator, a single Resolver, a tick broadcaster, and the
// set of currently running ACLs (§4 "Core components"). Config and
// user-list snapshots are installed through [App.InstallConfig] and
// [Authenticator.Install] respectively, reachable from [Admin]'s HTTP
// handlers.
type App struct {
	Auth     *Authenticator
	Resolver *Resolver
	Ticker   *TickBroadcaster

	mu      sync.Mutex
	acls    map[string]*ACL
	cfgMu   sync.Mutex
	cfg     *Config
}

// NewApp builds an App from an initial [Config]. Call Start to open the
// ACL listeners and begin the tick broadcast.
func NewApp(cfg *Config) *App {
	app := &App{
		Auth:     NewAuthenticator("default"),
		Resolver: NewResolver(cfg.resolverOptions()),
		Ticker:   NewTickBroadcaster(time.Second),
		acls:     make(map[string]*ACL),
		cfg:      cfg,
	}
	app.Resolver.RegisterTick(app.Ticker)
	return app
}

func (a *App) defaultBandlims() BandlimConfig {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	if a.cfg == nil || len(a.cfg.ACLs) == 0 {
		return BandlimConfig{}
	}
	for _, acl := range a.cfg.ACLs {
		return BandlimConfig{In: acl.DefaultIn, Out: acl.DefaultOut}
	}
	return BandlimConfig{}
}

// Start opens every configured ACL's listening socket and begins
// serving it on its own goroutine, plus the tick broadcaster (§4
// "Timer & tick broadcast").
func (a *App) Start(ctx context.Context) error {
	a.cfgMu.Lock()
	cfg := a.cfg
	a.cfgMu.Unlock()

	for id, fc := range cfg.ACLs {
		aclCfg, err := fc.ToACLConfig(id)
		if err != nil {
			return err
		}
		acl := NewACL(aclCfg, a.Auth, a.Resolver)
		if err := acl.Listen(); err != nil {
			return fmt.Errorf("acl %q: %w", id, err)
		}
		a.mu.Lock()
		a.acls[id] = acl
		a.mu.Unlock()

		a.Ticker.Register(acl)
		go acl.Serve()
	}

	go a.Ticker.Run(ctx)
	return nil
}

// InstallConfig atomically replaces the config, stopping ACLs that were
// removed and starting ones that are new (§4.8 "install-config-snapshot",
// §8 "atomic and idempotent").
func (a *App) InstallConfig(cfg *Config) error {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	for id, fc := range cfg.ACLs {
		if _, exists := a.acls[id]; exists {
			continue
		}
		aclCfg, err := fc.ToACLConfig(id)
		if err != nil {
			return err
		}
		acl := NewACL(aclCfg, a.Auth, a.Resolver)
		if err := acl.Listen(); err != nil {
			return fmt.Errorf("acl %q: %w", id, err)
		}
		a.acls[id] = acl
		a.Ticker.Register(acl)
		go acl.Serve()
	}

	for id, acl := range a.acls {
		if _, exists := cfg.ACLs[id]; !exists {
			acl.Close()
			delete(a.acls, id)
		}
	}
	return nil
}

// parseDebugIP parses the client_ip field of a debug-authenticate
// request, defaulting to the zero address so by-login probes don't
// need to supply one.
func parseDebugIP(s string) (netip.Addr, error) {
	if s == "" {
		return netip.Addr{}, nil
	}
	return netip.ParseAddr(s)
}
