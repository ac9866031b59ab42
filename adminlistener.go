package arataga

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// adminServerTimeout bounds read/write on the admin HTTP entry.
const adminServerTimeout = 10 * time.Second

// Admin is the HTTP entry through which configuration and user-list
// snapshots are installed and through which operators query live state
// (§4.8 "Admin HTTP entry", grounded on
// original_source/arataga/admin_http_entry/pub.hpp's inbound message
// contract: install-config-snapshot, install-user-list-snapshot,
// current-stats, debug-authenticate, debug-dns-resolve).
type Admin struct {
	id         string
	addr       string
	httpServer *http.Server
	mux        *http.ServeMux

	app *App
}

// NewAdmin builds the admin HTTP entry bound to addr, wired to app so
// its handlers can install snapshots and run debug probes against the
// same Authenticator/Resolver the live ACLs use.
func NewAdmin(id, addr string, app *App) *Admin {
	a := &Admin{id: id, addr: addr, app: app, mux: http.NewServeMux()}
	a.mux.Handle("/arataga/vars", expvar.Handler())
	a.mux.HandleFunc("/arataga/install-config-snapshot", a.handleInstallConfig)
	a.mux.HandleFunc("/arataga/install-user-list-snapshot", a.handleInstallUserList)
	a.mux.HandleFunc("/arataga/current-stats", a.handleCurrentStats)
	a.mux.HandleFunc("/arataga/debug-authenticate", a.handleDebugAuthenticate)
	a.mux.HandleFunc("/arataga/debug-dns-resolve", a.handleDebugDNSResolve)
	return a
}

// Start serves the admin HTTP entry until the listener is closed.
func (a *Admin) Start() error {
	Log.Info("starting admin listener", "id", a.id, "addr", a.addr)
	a.httpServer = &http.Server{
		Addr:         a.addr,
		Handler:      a.mux,
		ReadTimeout:  adminServerTimeout,
		WriteTimeout: adminServerTimeout,
	}
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	return a.httpServer.Serve(ln)
}

// Stop shuts the admin HTTP entry down.
func (a *Admin) Stop() error {
	Log.Info("stopping admin listener", "id", a.id)
	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(context.Background())
}

func (a *Admin) handleInstallConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	tmp, err := os.CreateTemp("", "arataga-config-*.toml")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.ReadFrom(r.Body); err != nil {
		tmp.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tmp.Close()

	cfg, err := LoadConfig(tmp.Name())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.app.InstallConfig(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *Admin) handleInstallUserList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	tmp, err := os.CreateTemp("", "arataga-users-*.toml")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.ReadFrom(r.Body); err != nil {
		tmp.Close()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tmp.Close()

	list, err := LoadUserList(tmp.Name())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	users, err := list.ToUsers()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	delay := time.Duration(list.FailedAuthReplyDelayMS) * time.Millisecond
	if delay == 0 {
		delay = 750 * time.Millisecond
	}
	a.app.Auth.Install(users, list.DeniedPorts, delay, a.app.defaultBandlims())
	w.WriteHeader(http.StatusOK)
}

func (a *Admin) handleCurrentStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	fmt.Fprint(w, "{")
	first := true
	expvar.Do(func(kv expvar.KeyValue) {
		if !first {
			fmt.Fprint(w, ",")
		}
		first = false
		fmt.Fprintf(w, "%q:%s", kv.Key, kv.Value.String())
	})
	fmt.Fprint(w, "}")
}

type debugAuthenticateRequest struct {
	ClientIP   string `json:"client_ip"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	TargetHost string `json:"target_host"`
	TargetPort uint16 `json:"target_port"`
}

func (a *Admin) handleDebugAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req debugAuthenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ip, _ := parseDebugIP(req.ClientIP)
	result := a.app.Auth.Authenticate(r.Context(), AuthRequest{
		UserIP:     ip,
		Username:   req.Username,
		Password:   req.Password,
		TargetHost: req.TargetHost,
		TargetPort: req.TargetPort,
	})
	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"result": result.String()})
}

type debugDNSResolveRequest struct {
	Name    string `json:"name"`
	WantIP6 bool   `json:"want_ipv6"`
}

func (a *Admin) handleDebugDNSResolve(w http.ResponseWriter, r *http.Request) {
	var req debugDNSResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := a.app.Resolver.Resolve(r.Context(), req.Name, req.WantIP6)
	w.Header().Set("content-type", "application/json")
	if res.Err != nil {
		json.NewEncoder(w).Encode(map[string]any{"token": res.Token, "error": res.Err.Error()})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"token": res.Token, "address": res.Address.String()})
}
