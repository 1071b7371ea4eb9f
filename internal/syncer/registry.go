package syncer

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"golang.org/x/exp/maps"

	"github.com/readyornot/sync-server/internal/video"
	"github.com/readyornot/sync-server/pkg/broadcast"
)

// Registry holds the per-session singletons: at most one HostManager and one
// Receiver per session, so independent consumers share one heartbeat stream
// instead of multiplying channels. It is an explicit object wired at startup;
// there is no process-wide static state, and tests build isolated registries.
type Registry struct {
	channels    *broadcast.Registry
	clock       clockwork.Clock
	monitorCfg  MonitorConfig
	receiverCfg ReceiverConfig
	logger      *slog.Logger

	mu        sync.Mutex
	hosts     map[string]*HostManager
	receivers map[string]*Receiver
}

func NewRegistry(channels *broadcast.Registry, clock clockwork.Clock, monitorCfg MonitorConfig, receiverCfg ReceiverConfig, logger *slog.Logger) *Registry {
	return &Registry{
		channels:    channels,
		clock:       clock,
		monitorCfg:  monitorCfg,
		receiverCfg: receiverCfg,
		logger:      logger,
		hosts:       make(map[string]*HostManager),
		receivers:   make(map[string]*Receiver),
	}
}

// HostFor returns the session's host manager, creating it on first request.
func (r *Registry) HostFor(sessionId string) *HostManager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hosts[sessionId]; ok {
		return h
	}

	h := NewHostManager(sessionId, r.channels, r.clock, r.monitorCfg, r.logger)
	r.hosts[sessionId] = h

	return h
}

// ReceiverFor binds a fresh receiver for the session to the given element and
// hooks. A newly opened display window supersedes any earlier one: the old
// receiver is destroyed before the new one announces ready, so the host sees
// disconnect then ready in that order.
func (r *Registry) ReceiverFor(sessionId string, el video.MediaElement, hooks ReceiverHooks) *Receiver {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.receivers[sessionId]; ok {
		delete(r.receivers, sessionId)
		old.Destroy()
	}

	recv := NewReceiver(sessionId, r.channels, el, r.clock, r.receiverCfg, hooks, r.logger)
	r.receivers[sessionId] = recv

	return recv
}

// ReleaseHost destroys and removes the session's host manager, if any.
func (r *Registry) ReleaseHost(sessionId string) {
	r.mu.Lock()
	h, ok := r.hosts[sessionId]
	delete(r.hosts, sessionId)
	r.mu.Unlock()

	if ok {
		h.Destroy()
	}
}

// ReleaseReceiver destroys and removes the session's receiver, if any.
func (r *Registry) ReleaseReceiver(sessionId string) {
	r.mu.Lock()
	recv, ok := r.receivers[sessionId]
	delete(r.receivers, sessionId)
	r.mu.Unlock()

	if ok {
		recv.Destroy()
	}
}

// ReleaseReceiverIf destroys and removes the session's receiver only when it
// is still the given one. A display whose receiver was already superseded
// must not tear down the successor.
func (r *Registry) ReleaseReceiverIf(sessionId string, recv *Receiver) {
	r.mu.Lock()
	current, ok := r.receivers[sessionId]
	if !ok || current != recv {
		r.mu.Unlock()
		return
	}
	delete(r.receivers, sessionId)
	r.mu.Unlock()

	recv.Destroy()
}

// Sessions lists the session ids with at least one live manager.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.hosts)+len(r.receivers))
	for id := range r.hosts {
		seen[id] = struct{}{}
	}
	for id := range r.receivers {
		seen[id] = struct{}{}
	}

	return maps.Keys(seen)
}

// Shutdown destroys every manager in the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	hosts := maps.Values(r.hosts)
	receivers := maps.Values(r.receivers)
	r.hosts = make(map[string]*HostManager)
	r.receivers = make(map[string]*Receiver)
	r.mu.Unlock()

	for _, recv := range receivers {
		recv.Destroy()
	}
	for _, h := range hosts {
		h.Destroy()
	}
}
