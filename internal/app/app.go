// Package app is the surface the UI shell consumes. It owns the role switch:
// a master executes against its own store, a client rewrites every call into
// an HTTP round trip against the master. The UI never sees the difference
// beyond latency and error text.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/floorsync/floorsync/internal/config"
	"github.com/floorsync/floorsync/internal/event"
	"github.com/floorsync/floorsync/internal/job"
	"github.com/floorsync/floorsync/internal/liveness"
	"github.com/floorsync/floorsync/internal/settings"
	"github.com/floorsync/floorsync/internal/store"
	"github.com/floorsync/floorsync/internal/sync"
)

// ErrNoMaster is returned by data operations on a client with no configured
// master address.
var ErrNoMaster = errors.New("master address not set (settings > server address)")

// PingResult reports reachability of the data source.
type PingResult struct {
	OK     bool         `json:"ok"`
	Time   time.Time    `json:"ts"`
	Role   string       `json:"role"`
	Health *sync.Health `json:"health,omitempty"`
}

// ClientInfo is the peer table snapshot for the UI.
type ClientInfo struct {
	Count   int               `json:"count"`
	Clients []liveness.Client `json:"clients"`
}

// App wires the role, stores and notification bus together.
type App struct {
	cfg      *config.Config
	store    *store.Store
	settings *settings.Store
	tracker  *liveness.Tracker
	bus      *event.Bus
	logger   *slog.Logger
}

// New builds the facade. store and tracker may be nil on a client node.
func New(cfg *config.Config, s *store.Store, set *settings.Store, tracker *liveness.Tracker, bus *event.Bus, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, store: s, settings: set, tracker: tracker, bus: bus, logger: logger}
}

// isClient reports whether calls go over the LAN.
func (a *App) isClient() bool {
	return a.cfg.Role == config.RoleClient
}

// masterAddr resolves the master address: explicit config wins, settings
// otherwise. Read per call so a settings change applies immediately.
func (a *App) masterAddr() string {
	if a.cfg.MasterAddr != "" {
		return a.cfg.MasterAddr
	}
	return strings.TrimSpace(a.settings.Get().ServerAddr)
}

// remote returns a proxy client for the current master address.
func (a *App) remote() (*sync.Client, error) {
	addr := a.masterAddr()
	if addr == "" {
		return nil, ErrNoMaster
	}
	return sync.New(addr, a.settings.LANKey), nil
}

// Ping reports whether the data source answers: locally trivial on a master,
// a /health probe on a client.
func (a *App) Ping(ctx context.Context) (*PingResult, error) {
	now := time.Now().UTC()
	if !a.isClient() {
		return &PingResult{OK: true, Time: now, Role: config.RoleMaster}, nil
	}
	c, err := a.remote()
	if err != nil {
		return nil, err
	}
	h, err := c.Ping(ctx)
	if err != nil {
		return nil, err
	}
	return &PingResult{OK: h.OK, Time: now, Role: config.RoleClient, Health: h}, nil
}

// GetJobs returns the post-archival job list, local or proxied.
func (a *App) GetJobs(ctx context.Context) ([]*job.Job, error) {
	if a.isClient() {
		c, err := a.remote()
		if err != nil {
			return nil, err
		}
		return c.GetJobs(ctx)
	}
	return a.store.List()
}

// AddJob creates a job and notifies the UI.
func (a *App) AddJob(ctx context.Context, j *job.Job) (*job.Job, error) {
	if a.isClient() {
		c, err := a.remote()
		if err != nil {
			return nil, err
		}
		return c.AddJob(ctx, j)
	}
	stored, err := a.store.Add(j)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "local", Action: event.ActionAdd, ID: stored.ID})
	return stored, nil
}

// UpdateJob patches a job and notifies the UI.
func (a *App) UpdateJob(ctx context.Context, id string, p *job.Patch) (*job.Job, error) {
	if a.isClient() {
		c, err := a.remote()
		if err != nil {
			return nil, err
		}
		return c.UpdateJob(ctx, id, p)
	}
	updated, err := a.store.Update(id, p)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "local", Action: event.ActionUpdate, ID: id})
	return updated, nil
}

// DeleteJob removes a job and notifies the UI.
func (a *App) DeleteJob(ctx context.Context, id string) (string, error) {
	if a.isClient() {
		c, err := a.remote()
		if err != nil {
			return "", err
		}
		return c.DeleteJob(ctx, id)
	}
	if err := a.store.Delete(id); err != nil {
		return "", err
	}
	a.bus.Publish(event.Event{Name: event.JobsUpdated, Source: "local", Action: event.ActionDelete, ID: id})
	return id, nil
}

// GetSettings returns the persisted settings document.
func (a *App) GetSettings() settings.Settings {
	return a.settings.Get()
}

// SaveSettings merges patch into the settings document.
func (a *App) SaveSettings(patch settings.Patch) (settings.Settings, error) {
	return a.settings.Save(patch)
}

// GetClientInfo returns the peer table. Only a master tracks peers; a client
// reports an empty table, as the original did.
func (a *App) GetClientInfo() ClientInfo {
	if a.tracker == nil {
		return ClientInfo{Clients: []liveness.Client{}}
	}
	clients := a.tracker.Snapshot()
	return ClientInfo{Count: len(clients), Clients: clients}
}

// Subscribe hands out a channel of change notifications for the UI.
func (a *App) Subscribe() chan event.Event {
	return a.bus.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (a *App) Unsubscribe(ch chan event.Event) {
	a.bus.Unsubscribe(ch)
}
