// Package hub owns the daemon's view of the Sonos network: it runs
// discovery scans, persists what it finds, and hands out immutable
// topology snapshots.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stephencmorton/feather-sonos/internal/discovery"
	"github.com/stephencmorton/feather-sonos/internal/registry"
	"github.com/stephencmorton/feather-sonos/internal/sonos"
	"github.com/stephencmorton/feather-sonos/internal/topology"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

// Snapshot is one immutable view of the zone group topology. Membership
// changes are observed by taking a new snapshot and swapping it in; a
// published snapshot's groups are never mutated.
type Snapshot struct {
	ScanID  string           `json:"scan_id"`
	TakenAt time.Time        `json:"taken_at"`
	Groups  []topology.Group `json:"groups"`
}

// Hub coordinates scans and serves the latest snapshot.
type Hub struct {
	client           *upnp.Client
	store            *registry.Store
	discoveryTimeout time.Duration
	staticIPs        []string

	mu       sync.RWMutex
	snapshot *Snapshot

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// New creates a hub. store may be nil, in which case scans are not
// persisted.
func New(client *upnp.Client, store *registry.Store, discoveryTimeout time.Duration, staticIPs []string) *Hub {
	return &Hub{
		client:           client,
		store:            store,
		discoveryTimeout: discoveryTimeout,
		staticIPs:        staticIPs,
		subs:             make(map[chan Snapshot]struct{}),
	}
}

// Snapshot returns the latest topology snapshot, or nil before the first
// successful scan.
func (h *Hub) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// Controller returns a fresh controller for the group coordinated by
// uuid, based on the latest snapshot.
func (h *Hub) Controller(uuid string) (*sonos.Controller, error) {
	snap := h.Snapshot()
	if snap == nil {
		return nil, fmt.Errorf("no topology snapshot yet: %w", registry.ErrNotFound)
	}
	for _, group := range snap.Groups {
		if group.Coordinator == uuid {
			peers := make([]topology.Device, 0, len(group.Members)-1)
			for memberUUID, device := range group.Members {
				if memberUUID != uuid {
					peers = append(peers, device)
				}
			}
			return sonos.NewController(h.client, group.CoordinatorDevice(), peers), nil
		}
	}
	return nil, fmt.Errorf("group %s: %w", uuid, registry.ErrNotFound)
}

// Rescan performs one discovery pass: find a device, query topology,
// refresh the registry, swap the snapshot and notify subscribers.
func (h *Hub) Rescan(ctx context.Context) (Snapshot, error) {
	started := time.Now()

	groups, err := h.queryTopology(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	deviceCount := 0
	for _, group := range groups {
		deviceCount += len(group.Members)
	}

	snap := Snapshot{TakenAt: started, Groups: groups}
	if h.store != nil {
		if err := h.persist(ctx, groups); err != nil {
			log.Warn().Err(err).Msg("persisting scan results")
		}
		scan, err := h.store.RecordScan(started, time.Now(), deviceCount, len(groups))
		if err != nil {
			log.Warn().Err(err).Msg("recording scan")
		} else {
			snap.ScanID = scan.ID
		}
	}

	h.mu.Lock()
	h.snapshot = &snap
	h.mu.Unlock()

	h.broadcast(snap)

	log.Info().
		Str("scan_id", snap.ScanID).
		Int("groups", len(groups)).
		Int("devices", deviceCount).
		Dur("took", time.Since(started)).
		Msg("topology scan complete")
	return snap, nil
}

// queryTopology finds a reachable device and asks it for the zone group
// state. SSDP is tried first; configured static IPs are the fallback.
func (h *Hub) queryTopology(ctx context.Context) ([]topology.Group, error) {
	ip, err := discovery.DiscoverIP(ctx, h.discoveryTimeout)
	if err == nil {
		return topology.Query(ctx, h.client, ip)
	}
	if len(h.staticIPs) == 0 {
		return nil, err
	}

	log.Debug().Err(err).Msg("ssdp discovery failed, probing static ips")
	for _, staticIP := range h.staticIPs {
		groups, probeErr := topology.Query(ctx, h.client, staticIP)
		if probeErr == nil {
			return groups, nil
		}
		log.Debug().Err(probeErr).Str("ip", staticIP).Msg("static ip probe failed")
	}
	return nil, err
}

// persist refreshes registry rows for every member seen this scan. The
// device description probe is best-effort enrichment.
func (h *Hub) persist(ctx context.Context, groups []topology.Group) error {
	var firstErr error
	for _, group := range groups {
		for _, device := range group.Members {
			rec := registry.Record{
				UUID:            device.UUID,
				IP:              device.IP,
				Name:            device.Name,
				CoordinatorUUID: group.Coordinator,
			}
			if desc, err := discovery.Describe(ctx, device.IP); err == nil {
				rec.ModelName = desc.ModelName
				rec.ModelNumber = desc.ModelNumber
				rec.SerialNumber = desc.SerialNumber
				rec.SoftwareVersion = desc.SoftwareVersion
			}
			if err := h.store.UpsertDevice(rec); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Subscribe registers for snapshot notifications. The returned cancel
// function must be called to release the subscription. Slow subscribers
// miss snapshots rather than blocking a scan.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 4)
	h.subMu.Lock()
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()

	cancel := func() {
		h.subMu.Lock()
		delete(h.subs, ch)
		h.subMu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) broadcast(snap Snapshot) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
