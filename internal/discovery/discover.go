package discovery

import (
	"context"
	"time"

	"github.com/stephencmorton/feather-sonos/internal/sonos"
	"github.com/stephencmorton/feather-sonos/internal/topology"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

// Discover finds Sonos devices and returns one controller per zone
// group. One device is located via SSDP, its zone group topology is
// queried once, and each group's coordinator becomes a controller with
// the remaining members attached as peers.
//
// The result is a fresh snapshot; nothing is cached. Re-run Discover to
// observe membership changes.
func Discover(ctx context.Context, client *upnp.Client, timeout time.Duration) ([]*sonos.Controller, error) {
	ip, err := DiscoverIP(ctx, timeout)
	if err != nil {
		return nil, err
	}

	groups, err := topology.Query(ctx, client, ip)
	if err != nil {
		return nil, err
	}

	return Controllers(client, groups), nil
}

// Controllers builds one controller per group from a topology snapshot.
func Controllers(client *upnp.Client, groups []topology.Group) []*sonos.Controller {
	controllers := make([]*sonos.Controller, 0, len(groups))
	for _, group := range groups {
		peers := make([]topology.Device, 0, len(group.Members)-1)
		for uuid, device := range group.Members {
			if uuid != group.Coordinator {
				peers = append(peers, device)
			}
		}
		controllers = append(controllers, sonos.NewController(client, group.CoordinatorDevice(), peers))
	}
	return controllers
}
