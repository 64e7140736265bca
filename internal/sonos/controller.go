// Package sonos exposes control of a single Sonos group through its
// coordinator device.
package sonos

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stephencmorton/feather-sonos/internal/topology"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

// didlTemplate is the minimal metadata a radio stream needs to play when
// only a title is supplied. The %s slots are the escaped title and the
// content service descriptor.
const didlTemplate = `<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" ` +
	`xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" ` +
	`xmlns:r="urn:schemas-rinconnetworks-com:metadata-1-0/" ` +
	`xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">` +
	`<item id="R:0/0/0" parentID="R:0/0" restricted="true">` +
	`<dc:title>%s</dc:title><upnp:class>object.item.audioItem.audioBroadcast</upnp:class>` +
	`<desc id="cdudn" nameSpace="urn:schemas-rinconnetworks-com:metadata-1-0/">%s</desc>` +
	`</item></DIDL-Lite>`

const tuneinService = "SA_RINCON65031_"

// Controller drives one zone group through its coordinator. Peer devices
// are attached exactly once at construction and the set is read-only
// afterwards; group membership changes require a fresh topology snapshot
// and new controllers, never mutation of an existing one.
type Controller struct {
	device topology.Device
	peers  []topology.Device
	client *upnp.Client
}

// NewController wraps the coordinator device of a group. peers holds the
// other members, not including the coordinator itself.
func NewController(client *upnp.Client, device topology.Device, peers []topology.Device) *Controller {
	return &Controller{
		device: device,
		peers:  append([]topology.Device(nil), peers...),
		client: client,
	}
}

func (c *Controller) UUID() string { return c.device.UUID }
func (c *Controller) IP() string   { return c.device.IP }
func (c *Controller) Name() string { return c.device.Name }

// Device returns the coordinator device record.
func (c *Controller) Device() topology.Device { return c.device }

// Peers returns the other members of the group. The returned slice is a
// copy; the controller's own set never changes.
func (c *Controller) Peers() []topology.Device {
	return append([]topology.Device(nil), c.peers...)
}

func (c *Controller) String() string {
	names := make([]string, 0, len(c.peers))
	for _, p := range c.peers {
		names = append(names, p.Name)
	}
	return fmt.Sprintf("<Controller uuid=%s ip=%s name=%q peers=%v>", c.device.UUID, c.device.IP, c.device.Name, names)
}

// transport issues an AVTransport action with the standard instance and
// speed arguments. Play, Pause and Next differ only in the action name.
func (c *Controller) transport(ctx context.Context, action string) error {
	_, err := c.client.Call(ctx, c.device.IP, upnp.ServiceAVTransport, action, []upnp.Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Speed", Value: "1"},
	})
	return err
}

func (c *Controller) Play(ctx context.Context) error  { return c.transport(ctx, "Play") }
func (c *Controller) Pause(ctx context.Context) error { return c.transport(ctx, "Pause") }
func (c *Controller) Next(ctx context.Context) error  { return c.transport(ctx, "Next") }

// PlayURIOptions adjusts PlayURI behavior.
type PlayURIOptions struct {
	// Meta is the DIDL metadata to show in the player. When empty and
	// Title is set, minimal broadcast metadata is generated.
	Meta string
	// Title is the display title used when Meta is empty. Radio streams
	// need at least a title to play.
	Title string
	// Start begins playback after the URI is set.
	Start bool
	// ForceRadio rewrites the URI scheme to x-rincon-mp3radio, forcing
	// radio-style display and controls. Devices no longer accept plain
	// http/https URIs for radio stations.
	ForceRadio bool
}

// PlayURI replaces whatever is playing with the stream at uri.
func (c *Controller) PlayURI(ctx context.Context, uri string, opts PlayURIOptions) error {
	meta := opts.Meta
	if meta == "" && opts.Title != "" {
		meta = fmt.Sprintf(didlTemplate, upnp.EscapeXML(opts.Title), tuneinService)
	}

	if opts.ForceRadio {
		if colon := strings.IndexByte(uri, ':'); colon > 0 {
			uri = "x-rincon-mp3radio" + uri[colon:]
		}
	}

	_, err := c.client.Call(ctx, c.device.IP, upnp.ServiceAVTransport, "SetAVTransportURI", []upnp.Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "CurrentURI", Value: uri},
		{Name: "CurrentURIMetaData", Value: meta},
	})
	if err != nil {
		return err
	}
	if opts.Start {
		return c.Play(ctx)
	}
	return nil
}

// VolUp raises the group volume by increment and returns the new volume
// (0-100).
func (c *Controller) VolUp(ctx context.Context, increment int) (int, error) {
	args, err := c.client.Call(ctx, c.device.IP, upnp.ServiceRenderingControl, "SetRelativeVolume", []upnp.Arg{
		{Name: "Channel", Value: "Master"},
		{Name: "InstanceID", Value: "0"},
		{Name: "Adjustment", Value: strconv.Itoa(increment)},
	})
	if err != nil {
		return 0, err
	}
	raw, ok := args.Get("NewVolume")
	if !ok {
		return 0, fmt.Errorf("SetRelativeVolume response has no NewVolume")
	}
	volume, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("SetRelativeVolume returned NewVolume %q: %w", raw, err)
	}
	return volume, nil
}

// VolDown lowers the group volume by increment and returns the new
// volume.
func (c *Controller) VolDown(ctx context.Context, increment int) (int, error) {
	return c.VolUp(ctx, -increment)
}

// CurrentTrackInfo reports what the group is playing now, or nil when
// nothing is.
func (c *Controller) CurrentTrackInfo(ctx context.Context) (*TrackInfo, error) {
	args, err := c.client.Call(ctx, c.device.IP, upnp.ServiceAVTransport, "GetPositionInfo", []upnp.Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Channel", Value: "Master"},
	})
	if err != nil {
		return nil, err
	}

	meta, ok := args.Get("TrackMetaData")
	if !ok || meta == "" || meta == "NOT_IMPLEMENTED" {
		// Nothing playing.
		return nil, nil
	}

	total, _ := args.Get("TrackDuration")
	current, _ := args.Get("RelTime")
	info, err := ParseTrackInfo(meta, total, current)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
