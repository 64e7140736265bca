// Package topology reconstructs the Sonos zone group layout from the
// ZoneGroupState payload, an XML document serialized as text inside the
// GetZoneGroupState SOAP response.
package topology

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/stephencmorton/feather-sonos/internal/upnp"
	"github.com/stephencmorton/feather-sonos/internal/xmltok"
)

// Device is one Sonos unit. Immutable after construction.
type Device struct {
	UUID string `json:"uuid"`
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// Group is one active zone group: a coordinator plus all members keyed by
// UUID. The coordinator is always present in Members.
type Group struct {
	Coordinator string            `json:"coordinator"`
	Members     map[string]Device `json:"members"`
}

// CoordinatorDevice returns the member record for the group coordinator.
func (g Group) CoordinatorDevice() Device {
	return g.Members[g.Coordinator]
}

// MalformedError reports a ZoneGroupState payload whose token stream did
// not match the expected shape. Retrying the same input cannot succeed.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed zone group topology: " + e.Reason
}

func malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

const locationScheme = "http://"

// locationToIP extracts the host from a ZoneGroupMember Location
// attribute. Locations are always of the fixed shape http://ip:port/...,
// so a prefix check and a colon scan suffice; this is not URL parsing.
func locationToIP(location string) (string, error) {
	if !strings.HasPrefix(location, locationScheme) {
		return "", malformed("location %q does not start with %s", location, locationScheme)
	}
	rest := location[len(locationScheme):]
	portIdx := strings.IndexByte(rest, ':')
	if portIdx < 0 {
		return "", malformed("location %q has no port separator", location)
	}
	return rest[:portIdx], nil
}

// Parse reconstructs the group list from a serialized ZoneGroupState
// document in a single pass over the token stream. No document tree is
// built; the scan keeps only the group currently being assembled.
func Parse(zoneXML string) ([]Group, error) {
	return scan(xmltok.NewStringScanner(zoneXML))
}

func scan(tokens xmltok.Scanner) ([]Group, error) {
	var groups []Group
	for {
		// Seek the next <ZoneGroup>. Exhaustion here is the normal end of
		// the document, not an error.
		found, err := seekGroupStart(tokens)
		if err != nil {
			return nil, err
		}
		if !found {
			return groups, nil
		}

		group, err := scanGroup(tokens)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
}

func seekGroupStart(tokens xmltok.Scanner) (bool, error) {
	for {
		tok, err := tokens.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, malformed("tokenizer: %v", err)
		}
		if tok.Kind == xmltok.StartTag && tok.Name.Local == "ZoneGroup" {
			return true, nil
		}
	}
}

// scanGroup consumes tokens from just after a <ZoneGroup> start tag
// through its matching end tag.
func scanGroup(tokens xmltok.Scanner) (Group, error) {
	coordinator, err := seekCoordinatorAttr(tokens)
	if err != nil {
		return Group{}, err
	}

	members := make(map[string]Device)
	for {
		tok, err := tokens.Next()
		if err == io.EOF {
			return Group{}, malformed("stream ended inside ZoneGroup %s", coordinator)
		}
		if err != nil {
			return Group{}, malformed("tokenizer: %v", err)
		}

		switch {
		case tok.Kind == xmltok.EndTag && tok.Name.Local == "ZoneGroup":
			if _, ok := members[coordinator]; !ok {
				return Group{}, malformed("coordinator %s is not a member of its own group", coordinator)
			}
			return Group{Coordinator: coordinator, Members: members}, nil
		case tok.Kind == xmltok.StartTag && tok.Name.Local == "ZoneGroupMember":
			// Self-closing element: there may be no end tag, so the member
			// is complete once its three required attributes have been
			// seen. A following member start or the group end tag bounds
			// the scan and fails it fast.
			device, err := scanMember(tokens)
			if err != nil {
				return Group{}, err
			}
			members[device.UUID] = device
		}
	}
}

// seekCoordinatorAttr finds the Coordinator attribute of the group start
// tag just consumed. The scan is bounded: hitting the group's end tag or
// stream end first means the attribute is missing.
func seekCoordinatorAttr(tokens xmltok.Scanner) (string, error) {
	for {
		tok, err := tokens.Next()
		if err == io.EOF {
			return "", malformed("stream ended before Coordinator attribute")
		}
		if err != nil {
			return "", malformed("tokenizer: %v", err)
		}
		switch {
		case tok.Kind == xmltok.Attr && tok.Name.Local == "Coordinator":
			return tok.Value, nil
		case tok.Kind == xmltok.EndTag && tok.Name.Local == "ZoneGroup":
			return "", malformed("ZoneGroup has no Coordinator attribute")
		case tok.Kind == xmltok.StartTag && tok.Name.Local == "ZoneGroupMember":
			return "", malformed("ZoneGroup has no Coordinator attribute")
		}
	}
}

// scanMember collects the UUID, ZoneName and Location attributes of one
// ZoneGroupMember, in whatever order they appear. The element is
// self-closing, so the member counts as done once all three required
// attributes have been seen; the scan is bounded by the next member
// start, the member or group end tag, and stream end, each of which
// fails fast instead of scanning on.
func scanMember(tokens xmltok.Scanner) (Device, error) {
	var device Device
	for {
		if device.UUID != "" && device.Name != "" && device.IP != "" {
			return device, nil
		}
		tok, err := tokens.Next()
		if err == io.EOF {
			return Device{}, malformed("stream ended inside ZoneGroupMember %q", device.UUID)
		}
		if err != nil {
			return Device{}, malformed("tokenizer: %v", err)
		}
		switch tok.Kind {
		case xmltok.Attr:
			switch tok.Name.Local {
			case "UUID":
				device.UUID = tok.Value
			case "ZoneName":
				device.Name = tok.Value
			case "Location":
				ip, err := locationToIP(tok.Value)
				if err != nil {
					return Device{}, err
				}
				device.IP = ip
			}
		case xmltok.StartTag:
			if tok.Name.Local == "ZoneGroupMember" {
				return Device{}, malformed("ZoneGroupMember %q missing required attributes", device.UUID)
			}
		case xmltok.EndTag:
			// No attribute can follow the element's own closing token,
			// and the group end means the member never completed.
			if tok.Name.Local == "ZoneGroup" || tok.Name.Local == "ZoneGroupMember" {
				return Device{}, malformed("ZoneGroupMember %q missing required attributes", device.UUID)
			}
		}
	}
}

// Query fetches the current zone group topology from the device at ip.
// The interesting payload is XML serialized as a string inside the SOAP
// response, so the response argument value is parsed a second time.
func Query(ctx context.Context, client *upnp.Client, ip string) ([]Group, error) {
	args, err := client.Call(ctx, ip, upnp.ServiceZoneGroupTopology, "GetZoneGroupState", nil)
	if err != nil {
		return nil, err
	}
	zoneXML, ok := args.Get("ZoneGroupState")
	if !ok {
		return nil, malformed("response has no ZoneGroupState argument")
	}
	return Parse(zoneXML)
}
