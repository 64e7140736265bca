package upnp

import "fmt"

// Service identifies a Sonos UPnP service.
type Service string

const (
	ServiceAVTransport       Service = "AVTransport"
	ServiceRenderingControl  Service = "RenderingControl"
	ServiceContentDirectory  Service = "ContentDirectory"
	ServiceZoneGroupTopology Service = "ZoneGroupTopology"
	ServiceDeviceProperties  Service = "DeviceProperties"
)

// serviceSpec pins the version and control path used for each service so
// call sites never have to repeat them.
type serviceSpec struct {
	Version int
	Path    string
}

var services = map[Service]serviceSpec{
	ServiceAVTransport:       {1, "/MediaRenderer/AVTransport/Control"},
	ServiceRenderingControl:  {1, "/MediaRenderer/RenderingControl/Control"},
	ServiceContentDirectory:  {1, "/MediaServer/ContentDirectory/Control"},
	ServiceZoneGroupTopology: {1, "/ZoneGroupTopology/Control"},
	ServiceDeviceProperties:  {1, "/DeviceProperties/Control"},
}

// Type returns the action namespace URN for the service.
func (s Service) Type() string {
	spec, ok := services[s]
	if !ok {
		return ""
	}
	return fmt.Sprintf("urn:schemas-upnp-org:service:%s:%d", string(s), spec.Version)
}

// ControlPath returns the HTTP path of the service's control endpoint.
func (s Service) ControlPath() string {
	return services[s].Path
}

// Arg is one named SOAP argument. Order matters on the wire, so argument
// lists are slices rather than maps.
type Arg struct {
	Name  string
	Value string
}

// Args is an ordered argument list as returned by a device. Some
// responses repeat names, so it only behaves like a mapping when names
// happen to be unique.
type Args []Arg

// Get returns the value of the first argument with the given name.
func (a Args) Get(name string) (string, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return "", false
}
