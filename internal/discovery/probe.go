package discovery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/stephencmorton/feather-sonos/internal/xmltok"
)

// probeClient has tight timeouts so sweeps over unreachable devices do
// not hang.
var probeClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
		TLSHandshakeTimeout: 3 * time.Second,
		IdleConnTimeout:     30 * time.Second,
	},
}

// Description is the subset of a device's description document the
// registry records.
type Description struct {
	UDN             string
	ModelName       string
	ModelNumber     string
	SerialNumber    string
	SoftwareVersion string
	RoomName        string
}

// Describe fetches and parses the device description document for the
// device at ip.
func Describe(ctx context.Context, ip string) (*Description, error) {
	url := "http://" + ip + ":1400/xml/device_description.xml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := probeClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("device description probe for %s: http %d", ip, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return ParseDescription(string(body)), nil
}

// ParseDescription scans a device description document for the fields
// the registry keeps. Missing elements leave their fields empty.
func ParseDescription(xmlPayload string) *Description {
	var desc Description

	tokens := xmltok.NewStringScanner(xmlPayload)
	var field string
	for {
		tok, err := tokens.Next()
		if err != nil {
			break
		}
		switch tok.Kind {
		case xmltok.StartTag:
			field = tok.Name.Local
		case xmltok.Text:
			value := strings.TrimSpace(tok.Value)
			switch field {
			case "roomName":
				if desc.RoomName == "" {
					desc.RoomName = value
				}
			case "modelName":
				desc.ModelName = value
			case "modelNumber":
				desc.ModelNumber = value
			case "serialNum":
				desc.SerialNumber = value
			case "softwareVersion":
				desc.SoftwareVersion = value
			case "UDN":
				// The document carries several UDNs (root device, media
				// server, media renderer); only the root one matters.
				if desc.UDN == "" {
					desc.UDN = strings.TrimPrefix(value, "uuid:")
				}
			}
		case xmltok.EndTag:
			field = ""
		}
	}

	return &desc
}
