// Package discovery finds Sonos devices on the local network and builds
// one controller per active zone group.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	ssdpAddr   = "239.255.255.250:1900"
	ssdpTarget = "urn:schemas-upnp-org:device:ZonePlayer:1"

	// sonosMarker is the vendor substring that qualifies an SSDP
	// response as coming from a Sonos device. No structured parsing of
	// the response headers is done.
	sonosMarker = "Sonos"

	// pollInterval bounds each blocking read so the wall-clock deadline
	// and context are re-checked regularly.
	pollInterval = 100 * time.Millisecond
)

// DefaultTimeout is the discovery deadline used when the caller does not
// supply one.
const DefaultTimeout = 2 * time.Second

// TimeoutError indicates no Sonos device responded within the deadline.
// Callers may retry with a longer timeout.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no Sonos device found within %s", e.Timeout)
}

// DiscoverIP finds the IP of a single Sonos device via SSDP M-SEARCH.
// The search request is sent three times to defend against lossy UDP
// delivery; responses are then polled until start+timeout. The first
// response containing the vendor marker wins; everything else is
// ignored.
func DiscoverIP(ctx context.Context, timeout time.Duration) (string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return "", err
	}

	search := strings.Join([]string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + ssdpAddr,
		"MAN: \"ssdp:discover\"",
		"MX: 1",
		"ST: " + ssdpTarget,
		"",
		"",
	}, "\r\n")

	for i := 0; i < 3; i++ {
		if _, err := conn.WriteTo([]byte(search), addr); err != nil {
			return "", err
		}
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 2048)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		now := time.Now()
		if !now.Before(deadline) {
			return "", &TimeoutError{Timeout: timeout}
		}

		step := deadline
		if remaining := deadline.Sub(now); remaining > pollInterval {
			step = now.Add(pollInterval)
		}
		if err := conn.SetReadDeadline(step); err != nil {
			return "", err
		}

		n, raddr, err := conn.ReadFrom(buf)
		if err != nil {
			// No datagram yet is a normal, retryable condition.
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return "", err
		}
		if !strings.Contains(string(buf[:n]), sonosMarker) {
			continue
		}

		host, _, err := net.SplitHostPort(raddr.String())
		if err != nil {
			return raddr.String(), nil
		}
		return host, nil
	}
}
