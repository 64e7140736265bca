package upnp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client issues SOAP commands against Sonos control endpoints.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a SOAP client with the given per-request timeout.
// Connections are pooled; control sessions hit the same few devices
// repeatedly.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewClientWithTransport creates a client over a caller-supplied
// round tripper. Tests use this to stub the HTTP exchange.
func NewClientWithTransport(rt http.RoundTripper, timeout time.Duration) *Client {
	return &Client{
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout, Transport: rt},
	}
}

// Call sends one SOAP action to the device at ip and returns the ordered
// argument list from its response. A SOAP fault comes back as
// *FaultError; transport failures as *TimeoutError or *UnreachableError.
func (c *Client) Call(ctx context.Context, ip string, service Service, action string, args []Arg) (Args, error) {
	serviceType := service.Type()
	controlPath := service.ControlPath()
	if serviceType == "" || controlPath == "" {
		return nil, fmt.Errorf("unknown service: %s", service)
	}

	body := BuildEnvelope(serviceType, action, args)
	url := fmt.Sprintf("http://%s:1400%s", ip, controlPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "text/xml; charset=\"utf-8\"")
	req.Header.Set("SOAPACTION", fmt.Sprintf("\"%s#%s\"", serviceType, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Action: action}
		}
		return nil, &UnreachableError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UnreachableError{Action: action, Err: err}
	}

	if resp.StatusCode >= 400 {
		code, desc := ParseFault(payload)
		if code == "" && desc == "" {
			// The device rejected the action without a parseable fault
			// body; the status line is all it said.
			desc = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return nil, &FaultError{Action: action, Code: code, Description: desc}
	}

	return ParseResponse(action, payload)
}
