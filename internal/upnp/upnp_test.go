package upnp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const responseTemplate = `<?xml version="1.0"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body>` +
	`<u:%sResponse xmlns:u="urn:schemas-upnp-org:service:serviceType:v">%s</u:%sResponse>` +
	`</s:Body>` +
	`</s:Envelope>`

func soapResponse(action, argsXML string) []byte {
	return []byte(fmt.Sprintf(responseTemplate, action, argsXML, action))
}

func TestServiceTable(t *testing.T) {
	require.Equal(t, "urn:schemas-upnp-org:service:AVTransport:1", ServiceAVTransport.Type())
	require.Equal(t, "/MediaRenderer/AVTransport/Control", ServiceAVTransport.ControlPath())
	require.Equal(t, "urn:schemas-upnp-org:service:ZoneGroupTopology:1", ServiceZoneGroupTopology.Type())
	require.Equal(t, "/ZoneGroupTopology/Control", ServiceZoneGroupTopology.ControlPath())
	require.Empty(t, Service("Bogus").Type())
}

func TestBuildEnvelope(t *testing.T) {
	body := string(BuildEnvelope("urn:schemas-upnp-org:service:AVTransport:1", "Play", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "Speed", Value: "1"},
	}))

	require.Contains(t, body, `<u:Play xmlns:u="urn:schemas-upnp-org:service:AVTransport:1">`)
	require.Contains(t, body, "<InstanceID>0</InstanceID><Speed>1</Speed>")
	require.Contains(t, body, "</u:Play>")
	// Argument order must survive encoding.
	require.Less(t, strings.Index(body, "<InstanceID>"), strings.Index(body, "<Speed>"))
}

func TestBuildEnvelopeEscapesValues(t *testing.T) {
	body := string(BuildEnvelope("urn:x", "SetAVTransportURI", []Arg{
		{Name: "CurrentURIMetaData", Value: `<dc:title>Bob's & <Carol></dc:title>`},
	}))

	require.Contains(t, body, "&lt;dc:title&gt;")
	require.Contains(t, body, "&amp;")
	require.Contains(t, body, "&#39;")
	require.NotContains(t, body, "<dc:title>")
}

func TestParseResponseNoArguments(t *testing.T) {
	args, err := ParseResponse("Pause", soapResponse("Pause", ""))
	require.NoError(t, err)
	require.Empty(t, args)
	require.NotNil(t, args)
}

func TestParseResponseWithArguments(t *testing.T) {
	args, err := ParseResponse("Pause", soapResponse("Pause", "<arg1>value1</arg1><arg2>value2</arg2>"))
	require.NoError(t, err)
	require.Equal(t, Args{{Name: "arg1", Value: "value1"}, {Name: "arg2", Value: "value2"}}, args)
}

func TestParseResponseSinglePair(t *testing.T) {
	args, err := ParseResponse("SetRelativeVolume", soapResponse("SetRelativeVolume", "<NewVolume>42</NewVolume>"))
	require.NoError(t, err)
	require.Equal(t, Args{{Name: "NewVolume", Value: "42"}}, args)

	value, ok := args.Get("NewVolume")
	require.True(t, ok)
	require.Equal(t, "42", value)
}

func TestParseResponseEmptyElementValue(t *testing.T) {
	args, err := ParseResponse("GetPositionInfo", soapResponse("GetPositionInfo", "<Track>1</Track><AbsTime></AbsTime>"))
	require.NoError(t, err)
	require.Equal(t, Args{{Name: "Track", Value: "1"}, {Name: "AbsTime", Value: ""}}, args)
}

func TestParseResponseDuplicateNamesPreserved(t *testing.T) {
	args, err := ParseResponse("Browse", soapResponse("Browse", "<Item>a</Item><Item>b</Item>"))
	require.NoError(t, err)
	require.Equal(t, Args{{Name: "Item", Value: "a"}, {Name: "Item", Value: "b"}}, args)

	// Lookup by name takes the first match.
	value, ok := args.Get("Item")
	require.True(t, ok)
	require.Equal(t, "a", value)
}

func TestParseResponseMissingElement(t *testing.T) {
	_, err := ParseResponse("Play", soapResponse("Pause", ""))

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, "Play", respErr.Action)
}

func TestParseResponseFault(t *testing.T) {
	fault := []byte(`<?xml version="1.0"?>` +
		`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<s:Fault><faultcode>s:Client</faultcode><faultstring>UPnPError</faultstring>` +
		`<detail><UPnPError xmlns="urn:schemas-upnp-org:control-1-0">` +
		`<errorCode>701</errorCode><errorDescription>Transition not available</errorDescription>` +
		`</UPnPError></detail></s:Fault>` +
		`</s:Body></s:Envelope>`)

	_, err := ParseResponse("Play", fault)

	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	require.Equal(t, "701", faultErr.Code)
	require.Equal(t, "Transition not available", faultErr.Description)
}

// roundTripFunc stubs the HTTP exchange.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClientCall(t *testing.T) {
	var captured *http.Request
	var capturedBody string
	client := NewClientWithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		captured = r
		raw, _ := io.ReadAll(r.Body)
		capturedBody = string(raw)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(string(soapResponse("SetRelativeVolume", "<NewVolume>37</NewVolume>")))),
		}, nil
	}), time.Second)

	args, err := client.Call(context.Background(), "192.168.1.5", ServiceRenderingControl, "SetRelativeVolume", []Arg{
		{Name: "Channel", Value: "Master"},
		{Name: "InstanceID", Value: "0"},
		{Name: "Adjustment", Value: "5"},
	})
	require.NoError(t, err)

	value, ok := args.Get("NewVolume")
	require.True(t, ok)
	require.Equal(t, "37", value)

	require.Equal(t, http.MethodPost, captured.Method)
	require.Equal(t, "http://192.168.1.5:1400/MediaRenderer/RenderingControl/Control", captured.URL.String())
	require.Equal(t, `"urn:schemas-upnp-org:service:RenderingControl:1#SetRelativeVolume"`, captured.Header.Get("SOAPACTION"))
	require.Contains(t, capturedBody, "<Adjustment>5</Adjustment>")
}

func TestClientCallFaultStatus(t *testing.T) {
	client := NewClientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		fault := `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault>` +
			`<detail><UPnPError><errorCode>402</errorCode></UPnPError></detail>` +
			`</s:Fault></s:Body></s:Envelope>`
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader(fault)),
		}, nil
	}), time.Second)

	_, err := client.Call(context.Background(), "192.168.1.5", ServiceAVTransport, "Play", nil)

	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	require.Equal(t, "402", faultErr.Code)
}

func TestClientCallErrorStatusWithoutFaultBody(t *testing.T) {
	client := NewClientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       io.NopCloser(strings.NewReader("busy")),
		}, nil
	}), time.Second)

	_, err := client.Call(context.Background(), "192.168.1.5", ServiceAVTransport, "Play", nil)

	// Still a device rejection, even when the body carries no fault shape.
	var faultErr *FaultError
	require.ErrorAs(t, err, &faultErr)
	require.Empty(t, faultErr.Code)
	require.Contains(t, faultErr.Description, "http 503")
}

func TestClientCallUnreachable(t *testing.T) {
	client := NewClientWithTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	}), time.Second)

	_, err := client.Call(context.Background(), "192.168.1.99", ServiceAVTransport, "Play", nil)

	var unreachable *UnreachableError
	require.ErrorAs(t, err, &unreachable)
}

func TestClientCallUnknownService(t *testing.T) {
	client := NewClient(time.Second)
	_, err := client.Call(context.Background(), "192.168.1.5", Service("Nope"), "Play", nil)
	require.Error(t, err)
}
