package upnp

import "fmt"

// FaultError represents a UPnP/SOAP fault returned by a device.
type FaultError struct {
	Action      string
	Code        string
	Description string
}

func (e *FaultError) Error() string {
	switch {
	case e.Code == "":
		return fmt.Sprintf("upnp action %s rejected: %s", e.Action, e.Description)
	case e.Description == "":
		return fmt.Sprintf("upnp action %s rejected: code %s", e.Action, e.Code)
	}
	return fmt.Sprintf("upnp action %s rejected: code %s (%s)", e.Action, e.Code, e.Description)
}

// TimeoutError indicates a request timed out.
type TimeoutError struct {
	Action string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upnp action %s timed out", e.Action)
}

// UnreachableError indicates the device could not be reached.
type UnreachableError struct {
	Action string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("upnp action %s unreachable: %v", e.Action, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// ResponseError indicates the response body did not contain the expected
// action response element.
type ResponseError struct {
	Action string
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("upnp action %s: bad response: %s", e.Action, e.Reason)
}
