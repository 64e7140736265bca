// Package apperrors maps internal failures onto the JSON error envelope
// the HTTP API returns. The code tells callers which phase failed:
// discovery, topology parsing, command transport, or the device itself.
package apperrors

import (
	"errors"
	"net/http"

	"github.com/stephencmorton/feather-sonos/internal/discovery"
	"github.com/stephencmorton/feather-sonos/internal/registry"
	"github.com/stephencmorton/feather-sonos/internal/sonos"
	"github.com/stephencmorton/feather-sonos/internal/topology"
	"github.com/stephencmorton/feather-sonos/internal/upnp"
)

type ErrorCode string

const (
	ErrorCodeInternalError     ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError   ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrorCodeDiscoveryTimeout  ErrorCode = "DISCOVERY_TIMEOUT"
	ErrorCodeDeviceTimeout     ErrorCode = "DEVICE_TIMEOUT"
	ErrorCodeDeviceUnreachable ErrorCode = "DEVICE_UNREACHABLE"
	ErrorCodeDeviceRejected    ErrorCode = "DEVICE_REJECTED"
	ErrorCodeMalformedTopology ErrorCode = "MALFORMED_TOPOLOGY"
	ErrorCodeMalformedMetadata ErrorCode = "MALFORMED_METADATA"
)

// ErrorBody is the serialized error payload.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AppError carries an error code and the HTTP status it maps to.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
}

func (err *AppError) Error() string { return err.Message }

func (err *AppError) Body() ErrorBody {
	return ErrorBody{Code: err.Code, Message: err.Message}
}

func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

func NewValidationError(message string) *AppError {
	return New(ErrorCodeValidationError, message, http.StatusBadRequest)
}

func NewNotFound(message string) *AppError {
	return New(ErrorCodeNotFound, message, http.StatusNotFound)
}

func NewUnauthorized(message string) *AppError {
	return New(ErrorCodeUnauthorized, message, http.StatusUnauthorized)
}

// FromError classifies an arbitrary failure into an AppError.
func FromError(err error) *AppError {
	if err == nil {
		return New(ErrorCodeInternalError, "unknown error", http.StatusInternalServerError)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var discoveryTimeout *discovery.TimeoutError
	if errors.As(err, &discoveryTimeout) {
		return New(ErrorCodeDiscoveryTimeout, err.Error(), http.StatusGatewayTimeout)
	}
	var deviceTimeout *upnp.TimeoutError
	if errors.As(err, &deviceTimeout) {
		return New(ErrorCodeDeviceTimeout, err.Error(), http.StatusGatewayTimeout)
	}
	var unreachable *upnp.UnreachableError
	if errors.As(err, &unreachable) {
		return New(ErrorCodeDeviceUnreachable, err.Error(), http.StatusBadGateway)
	}
	var fault *upnp.FaultError
	if errors.As(err, &fault) {
		return New(ErrorCodeDeviceRejected, err.Error(), http.StatusBadGateway)
	}
	var badResponse *upnp.ResponseError
	if errors.As(err, &badResponse) {
		return New(ErrorCodeDeviceRejected, err.Error(), http.StatusBadGateway)
	}
	var badTopology *topology.MalformedError
	if errors.As(err, &badTopology) {
		return New(ErrorCodeMalformedTopology, err.Error(), http.StatusBadGateway)
	}
	var badMetadata *sonos.MalformedMetadataError
	if errors.As(err, &badMetadata) {
		return New(ErrorCodeMalformedMetadata, err.Error(), http.StatusBadGateway)
	}
	if errors.Is(err, registry.ErrNotFound) {
		return New(ErrorCodeNotFound, err.Error(), http.StatusNotFound)
	}

	return New(ErrorCodeInternalError, "internal server error", http.StatusInternalServerError)
}
