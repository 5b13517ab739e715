package threads

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a request that violates a media-type rule.
// The caller has to fix the request; it is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// ContainerFailureError is returned when a container reaches ERROR, EXPIRED
// or FAILED.
type ContainerFailureError struct {
	ContainerID string
	Status      ContainerStatus
	Message     string
}

func (e ContainerFailureError) Error() string {
	msg := fmt.Sprintf("container %s cannot be published: status %s", e.ContainerID, e.Status)
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// ReadinessTimeoutError is returned when a container is still processing after
// the poll budget is spent. Retrying Compose allocates a fresh container.
type ReadinessTimeoutError struct {
	ContainerID string
	Attempts    int
	LastStatus  ContainerStatus
}

func (e ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("container %s not ready after %d attempts (status %s)", e.ContainerID, e.Attempts, e.LastStatus)
}

// PublishError wraps a failed publish call against a ready container.
type PublishError struct {
	ContainerID string
	Err         error
}

func (e PublishError) Error() string {
	return fmt.Sprintf("publish container %s: %v", e.ContainerID, e.Err)
}

func (e PublishError) Unwrap() error { return e.Err }

// TransportError is a network or HTTP-level failure talking to the service.
type TransportError struct {
	Op         string
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e TransportError) Error() string {
	parts := make([]string, 0, 3)
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.StatusCode))
	}
	if e.Code != 0 {
		parts = append(parts, fmt.Sprintf("code %d", e.Code))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		parts = append(parts, "request failed")
	}
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(parts, "; "))
}

func (e TransportError) Unwrap() error { return e.Err }

// Error codes reported by Code.
const (
	CodeOK              = "ok"
	CodeInvalid         = "invalid_request"
	CodeContainerFailed = "container_failed"
	CodeNotReady        = "not_ready"
	CodePublishFailed   = "publish_failed"
	CodeTransport       = "transport_error"
	CodeCanceled        = "canceled"
	CodeUnknown         = "error"
)

// Code classifies err into one of the Code* constants. Wrapped errors are
// matched by their most specific category.
func Code(err error) string {
	var (
		validation ValidationError
		failure    ContainerFailureError
		timeout    ReadinessTimeoutError
		publish    PublishError
		transport  TransportError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &validation):
		return CodeInvalid
	case errors.As(err, &failure):
		return CodeContainerFailed
	case errors.As(err, &timeout):
		return CodeNotReady
	case errors.As(err, &publish):
		return CodePublishFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	case errors.As(err, &transport):
		return CodeTransport
	}
	return CodeUnknown
}
