package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidPayload        = "invalid_payload"
	ErrCodeSubscriberUnreachable = "subscriber_unreachable"
	ErrCodeUpstreamUnavailable   = "upstream_unavailable"
	ErrCodeRoomClosed            = "room_closed"
	ErrCodeBadRequest            = "bad_request"
)

var (
	// ErrInvalidPayload is returned when a publish is missing user or text.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrSubscriberUnreachable marks a subscriber that can no longer accept deliveries.
	ErrSubscriberUnreachable = errors.New("subscriber unreachable")
	// ErrRoomClosed is returned once the engine has stopped.
	ErrRoomClosed = errors.New("room closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// AsCoreError maps an error returned by the engine to a coded error.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrInvalidPayload):
		return coreError(ErrCodeInvalidPayload, err.Error())
	case errors.Is(err, ErrRoomClosed):
		return coreError(ErrCodeRoomClosed, err.Error())
	case errors.Is(err, ErrSubscriberUnreachable):
		return coreError(ErrCodeSubscriberUnreachable, err.Error())
	default:
		return coreError(ErrCodeBadRequest, err.Error())
	}
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
