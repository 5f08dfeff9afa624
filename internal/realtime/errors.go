package realtime

import (
	"errors"
	"fmt"
)

// User-facing messages attached to error events. The product speaks Dutch.
const (
	msgConnectionLost   = "Verbinding verbroken"
	msgConnectionFailed = "Verbinding mislukt"
	msgGenericError     = "Er is een fout opgetreden"
)

// ErrMicrophoneUnavailable is returned by Connect when no capture device can
// be opened or access is denied.
var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// ErrAlreadyConnected is returned when Connect is called on a client whose
// previous connection has not been torn down.
var ErrAlreadyConnected = errors.New("already connected")

// NegotiationError reports a failed offer/answer exchange with the remote
// endpoint.
type NegotiationError struct {
	StatusCode int
	Body       string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("realtime negotiation failed: status %d: %s", e.StatusCode, e.Body)
}

// userMessage returns a human-readable message for an error, falling back to
// a generic default so subscribers always see something presentable.
func userMessage(err error) string {
	if err == nil {
		return msgGenericError
	}
	if errors.Is(err, ErrMicrophoneUnavailable) {
		return "Geen toegang tot de microfoon"
	}
	var negotiation *NegotiationError
	if errors.As(err, &negotiation) {
		return msgConnectionFailed
	}
	return msgGenericError
}
