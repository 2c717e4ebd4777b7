package telnet

import "errors"

// ErrInterrupt is returned when the client aborts intentionally, either with
// Ctrl-C in the data stream or with IAC IP / IAC BRK.
var ErrInterrupt = errors.New("interrupt received")

// IncompatibleClientError means negotiation cannot succeed with this client.
// Reason is suitable to show to the client before tearing the connection down.
type IncompatibleClientError struct {
	Reason string
}

func (e *IncompatibleClientError) Error() string {
	return "incompatible client: " + e.Reason
}

func incompatible(reason string) error {
	return &IncompatibleClientError{Reason: reason}
}
