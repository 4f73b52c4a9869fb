package agent

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("not connected")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrHandshakeTimeout   = errors.New("handshake timed out")
	ErrMalformedHandshake = errors.New("conversation metadata without conversation id")
)

// TransportError is a connect, read or send failure. The client recovers
// from these by reconnecting; they are never fatal.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is an inbound frame that could not be used. The frame is
// dropped and the session continues.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("agent: dropped message: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
