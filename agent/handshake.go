package agent

import "fmt"

// HandshakeStatus is the progress of the current connection attempt,
// from dial to conversation metadata.
type HandshakeStatus int

const (
	HandshakeIdle HandshakeStatus = iota
	HandshakePending
	HandshakeReady
	HandshakeTimedOut
	HandshakeFailed
)

func (s HandshakeStatus) String() string {
	switch s {
	case HandshakeIdle:
		return "idle"
	case HandshakePending:
		return "pending"
	case HandshakeReady:
		return "ready"
	case HandshakeTimedOut:
		return "timed_out"
	case HandshakeFailed:
		return "failed"
	default:
		return fmt.Sprintf("HandshakeStatus(%d)", int(s))
	}
}
