package conversation

import "fmt"

// State is the application state of the device.
type State int

const (
	WaitingForTrigger State = iota
	Countdown
	Recording
	Sending
	AwaitingResponse
	Playing
	ErrorState
)

func (s State) String() string {
	switch s {
	case WaitingForTrigger:
		return "waiting_for_trigger"
	case Countdown:
		return "countdown"
	case Recording:
		return "recording"
	case Sending:
		return "sending"
	case AwaitingResponse:
		return "awaiting_response"
	case Playing:
		return "playing"
	case ErrorState:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
