package device

import (
	"errors"
	"fmt"

	"github.com/room4-2/voicelink/conversation"
)

// NewMicrophone picks a microphone from a source setting: "sox" for the
// sound card, anything else is a path to a PCM or WAV file.
func NewMicrophone(source string) (conversation.Microphone, error) {
	switch source {
	case "":
		return nil, errors.New("no microphone source configured")
	case "sox":
		return &SoxMicrophone{}, nil
	default:
		return NewFileMicrophone(source), nil
	}
}

// NewSpeaker picks a speaker from a sink setting: "sox" or "discard".
func NewSpeaker(sink string) (conversation.Speaker, error) {
	switch sink {
	case "sox", "":
		return &SoxSpeaker{}, nil
	case "discard":
		return &DiscardSpeaker{}, nil
	default:
		return nil, fmt.Errorf("unknown speaker sink %q", sink)
	}
}
