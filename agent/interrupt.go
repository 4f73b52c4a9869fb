package agent

// InterruptTracker remembers the highest interruption event id seen in a
// conversation and gates agent audio against it.
type InterruptTracker struct {
	last uint32
}

// Observe records an interruption. The stored id never decreases.
func (t *InterruptTracker) Observe(eventID uint32) {
	if eventID > t.last {
		t.last = eventID
	}
}

// Accept reports whether audio with eventID was generated after the last
// interruption.
func (t *InterruptTracker) Accept(eventID uint32) bool {
	return eventID > t.last
}

func (t *InterruptTracker) Last() uint32 { return t.last }

// Reset starts a new conversation's id space.
func (t *InterruptTracker) Reset() { t.last = 0 }
