package conversation

import (
	"fmt"
	"time"
)

// Microphone delivers 16-bit mono PCM. Read waits at most timeout and may
// return 0 bytes with a nil error when nothing arrived. io.EOF means the
// source has no more audio.
type Microphone interface {
	Open(sampleRate int) error
	Read(p []byte, timeout time.Duration) (int, error)
	Close() error
}

// Speaker plays interleaved 16-bit PCM. Write waits at most timeout.
// Discard drops audio that was written but has not reached the output yet.
type Speaker interface {
	Open(sampleRate, channels int) error
	Write(p []byte, timeout time.Duration) (int, error)
	Discard() error
	Close() error
}

// HardwareInitError is returned by Start when a device cannot be opened.
// The orchestrator stays in ErrorState afterwards.
type HardwareInitError struct {
	Device string
	Err    error
}

func (e *HardwareInitError) Error() string {
	return fmt.Sprintf("%s init failed: %v", e.Device, e.Err)
}

func (e *HardwareInitError) Unwrap() error { return e.Err }
