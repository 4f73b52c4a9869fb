// Package device provides host implementations of the microphone and
// speaker the conversation loop drives: sox for a workstation's sound
// card, PCM or WAV files for repeatable input, and a discarding sink.
package device
