// Package audio holds the PCM side of the device: the capture and playback
// buffers that sit between the network and the audio hardware, saturating
// gain, chunking for transmission and the base64 wire codec.
//
// All audio is 16-bit signed little-endian PCM. Buffers in this package are
// owned by a single goroutine (the device loop) and are not safe for
// concurrent use.
package audio
