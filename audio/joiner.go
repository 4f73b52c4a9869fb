package audio

import "errors"

// ErrBufferFull means a frame did not fit under the joiner's byte ceiling.
var ErrBufferFull = errors.New("audio buffer full")

// Joiner holds agent audio frames, oldest first, until playback takes
// them as one clip. It is not safe for concurrent use.
type Joiner struct {
	chunks    [][]byte
	totalSize int
	maxSize   int
}

// NewJoiner caps the queued audio at maxSize bytes.
func NewJoiner(maxSize int) *Joiner {
	return &Joiner{maxSize: maxSize}
}

func (j *Joiner) MaxSize() int {
	return j.maxSize
}

// Append queues chunk and keeps a reference to it. A frame that would push
// the total past the ceiling is refused whole with ErrBufferFull.
func (j *Joiner) Append(chunk []byte) error {
	newSize := j.totalSize + len(chunk)
	if newSize > j.maxSize {
		return ErrBufferFull
	}
	j.chunks = append(j.chunks, chunk)
	j.totalSize = newSize
	return nil
}

// Flush hands back the queued frames as one slice, or nil when nothing is
// queued, and leaves the joiner empty.
func (j *Joiner) Flush() []byte {
	if len(j.chunks) == 0 {
		return nil
	}
	result := Join(j.chunks)
	j.Clear()
	return result
}

// Clear forgets the queued frames but keeps the frame slice for reuse.
func (j *Joiner) Clear() {
	clear(j.chunks)
	j.chunks = j.chunks[:0]
	j.totalSize = 0
}

func (j *Joiner) Size() int {
	return j.totalSize
}

// IsEmpty reports whether no frames are queued.
func (j *Joiner) IsEmpty() bool {
	return len(j.chunks) == 0
}

// ChunkCount returns the number of queued frames.
func (j *Joiner) ChunkCount() int {
	return len(j.chunks)
}
