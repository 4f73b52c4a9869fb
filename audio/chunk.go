package audio

// DefaultChunkSize is 250ms of 16kHz mono audio, the frame size the agent
// service expects for user audio.
const DefaultChunkSize = 8000

// Split cuts buf into consecutive sub-slices of at most size bytes. The
// chunks alias buf. It returns ceil(len(buf)/size) chunks, none for an
// empty buffer.
func Split(buf []byte, size int) [][]byte {
	if size <= 0 {
		panic("audio: chunk size must be positive")
	}
	chunks := make([][]byte, 0, (len(buf)+size-1)/size)
	for off := 0; off < len(buf); off += size {
		end := min(off+size, len(buf))
		chunks = append(chunks, buf[off:end])
	}
	return chunks
}

// Join concatenates chunks into a newly allocated buffer.
func Join(chunks [][]byte) []byte {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Splitter hands out the chunks of a buffer one at a time, so a caller
// running a step loop can pace transmission without sleeping.
type Splitter struct {
	buf  []byte
	size int
	off  int
	sent int
}

// NewSplitter returns a Splitter over buf. It panics if size is not positive.
func NewSplitter(buf []byte, size int) *Splitter {
	if size <= 0 {
		panic("audio: chunk size must be positive")
	}
	return &Splitter{buf: buf, size: size}
}

// Next returns the next chunk, or false once buf is exhausted.
func (s *Splitter) Next() ([]byte, bool) {
	if s.off >= len(s.buf) {
		return nil, false
	}
	end := min(s.off+s.size, len(s.buf))
	chunk := s.buf[s.off:end]
	s.off = end
	s.sent++
	return chunk, true
}

// Done reports whether every chunk has been handed out.
func (s *Splitter) Done() bool { return s.off >= len(s.buf) }

// Sent returns how many chunks Next has returned.
func (s *Splitter) Sent() int { return s.sent }

// Total returns the number of chunks buf splits into.
func (s *Splitter) Total() int { return (len(s.buf) + s.size - 1) / s.size }
