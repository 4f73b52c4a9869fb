package device

import (
	"errors"
	"io"
	"sync"
	"time"
)

var (
	ErrNotOpen      = errors.New("device not open")
	ErrWriteTimeout = errors.New("device write timed out")
)

const (
	readBlock  = 4096
	queueDepth = 64
)

// streamReader turns a blocking reader into one that waits at most a
// timeout per Read.
type streamReader struct {
	blocks  chan []byte
	done    chan struct{}
	err     error
	pending []byte
}

func newStreamReader(r io.Reader) *streamReader {
	s := &streamReader{
		blocks: make(chan []byte, queueDepth),
		done:   make(chan struct{}),
	}
	go s.pump(r)
	return s
}

func (s *streamReader) pump(r io.Reader) {
	defer close(s.blocks)
	for {
		buf := make([]byte, readBlock)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case s.blocks <- buf[:n]:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return
		}
	}
}

// Read copies buffered audio into p. It returns (0, nil) when nothing
// arrived within timeout and io.EOF once the source is exhausted.
func (s *streamReader) Read(p []byte, timeout time.Duration) (int, error) {
	if len(s.pending) == 0 {
		select {
		case b, ok := <-s.blocks:
			if !ok {
				return 0, s.closeErr()
			}
			s.pending = b
		default:
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			select {
			case b, ok := <-s.blocks:
				if !ok {
					return 0, s.closeErr()
				}
				s.pending = b
			case <-timer.C:
				return 0, nil
			}
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// closeErr is only read after blocks is closed, which orders it after the
// pump's write.
func (s *streamReader) closeErr() error {
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

func (s *streamReader) stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// streamWriter feeds a blocking writer from a bounded queue so that Write
// never waits longer than its timeout.
type streamWriter struct {
	blocks chan []byte
	wg     sync.WaitGroup
	mu     sync.Mutex
	err    error
}

func newStreamWriter(w io.Writer) *streamWriter {
	s := &streamWriter{blocks: make(chan []byte, queueDepth)}
	s.wg.Add(1)
	go s.pump(w)
	return s
}

func (s *streamWriter) pump(w io.Writer) {
	defer s.wg.Done()
	for b := range s.blocks {
		if s.failed() != nil {
			continue
		}
		if _, err := w.Write(b); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}
}

func (s *streamWriter) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *streamWriter) Write(p []byte, timeout time.Duration) (int, error) {
	if err := s.failed(); err != nil {
		return 0, err
	}
	b := append([]byte(nil), p...)
	select {
	case s.blocks <- b:
		return len(p), nil
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s.blocks <- b:
		return len(p), nil
	case <-timer.C:
		return 0, ErrWriteTimeout
	}
}

// discard drops every block still waiting in the queue and returns how
// many bytes were dropped. A block the pump already handed to the sink is
// not recalled.
func (s *streamWriter) discard() int {
	n := 0
	for {
		select {
		case b := <-s.blocks:
			n += len(b)
		default:
			return n
		}
	}
}

// close flushes what is queued and waits for the pump to finish.
func (s *streamWriter) close() error {
	close(s.blocks)
	s.wg.Wait()
	return s.failed()
}
