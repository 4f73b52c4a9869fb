package audio

import (
	"bytes"
	"testing"
)

func TestSplitJoin(t *testing.T) {
	for _, tt := range []struct{ n, size int }{
		{0, 8000}, {1, 8000}, {7999, 8000}, {8000, 8000}, {8001, 8000}, {32000, 8000}, {10, 3},
	} {
		buf := make([]byte, tt.n)
		for i := range buf {
			buf[i] = byte(i)
		}
		chunks := Split(buf, tt.size)
		want := (tt.n + tt.size - 1) / tt.size
		if len(chunks) != want {
			t.Fatalf("Split(%d, %d) gave %d chunks, want %d", tt.n, tt.size, len(chunks), want)
		}
		for i, c := range chunks {
			if len(c) == 0 || len(c) > tt.size {
				t.Fatalf("chunk %d has length %d", i, len(c))
			}
		}
		if got := Join(chunks); !bytes.Equal(got, buf) {
			t.Fatalf("Join(Split(%d, %d)) does not reconstruct input", tt.n, tt.size)
		}
	}
}

func TestSplitPanicsOnBadSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Split(buf, 0) did not panic")
		}
	}()
	Split([]byte{1}, 0)
}

func TestSplitter(t *testing.T) {
	buf := make([]byte, 20001)
	s := NewSplitter(buf, DefaultChunkSize)
	if s.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", s.Total())
	}
	var got [][]byte
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		got = append(got, c)
	}
	if !s.Done() || s.Sent() != 3 {
		t.Fatalf("Done() = %v, Sent() = %d", s.Done(), s.Sent())
	}
	if len(got[2]) != 4001 {
		t.Fatalf("last chunk = %d bytes, want 4001", len(got[2]))
	}
}
