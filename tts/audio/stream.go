package audio

import (
	"context"
	"io"
	"sync"
)

// stream is a bounded byte queue between Play calls and the output device.
// Write blocks while the queue is full and Read blocks while it is empty.
type stream struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	data     []byte
	capacity int
	consumed int64
	closed   bool
}

func newStream(capacity int) *stream {
	s := &stream{capacity: capacity}
	s.notEmpty = sync.NewCond(&s.mu)
	s.notFull = sync.NewCond(&s.mu)
	return s
}

// Read implements io.Reader for the device player.
func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.data) == 0 && !s.closed {
		s.notEmpty.Wait()
	}
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	s.consumed += int64(n)
	s.notFull.Broadcast()
	return n, nil
}

// write queues pcm, waiting for room as needed. It returns early with the
// context error when ctx is done.
func (s *stream) write(ctx context.Context, pcm []byte) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.notFull.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(pcm) > 0 {
		for len(s.data) >= s.capacity && !s.closed && ctx.Err() == nil {
			s.notFull.Wait()
		}
		if s.closed {
			return io.ErrClosedPipe
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(s.capacity-len(s.data), len(pcm))
		s.data = append(s.data, pcm[:n]...)
		pcm = pcm[n:]
		s.notEmpty.Broadcast()
	}
	return nil
}

// drop discards queued bytes that the device has not read yet.
func (s *stream) drop() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = nil
	s.notFull.Broadcast()
	return n
}

func (s *stream) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *stream) readBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notEmpty.Broadcast()
	s.notFull.Broadcast()
}
