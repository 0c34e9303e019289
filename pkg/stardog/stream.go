package stardog

import (
	"io"
)

// DefaultChunkSize is the chunk size used when the caller passes zero.
const DefaultChunkSize = 10 * 1024

// Stream is a forward-only sequence of fixed-size chunks over an open
// response body. It is the only construct in the library that holds a
// transport connection across caller-visible operations, so its lifetime is
// explicitly bounded: the body is released exactly once, on exhaustion, on
// Close, or on a read error.
//
//	stream, err := conn.ExportStream(ctx, 0)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//		process(stream.Bytes())
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream struct {
	body      io.ReadCloser
	chunkSize int
	chunk     []byte
	err       error
	exhausted bool
	closed    bool
	release   func()
}

func newStream(body io.ReadCloser, chunkSize int, release func()) *Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Stream{body: body, chunkSize: chunkSize, release: release}
}

// Next advances to the following chunk. It returns false at the end of the
// body, after Close, or once a read fails; Err distinguishes the cases.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}
	if s.exhausted {
		return false
	}
	if s.closed {
		// Reading a stream the caller already closed is a usage error.
		s.err = ErrStreamClosed
		return false
	}
	buf := make([]byte, s.chunkSize)
	n, err := io.ReadFull(s.body, buf)
	if n > 0 {
		s.chunk = buf[:n]
	} else {
		s.chunk = nil
	}
	switch err {
	case nil:
		return true
	case io.EOF, io.ErrUnexpectedEOF:
		// Final short chunk, then normal exhaustion.
		s.exhausted = true
		s.close(nil)
		return n > 0
	default:
		s.close(err)
		return false
	}
}

// Bytes returns the current chunk. The slice is valid until the next call
// to Next.
func (s *Stream) Bytes() []byte { return s.chunk }

// Err reports the first failure encountered while iterating. Normal
// exhaustion and a clean Close leave it nil.
func (s *Stream) Err() error { return s.err }

// Close releases the underlying connection. It is idempotent; reads after
// Close fail with ErrStreamClosed.
func (s *Stream) Close() error {
	s.close(nil)
	return nil
}

func (s *Stream) close(err error) {
	if s.closed {
		return
	}
	s.closed = true
	if err != nil {
		s.err = err
	}
	_ = s.body.Close()
	if s.release != nil {
		s.release()
		s.release = nil
	}
}
