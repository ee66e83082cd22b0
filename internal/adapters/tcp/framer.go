package tcp

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// MaxLineBytes bounds a single protocol line. Sensor payloads are a few
// bytes; anything past this is a misbehaving peer.
const MaxLineBytes = 1024

// Framer turns a byte stream into trimmed, newline-delimited lines. It is
// insensitive to how the transport chunks the stream: a line split across
// many reads and ten lines in one read frame identically. Bytes after the
// last newline are dropped when the stream ends.
type Framer struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	err   error
}

// NewFramer frames lines read from r.
func NewFramer(r io.Reader) *Framer {
	return &Framer{
		r:     r,
		chunk: make([]byte, 512),
	}
}

// Next returns the next non-empty line with surrounding whitespace removed.
// It returns io.EOF when the stream is exhausted, or the transport error
// that ended it.
func (f *Framer) Next() (string, error) {
	for {
		if i := bytes.IndexByte(f.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(f.buf[:i]))
			f.buf = f.buf[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}

		if f.err != nil {
			return "", f.err
		}
		if len(f.buf) > MaxLineBytes {
			return "", fmt.Errorf("%w: %d buffered bytes without newline", ErrLineTooLong, len(f.buf))
		}

		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.buf = append(f.buf, f.chunk[:n]...)
		}
		if err != nil {
			// Frame whatever complete lines arrived with the
			// final chunk before surfacing the error.
			f.err = err
		}
	}
}

// idleReader arms a fresh read deadline before every read so that a silent
// peer trips a net timeout instead of holding the goroutine forever.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func newIdleReader(conn net.Conn, timeout time.Duration) *idleReader {
	return &idleReader{conn: conn, timeout: timeout}
}

func (r *idleReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}
