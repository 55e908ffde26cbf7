// Package linereader reads newline-terminated ASCII lines through a fixed
// size buffer.
//
// Unlike [bufio.Scanner] it never fails on long lines: when the buffer holds
// no terminator, its contents are moved into a growable accumulator and
// scanning continues after a refill. Unlike [bufio.Reader.ReadString] it
// distinguishes a clean end of input from input that stops mid-line, which
// the cache journal uses to detect a torn final record.
package linereader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultSize is the buffer size used by [New].
const DefaultSize = 8192

// maxEmptyReads bounds consecutive (0, nil) reads from a misbehaving source.
const maxEmptyReads = 100

// ErrClosed is returned by [Reader.ReadLine] after [Reader.Close].
var ErrClosed = errors.New("linereader: closed")

// Reader reads lines from an underlying source. It is not safe for
// concurrent use.
type Reader struct {
	src io.Reader
	buf []byte

	// buf[pos:end] holds bytes read but not yet returned.
	pos int
	end int

	err          error
	closed       bool
	unterminated bool
	fragment     string
}

// New returns a Reader with a [DefaultSize] buffer.
func New(r io.Reader) *Reader {
	return &Reader{src: r, buf: make([]byte, DefaultSize)}
}

// NewSize returns a Reader with a buffer of the given size.
func NewSize(r io.Reader, size int) (*Reader, error) {
	if size <= 0 {
		return nil, fmt.Errorf("linereader: invalid buffer size %d", size)
	}

	return &Reader{src: r, buf: make([]byte, size)}, nil
}

// ReadLine returns the next line without its "\n" or "\r\n" terminator.
//
// It returns io.EOF when the source is exhausted. If the source ends in the
// middle of a line, that fragment is discarded, io.EOF is returned and
// [Reader.HasUnterminatedLine] reports true. Any other read error is returned
// as is, and repeated on every later call.
func (r *Reader) ReadLine() (string, error) {
	if r.closed {
		return "", ErrClosed
	}

	if r.pos >= r.end {
		if err := r.fill(); err != nil {
			return "", err
		}
	}

	if i := bytes.IndexByte(r.buf[r.pos:r.end], '\n'); i >= 0 {
		line := trimCR(r.buf[r.pos : r.pos+i])
		r.pos += i + 1

		return string(line), nil
	}

	// Line spans buffers. The accumulator keeps a possible trailing '\r'
	// until the terminator shows up, so a CRLF split across a refill is
	// still stripped.
	acc := bytes.NewBuffer(make([]byte, 0, r.end-r.pos+80))

	for {
		acc.Write(r.buf[r.pos:r.end])
		r.pos = r.end

		if err := r.fill(); err != nil {
			if errors.Is(err, io.EOF) {
				r.unterminated = true
				r.fragment = acc.String()
			}

			return "", err
		}

		if i := bytes.IndexByte(r.buf[r.pos:r.end], '\n'); i >= 0 {
			acc.Write(r.buf[r.pos : r.pos+i])
			r.pos += i + 1

			return string(trimCR(acc.Bytes())), nil
		}
	}
}

// HasUnterminatedLine reports whether the source ended with bytes that were
// not followed by a newline.
func (r *Reader) HasUnterminatedLine() bool {
	return r.unterminated
}

// Fragment returns the unterminated bytes that ended the source, or "" when
// [Reader.HasUnterminatedLine] is false. The journal ignores them; interactive
// callers may still want to run a last command typed without a newline.
func (r *Reader) Fragment() string {
	return r.fragment
}

// Close releases the source if it implements [io.Closer]. Later reads fail
// with [ErrClosed]. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	r.buf = nil

	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// fill refills the buffer from the start and keeps the first error sticky.
func (r *Reader) fill() error {
	if r.err != nil {
		return r.err
	}

	for range maxEmptyReads {
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pos, r.end = 0, n

			// Deliver data now; the error surfaces on the next fill.
			r.err = err

			return nil
		}

		if err != nil {
			r.err = err

			return err
		}
	}

	r.err = io.ErrNoProgress

	return r.err
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}

	return line
}
