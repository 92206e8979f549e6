// Package buffer implements the chunked, big-endian read cursor that the
// HPROF decoder is built on (spec §4.1): a linear cursor over a pull-based
// chunk source (any io.Reader) that hides chunk boundaries from callers and
// backs only memory proportional to the current window.
package buffer

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// MinRefill is the minimum number of bytes pulled from the source on a
// refill, to amortize allocation over many small reads (spec §4.1).
const MinRefill = 20 << 20 // 20 MiB

// ErrEndOfStream is returned when the source is exhausted before the
// requested number of bytes became available.
var ErrEndOfStream = errors.New("hprof: end of stream")

// Buffer is a byte-oriented cursor over a pull-based chunk source (an
// io.Reader). It is not safe for concurrent use: per spec §5, the window is
// exclusively owned by the decoder for the duration of one record.
type Buffer struct {
	src    io.Reader
	window []byte // current contiguous window
	pos    int    // read position within window
	total  int64  // bytes consumed via Get/Skip since creation
	eof    bool   // src has returned io.EOF at least once
}

// New wraps src in a Buffer. src is read lazily, in MinRefill-sized (or
// larger, to satisfy a single large ensure) chunks.
func New(src io.Reader) *Buffer {
	return &Buffer{src: src}
}

// TotalConsumed returns the number of bytes advanced through Get/GetCopy/Skip
// since the buffer was created — the universal byte-accounting invariant of
// spec §8 is expressed in terms of this counter.
func (b *Buffer) TotalConsumed() int64 { return b.total }

// unread returns the number of unconsumed bytes currently held in window.
func (b *Buffer) unread() int { return len(b.window) - b.pos }

// ensure guarantees at least n contiguous unread bytes are available
// starting at the cursor, refilling from src as needed. Refills splice any
// unread tail of the current window together with newly pulled bytes into a
// fresh window, so returned slices from Get remain valid until the next
// buffer operation but never span a stale, freed window.
func (b *Buffer) ensure(n int) error {
	if b.unread() >= n {
		return nil
	}
	if b.eof {
		return ErrEndOfStream
	}

	want := n - b.unread()
	if want < MinRefill {
		want = MinRefill
	}

	fresh := make([]byte, b.unread(), b.unread()+want)
	copy(fresh, b.window[b.pos:])

	for len(fresh) < n && !b.eof {
		chunk := make([]byte, want)
		read, err := io.ReadFull(b.src, chunk)
		if read > 0 {
			fresh = append(fresh, chunk[:read]...)
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				b.eof = true
				break
			}
			return err
		}
	}

	b.window = fresh
	b.pos = 0

	if b.unread() < n {
		return ErrEndOfStream
	}
	return nil
}

// Get returns n bytes starting at the cursor and advances past them. The
// returned slice aliases the current window and is only valid until the
// next buffer operation; callers that retain it must use GetCopy instead.
func (b *Buffer) Get(n int) ([]byte, error) {
	if n < 0 {
		return nil, errNegLen
	}
	if err := b.ensure(n); err != nil {
		return nil, err
	}
	out := b.window[b.pos : b.pos+n]
	b.pos += n
	b.total += int64(n)
	return out, nil
}

// GetCopy is like Get but returns an owned copy safe to retain across
// further buffer operations.
func (b *Buffer) GetCopy(n int) ([]byte, error) {
	view, err := b.Get(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, view)
	return out, nil
}

var errNegLen = errors.New("hprof: negative length")

// Skip advances the cursor by n bytes without allocating beyond what a
// refill already needs; it never materializes the skipped bytes as a
// caller-visible slice.
func (b *Buffer) Skip(n int) error {
	if n < 0 {
		return errNegLen
	}
	for n > 0 {
		avail := b.unread()
		if avail == 0 {
			if err := b.ensure(1); err != nil {
				return err
			}
			avail = b.unread()
		}
		take := n
		if take > avail {
			take = avail
		}
		b.pos += take
		b.total += int64(take)
		n -= take
	}
	return nil
}

// Take reads successive bytes until terminator is seen, returning the bytes
// strictly preceding it and consuming the terminator itself. Used to read
// the NUL-terminated format banner (spec §6: "read via take(0)").
func (b *Buffer) Take(terminator byte) ([]byte, error) {
	var out []byte
	for {
		c, err := b.U8()
		if err != nil {
			return nil, err
		}
		if c == terminator {
			return out, nil
		}
		out = append(out, c)
	}
}

// U8 reads one unsigned byte.
func (b *Buffer) U8() (uint8, error) {
	v, err := b.Get(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// I8 reads one signed byte.
func (b *Buffer) I8() (int8, error) {
	v, err := b.U8()
	return int8(v), err
}

// U16 reads a big-endian uint16.
func (b *Buffer) U16() (uint16, error) {
	v, err := b.Get(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v), nil
}

// I16 reads a big-endian int16.
func (b *Buffer) I16() (int16, error) {
	v, err := b.U16()
	return int16(v), err
}

// U32 reads a big-endian uint32.
func (b *Buffer) U32() (uint32, error) {
	v, err := b.Get(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(v), nil
}

// I32 reads a big-endian int32.
func (b *Buffer) I32() (int32, error) {
	v, err := b.U32()
	return int32(v), err
}

// U64 reads a big-endian uint64.
func (b *Buffer) U64() (uint64, error) {
	v, err := b.Get(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// I64 reads a big-endian int64.
func (b *Buffer) I64() (int64, error) {
	v, err := b.U64()
	return int64(v), err
}

// F32 reads a big-endian IEEE-754 single-precision float.
func (b *Buffer) F32() (float32, error) {
	v, err := b.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// F64 reads a big-endian IEEE-754 double-precision float.
func (b *Buffer) F64() (float64, error) {
	v, err := b.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}
