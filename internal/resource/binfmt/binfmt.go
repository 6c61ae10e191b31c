// Package binfmt implements the little-endian resource envelope shared by
// every compiled resource: an ASCII magic tag, an int32 format version and
// a kind-specific payload.
//
// Strings are written as a 7-bit variable length prefix followed by UTF-8
// bytes. Booleans are a single byte.
package binfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Envelope errors.
var (
	ErrInvalidMagic       = errors.New("invalid resource magic")
	ErrUnsupportedVersion = errors.New("unsupported resource version")
	ErrTruncated          = errors.New("truncated resource data")
)

// Placeholder is the value written into a back-patch slot before the real
// value is known.
const Placeholder int32 = -1

// Writer builds a resource payload in memory.
type Writer struct {
	buf []byte
}

// NewEnvelope returns a writer that already holds magic and version.
func NewEnvelope(magic string, version int32) *Writer {
	w := &Writer{}
	w.Magic(magic)
	w.Int32(version)
	return w
}

// Magic writes raw ASCII bytes without a length prefix.
func (w *Writer) Magic(magic string) {
	w.buf = append(w.buf, magic...)
}

func (w *Writer) Int32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Int64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) Float32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// Float32s writes each value in order without a count.
func (w *Writer) Float32s(vs ...float32) {
	for _, v := range vs {
		w.Float32(v)
	}
}

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// String writes a length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.buf = binary.AppendUvarint(w.buf, uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// Bytes writes raw bytes without a length prefix.
func (w *Writer) Bytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Placeholder writes a back-patch slot holding -1 and returns its offset.
func (w *Writer) Placeholder() int {
	off := len(w.buf)
	w.Int32(Placeholder)
	return off
}

// PatchInt32 overwrites four bytes at offset in place.
func (w *Writer) PatchInt32(offset int, v int32) error {
	if offset < 0 || offset+4 > len(w.buf) {
		return fmt.Errorf("patch offset %d outside buffer of %d bytes", offset, len(w.buf))
	}
	binary.LittleEndian.PutUint32(w.buf[offset:], uint32(v))
	return nil
}

// Data returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Data() []byte {
	return w.buf
}

// Reader decodes a resource payload. The first failure is sticky: later
// reads return zero values and Err reports the original error.
type Reader struct {
	r   *bytes.Reader
	err error
}

func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

// Envelope checks the magic tag and version. Versions other than
// version are rejected.
func (r *Reader) Envelope(magic string, version int32) error {
	got := make([]byte, len(magic))
	if _, err := io.ReadFull(r.r, got); err != nil {
		r.err = ErrTruncated
		return r.err
	}
	if string(got) != magic {
		r.err = fmt.Errorf("%w: expected %q, got %q", ErrInvalidMagic, magic, got)
		return r.err
	}
	v := r.Int32()
	if r.err != nil {
		return r.err
	}
	if v != version {
		r.err = fmt.Errorf("%w: %s version %d", ErrUnsupportedVersion, magic, v)
		return r.err
	}
	return nil
}

func (r *Reader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = ErrTruncated
	}
}

func (r *Reader) Int32() int32 {
	var v int32
	r.read(&v)
	return v
}

func (r *Reader) Uint32() uint32 {
	var v uint32
	r.read(&v)
	return v
}

func (r *Reader) Int64() int64 {
	var v int64
	r.read(&v)
	return v
}

func (r *Reader) Float32() float32 {
	var v float32
	r.read(&v)
	return v
}

func (r *Reader) Bool() bool {
	var v uint8
	r.read(&v)
	return v != 0
}

// Count reads an int32 element count and rejects negative values or
// counts that cannot fit in the remaining data at minSize bytes each.
func (r *Reader) Count(minSize int) int {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	if n < 0 || (minSize > 0 && int64(n)*int64(minSize) > int64(r.r.Len())) {
		r.err = fmt.Errorf("%w: count %d", ErrTruncated, n)
		return 0
	}
	return int(n)
}

func (r *Reader) String() string {
	if r.err != nil {
		return ""
	}
	n, err := binary.ReadUvarint(r.r)
	if err != nil || n > uint64(r.r.Len()) {
		r.err = ErrTruncated
		return ""
	}
	return string(r.Bytes(int(n)))
}

func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.r.Len() {
		r.err = ErrTruncated
		return nil
	}
	b := make([]byte, n)
	io.ReadFull(r.r, b)
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.r.Len()
}

func (r *Reader) Err() error {
	return r.err
}
