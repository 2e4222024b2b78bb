// Package codec implements the deterministic, size-prefixed binary codec
// required by spec.md §6: every on-wire or hashed structure encodes to the
// same bytes on every peer. It is modeled on the RLP tradition the teacher
// depends on transitively (github.com/ground-x/klaytn/ser/rlp): fixed
// field order, explicit integer widths, length-prefixed variable fields.
// No reflection: every concilium type implements Encode/Decode directly
// against a *Writer/*Reader pair, the same way RLP-era code writes
// per-type EncodeRLP/DecodeRLP methods.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Writer accumulates a deterministic byte encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf }

// Fixed appends a fixed-width field verbatim (no length prefix — width is
// part of the schema).
func (w *Writer) Fixed(b []byte) { w.buf = append(w.buf, b...) }

// U8 appends a single byte.
func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

// U32 appends a big-endian uint32.
func (w *Writer) U32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// U64 appends a big-endian uint64.
func (w *Writer) U64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// I64 appends a big-endian int64 (used for Amount, a signed fixed-point
// minor-unit count).
func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

// VarBytes appends a length-prefixed variable-length byte slice.
func (w *Writer) VarBytes(b []byte) {
	w.U32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes a Writer-produced encoding in the same field order.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return errors.Errorf("codec: truncated input, need %d bytes at offset %d (len %d)", n, r.pos, len(r.buf))
	}
	return nil
}

// Fixed reads exactly len(dst) bytes into dst.
func (r *Reader) Fixed(dst []byte) error {
	if err := r.need(len(dst)); err != nil {
		return err
	}
	copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return nil
}

// U8 reads a single byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// I64 reads a big-endian int64.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// VarBytes reads a length-prefixed variable-length byte slice.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

// Done reports whether the reader has consumed the entire buffer, the way
// RLP decoders reject trailing garbage.
func (r *Reader) Done() error {
	if r.pos != len(r.buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}
