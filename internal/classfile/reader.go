// JVM class file byte reader.
// All multi-byte quantities in the class file format are big-endian.
package classfile

import (
	"encoding/binary"
	"errors"
)

// ErrUnexpectedEOF is returned when a read runs past the end of the data.
var ErrUnexpectedEOF = errors.New("classfile: unexpected end of data")

// Reader is a sequential cursor over a class file's raw bytes.
// Every read advances the cursor by exactly the width consumed.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader over the given data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current read position.
func (r *Reader) Position() int { return r.pos }

// Remaining returns bytes left to read.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// U8 reads a single unsigned byte.
func (r *Reader) U8() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// Bytes reads n bytes as a sub-slice of the underlying data.
// The class file is immutable once read, so no copy is made.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without reading.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return ErrUnexpectedEOF
	}
	r.pos += n
	return nil
}
