// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package stream implements the byte cursor that the f2d decoder and probe
// read records through. All reads advance the cursor; reads past the end of
// the buffer fail with ErrShortBuffer, which callers must be able to tell
// apart from a clean end of stream between records.
package stream

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortBuffer is returned by any read that would advance past the end of
// the buffer. The probe treats it as the normal end-of-data signal; the
// decoder treats it as a truncated record.
var ErrShortBuffer = errors.New("stream: read past end of buffer")

// ErrVarintOverflow is returned when a varint doesn't terminate within 64
// bits.
var ErrVarintOverflow = errors.New("stream: varint overflows 64 bits")

// Reader is a sequential cursor over a byte buffer.
type Reader struct {
	data []byte
	off  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset reports the cursor position relative to the start of the buffer.
func (r *Reader) Offset() int { return r.off }

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// AtEnd reports whether the cursor sits exactly at the end of the buffer.
func (r *Reader) AtEnd() bool { return r.off >= len(r.data) }

// Varint reads an unsigned LEB128 varint, 7 bits per byte, high bit set on
// continuation bytes.
func (r *Reader) Varint() (uint64, error) {
	var v uint64
	var shift uint
	for {
		if r.off >= len(r.data) {
			return 0, ErrShortBuffer
		}
		b := r.data[r.off]
		r.off++
		if shift == 63 && b > 1 {
			return 0, ErrVarintOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}

// Zigzag reads a varint whose sign bit has been moved to the least
// significant bit: raw&1 selects negation of raw>>1.
func (r *Reader) Zigzag() (int64, error) {
	raw, err := r.Varint()
	if err != nil {
		return 0, err
	}
	if raw&1 != 0 {
		return -int64(raw >> 1), nil
	}
	return int64(raw >> 1), nil
}

func (r *Reader) Byte() (byte, error) {
	if r.off >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if r.off+4 > len(r.data) {
		r.off = len(r.data)
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) Float64() (float64, error) {
	if r.off+8 > len(r.data) {
		r.off = len(r.data)
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return math.Float64frombits(v), nil
}

// Bytes returns the next n bytes without copying. The returned slice aliases
// the buffer and is only valid while the buffer is.
func (r *Reader) Bytes(n int) ([]byte, error) {
	// Compared against Remaining rather than r.off+n, which a hostile n can
	// wrap past the bounds check.
	if n < 0 || n > len(r.data)-r.off {
		r.off = len(r.data)
		return nil, ErrShortBuffer
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Count reads a varint element count. Any genuine payload needs at least
// one byte per element, so a count exceeding the unread bytes is a
// truncation or corruption; it is rejected here, before callers size
// allocations or skips with it.
func (r *Reader) Count() (int, error) {
	n, err := r.Varint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Remaining()) {
		r.off = len(r.data)
		return 0, ErrShortBuffer
	}
	return int(n), nil
}

// String reads a varint length followed by that many bytes of UTF-8.
func (r *Reader) String() (string, error) {
	n, err := r.Count()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n int) error {
	if n < 0 || n > len(r.data)-r.off {
		r.off = len(r.data)
		return ErrShortBuffer
	}
	r.off += n
	return nil
}

// SkipVarint advances past one varint without decoding its value.
func (r *Reader) SkipVarint() error {
	for {
		if r.off >= len(r.data) {
			return ErrShortBuffer
		}
		b := r.data[r.off]
		r.off++
		if b&0x80 == 0 {
			return nil
		}
	}
}

// SkipVarints advances past n varints.
func (r *Reader) SkipVarints(n int) error {
	for range n {
		if err := r.SkipVarint(); err != nil {
			return err
		}
	}
	return nil
}

// SkipString advances past a varint length prefix and its payload.
func (r *Reader) SkipString() error {
	n, err := r.Count()
	if err != nil {
		return err
	}
	return r.Skip(n)
}
