// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package f2d

import (
	"errors"

	"honnef.co/go/f2d/stream"
)

// ProbeResult reports how far a buffer can be decoded safely.
type ProbeResult struct {
	// LastGood is the offset just past the last complete record. A caller
	// feeding a partially downloaded stream hands Parse the buffer up to
	// LastGood and resumes a later fetch from that point.
	LastGood int
	// Opcodes is the number of complete records scanned.
	Opcodes int
}

// Probe walks the record grammar over a possibly truncated buffer without
// materializing any data. Running off the end of the buffer is the normal
// termination condition, not corruption: network chunks end mid-record all
// the time. Unknown opcodes and semantic-tag mismatches stop the scan at
// the last validated record, exactly like the decoder.
//
// first must be true for the chunk that starts the stream; only that chunk
// carries the header. Successive invocations restart at their chunk's
// offset zero.
func Probe(buf []byte, first bool) ProbeResult {
	r := stream.NewReader(buf)
	var res ProbeResult
	if first {
		hdr, err := r.Bytes(headerLen)
		if err != nil || string(hdr[:len(headerMagic)]) != headerMagic {
			return res
		}
		res.LastGood = r.Offset()
	}
	for !r.AtEnd() {
		if err := skipRecord(r); err != nil {
			break
		}
		res.LastGood = r.Offset()
		res.Opcodes++
	}
	return res
}

// errProbeStop reports a grammar construct the scan cannot advance past.
var errProbeStop = errors.New("f2d: unscannable record")

// skipRecord advances the cursor past exactly one record, mirroring the
// decoder's per-data-type layouts as pure cursor motion.
func skipRecord(r *stream.Reader) error {
	dt, err := r.Varint()
	if err != nil {
		return err
	}
	sem, err := r.Varint()
	if err != nil {
		return err
	}
	switch DataTag(dt) {
	case DataTagVoid:
		return nil
	case DataTagByte:
		return r.Skip(1)
	case DataTagInt, DataTagFloat:
		return r.Skip(4)
	case DataTagDouble:
		return r.Skip(8)
	case DataTagVarint:
		return r.SkipVarint()
	case DataTagPoint:
		return r.SkipVarints(2)
	case DataTagObject:
		if SemTag(sem) == SemTagBeginObject {
			return r.SkipVarint()
		}
		return nil
	case DataTagString:
		return r.SkipString()
	case DataTagByteArray:
		return skipCounted(r, 1)
	case DataTagIntArray, DataTagFloatArray:
		return skipCounted(r, 4)
	case DataTagDoubleArray:
		return skipCounted(r, 8)
	case DataTagVarintArray, DataTagIndexArray:
		n, err := r.Count()
		if err != nil {
			return err
		}
		return r.SkipVarints(n)
	case DataTagPointArray:
		n, err := r.Count()
		if err != nil {
			return err
		}
		return r.SkipVarints(2 * n)
	case DataTagStringArray:
		n, err := r.Count()
		if err != nil {
			return err
		}
		for range n {
			if err := r.SkipString(); err != nil {
				return err
			}
		}
		return nil
	case DataTagArc:
		return skipFixed(r, SemTag(sem), 5)
	case DataTagCircle:
		return skipFixed(r, SemTag(sem), 1)
	case DataTagCircularArc:
		return skipFixed(r, SemTag(sem), 3)
	default:
		return errProbeStop
	}
}

func skipCounted(r *stream.Reader, elemSize int) error {
	// Count bounds n by the unread bytes, so the multiplication cannot wrap
	// into a skip the buffer would accept.
	n, err := r.Count()
	if err != nil {
		return err
	}
	return r.Skip(n * elemSize)
}

// skipFixed handles the fixed-layout records: a center point followed by
// nFloats f32 parameters. The semantic tag must assert as an arc.
func skipFixed(r *stream.Reader, sem SemTag, nFloats int) error {
	if sem != SemTagArc {
		return errProbeStop
	}
	if err := r.SkipVarints(2); err != nil {
		return err
	}
	return r.Skip(4 * nFloats)
}
