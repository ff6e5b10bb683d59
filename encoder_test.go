package f2d

import (
	"encoding/binary"
	"math"
)

// enc builds wire-format streams for tests. It mirrors the decoder's
// running-offset bookkeeping so tests express points as absolute
// coordinates. marks records the offset after each complete record, which
// the probe tests use as ground truth for resume points.
type enc struct {
	buf   []byte
	x, y  int64
	marks []int
}

func newEnc() *enc {
	e := &enc{}
	e.buf = append(e.buf, "F2D01.00"...)
	e.mark()
	return e
}

func (e *enc) mark() { e.marks = append(e.marks, len(e.buf)) }

func (e *enc) varint(v uint64) {
	for v >= 0x80 {
		e.buf = append(e.buf, byte(v)|0x80)
		v >>= 7
	}
	e.buf = append(e.buf, byte(v))
}

func (e *enc) tags(dt DataTag, sem SemTag) {
	e.varint(uint64(dt))
	e.varint(uint64(sem))
}

// delta writes one coordinate delta with the sign bit in the LSB.
func (e *enc) delta(d int64) {
	if d < 0 {
		e.varint(uint64(-d)<<1 | 1)
	} else {
		e.varint(uint64(d) << 1)
	}
}

// point writes the deltas that move the running offset to (x, y).
func (e *enc) point(x, y int64) {
	e.delta(x - e.x)
	e.delta(y - e.y)
	e.x, e.y = x, y
}

func (e *enc) u32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *enc) f32(v float32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *enc) f64(v float64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

func (e *enc) str(s string) {
	e.varint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *enc) color(v uint32) {
	e.tags(DataTagInt, SemTagColor)
	e.u32(v)
	e.mark()
}

func (e *enc) fill(on bool) {
	if on {
		e.tags(DataTagVoid, SemTagFill)
	} else {
		e.tags(DataTagVoid, SemTagFillOff)
	}
	e.mark()
}

func (e *enc) lineWeight(v float64) {
	e.tags(DataTagDouble, SemTagLineWeight)
	e.f64(v)
	e.mark()
}

func (e *enc) layer(v uint64) {
	e.tags(DataTagVarint, SemTagLayer)
	e.varint(v)
	e.mark()
}

func (e *enc) link(v uint64) {
	e.tags(DataTagVarint, SemTagLink)
	e.varint(v)
	e.mark()
}

func (e *enc) objectID(v uint64) {
	e.tags(DataTagVarint, SemTagObjectID)
	e.varint(v)
	e.mark()
}

func (e *enc) polyline(pts ...[2]int64) {
	e.tags(DataTagPointArray, SemTagPolyline)
	e.varint(uint64(len(pts)))
	for _, p := range pts {
		e.point(p[0], p[1])
	}
	e.mark()
}

func (e *enc) dot(x, y int64) {
	e.tags(DataTagPoint, SemTagDot)
	e.point(x, y)
	e.mark()
}

func (e *enc) circle(cx, cy int64, r float32) {
	e.varint(uint64(DataTagCircle))
	e.varint(uint64(SemTagArc))
	e.point(cx, cy)
	e.f32(r)
	e.mark()
}

func (e *enc) circularArc(cx, cy int64, r, start, end float32) {
	e.varint(uint64(DataTagCircularArc))
	e.varint(uint64(SemTagArc))
	e.point(cx, cy)
	e.f32(r)
	e.f32(start)
	e.f32(end)
	e.mark()
}

func (e *enc) begin(t ObjTag) {
	e.tags(DataTagObject, SemTagBeginObject)
	e.varint(uint64(t))
	e.mark()
}

func (e *enc) end() {
	e.tags(DataTagObject, SemTagEndObject)
	e.mark()
}

func (e *enc) memberDouble(v float64) {
	e.tags(DataTagDouble, SemTagObjectMember)
	e.f64(v)
	e.mark()
}

func (e *enc) memberInt(v uint32) {
	e.tags(DataTagInt, SemTagObjectMember)
	e.u32(v)
	e.mark()
}

func (e *enc) memberVarint(v uint64) {
	e.tags(DataTagVarint, SemTagObjectMember)
	e.varint(v)
	e.mark()
}

func (e *enc) memberString(s string) {
	e.tags(DataTagString, SemTagObjectMember)
	e.str(s)
	e.mark()
}

func (e *enc) memberPoint(x, y int64) {
	e.tags(DataTagPoint, SemTagObjectMember)
	e.point(x, y)
	e.mark()
}

func (e *enc) memberPointArray(pts ...[2]int64) {
	e.tags(DataTagPointArray, SemTagObjectMember)
	e.varint(uint64(len(pts)))
	for _, p := range pts {
		e.point(p[0], p[1])
	}
	e.mark()
}

func (e *enc) memberIndexArray(idxs ...uint32) {
	e.tags(DataTagIndexArray, SemTagObjectMember)
	e.varint(uint64(len(idxs)))
	for _, i := range idxs {
		e.varint(uint64(i))
	}
	e.mark()
}

func (e *enc) memberIntArray(vs ...uint32) {
	e.tags(DataTagIntArray, SemTagObjectMember)
	e.varint(uint64(len(vs)))
	for _, v := range vs {
		e.u32(v)
	}
	e.mark()
}

func (e *enc) memberFloatArray(vs ...float32) {
	e.tags(DataTagFloatArray, SemTagObjectMember)
	e.varint(uint64(len(vs)))
	for _, v := range vs {
		e.f32(v)
	}
	e.mark()
}

// sheet writes a complete sheet object.
func (e *enc) sheet(paperW, paperH float64, units string, w, h float64, paperColor uint32) {
	e.begin(ObjTagSheet)
	e.memberDouble(paperW)
	e.memberDouble(paperH)
	e.memberString(units)
	e.memberDouble(w)
	e.memberDouble(h)
	e.memberInt(paperColor)
	e.end()
}

// polyTriangle writes a complete polytriangle object.
func (e *enc) polyTriangle(pts [][2]int64, idxs []uint32, colors []uint32) {
	e.begin(ObjTagPolyTriangle)
	e.memberPointArray(pts...)
	e.memberIndexArray(idxs...)
	if colors != nil {
		e.memberIntArray(colors...)
	}
	e.end()
}

// parse runs a fresh parser over the encoded stream and returns the result.
func (e *enc) parse(opts Options, m *Manifest) *Result {
	p := NewParser(opts, m)
	p.Parse(e.buf)
	return p.Finish()
}
