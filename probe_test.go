package f2d

import (
	"math"
	"testing"
)

// buildStream encodes one record of every data type the grammar knows.
func buildStream() *enc {
	e := newEnc()
	e.sheet(100, 50, "mm", 100, 50, 0xFFEEEEEE)
	e.color(0xFF112233)
	e.fill(true)
	e.fill(false)
	e.lineWeight(2)
	e.layer(5)
	e.link(9)
	e.objectID(42)
	e.polyline([2]int64{0, 0}, [2]int64{10, 10}, [2]int64{20, 0})
	e.dot(5, 5)
	e.circle(50, 50, 10)
	e.circularArc(60, 60, 5, 0, 1.5)
	e.polyTriangle(
		[][2]int64{{0, 0}, {10, 0}, {0, 10}},
		[]uint32{0, 1, 2},
		[]uint32{0xFF0000FF, 0xFF00FF00, 0xFFFF0000},
	)
	e.begin(ObjTagText)
	e.memberString("hello")
	e.memberPoint(1, 2)
	e.memberDouble(12)
	e.memberDouble(0)
	e.memberFloatArray(1, 2, 3, 4, 5)
	e.end()
	return e
}

func TestProbeCompleteStream(t *testing.T) {
	e := buildStream()
	res := Probe(e.buf, true)
	if res.LastGood != len(e.buf) {
		t.Errorf("LastGood = %d, want %d", res.LastGood, len(e.buf))
	}
	// marks holds the header mark plus one per record.
	if res.Opcodes != len(e.marks)-1 {
		t.Errorf("Opcodes = %d, want %d", res.Opcodes, len(e.marks)-1)
	}
}

// TestProbeTruncations cuts the stream at every possible byte and checks
// that the probe lands on the greatest record boundary at or before the
// cut. The encoder's marks are the ground truth.
func TestProbeTruncations(t *testing.T) {
	e := buildStream()
	lastMark := func(cut int) int {
		best := 0
		for _, m := range e.marks {
			if m <= cut && m > best {
				best = m
			}
		}
		return best
	}
	for cut := headerLen; cut <= len(e.buf); cut++ {
		got := Probe(e.buf[:cut], true).LastGood
		if want := lastMark(cut); got != want {
			t.Fatalf("cut at %d: LastGood = %d, want %d", cut, got, want)
		}
	}
}

// TestProbeResume checks continuation scans: the tail past a record
// boundary scans without a header.
func TestProbeResume(t *testing.T) {
	e := buildStream()
	mid := e.marks[len(e.marks)/2]
	head := Probe(e.buf[:mid], true)
	if head.LastGood != mid {
		t.Fatalf("head LastGood = %d, want %d", head.LastGood, mid)
	}
	tail := Probe(e.buf[mid:], false)
	if mid+tail.LastGood != len(e.buf) {
		t.Errorf("tail LastGood = %d, want %d", tail.LastGood, len(e.buf)-mid)
	}
	if head.Opcodes+tail.Opcodes != len(e.marks)-1 {
		t.Errorf("opcodes %d + %d != %d", head.Opcodes, tail.Opcodes, len(e.marks)-1)
	}
}

func TestProbeBadHeader(t *testing.T) {
	for _, buf := range [][]byte{nil, []byte("F2D"), []byte("X2D01.00")} {
		res := Probe(buf, true)
		if res.LastGood != 0 || res.Opcodes != 0 {
			t.Errorf("Probe(%q) = %+v, want zero", buf, res)
		}
	}
}

func TestProbeHeaderOnly(t *testing.T) {
	res := Probe([]byte("F2D01.00"), true)
	if res.LastGood != headerLen {
		t.Errorf("LastGood = %d, want %d", res.LastGood, headerLen)
	}
}

func TestProbeStopsAtUnknownTag(t *testing.T) {
	e := newEnc()
	e.dot(1, 1)
	good := len(e.buf)
	e.varint(99)
	e.dot(2, 2)

	res := Probe(e.buf, true)
	if res.LastGood != good {
		t.Errorf("LastGood = %d, want %d", res.LastGood, good)
	}
	if res.Opcodes != 1 {
		t.Errorf("Opcodes = %d, want 1", res.Opcodes)
	}
}

// TestProbeHostileCount crafts a counted array whose count, multiplied by
// the element size, wraps to a small skip the buffer would accept. The scan
// must stop at the last validated record instead of stamping LastGood past
// a payload it never saw.
func TestProbeHostileCount(t *testing.T) {
	e := newEnc()
	e.dot(1, 1)
	good := len(e.buf)
	e.varint(uint64(DataTagDoubleArray))
	e.varint(uint64(SemTagObjectMember))
	e.varint(math.MaxInt64/4 + 1)
	e.f64(1)

	res := Probe(e.buf, true)
	if res.LastGood != good {
		t.Errorf("LastGood = %d, want %d", res.LastGood, good)
	}
	if res.Opcodes != 1 {
		t.Errorf("Opcodes = %d, want 1", res.Opcodes)
	}
}

func TestProbeStopsAtTagMismatch(t *testing.T) {
	e := newEnc()
	e.circle(5, 5, 1)
	good := len(e.buf)
	// A circle record with a wrong semantic tag.
	e.varint(uint64(DataTagCircle))
	e.varint(uint64(SemTagColor))
	e.point(9, 9)
	e.f32(1)

	res := Probe(e.buf, true)
	if res.LastGood != good {
		t.Errorf("LastGood = %d, want %d", res.LastGood, good)
	}
}

// TestProbeAgreesWithParser feeds the parser exactly what the probe
// validated and expects a clean decode.
func TestProbeAgreesWithParser(t *testing.T) {
	e := buildStream()
	for _, cut := range []int{len(e.buf) / 3, len(e.buf) / 2, len(e.buf)} {
		good := Probe(e.buf[:cut], true).LastGood
		p := NewParser(Options{}, nil)
		if err := p.Parse(e.buf[:good]); err != nil {
			t.Errorf("cut %d (good %d): %v", cut, good, err)
		}
	}
}
