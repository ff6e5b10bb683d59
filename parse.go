// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package f2d

import (
	"context"
	"fmt"
	"log/slog"

	"honnef.co/go/curve"
	"honnef.co/go/f2d/mesh"
	"honnef.co/go/f2d/stream"
)

// Parser decodes one sheet. It is constructed once and then driven through
// one or more sequentially arriving stream chunks with Parse; offsets, the
// open-object stack, and accumulated output persist between calls. A
// Parser is single-threaded; separate instances are independent.
type Parser struct {
	opts     Options
	manifest *Manifest
	log      *slog.Logger

	st    decoderState
	stack []frame

	headerDone bool
	minor      int
	err        error
	opcodes    int
	consumed   int

	hidePaper bool
	bgColor   uint32

	builder *mesh.Builder
	meshes  []*mesh.Mesh

	viewports []Viewport
	metrics   []*ViewportMetrics
	clips     []Clip
	fonts     []Font
	layers    layerTable

	strs          []StringRecord
	strBoxes      []bounds
	currentString int
	textDepth     int

	links     map[uint32]*bounds
	linkOrder []uint32

	pageBox  bounds
	pageDone bool

	syntheticCounter uint32

	done bool
}

// NewParser creates a decoder for one sheet. manifest may be nil; without
// it, raster records are skipped.
func NewParser(opts Options, manifest *Manifest) *Parser {
	log := opts.Logger
	if log == nil {
		log = newNopLogger()
	}
	p := &Parser{
		opts:          opts,
		manifest:      manifest,
		log:           log,
		st:            newDecoderState(),
		hidePaper:     opts.ModelSpace || (manifest != nil && manifest.HidePaper),
		layers:        newLayerTable(),
		currentString: -1,
		links:         make(map[uint32]*bounds),
		viewports:     []Viewport{{Name: "default"}},
		metrics:       []*ViewportMetrics{{}},
	}
	if opts.BGColor != nil {
		p.bgColor = mesh.PackPremul(opts.BGColor)
	}
	p.builder = mesh.NewBuilder(opts.meshConfig(p.onFlush, log))
	// Source layer 0 is the unnamed default; it gets dense index 0 without
	// counting as discovered.
	p.layers.lookup(0)
	if manifest != nil && manifest.Page.Width > 0 && manifest.Page.Height > 0 {
		pg := manifest.Page
		p.pageBox.add(curve.Rect{
			X0: pg.OffsetX, Y0: pg.OffsetY,
			X1: pg.OffsetX + pg.Width, Y1: pg.OffsetY + pg.Height,
		})
	}
	return p
}

func (p *Parser) onFlush(m *mesh.Mesh) {
	p.meshes = append(p.meshes, m)
	if p.opts.OnMesh != nil {
		p.opts.OnMesh(m)
	}
}

// Parse decodes one chunk. The first chunk must begin with the stream
// header. Callers are expected to cut chunks at record boundaries (see
// Probe); a chunk ending mid-record terminates decoding with the error
// preserved on the Parser, everything committed so far staying intact.
func (p *Parser) Parse(chunk []byte) error {
	if p.done {
		return fmt.Errorf("f2d: Parse called after Finish")
	}
	if p.err != nil {
		return p.err
	}
	r := stream.NewReader(chunk)
	if !p.headerDone {
		if err := p.parseHeader(r); err != nil {
			p.err = err
			return err
		}
	}
	p.parseLoop(r)
	p.consumed += r.Offset()
	return p.err
}

func (p *Parser) parseHeader(r *stream.Reader) error {
	hdr, err := r.Bytes(headerLen)
	if err != nil {
		// Wraps both sentinels so a streaming caller can tell "fetch more"
		// apart from "wrong format".
		return fmt.Errorf("%w: stream shorter than header: %w", ErrBadHeader, err)
	}
	if string(hdr[:len(headerMagic)]) != headerMagic {
		return fmt.Errorf("%w: %q", ErrBadHeader, hdr)
	}
	d1, d2 := hdr[6], hdr[7]
	if d1 < '0' || d1 > '9' || d2 < '0' || d2 > '9' {
		return fmt.Errorf("%w: malformed minor version", ErrBadHeader)
	}
	p.minor = int(d1-'0')*10 + int(d2-'0')
	p.headerDone = true
	return nil
}

// parseLoop runs the top-level opcode dispatch until the chunk is
// exhausted or a grammar error sets the hard stop flag. No
// resynchronization is attempted after an error.
func (p *Parser) parseLoop(r *stream.Reader) {
	for !r.AtEnd() && p.err == nil {
		dt, err := r.Varint()
		if err != nil {
			p.failRead(err)
			return
		}
		p.opcodes++
		switch DataTag(dt) {
		case DataTagVoid:
			err = p.parseVoid(r)
		case DataTagByte:
			err = p.parseByte(r)
		case DataTagInt:
			err = p.parseInt(r)
		case DataTagFloat:
			err = p.parseFloat(r)
		case DataTagDouble:
			err = p.parseDouble(r)
		case DataTagVarint:
			err = p.parseVarint(r)
		case DataTagPoint:
			err = p.parsePoint(r)
		case DataTagObject:
			err = p.parseObject(r)
		case DataTagString:
			err = p.parseString(r)
		case DataTagByteArray:
			err = p.parseByteArray(r)
		case DataTagIntArray:
			err = p.parseIntArray(r)
		case DataTagFloatArray:
			err = p.parseFloatArray(r)
		case DataTagDoubleArray:
			err = p.parseDoubleArray(r)
		case DataTagVarintArray:
			err = p.parseVarintArray(r)
		case DataTagPointArray:
			err = p.parsePointArray(r)
		case DataTagStringArray:
			err = p.parseStringArray(r)
		case DataTagIndexArray:
			err = p.parseIndexArray(r)
		case DataTagArc:
			err = p.parseEllipticalArc(r)
		case DataTagCircle:
			err = p.parseCircle(r)
		case DataTagCircularArc:
			err = p.parseCircularArc(r)
		default:
			p.fail("unknown data type %d at offset %d", dt, p.consumed+r.Offset())
			return
		}
		if err != nil {
			p.failRead(err)
			return
		}
	}
}

// Finish seals the last mesh, hands the accumulated output to the caller,
// and releases the decode scratch. The Parser cannot be reused afterwards.
func (p *Parser) Finish() *Result {
	if !p.done {
		p.builder.Flush()
		p.done = true
		if len(p.stack) > 0 && p.err == nil {
			p.err = fmt.Errorf("%w: stream ended with %d unterminated objects", ErrGrammar, len(p.stack))
		}
	}
	res := &Result{
		Meshes:    p.meshes,
		Strings:   p.strs,
		Viewports: p.viewports,
		Clips:     p.clips,
		Fonts:     p.fonts,
		Metrics:   p.metrics,
		LayerMap:  p.layers.dense,
		PageBox:   p.pageBox.rect,
		Opcodes:   p.opcodes,
		Err:       p.err,
	}
	var names map[uint32]string
	if p.manifest != nil {
		names = p.manifest.Layers
	}
	res.LayerTree = buildLayerTree(&p.layers, names)
	for _, id := range p.linkOrder {
		res.Links = append(res.Links, LinkRecord{ID: id, Box: p.links[id].rect})
	}
	// Release decode scratch; only the result survives.
	p.stack = nil
	p.links = nil
	p.strBoxes = nil
	if p.opts.OnDone != nil {
		p.opts.OnDone(res)
	}
	return res
}

func (p *Parser) fail(format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = fmt.Errorf("%w: "+format, append([]any{ErrGrammar}, args...)...)
	p.log.LogAttrs(context.Background(), slog.LevelError, "decode stopped",
		slog.String("err", p.err.Error()), slog.Int("opcodes", p.opcodes))
}

func (p *Parser) failRead(err error) {
	if p.err != nil {
		return
	}
	p.err = fmt.Errorf("f2d: truncated record: %w", err)
	p.log.LogAttrs(context.Background(), slog.LevelError, "decode stopped",
		slog.String("err", p.err.Error()), slog.Int("opcodes", p.opcodes))
}

func (p *Parser) warn(msg string) {
	p.log.LogAttrs(context.Background(), slog.LevelWarn, msg,
		slog.Int("opcodes", p.opcodes))
}

// m is the metrics bucket of the current viewport.
func (p *Parser) m() *ViewportMetrics {
	return p.metrics[p.st.viewport]
}

// remapColor applies the hide-paper remapping: in hide-paper mode,
// paper-colored values become the configured background color so geometry
// stays visible on a transparent page.
func (p *Parser) remapColor(c uint32) uint32 {
	if p.hidePaper && p.st.paperColor != 0 && c == p.st.paperColor {
		return p.bgColor
	}
	return c
}

func (p *Parser) attrs() mesh.Attrs {
	return mesh.Attrs{
		Color:    p.st.color,
		ObjectID: p.st.objectID,
		LayerVp:  p.st.layerVp(),
	}
}

// trackBounds grows the page box and, when a string or hyperlink is
// current, their accumulated boxes.
func (p *Parser) trackBounds(r curve.Rect) {
	p.pageBox.add(r)
	if p.currentString >= 0 {
		p.strBoxes[p.currentString].add(r)
	}
	if p.st.link != 0 {
		if b, ok := p.links[p.st.link]; ok {
			b.add(r)
		}
	}
}

// decodePoint reads two sign-in-LSB varint deltas, advances the running
// offset, and converts the absolute position to page units. Points must be
// decoded in strict stream order.
func (p *Parser) decodePoint(r *stream.Reader) (curve.Point, error) {
	dx, err := r.Zigzag()
	if err != nil {
		return curve.Point{}, err
	}
	dy, err := r.Zigzag()
	if err != nil {
		return curve.Point{}, err
	}
	p.st.offsetX += dx
	p.st.offsetY += dy
	return curve.Point{
		X: float64(p.st.offsetX) * p.st.scale,
		Y: float64(p.st.offsetY) * p.st.scale,
	}, nil
}

func (p *Parser) semTag(r *stream.Reader) (SemTag, error) {
	s, err := r.Varint()
	return SemTag(s), err
}

func (p *Parser) parseVoid(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	switch sem {
	case SemTagFill:
		p.st.fill = true
		p.m().Fills++
	case SemTagFillOff:
		p.st.fill = false
	case SemTagObjectMember:
		p.storeMember(memberValue{kind: memberVoid})
	default:
		p.warn("void payload with unexpected semantic type")
	}
	return nil
}

func (p *Parser) parseByte(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	b, err := r.Byte()
	if err != nil {
		return err
	}
	p.routeUint(sem, uint64(b))
	return nil
}

func (p *Parser) parseInt(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	v, err := r.Uint32()
	if err != nil {
		return err
	}
	p.routeUint(sem, uint64(v))
	return nil
}

func (p *Parser) parseVarint(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	v, err := r.Varint()
	if err != nil {
		return err
	}
	p.routeUint(sem, v)
	return nil
}

// routeUint handles the integral payloads, which carry most of the
// fixed-purpose state updates.
func (p *Parser) routeUint(sem SemTag, v uint64) {
	switch sem {
	case SemTagObjectMember:
		p.storeMember(uintMember(v))
	case SemTagColor:
		p.st.color = p.remapColor(uint32(v))
	case SemTagLineWeight:
		p.st.lineWeight = float64(v) * p.st.scale
	case SemTagLayer:
		dense, isNew := p.layers.lookup(uint32(v))
		if isNew {
			p.m().Layers++
		}
		p.st.layer = dense
	case SemTagLink:
		p.setLink(uint32(v))
	case SemTagFontRef:
		p.st.font = uint32(v)
	case SemTagObjectID:
		p.st.objectID = uint32(v)
		p.st.syntheticID = false
	default:
		p.warn("integer payload with unexpected semantic type")
	}
}

func (p *Parser) setLink(id uint32) {
	p.st.link = id
	if id == 0 {
		return
	}
	if _, ok := p.links[id]; !ok {
		p.links[id] = &bounds{}
		p.linkOrder = append(p.linkOrder, id)
		p.m().Links++
	}
}

func (p *Parser) parseFloat(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	v, err := r.Float32()
	if err != nil {
		return err
	}
	p.routeFloat(sem, float64(v))
	return nil
}

func (p *Parser) parseDouble(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	v, err := r.Float64()
	if err != nil {
		return err
	}
	p.routeFloat(sem, v)
	return nil
}

func (p *Parser) routeFloat(sem SemTag, v float64) {
	switch sem {
	case SemTagObjectMember:
		p.storeMember(floatMember(v))
	case SemTagLineWeight:
		p.st.lineWeight = v * p.st.scale
	default:
		p.warn("float payload with unexpected semantic type")
	}
}

func (p *Parser) parsePoint(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	pt, err := p.decodePoint(r)
	if err != nil {
		return err
	}
	switch sem {
	case SemTagObjectMember:
		p.storeMember(pointMember(pt))
	case SemTagDot:
		p.drawDot(pt)
	default:
		p.warn("point payload with unexpected semantic type")
	}
	return nil
}

func (p *Parser) parseString(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	s, err := r.String()
	if err != nil {
		return err
	}
	if sem == SemTagObjectMember {
		p.storeMember(stringMember(s))
	} else {
		p.warn("string payload with unexpected semantic type")
	}
	return nil
}

func (p *Parser) parseObject(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	switch sem {
	case SemTagBeginObject:
		t, err := r.Varint()
		if err != nil {
			return err
		}
		p.pushFrame(ObjTag(t))
	case SemTagEndObject:
		p.popFrame()
	default:
		p.warn("object marker with unexpected semantic type")
	}
	return nil
}

func (p *Parser) parseByteArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	b, err := r.Bytes(n)
	if err != nil {
		return err
	}
	out := make([]uint32, len(b))
	for i, v := range b {
		out[i] = uint32(v)
	}
	p.routeUintArray(sem, out)
	return nil
}

func (p *Parser) parseIntArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	out := make([]uint32, 0, n)
	for range n {
		v, err := r.Uint32()
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	p.routeUintArray(sem, out)
	return nil
}

func (p *Parser) parseVarintArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	return p.readVarints(r, sem)
}

func (p *Parser) parseIndexArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	return p.readVarints(r, sem)
}

func (p *Parser) readVarints(r *stream.Reader, sem SemTag) error {
	n, err := r.Count()
	if err != nil {
		return err
	}
	out := make([]uint32, 0, n)
	for range n {
		v, err := r.Varint()
		if err != nil {
			return err
		}
		out = append(out, uint32(v))
	}
	p.routeUintArray(sem, out)
	return nil
}

func (p *Parser) routeUintArray(sem SemTag, vs []uint32) {
	if sem == SemTagObjectMember {
		p.storeMember(memberValue{kind: memberUints, u32s: vs})
	} else {
		p.warn("integer array with unexpected semantic type")
	}
}

func (p *Parser) parseFloatArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	out := make([]float32, 0, n)
	for range n {
		v, err := r.Float32()
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	p.routeFloatArray(sem, out)
	return nil
}

func (p *Parser) parseDoubleArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	out := make([]float32, 0, n)
	for range n {
		v, err := r.Float64()
		if err != nil {
			return err
		}
		out = append(out, float32(v))
	}
	p.routeFloatArray(sem, out)
	return nil
}

func (p *Parser) routeFloatArray(sem SemTag, vs []float32) {
	if sem == SemTagObjectMember {
		p.storeMember(memberValue{kind: memberFloats, f32s: vs})
	} else {
		p.warn("float array with unexpected semantic type")
	}
}

func (p *Parser) parseStringArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	out := make([]string, 0, n)
	for range n {
		s, err := r.String()
		if err != nil {
			return err
		}
		out = append(out, s)
	}
	if sem == SemTagObjectMember {
		p.storeMember(memberValue{kind: memberStrings, strs: out})
	} else {
		p.warn("string array with unexpected semantic type")
	}
	return nil
}

func (p *Parser) parsePointArray(r *stream.Reader) error {
	sem, err := p.semTag(r)
	if err != nil {
		return err
	}
	n, err := r.Count()
	if err != nil {
		return err
	}
	pts := make([]curve.Point, 0, n)
	for range n {
		pt, err := p.decodePoint(r)
		if err != nil {
			return err
		}
		pts = append(pts, pt)
	}
	switch sem {
	case SemTagObjectMember:
		p.storeMember(memberValue{kind: memberPoints, pts: pts})
	case SemTagPolyline:
		p.drawPolyline(pts)
	case SemTagDot:
		for _, pt := range pts {
			p.drawDot(pt)
		}
	default:
		p.warn("point array with unexpected semantic type")
	}
	return nil
}

// assertArcTag validates the leading semantic tag of a fixed-layout
// record. A mismatch is a grammar error; the record decodes into locals
// only, so an abort cannot leak partial state.
func (p *Parser) assertArcTag(r *stream.Reader) (bool, error) {
	sem, err := p.semTag(r)
	if err != nil {
		return false, err
	}
	if sem != SemTagArc {
		p.fail("fixed-layout record with semantic type %d, want %d", sem, SemTagArc)
		return false, nil
	}
	return true, nil
}

func (p *Parser) parseCircle(r *stream.Reader) error {
	ok, err := p.assertArcTag(r)
	if err != nil || !ok {
		return err
	}
	center, err := p.decodePoint(r)
	if err != nil {
		return err
	}
	radius, err := r.Float32()
	if err != nil {
		return err
	}
	rr := float64(radius) * p.st.scale
	p.m().Circles++
	p.builder.Circle(curve.Circle{Center: center, Radius: rr}, float32(p.st.lineWeight), p.attrs())
	p.trackBounds(curve.Rect{X0: center.X - rr, Y0: center.Y - rr, X1: center.X + rr, Y1: center.Y + rr})
	return nil
}

func (p *Parser) parseCircularArc(r *stream.Reader) error {
	ok, err := p.assertArcTag(r)
	if err != nil || !ok {
		return err
	}
	center, err := p.decodePoint(r)
	if err != nil {
		return err
	}
	var radius, start, end float32
	for _, dst := range []*float32{&radius, &start, &end} {
		if *dst, err = r.Float32(); err != nil {
			return err
		}
	}
	rr := float64(radius) * p.st.scale
	p.m().CircularArcs++
	p.builder.CircularArc(center, rr, float64(start), float64(end), float32(p.st.lineWeight), p.attrs())
	p.trackBounds(curve.Rect{X0: center.X - rr, Y0: center.Y - rr, X1: center.X + rr, Y1: center.Y + rr})
	return nil
}

func (p *Parser) parseEllipticalArc(r *stream.Reader) error {
	ok, err := p.assertArcTag(r)
	if err != nil || !ok {
		return err
	}
	center, err := p.decodePoint(r)
	if err != nil {
		return err
	}
	var major, minor, rotation, start, end float32
	for _, dst := range []*float32{&major, &minor, &rotation, &start, &end} {
		if *dst, err = r.Float32(); err != nil {
			return err
		}
	}
	ma := float64(major) * p.st.scale
	mi := float64(minor) * p.st.scale
	p.m().Arcs++
	p.builder.EllipticalArc(center, ma, mi, float64(rotation), float64(start), float64(end),
		float32(p.st.lineWeight), p.attrs())
	ext := max(ma, mi)
	p.trackBounds(curve.Rect{X0: center.X - ext, Y0: center.Y - ext, X1: center.X + ext, Y1: center.Y + ext})
	return nil
}

func (p *Parser) drawPolyline(pts []curve.Point) {
	if len(pts) == 0 {
		return
	}
	if len(pts) == 1 {
		p.drawDot(pts[0])
		return
	}
	p.m().Polylines++
	w := float32(p.st.lineWeight)
	a := p.attrs()
	for i := 1; i < len(pts); i++ {
		p.builder.Segment(pts[i-1], pts[i], w, a)
	}
	p.trackBounds(pointRect(pts))
}

func (p *Parser) drawDot(pt curve.Point) {
	p.m().Dots++
	p.builder.Dot(pt, float32(p.st.lineWeight), p.attrs())
	p.trackBounds(curve.Rect{X0: pt.X, Y0: pt.Y, X1: pt.X, Y1: pt.Y})
}

func pointRect(pts []curve.Point) curve.Rect {
	r := curve.Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, pt := range pts[1:] {
		r.X0 = min(r.X0, pt.X)
		r.Y0 = min(r.Y0, pt.Y)
		r.X1 = max(r.X1, pt.X)
		r.Y1 = max(r.Y1, pt.Y)
	}
	return r
}
