// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package f2d

import (
	"context"
	"log/slog"

	"honnef.co/go/curve"
)

// fieldID names one expected member of a compound object. Each object type
// declares its fields in arrival order; the generic object-member semantic
// routes a value to the frame's next undelivered field.
type fieldID uint8

const (
	fieldPaperWidth fieldID = iota
	fieldPaperHeight
	fieldUnits
	fieldSheetWidth
	fieldSheetHeight
	fieldPaperColor

	fieldViewportName
	fieldViewportScale

	fieldClipMinX
	fieldClipMinY
	fieldClipMaxX
	fieldClipMaxY

	fieldTriPoints
	fieldTriIndices
	fieldTriColors

	fieldRasterPosition
	fieldRasterWidth
	fieldRasterHeight
	fieldRasterImageID

	fieldTextString
	fieldTextPosition
	fieldTextHeight
	fieldTextAngle
	fieldTextWidths

	fieldFontName
	fieldFontFullName
	fieldFontFlags
)

var fieldNames = map[fieldID]string{
	fieldPaperWidth:     "paperWidth",
	fieldPaperHeight:    "paperHeight",
	fieldUnits:          "units",
	fieldSheetWidth:     "width",
	fieldSheetHeight:    "height",
	fieldPaperColor:     "paperColor",
	fieldViewportName:   "name",
	fieldViewportScale:  "unitsPerPageUnit",
	fieldClipMinX:       "minX",
	fieldClipMinY:       "minY",
	fieldClipMaxX:       "maxX",
	fieldClipMaxY:       "maxY",
	fieldTriPoints:      "points",
	fieldTriIndices:     "indices",
	fieldTriColors:      "colors",
	fieldRasterPosition: "position",
	fieldRasterWidth:    "width",
	fieldRasterHeight:   "height",
	fieldRasterImageID:  "imageID",
	fieldTextString:     "text",
	fieldTextPosition:   "position",
	fieldTextHeight:     "height",
	fieldTextAngle:      "angle",
	fieldTextWidths:     "widths",
	fieldFontName:       "name",
	fieldFontFullName:   "fullName",
	fieldFontFlags:      "flags",
}

// objectFields lists each object type's members in declaration order.
var objectFields = map[ObjTag][]fieldID{
	ObjTagSheet: {
		fieldPaperWidth, fieldPaperHeight, fieldUnits,
		fieldSheetWidth, fieldSheetHeight, fieldPaperColor,
	},
	ObjTagViewport: {fieldViewportName, fieldViewportScale},
	ObjTagClip:     {fieldClipMinX, fieldClipMinY, fieldClipMaxX, fieldClipMaxY},
	ObjTagPolyTriangle: {
		fieldTriPoints, fieldTriIndices, fieldTriColors,
	},
	ObjTagRaster: {
		fieldRasterPosition, fieldRasterWidth, fieldRasterHeight,
		fieldRasterImageID,
	},
	ObjTagText: {
		fieldTextString, fieldTextPosition, fieldTextHeight,
		fieldTextAngle, fieldTextWidths,
	},
	ObjTagFontDef: {fieldFontName, fieldFontFullName, fieldFontFlags},
}

// frame is one open compound object: its type, an explicit cursor into its
// expected fields, and the scratch record accumulating their values.
type frame struct {
	tag  ObjTag
	next int
	scr  scratch
}

// scratch is the union of all object types' field storage. Only the fields
// of the frame's type are ever touched; presence is tracked per field so
// finalizers can tell missing members apart from zero values.
type scratch struct {
	paperWidth  option[float64]
	paperHeight option[float64]
	units       option[string]
	sheetWidth  option[float64]
	sheetHeight option[float64]
	paperColor  option[uint32]

	vpName  option[string]
	vpScale option[float64]

	clipMinX option[float64]
	clipMinY option[float64]
	clipMaxX option[float64]
	clipMaxY option[float64]

	triPoints  option[[]curve.Point]
	triIndices option[[]uint32]
	triColors  option[[]uint32]

	rasterPos     option[curve.Point]
	rasterWidth   option[float64]
	rasterHeight  option[float64]
	rasterImageID option[uint64]

	textStr    option[string]
	textPos    option[curve.Point]
	textHeight option[float64]
	textAngle  option[float64]
	textWidths option[[]float32]

	fontName     option[string]
	fontFullName option[string]
	fontFlags    option[uint64]
}

// memberValue is one decoded payload on its way into a frame field.
type memberValue struct {
	kind memberKind
	num  float64
	u    uint64
	str  string
	pt   curve.Point
	pts  []curve.Point
	u32s []uint32
	f32s []float32
	strs []string
}

type memberKind uint8

const (
	memberVoid memberKind = iota
	memberUint
	memberFloat
	memberString
	memberPoint
	memberPoints
	memberUints
	memberFloats
	memberStrings
)

func uintMember(v uint64) memberValue    { return memberValue{kind: memberUint, u: v} }
func floatMember(v float64) memberValue  { return memberValue{kind: memberFloat, num: v} }
func stringMember(v string) memberValue  { return memberValue{kind: memberString, str: v} }
func pointMember(v curve.Point) memberValue {
	return memberValue{kind: memberPoint, pt: v}
}

// asFloat widens numeric payloads; ok is false for everything else.
func (v memberValue) asFloat() (float64, bool) {
	switch v.kind {
	case memberFloat:
		return v.num, true
	case memberUint:
		return float64(v.u), true
	}
	return 0, false
}

func (v memberValue) asUint() (uint64, bool) {
	if v.kind == memberUint {
		return v.u, true
	}
	return 0, false
}

// pushFrame opens a compound object. Unrecognized types get an unknown
// frame so the end marker still balances, and set the error flag.
func (p *Parser) pushFrame(tag ObjTag) {
	if _, ok := objectFields[tag]; !ok && tag != objTagUnknown {
		p.fail("unknown object type %d", uint32(tag))
		tag = objTagUnknown
	}
	p.stack = append(p.stack, frame{tag: tag})
	p.beginObject(tag)
}

// popFrame closes the innermost object and runs its finalizer. An end
// marker with no open object is a protocol violation; it is reported and
// decoding stops, but committed output stays intact.
func (p *Parser) popFrame() {
	if len(p.stack) == 0 {
		p.fail("end-object with no open object")
		return
	}
	fr := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if fields := objectFields[fr.tag]; fr.next < len(fields) {
		// Undelivered fields are dropped with the frame.
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "object ended with undelivered fields",
			slog.Uint64("object", uint64(fr.tag)),
			slog.String("next", fieldNames[fields[fr.next]]))
	}
	p.finalize(&fr)
}

// storeMember routes a generic object-member value to the open frame's
// next expected field.
func (p *Parser) storeMember(v memberValue) {
	if len(p.stack) == 0 {
		p.warn("object member with no open object")
		return
	}
	fr := &p.stack[len(p.stack)-1]
	fields := objectFields[fr.tag]
	if fr.next >= len(fields) {
		// More members than the queue was seeded with. Tolerated.
		p.warn("object member overflow")
		return
	}
	id := fields[fr.next]
	fr.next++
	p.storeField(fr, id, v)
}

func (p *Parser) storeField(fr *frame, id fieldID, v memberValue) {
	bad := func() {
		p.warn("wrong payload for field " + fieldNames[id])
	}
	scr := &fr.scr
	switch id {
	case fieldPaperWidth:
		storeFloat(&scr.paperWidth, v, bad)
	case fieldPaperHeight:
		storeFloat(&scr.paperHeight, v, bad)
	case fieldUnits:
		storeString(&scr.units, v, bad)
	case fieldSheetWidth:
		storeFloat(&scr.sheetWidth, v, bad)
		p.updateScale(fr)
	case fieldSheetHeight:
		storeFloat(&scr.sheetHeight, v, bad)
		p.updateScale(fr)
	case fieldPaperColor:
		if u, ok := v.asUint(); ok {
			scr.paperColor.set(uint32(u))
			// Ordering is load-bearing: the page background is built the
			// moment the color lands, before any other geometry.
			p.emitPageBackground(fr)
		} else {
			bad()
		}
	case fieldViewportName:
		storeString(&scr.vpName, v, bad)
	case fieldViewportScale:
		storeFloat(&scr.vpScale, v, bad)
	case fieldClipMinX:
		storeFloat(&scr.clipMinX, v, bad)
	case fieldClipMinY:
		storeFloat(&scr.clipMinY, v, bad)
	case fieldClipMaxX:
		storeFloat(&scr.clipMaxX, v, bad)
	case fieldClipMaxY:
		storeFloat(&scr.clipMaxY, v, bad)
	case fieldTriPoints:
		if v.kind == memberPoints {
			scr.triPoints.set(v.pts)
		} else {
			bad()
		}
	case fieldTriIndices:
		if v.kind == memberUints {
			scr.triIndices.set(v.u32s)
		} else {
			bad()
		}
	case fieldTriColors:
		if v.kind == memberUints {
			scr.triColors.set(v.u32s)
		} else {
			bad()
		}
	case fieldRasterPosition:
		if v.kind == memberPoint {
			scr.rasterPos.set(v.pt)
		} else {
			bad()
		}
	case fieldRasterWidth:
		storeFloat(&scr.rasterWidth, v, bad)
	case fieldRasterHeight:
		storeFloat(&scr.rasterHeight, v, bad)
	case fieldRasterImageID:
		if u, ok := v.asUint(); ok {
			scr.rasterImageID.set(u)
		} else {
			bad()
		}
	case fieldTextString:
		storeString(&scr.textStr, v, bad)
	case fieldTextPosition:
		if v.kind == memberPoint {
			scr.textPos.set(v.pt)
		} else {
			bad()
		}
	case fieldTextHeight:
		storeFloat(&scr.textHeight, v, bad)
	case fieldTextAngle:
		storeFloat(&scr.textAngle, v, bad)
	case fieldTextWidths:
		if v.kind == memberFloats {
			scr.textWidths.set(v.f32s)
		} else {
			bad()
		}
	case fieldFontName:
		storeString(&scr.fontName, v, bad)
	case fieldFontFullName:
		storeString(&scr.fontFullName, v, bad)
	case fieldFontFlags:
		if u, ok := v.asUint(); ok {
			scr.fontFlags.set(u)
		} else {
			bad()
		}
	}
}

func storeFloat(dst *option[float64], v memberValue, bad func()) {
	if f, ok := v.asFloat(); ok {
		dst.set(f)
	} else {
		bad()
	}
}

func storeString(dst *option[string], v memberValue, bad func()) {
	if v.kind == memberString {
		dst.set(v.str)
	} else {
		bad()
	}
}

// updateScale derives the source-to-page-unit scale once the sheet has
// declared both its paper width and its source width.
func (p *Parser) updateScale(fr *frame) {
	if fr.tag != ObjTagSheet {
		return
	}
	pw := fr.scr.paperWidth.unwrapOr(0)
	sw := fr.scr.sheetWidth.unwrapOr(0)
	if pw > 0 && sw > 0 {
		p.st.scale = pw / sw
	}
}
