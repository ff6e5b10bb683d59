// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package f2d

import (
	"context"
	"log/slog"

	"honnef.co/go/curve"
	"honnef.co/go/f2d/mesh"
)

// syntheticIDBase marks object ids assigned to untagged text. Ids in this
// range keep the geometry addressable without colliding with real db ids.
const syntheticIDBase = 0x8000_0000

// beginObject runs side effects tied to a start marker.
func (p *Parser) beginObject(tag ObjTag) {
	if tag != ObjTagText {
		return
	}
	// Reserve the string's slot now; geometry emitted while the text is
	// open grows its bounding box.
	p.currentString = len(p.strs)
	p.strs = append(p.strs, StringRecord{})
	p.strBoxes = append(p.strBoxes, bounds{})
	p.textDepth++
	if p.st.objectID == 0 {
		// Untagged text would ambiguously collapse onto id 0.
		p.syntheticCounter++
		p.st.objectID = syntheticIDBase + p.syntheticCounter
		p.st.syntheticID = true
	}
}

// finalize turns a completed frame's scratch record into geometry, metrics,
// or registry entries.
func (p *Parser) finalize(fr *frame) {
	switch fr.tag {
	case ObjTagSheet:
		p.finalizeSheet(fr)
	case ObjTagViewport:
		p.finalizeViewport(fr)
	case ObjTagClip:
		p.finalizeClip(fr)
	case ObjTagPolyTriangle:
		p.finalizePolyTriangle(fr)
	case ObjTagRaster:
		p.finalizeRaster(fr)
	case ObjTagText:
		p.finalizeText(fr)
	case ObjTagFontDef:
		p.finalizeFontDef(fr)
	}
}

func (p *Parser) finalizeSheet(fr *frame) {
	w := fr.scr.paperWidth.unwrapOr(0)
	h := fr.scr.paperHeight.unwrapOr(0)
	if w > 0 && h > 0 {
		p.pageBox.add(curve.Rect{X1: w, Y1: h})
	}
}

// finalizeViewport makes the new viewport the current context for all
// subsequently emitted primitives. The grammar has no restore marker;
// viewports are flat and sequential.
func (p *Parser) finalizeViewport(fr *frame) {
	p.viewports = append(p.viewports, Viewport{
		Name:             fr.scr.vpName.unwrapOr(""),
		UnitsPerPageUnit: fr.scr.vpScale.unwrapOr(1),
	})
	p.metrics = append(p.metrics, &ViewportMetrics{})
	p.st.viewport = uint16(len(p.viewports) - 1)
}

func (p *Parser) finalizeClip(fr *frame) {
	p.clips = append(p.clips, Clip{Rect: curve.Rect{
		X0: fr.scr.clipMinX.unwrapOr(0),
		Y0: fr.scr.clipMinY.unwrapOr(0),
		X1: fr.scr.clipMaxX.unwrapOr(0),
		Y1: fr.scr.clipMaxY.unwrapOr(0),
	}})
	p.m().Clips++
}

func (p *Parser) finalizePolyTriangle(fr *frame) {
	scr := &fr.scr
	if !scr.triPoints.isSet || !scr.triIndices.isSet {
		p.warn("polytriangle missing points or indices")
		return
	}
	pts := scr.triPoints.value
	idxs := scr.triIndices.value

	// Triangles referencing out-of-range vertices are dropped whole.
	valid := idxs
	for i := 0; i+2 < len(idxs); i += 3 {
		if int(idxs[i]) >= len(pts) || int(idxs[i+1]) >= len(pts) || int(idxs[i+2]) >= len(pts) {
			valid = filterTriangles(idxs, len(pts))
			p.warn("polytriangle with out-of-range indices")
			break
		}
	}
	if len(valid) < 3 {
		return
	}

	inText := p.textDepth > 0
	if inText && p.opts.ExcludeTextGeometry {
		// Dropped before metrics and emission.
		return
	}

	var colors []uint32
	if scr.triColors.isSet {
		colors = scr.triColors.value
		for i, c := range colors {
			colors[i] = p.remapColor(c)
		}
	}

	p.m().Triangles += len(valid) / 3
	box := p.builder.Triangles(mesh.TriangleParams{
		Points:        pts,
		Indices:       valid,
		Colors:        colors,
		FallbackColor: p.st.color,
		ObjectID:      p.st.objectID,
		LayerVp:       p.st.layerVp(),
		Antialias:     !inText,
	})
	p.trackBounds(box)
}

func filterTriangles(idxs []uint32, numPoints int) []uint32 {
	out := make([]uint32, 0, len(idxs))
	for i := 0; i+2 < len(idxs); i += 3 {
		if int(idxs[i]) < numPoints && int(idxs[i+1]) < numPoints && int(idxs[i+2]) < numPoints {
			out = append(out, idxs[i], idxs[i+1], idxs[i+2])
		}
	}
	return out
}

// finalizeRaster emits a textured quad into a mesh of its own: each raster
// has a unique texture binding, so the current buffer is sealed before the
// quad and again right after.
func (p *Parser) finalizeRaster(fr *frame) {
	if p.manifest == nil {
		// No image table to resolve against. Not an error.
		p.warn("raster without manifest, skipped")
		return
	}
	scr := &fr.scr
	if !scr.rasterPos.isSet || !scr.rasterWidth.isSet || !scr.rasterHeight.isSet || !scr.rasterImageID.isSet {
		p.warn("raster missing fields")
		return
	}
	uri, ok := p.manifest.ImageURI(scr.rasterImageID.value)
	if !ok {
		p.log.LogAttrs(context.Background(), slog.LevelWarn, "raster image not in manifest",
			slog.Uint64("image", scr.rasterImageID.value))
		return
	}

	pos := scr.rasterPos.value
	w := scr.rasterWidth.value * p.st.scale
	h := scr.rasterHeight.value * p.st.scale
	// The position anchors the raster's top-left corner, Y-down in source
	// convention; in page units (Y-up) the quad extends below the anchor.
	rect := curve.Rect{X0: pos.X, Y0: pos.Y - h, X1: pos.X + w, Y1: pos.Y}

	p.builder.Flush()
	p.builder.TexturedQuad(rect, mesh.Attrs{
		Color:    0xFFFF_FFFF,
		ObjectID: p.st.objectID,
		LayerVp:  p.st.layerVp(),
	})
	p.builder.BindImage(uri)
	p.builder.Flush()

	p.m().Rasters++
	p.trackBounds(rect)
}

func (p *Parser) finalizeText(fr *frame) {
	// The depth must drop on every path; a nested text clears currentString
	// when it ends, and the outer end still has to unwind its level.
	if p.textDepth > 0 {
		p.textDepth--
	}
	if p.currentString < 0 {
		p.warn("text end without reserved string")
		return
	}
	scr := &fr.scr
	rec := &p.strs[p.currentString]
	rec.Text = scr.textStr.unwrapOr("")
	rec.ObjectID = p.st.objectID
	rec.Box = p.strBoxes[p.currentString].rect
	if p.opts.ExtendStringsFetching {
		rec.Position = scr.textPos.unwrapOr(curve.Point{})
		rec.Height = scr.textHeight.unwrapOr(0) * p.st.scale
		rec.Angle = scr.textAngle.unwrapOr(0)
		rec.CharWidths = scr.textWidths.unwrapOr(nil)
	}
	m := p.m()
	m.Texts++
	m.Strings = append(m.Strings, rec.Text)

	p.currentString = -1
	if p.st.syntheticID {
		p.st.objectID = 0
		p.st.syntheticID = false
	}
}

// finalizeFontDef stores the font under an auto-incrementing id, which
// becomes the current font. Id 0 means "no font".
func (p *Parser) finalizeFontDef(fr *frame) {
	p.fonts = append(p.fonts, Font{
		Name:     fr.scr.fontName.unwrapOr(""),
		FullName: fr.scr.fontFullName.unwrapOr(""),
		Flags:    fr.scr.fontFlags.unwrapOr(0),
	})
	p.st.font = uint32(len(p.fonts))
}

// emitPageBackground constructs the page geometry the moment the sheet's
// paperColor member lands, before any other geometry: drop shadow (under),
// page quad, border. Hide-paper mode skips all of it.
func (p *Parser) emitPageBackground(fr *frame) {
	if fr.tag != ObjTagSheet || p.pageDone {
		return
	}
	p.pageDone = true
	p.st.paperColor = fr.scr.paperColor.unwrapOr(0)
	if p.hidePaper {
		return
	}
	w := fr.scr.paperWidth.unwrapOr(0)
	h := fr.scr.paperHeight.unwrapOr(0)
	if w <= 0 || h <= 0 {
		p.warn("paper color without paper dimensions")
		return
	}

	a := mesh.Attrs{Color: p.st.paperColor, LayerVp: p.st.layerVp()}

	if !p.opts.NoShadow {
		// Painter order puts the shadow under the page.
		s := shadowRatio * max(w, h)
		p.builder.Triangles(mesh.TriangleParams{
			Points: []curve.Point{
				{X: s, Y: -s}, {X: w + s, Y: -s},
				{X: s, Y: h - s}, {X: w + s, Y: h - s},
			},
			Indices:       []uint32{0, 1, 2, 2, 1, 3},
			FallbackColor: shadowColor,
			LayerVp:       a.LayerVp,
		})
	}

	p.builder.Triangles(mesh.TriangleParams{
		Points: []curve.Point{
			{X: 0, Y: 0}, {X: w, Y: 0},
			{X: 0, Y: h}, {X: w, Y: h},
		},
		Indices:       []uint32{0, 1, 2, 2, 1, 3},
		FallbackColor: a.Color,
		LayerVp:       a.LayerVp,
	})

	border := [4][2]curve.Point{
		{{X: 0, Y: 0}, {X: w, Y: 0}},
		{{X: w, Y: 0}, {X: w, Y: h}},
		{{X: w, Y: h}, {X: 0, Y: h}},
		{{X: 0, Y: h}, {X: 0, Y: 0}},
	}
	for _, seg := range border {
		p.builder.Segment(seg[0], seg[1], mesh.AALineWeight, mesh.Attrs{
			Color:   borderColor,
			LayerVp: a.LayerVp,
		})
	}

	p.pageBox.add(curve.Rect{X1: w, Y1: h})
}

const (
	shadowRatio = 0.0075
	shadowColor = 0x5000_0000 // translucent black, premultiplied
	borderColor = 0xFF33_3333
)
