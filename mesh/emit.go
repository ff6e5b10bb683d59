// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mesh

import (
	"context"
	"log/slog"
	"math"

	"honnef.co/go/curve"
)

// AALineWeight is the line weight given to antialiasing lines: one device
// pixel, negative per the Vertex.LineWeight sign sentinel.
const AALineWeight = -1.0

// Attrs are the per-primitive attributes stamped on every vertex.
type Attrs struct {
	Color    uint32 // premultiplied RGBA8
	ObjectID uint32
	LayerVp  uint32
}

// Segment appends a line segment as a four-vertex quad. The vertex shader
// extrudes the quad to the line weight; UV carries (endpoint param, side).
func (b *Builder) Segment(p0, p1 curve.Point, weight float32, a Attrs) {
	b.ensure(4, 6)
	base := b.appendVertex(segmentVertex(p0, 0, -1, weight, a))
	b.appendVertex(segmentVertex(p0, 0, 1, weight, a))
	b.appendVertex(segmentVertex(p1, 1, -1, weight, a))
	b.appendVertex(segmentVertex(p1, 1, 1, weight, a))
	b.appendIndices(base, base+1, base+2, base+2, base+1, base+3)
}

func segmentVertex(p curve.Point, param, side, weight float32, a Attrs) Vertex {
	return Vertex{
		Pos:        [2]float32{float32(p.X), float32(p.Y)},
		UV:         [2]float32{param, side},
		Color:      a.Color,
		ObjectID:   a.ObjectID,
		LayerVp:    a.LayerVp,
		LineWeight: weight,
	}
}

// Dot appends a degenerate segment rendered as a round point.
func (b *Builder) Dot(p curve.Point, weight float32, a Attrs) {
	b.Segment(p, p, weight, a)
}

// Circle appends a full circle as an arc quad.
func (b *Builder) Circle(c curve.Circle, weight float32, a Attrs) {
	b.arcQuad(c.Center, c.Radius, c.Radius, 0, 2*math.Pi, weight, a, HasCircles)
}

// CircularArc appends a circular arc from start to end, in radians,
// counter-clockwise.
func (b *Builder) CircularArc(center curve.Point, radius, start, end float64, weight float32, a Attrs) {
	b.arcQuad(center, radius, radius, start, end, weight, a, HasCircles)
}

// EllipticalArc appends an elliptical arc. rotation is the tilt of the
// major axis, angles are measured against it.
func (b *Builder) EllipticalArc(center curve.Point, major, minor, rotation, start, end float64, weight float32, a Attrs) {
	// Rotation is folded into the start/end parameters downstream; the quad
	// has to cover the rotated extent, so it is sized to the major radius.
	b.arcQuad(center, major, minor, rotation+start, rotation+end, weight, a, HasEllipticals)
}

// arcQuad appends a screen-aligned quad covering the arc's bounding circle.
// Center and Radii carry the parametric data; UV carries the angular range.
func (b *Builder) arcQuad(center curve.Point, rx, ry, start, end float64, weight float32, a Attrs, flag Flags) {
	b.ensure(4, 6)
	b.flags |= flag
	pad := float64(max(weight, 0)) / 2
	ext := max(rx, ry) + pad
	cx, cy := float32(center.X), float32(center.Y)
	mk := func(dx, dy float64) Vertex {
		return Vertex{
			Pos:        [2]float32{float32(center.X + dx), float32(center.Y + dy)},
			Center:     [2]float32{cx, cy},
			Radii:      [2]float32{float32(rx), float32(ry)},
			UV:         [2]float32{float32(start), float32(end)},
			Color:      a.Color,
			ObjectID:   a.ObjectID,
			LayerVp:    a.LayerVp,
			LineWeight: weight,
		}
	}
	base := b.appendVertex(mk(-ext, -ext))
	b.appendVertex(mk(ext, -ext))
	b.appendVertex(mk(-ext, ext))
	b.appendVertex(mk(ext, ext))
	b.appendIndices(base, base+1, base+2, base+2, base+1, base+3)
}

// TexturedQuad appends a rectangle carrying texture coordinates. The mesh it
// ends up in is expected to have an image bound via BindImage.
func (b *Builder) TexturedQuad(r curve.Rect, a Attrs) {
	b.ensure(4, 6)
	b.flags |= HasTriangleGeoms
	mk := func(x, y float64, u, v float32) Vertex {
		return Vertex{
			Pos:      [2]float32{float32(x), float32(y)},
			UV:       [2]float32{u, v},
			Color:    a.Color,
			ObjectID: a.ObjectID,
			LayerVp:  a.LayerVp,
		}
	}
	base := b.appendVertex(mk(r.X0, r.Y0, 0, 0))
	b.appendVertex(mk(r.X1, r.Y0, 1, 0))
	b.appendVertex(mk(r.X0, r.Y1, 0, 1))
	b.appendVertex(mk(r.X1, r.Y1, 1, 1))
	b.appendIndices(base, base+1, base+2, base+2, base+1, base+3)
}

// TriangleParams describes one tessellated fill.
type TriangleParams struct {
	Points  []curve.Point
	Indices []uint32
	// Colors holds optional per-vertex colors, parallel to Points. When
	// empty, FallbackColor applies to every vertex.
	Colors        []uint32
	FallbackColor uint32
	ObjectID      uint32
	LayerVp       uint32
	// Antialias requests thin device-space lines along silhouette edges.
	Antialias bool
}

func (p *TriangleParams) colorAt(i uint32) uint32 {
	if len(p.Colors) > int(i) {
		return p.Colors[i]
	}
	return p.FallbackColor
}

// Triangles appends a tessellated fill using the builder's emission
// strategy and returns the bounding box of the submitted points. Bulk mode
// appends the shared vertices once and a rebased index list; instancing
// mode appends one self-contained triangle per index triple. Both produce
// geometrically equivalent output.
//
// A fill too large to share one buffer is always emitted per triangle,
// which chunks across flushes and keeps every sealed mesh under the
// capacity ceilings.
func (b *Builder) Triangles(p TriangleParams) curve.Rect {
	if len(p.Points) == 0 || len(p.Indices) < 3 {
		return curve.Rect{}
	}
	if b.instanced || len(p.Points) > b.maxVerts || len(p.Indices) > b.maxIdxs {
		b.trianglesInstanced(p)
	} else {
		b.trianglesBulk(p)
	}
	if p.Antialias {
		b.antialiasEdges(p)
	}
	return pointBounds(p.Points)
}

func (b *Builder) trianglesBulk(p TriangleParams) {
	b.ensure(len(p.Points), len(p.Indices))
	b.flags |= HasTriangleGeoms
	base := uint32(len(b.verts))
	for i, pt := range p.Points {
		b.appendVertex(triangleVertex(pt, p.colorAt(uint32(i)), p))
	}
	for _, idx := range p.Indices {
		b.appendIndices(base + idx)
	}
}

func (b *Builder) trianglesInstanced(p TriangleParams) {
	for i := 0; i+2 < len(p.Indices); i += 3 {
		b.ensure(3, 3)
		b.flags |= HasTriangleGeoms
		for _, idx := range p.Indices[i : i+3] {
			if int(idx) >= len(p.Points) {
				continue
			}
			v := b.appendVertex(triangleVertex(p.Points[idx], p.colorAt(idx), p))
			b.appendIndices(v)
		}
	}
}

func triangleVertex(pt curve.Point, color uint32, p TriangleParams) Vertex {
	return Vertex{
		Pos:      [2]float32{float32(pt.X), float32(pt.Y)},
		Color:    color,
		ObjectID: p.ObjectID,
		LayerVp:  p.LayerVp,
	}
}

// antialiasEdges classifies the triangle edges by adjacency: an undirected
// edge referenced by exactly one triangle lies on the silhouette and gets a
// one-pixel line; edges shared by two triangles are interior and
// suppressed.
func (b *Builder) antialiasEdges(p TriangleParams) {
	type edge [2]uint32
	counts := make(map[edge]int)
	for i := 0; i+2 < len(p.Indices); i += 3 {
		tri := p.Indices[i : i+3]
		for j := range 3 {
			a, c := tri[j], tri[(j+1)%3]
			if a > c {
				a, c = c, a
			}
			counts[edge{a, c}]++
		}
	}
	for i := 0; i+2 < len(p.Indices); i += 3 {
		tri := p.Indices[i : i+3]
		for j := range 3 {
			a, c := tri[j], tri[(j+1)%3]
			k := edge{a, c}
			if a > c {
				k = edge{c, a}
			}
			if counts[k] != 1 {
				continue
			}
			counts[k] = 0 // emit each boundary edge once
			if int(a) >= len(p.Points) || int(c) >= len(p.Points) {
				continue
			}
			ca, cc := p.colorAt(a), p.colorAt(c)
			if ca != cc {
				// The line gets a single color; a gradient across the edge
				// can only be approximated.
				b.log.LogAttrs(context.Background(), slog.LevelWarn,
					"antialiasing edge spans a color gradient",
					slog.Uint64("v0", uint64(a)), slog.Uint64("v1", uint64(c)))
			}
			b.Segment(p.Points[a], p.Points[c], AALineWeight, Attrs{
				Color:    ca,
				ObjectID: p.ObjectID,
				LayerVp:  p.LayerVp,
			})
		}
	}
}

func pointBounds(pts []curve.Point) curve.Rect {
	r := curve.Rect{X0: pts[0].X, Y0: pts[0].Y, X1: pts[0].X, Y1: pts[0].Y}
	for _, p := range pts[1:] {
		r.X0 = min(r.X0, p.X)
		r.Y0 = min(r.Y0, p.Y)
		r.X1 = max(r.X1, p.X)
		r.Y1 = max(r.Y1, p.Y)
	}
	return r
}
