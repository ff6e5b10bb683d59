// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package f2d decodes F2D binary streams: compact opcode-tagged encodings
// of 2D vector sheets (polylines, arcs, tessellated fills, rasters, text,
// clips, viewports, layers). Decoding is incremental: a Parser is fed
// sequentially arriving buffer chunks and emits capacity-bounded GPU meshes
// as geometry streams in. The companion Probe locates the last safely
// decodable offset in a truncated buffer so a caller can resume a later
// fetch from exactly that point.
package f2d

import (
	"errors"
	"log/slog"

	"honnef.co/go/color"
	"honnef.co/go/curve"
	"honnef.co/go/f2d/mesh"
)

const (
	// headerMagic is the validated prefix of the 8-byte stream header. The
	// two minor-version digits that follow are recorded but not validated.
	headerMagic = "F2D01."
	headerLen   = 8
)

// ErrBadHeader reports a stream that doesn't begin with a supported F2D
// header. Nothing is decoded from such a stream.
var ErrBadHeader = errors.New("f2d: bad magic or unsupported major version")

// ErrGrammar reports an unrecoverable grammar error: an unknown opcode, an
// end-object with no open object, or a fixed-layout record whose semantic
// tag doesn't match. The decode loop stops at the first such error;
// everything committed before it remains valid.
var ErrGrammar = errors.New("f2d: grammar error")

// Options configure one Parser instance.
type Options struct {
	// ModelSpace forces hide-paper mode: no page background geometry, and
	// paper-colored geometry is remapped to BGColor.
	ModelSpace bool
	// NoShadow suppresses the page drop shadow.
	NoShadow bool
	// ExcludeTextGeometry drops tessellated text fills before they reach
	// metrics or meshes.
	ExcludeTextGeometry bool
	// ExtendStringsFetching retains per-character widths, angle, position
	// and height on string records, for precise highlighting.
	ExtendStringsFetching bool

	// Device hints. Mobile devices get a lower vertex ceiling; instancing
	// is used only when the device supports it.
	IsMobile           bool
	IsWebGL2           bool
	SupportsInstancing bool

	// BGColor replaces paper-colored values in hide-paper mode. Nil means
	// transparent.
	BGColor *color.Color

	// OnMesh is invoked once per flushed mesh, in stream order.
	OnMesh func(*mesh.Mesh)
	// OnDone is invoked once with the final result when Finish is called.
	OnDone func(*Result)

	// Logger receives decode warnings and diagnostics. Nil disables
	// logging.
	Logger *slog.Logger
}

func (o *Options) meshConfig(onFlush func(*mesh.Mesh), log *slog.Logger) mesh.Config {
	maxV := mesh.DefaultMaxVertices
	if o.IsMobile && !o.IsWebGL2 {
		maxV = mesh.MobileMaxVertices
	}
	return mesh.Config{
		MaxVertices: maxV,
		Instanced:   o.SupportsInstancing,
		OnFlush:     onFlush,
		Logger:      log,
	}
}

// Result is everything a fully driven Parser hands back.
type Result struct {
	// Meshes in emission order. Meshes with a bound raster image contain
	// exactly one textured quad.
	Meshes []*mesh.Mesh

	Strings []StringRecord
	Links   []LinkRecord

	Viewports []Viewport
	// Clips is parallel-indexed with Viewports where the stream provides
	// them.
	Clips []Clip
	Fonts []Font

	// Metrics holds one bucket per viewport, index 0 being the sheet's
	// default context.
	Metrics []*ViewportMetrics

	// LayerMap maps sparse source layer indices to dense render indices.
	LayerMap map[uint32]uint16
	// LayerTree groups layers by their pipe-delimited name segments.
	LayerTree *LayerGroup

	// PageBox is the union of the page background and all emitted
	// geometry, in page units.
	PageBox curve.Rect

	// Opcodes is the number of records processed, for diagnostics.
	Opcodes int

	// Err records the grammar error that stopped decoding early, if any.
	// Partial output is first-class: all fields above remain valid.
	Err error
}

// Viewport is a geometry/metrics grouping context. Viewports are flat and
// sequential; the grammar has no marker to restore a previous one.
type Viewport struct {
	Name             string
	UnitsPerPageUnit float64
}

type Clip struct {
	Rect curve.Rect
}

type Font struct {
	Name     string
	FullName string
	Flags    uint64
}

// StringRecord is one decoded text object. The extended fields are only
// populated with Options.ExtendStringsFetching.
type StringRecord struct {
	Text string
	// ObjectID is the owning object. Untagged text gets a synthetic
	// placeholder id so its geometry stays addressable.
	ObjectID uint32
	// Box is the bounding box accumulated from the geometry emitted while
	// this string was current.
	Box curve.Rect

	Position   curve.Point
	Height     float64
	Angle      float64
	CharWidths []float32
}

// LinkRecord is the accumulated bounding box of all geometry tagged with
// one hyperlink id.
type LinkRecord struct {
	ID  uint32
	Box curve.Rect
}

// option mirrors the presence/absence of compound-object fields without
// resorting to pointers.
type option[T any] struct {
	isSet bool
	value T
}

func (opt *option[T]) set(v T) {
	opt.isSet = true
	opt.value = v
}

func (opt option[T]) unwrapOr(alt T) T {
	if opt.isSet {
		return opt.value
	}
	return alt
}

// bounds is a bounding box that knows whether it has seen any geometry.
type bounds struct {
	isSet bool
	rect  curve.Rect
}

func (b *bounds) add(r curve.Rect) {
	if !b.isSet {
		b.rect = r
		b.isSet = true
		return
	}
	b.rect.X0 = min(b.rect.X0, r.X0)
	b.rect.Y0 = min(b.rect.Y0, r.Y0)
	b.rect.X1 = max(b.rect.X1, r.X1)
	b.rect.Y1 = max(b.rect.Y1, r.Y1)
}
