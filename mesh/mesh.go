// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mesh turns decoded f2d primitives into capacity-bounded GPU
// meshes. A Builder accumulates interleaved vertices and indices; whenever
// an append would exceed the configured ceilings, the current contents are
// sealed into an immutable Mesh and a fresh buffer is begun.
package mesh

import (
	"log/slog"
	"structs"

	"honnef.co/go/safeish"
)

// Vertex is the interleaved layout shared by all primitive kinds. Fields
// that a primitive doesn't use are zero.
//
// LineWeight carries a sign sentinel: non-negative values are page units,
// negative values are device pixels (used for antialiasing lines).
type Vertex struct {
	_ structs.HostLayout

	Pos        [2]float32 // page units
	Center     [2]float32 // arc center
	Radii      [2]float32 // arc radii (major, minor)
	UV         [2]float32 // arc angles, texture coordinates, or segment params
	Color      uint32     // premultiplied RGBA8, R in the low byte
	ObjectID   uint32
	LayerVp    uint32 // dense layer index << 16 | viewport index
	LineWeight float32
}

// Flags describe which shader features a mesh needs.
type Flags uint8

const (
	HasEllipticals Flags = 1 << iota
	HasCircles
	HasTriangleGeoms
	Instanced
)

// Mesh is an immutable snapshot of a filled buffer.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
	Flags    Flags
	// Image is the URI of the raster bound to this mesh, or empty. A mesh
	// with an image contains exactly one textured quad.
	Image string
}

// VertexBytes returns the vertex data as raw bytes for upload.
func (m *Mesh) VertexBytes() []byte {
	return safeish.SliceCast[[]byte](m.Vertices)
}

// IndexBytes returns the index data as raw bytes for upload.
func (m *Mesh) IndexBytes() []byte {
	return safeish.SliceCast[[]byte](m.Indices)
}

type Config struct {
	// MaxVertices and MaxIndices are the per-mesh ceilings. Zero selects the
	// defaults (65535 vertices / 3x that many indices).
	MaxVertices int
	MaxIndices  int
	// Instanced selects the instancing emission strategy for triangle
	// geometry; the default is bulk emission. Both produce geometrically
	// equivalent meshes.
	Instanced bool
	// OnFlush is invoked with every sealed mesh, in order.
	OnFlush func(*Mesh)
	Logger  *slog.Logger
}

const (
	DefaultMaxVertices = 65535
	// Constrained (mobile) ceiling, sized for 16-bit index space with
	// headroom for one more quad.
	MobileMaxVertices = 16383
)

// Builder accumulates primitives into the current buffer.
type Builder struct {
	verts   []Vertex
	indices []uint32
	flags   Flags

	maxVerts int
	maxIdxs  int

	instanced    bool
	pendingImage string

	onFlush func(*Mesh)
	log     *slog.Logger
}

func NewBuilder(cfg Config) *Builder {
	maxV := cfg.MaxVertices
	if maxV <= 0 {
		maxV = DefaultMaxVertices
	}
	maxI := cfg.MaxIndices
	if maxI <= 0 {
		maxI = 3 * maxV
	}
	// One quad is the largest indivisible primitive.
	maxV = max(maxV, 4)
	maxI = max(maxI, 6)
	log := cfg.Logger
	if log == nil {
		log = slog.New(nopHandler{})
	}
	return &Builder{
		maxVerts:  maxV,
		maxIdxs:   maxI,
		instanced: cfg.Instanced,
		onFlush:   cfg.OnFlush,
		log:       log,
	}
}

func (b *Builder) IsEmpty() bool { return len(b.verts) == 0 }

// BindImage attaches a raster URI to the mesh produced by the next flush.
func (b *Builder) BindImage(uri string) {
	b.pendingImage = uri
}

// ensure flushes the current buffer if appending nv vertices and ni indices
// would exceed either ceiling. Every append goes through here first; callers
// never request more than one quad at once unless it provably fits, so a
// sealed mesh can never exceed the ceilings.
func (b *Builder) ensure(nv, ni int) {
	if len(b.verts)+nv > b.maxVerts || len(b.indices)+ni > b.maxIdxs {
		b.Flush()
	}
}

// Flush seals the current buffer into a Mesh and begins a new one. Flushing
// an empty buffer with no pending image is a no-op.
func (b *Builder) Flush() *Mesh {
	if len(b.verts) == 0 && b.pendingImage == "" {
		return nil
	}
	m := &Mesh{
		Vertices: b.verts,
		Indices:  b.indices,
		Flags:    b.flags,
		Image:    b.pendingImage,
	}
	b.verts = nil
	b.indices = nil
	b.flags = 0
	b.pendingImage = ""
	if b.instanced {
		// Carried per mesh so downstream can pick the draw path.
		m.Flags |= Instanced
	}
	if b.onFlush != nil {
		b.onFlush(m)
	}
	return m
}

func (b *Builder) appendVertex(v Vertex) uint32 {
	idx := uint32(len(b.verts))
	b.verts = append(b.verts, v)
	return idx
}

func (b *Builder) appendIndices(idxs ...uint32) {
	b.indices = append(b.indices, idxs...)
}
