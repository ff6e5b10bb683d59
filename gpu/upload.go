// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gpu materializes decoded meshes as wgpu buffers. It stops at
// buffer upload; pipelines, shaders, and drawing belong to the embedding
// renderer.
package gpu

import (
	"honnef.co/go/f2d/fmath"
	"honnef.co/go/f2d/mesh"
	"honnef.co/go/wgpu"
)

// MeshBuffers is the device-side form of one mesh.
type MeshBuffers struct {
	Vertices   *wgpu.Buffer
	Indices    *wgpu.Buffer
	NumIndices uint32
	Flags      mesh.Flags
	// Image is the raster URI bound to the mesh; texture creation is the
	// caller's concern, since image bytes live behind the manifest's URIs.
	Image string
}

// Upload copies a mesh's vertex and index data into new device buffers.
func Upload(dev *wgpu.Device, queue *wgpu.Queue, m *mesh.Mesh) MeshBuffers {
	vbuf := createBuffer(dev, "f2d vertices", m.VertexBytes(), wgpu.BufferUsageVertex)
	ibuf := createBuffer(dev, "f2d indices", m.IndexBytes(), wgpu.BufferUsageIndex)
	queue.WriteBuffer(vbuf, 0, m.VertexBytes())
	queue.WriteBuffer(ibuf, 0, m.IndexBytes())
	return MeshBuffers{
		Vertices:   vbuf,
		Indices:    ibuf,
		NumIndices: uint32(len(m.Indices)),
		Flags:      m.Flags,
		Image:      m.Image,
	}
}

// UploadAll uploads meshes in emission order.
func UploadAll(dev *wgpu.Device, queue *wgpu.Queue, meshes []*mesh.Mesh) []MeshBuffers {
	out := make([]MeshBuffers, 0, len(meshes))
	for _, m := range meshes {
		out = append(out, Upload(dev, queue, m))
	}
	return out
}

func createBuffer(dev *wgpu.Device, label string, data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	// WriteBuffer requires 4-byte-aligned sizes.
	size := fmath.AlignUp(uint64(len(data)), 4)
	return dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage | wgpu.BufferUsageCopyDst,
	})
}

// Release frees the device buffers.
func (mb *MeshBuffers) Release() {
	if mb.Vertices != nil {
		mb.Vertices.Release()
		mb.Vertices = nil
	}
	if mb.Indices != nil {
		mb.Indices.Release()
		mb.Indices = nil
	}
}
