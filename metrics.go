package f2d

import (
	"encoding/binary"
	"hash/fnv"
)

// ViewportMetrics counts the geometry decoded while one viewport was
// current, plus the strings it contained. The counts and strings feed
// content signatures; text-originated geometry can be excluded via
// Options.ExcludeTextGeometry.
type ViewportMetrics struct {
	Arcs         int
	Circles      int
	CircularArcs int
	Polylines    int
	Dots         int
	Triangles    int
	Fills        int
	Clips        int
	Rasters      int
	Texts        int
	Layers       int
	Links        int

	Strings []string
}

// Signature hashes the metric counters and collected strings into a
// content fingerprint.
func (m *ViewportMetrics) Signature() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, c := range []int{
		m.Arcs, m.Circles, m.CircularArcs, m.Polylines, m.Dots,
		m.Triangles, m.Fills, m.Clips, m.Rasters, m.Texts, m.Layers,
		m.Links,
	} {
		binary.LittleEndian.PutUint64(buf[:], uint64(c))
		h.Write(buf[:])
	}
	for _, s := range m.Strings {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
