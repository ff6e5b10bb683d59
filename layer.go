package f2d

import (
	"strconv"
	"strings"
)

// layerTable assigns dense render layer indices to sparse source layer
// indices in order of first appearance.
type layerTable struct {
	dense map[uint32]uint16
	order []uint32
}

func newLayerTable() layerTable {
	return layerTable{dense: make(map[uint32]uint16)}
}

// lookup returns the dense index for a source layer, assigning the next
// one on first sight. isNew reports whether an assignment happened.
func (lt *layerTable) lookup(src uint32) (idx uint16, isNew bool) {
	if d, ok := lt.dense[src]; ok {
		return d, false
	}
	d := uint16(len(lt.order))
	lt.dense[src] = d
	lt.order = append(lt.order, src)
	return d, true
}

// LayerGroup is one node of the hierarchical layer tree derived from
// pipe-delimited layer names ("Walls|Exterior|Load-bearing").
type LayerGroup struct {
	Name     string
	Children []*LayerGroup
	// Layers holds the dense indices of layers that terminate at this
	// node.
	Layers []uint16
}

// buildLayerTree splits each named layer on '|' and files its dense index
// under the resulting path. Layers without a manifest name land under
// their own node at the root.
func buildLayerTree(lt *layerTable, names map[uint32]string) *LayerGroup {
	root := &LayerGroup{}
	for dense, src := range lt.order {
		name, ok := names[src]
		if !ok || name == "" {
			name = "Layer " + strconv.FormatUint(uint64(src), 10)
		}
		node := root
		for _, part := range strings.Split(name, "|") {
			node = node.child(part)
		}
		node.Layers = append(node.Layers, uint16(dense))
	}
	return root
}

func (g *LayerGroup) child(name string) *LayerGroup {
	for _, c := range g.Children {
		if c.Name == name {
			return c
		}
	}
	c := &LayerGroup{Name: name}
	g.Children = append(g.Children, c)
	return c
}
