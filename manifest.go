package f2d

// Manifest is the out-of-band sheet description that accompanies a stream.
// The decoder uses it to resolve raster image URIs, to name layers, and to
// seed page metadata; the property-database paths are forwarded untouched
// to the downstream loader.
type Manifest struct {
	Page PageMetadata

	// Layers names source layer indices. Names may be pipe-delimited
	// hierarchy paths.
	Layers map[uint32]string

	// Summary is the encoder's aggregate geometry count, when present.
	// It is informational; the decoder recomputes its own metrics.
	Summary *GeometrySummary

	// Assets lists the image entries referenced by raster records.
	Assets []Asset

	// PropertyDB holds the four categories of property-database stream
	// paths. They are not interpreted here.
	PropertyDB PropertyDBPaths

	// HidePaper requests a transparent background, same as
	// Options.ModelSpace.
	HidePaper bool
}

type PageMetadata struct {
	Width    float64 // page units
	Height   float64
	Rotation int // degrees, clockwise
	OffsetX  float64
	OffsetY  float64
}

type GeometrySummary struct {
	Arcs      int
	Polylines int
	Triangles int
	Rasters   int
	Texts     int
}

// Asset is one manifest image entry.
type Asset struct {
	ID   uint64
	MIME string
	URI  string
}

type PropertyDBPaths struct {
	Attrs   []string
	Values  []string
	Offsets []string
	IDs     []string
}

// ImageURI resolves a raster image id against the asset list.
func (m *Manifest) ImageURI(id uint64) (string, bool) {
	for _, a := range m.Assets {
		if a.ID == id {
			return a.URI, true
		}
	}
	return "", false
}
