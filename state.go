package f2d

// decoderState is the implicit "current value" context carried across the
// stream. It lives on the Parser instance, never in globals, so concurrent
// Parser instances don't interfere.
type decoderState struct {
	color      uint32 // current RGBA8, after hide-paper remapping
	paperColor uint32 // as declared by the sheet, before remapping
	fill       bool
	lineWeight float64 // page units
	layer      uint16  // dense render layer index
	link       uint32  // current hyperlink id, 0 = none
	font       uint32  // current font registry id, 0 = none
	objectID   uint32
	viewport   uint16

	// syntheticID marks objectID as a placeholder assigned to untagged
	// text; it is reset to 0 when the text object ends.
	syntheticID bool

	// The running coordinate offset. Every point decode adds its deltas
	// here, in strict stream order. It is never reset per object.
	offsetX int64
	offsetY int64

	// scale converts source units into page units. Seeded to 1 and
	// replaced once the sheet declares its dimensions.
	scale float64
}

func newDecoderState() decoderState {
	return decoderState{
		color: 0xFF000000, // opaque black until the stream says otherwise
		scale: 1,
	}
}

func (st *decoderState) layerVp() uint32 {
	return uint32(st.layer)<<16 | uint32(st.viewport)
}
