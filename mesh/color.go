// Copyright 2025 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mesh

import (
	"honnef.co/go/color"
	"honnef.co/go/f2d/fmath"
)

// PackPremul converts a color to premultiplied RGBA8 with R in the low
// byte, the packing used by Vertex.Color.
func PackPremul(c *color.Color) uint32 {
	cc := c.Convert(color.LinearSRGB)
	r := cc.Values[0]
	g := cc.Values[1]
	b := cc.Values[2]
	a := cc.Values[3]

	return packChannel(r*a) |
		packChannel(g*a)<<8 |
		packChannel(b*a)<<16 |
		packChannel(a)<<24
}

func packChannel(v float64) uint32 {
	return uint32(fmath.Clamp(v, 0, 1)*255 + 0.5)
}
