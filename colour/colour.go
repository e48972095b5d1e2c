/*
DESCRIPTION
  Provides the colour value type shared by the sampling, calibration and
  estimation stages. A Colour carries the device-native BGR channel order,
  conventional RGB order and CIE L*a*b*, all computed once on creation.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  It is free software: you can redistribute it and/or modify them
  under the terms of the GNU General Public License as published by the
  Free Software Foundation, either version 3 of the License, or (at your
  option) any later version.

  It is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
  FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License
  for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt.  If not, see http://www.gnu.org/licenses.
*/

// Package colour provides an immutable colour value with BGR, RGB and Lab
// representations, and the RGB distance used for estimation.
package colour

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8 bit colour in conventional red, green, blue order.
type RGB struct {
	R, G, B uint8
}

// BGR is an 8 bit colour in the device-native blue, green, red order.
type BGR struct {
	B, G, R uint8
}

// Lab is a CIE L*a*b* colour under D65, with L in [0,100].
type Lab struct {
	L, A, B float64
}

// FromColor converts any image/color value to RGB, dropping alpha.
func FromColor(c color.Color) RGB {
	r, g, b, _ := c.RGBA()
	return RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

// BGR returns c in device-native channel order.
func (c RGB) BGR() BGR { return BGR{B: c.B, G: c.G, R: c.R} }

// RGB returns c in conventional channel order.
func (c BGR) RGB() RGB { return RGB{R: c.R, G: c.G, B: c.B} }

// whiteRef is the D65 white point as given by the sRGB matrix, so that
// sRGB white maps to a* = b* = 0.
var whiteRef = func() [3]float64 {
	x, y, z := colorful.Color{R: 1, G: 1, B: 1}.Xyz()
	return [3]float64{x, y, z}
}()

// Lab converts c to CIE L*a*b*.
func (c RGB) Lab() Lab {
	l, a, b := c.colorful().LabWhiteRef(whiteRef)
	return Lab{L: l * 100, A: a * 100, B: b * 100}
}

// Hex returns c formatted as #rrggbb.
func (c RGB) Hex() string { return c.colorful().Hex() }

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

func (c RGB) String() string { return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B) }

// Distance returns the Euclidean distance between c and o in raw RGB space.
func (c RGB) Distance(o RGB) float64 {
	dr := float64(c.R) - float64(o.R)
	dg := float64(c.G) - float64(o.G)
	db := float64(c.B) - float64(o.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// ParseHex parses a #rrggbb or #rgb string.
func ParseHex(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("could not parse hex colour %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// Colour is an immutable colour holding all three representations.
type Colour struct {
	bgr BGR
	rgb RGB
	lab Lab
}

// New returns the Colour for c.
func New(c RGB) Colour {
	return Colour{bgr: c.BGR(), rgb: c, lab: c.Lab()}
}

// Of returns a Colour with explicitly given representations. It is used
// when the representations are averaged independently.
func Of(bgr BGR, rgb RGB, lab Lab) Colour {
	return Colour{bgr: bgr, rgb: rgb, lab: lab}
}

func (c Colour) BGR() BGR { return c.bgr }
func (c Colour) RGB() RGB { return c.rgb }
func (c Colour) Lab() Lab { return c.lab }

// Mean averages pts channel-wise in each representation. Integer channels
// are truncated towards zero; Lab is the mean of each point's Lab value.
// Mean of no points is the zero Colour.
func Mean(pts []RGB) Colour {
	if len(pts) == 0 {
		return Colour{}
	}
	var r, g, b int
	var lab Lab
	for _, p := range pts {
		r += int(p.R)
		g += int(p.G)
		b += int(p.B)
		l := p.Lab()
		lab.L += l.L
		lab.A += l.A
		lab.B += l.B
	}
	n := len(pts)
	rgb := RGB{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
	fn := float64(n)
	return Colour{
		bgr: rgb.BGR(),
		rgb: rgb,
		lab: Lab{L: lab.L / fn, A: lab.A / fn, B: lab.B / fn},
	}
}
