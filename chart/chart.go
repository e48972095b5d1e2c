/*
DESCRIPTION
  Groups the patch rectangles found on the reference chart into parameter
  columns and assigns each patch its declared value.

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

// Package chart decodes the black and white reference chart into patch
// rectangles, one per declared value of each parameter family.
package chart

import (
	"errors"
	"image"
	"sort"

	"github.com/ausocean/colorkit/param"
)

// ErrDecodeFailed is returned when no patches can be found on the chart.
var ErrDecodeFailed = errors.New("could not decode reference chart")

// Patch is a single printed swatch on the reference chart.
type Patch struct {
	Family param.Family
	Index  int
	Value  float64
	Rect   image.Rectangle
}

// Decoding is the decoded layout of a reference chart.
type Decoding struct {
	Bounds   image.Rectangle
	Families []param.Family
	Patches  []Patch
}

// Count returns the number of patches decoded.
func (d *Decoding) Count() int { return len(d.Patches) }

// Expected returns the number of declared values over all families.
func (d *Decoding) Expected() int {
	var n int
	for _, f := range d.Families {
		n += len(f.Values())
	}
	return n
}

// Family returns the patches decoded for f, top to bottom.
func (d *Decoding) Family(f param.Family) []Patch {
	var ps []Patch
	for _, p := range d.Patches {
		if p.Family == f {
			ps = append(ps, p)
		}
	}
	return ps
}

// Columnize bins rects into one column per family by the normalised
// position of their left edge, orders each column top to bottom and pairs
// it with the family's declared values. Rectangles beyond the number of
// declared values in a column are discarded. Patches are returned in
// column order.
func Columnize(rects []image.Rectangle, families []param.Family) []Patch {
	n := len(families)
	if n == 0 || len(rects) == 0 {
		return nil
	}

	sorted := append([]image.Rectangle(nil), rects...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min.X < sorted[j].Min.X })

	minX, maxX := sorted[0].Min.X, sorted[len(sorted)-1].Min.X
	span := float64(maxX - minX)

	cols := make([][]image.Rectangle, n)
	for _, r := range sorted {
		var rel float64
		if span > 0 {
			rel = float64(r.Min.X-minX) / span
		}
		c := int(rel * float64(n))
		if c > n-1 {
			c = n - 1
		}
		cols[c] = append(cols[c], r)
	}

	var patches []Patch
	for c, col := range cols {
		sort.SliceStable(col, func(i, j int) bool { return col[i].Min.Y < col[j].Min.Y })
		values := families[c].Values()
		for i, r := range col {
			if i >= len(values) {
				break
			}
			patches = append(patches, Patch{Family: families[c], Index: i, Value: values[i], Rect: r})
		}
	}
	return patches
}
