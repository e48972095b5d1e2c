/*
DESCRIPTION
  Solves the perspective transform between four point correspondences.

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

package marker

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Homography is a 3x3 perspective transform in row-major order, with the
// last element fixed at 1.
type Homography [9]float64

// NewHomography solves for the transform mapping each src point onto the
// corresponding dst point.
func NewHomography(src, dst [4]r2.Vec) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range src {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	qr := new(mat.QR)
	qr.Factorize(a)

	c := mat.NewVecDense(8, nil)
	err := qr.SolveVecTo(c, false, b)
	if err != nil {
		return Homography{}, fmt.Errorf("%w: could not solve QR: %v", ErrRectificationFailed, err)
	}

	var h Homography
	for i := 0; i < 8; i++ {
		h[i] = c.AtVec(i)
		if math.IsNaN(h[i]) || math.IsInf(h[i], 0) {
			return Homography{}, fmt.Errorf("%w: degenerate correspondences", ErrRectificationFailed)
		}
	}
	h[8] = 1
	return h, nil
}

// Project maps p through h.
func (h Homography) Project(p r2.Vec) r2.Vec {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return r2.Vec{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Matrix returns h as a gonum matrix.
func (h Homography) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, h[:])
}

// Inverse returns the transform mapping dst back to src.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	err := inv.Inverse(h.Matrix())
	if err != nil {
		return Homography{}, fmt.Errorf("%w: could not invert homography: %v", ErrRectificationFailed, err)
	}
	var out Homography
	s := inv.At(2, 2)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = inv.At(i, j) / s
		}
	}
	return out, nil
}
