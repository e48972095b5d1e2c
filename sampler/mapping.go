/*
DESCRIPTION
  Proportional mapping from reference chart coordinates to photo
  coordinates.

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

package sampler

import "image"

// Mapping scales and offsets rectangles from the reference chart box into
// the photo chart box, independently per axis.
type Mapping struct {
	Photo     image.Rectangle
	Reference image.Rectangle
	ScaleX    float64
	ScaleY    float64
}

// NewMapping returns the mapping from ref to photo. A zero reference
// dimension gives a scale of 1 on that axis.
func NewMapping(photo, ref image.Rectangle) Mapping {
	m := Mapping{Photo: photo, Reference: ref, ScaleX: 1, ScaleY: 1}
	if ref.Dx() != 0 {
		m.ScaleX = float64(photo.Dx()) / float64(ref.Dx())
	}
	if ref.Dy() != 0 {
		m.ScaleY = float64(photo.Dy()) / float64(ref.Dy())
	}
	return m
}

// Map returns r in photo coordinates. Offsets and sizes are truncated
// towards zero.
func (m Mapping) Map(r image.Rectangle) image.Rectangle {
	x := m.Photo.Min.X + int(float64(r.Min.X-m.Reference.Min.X)*m.ScaleX)
	y := m.Photo.Min.Y + int(float64(r.Min.Y-m.Reference.Min.Y)*m.ScaleY)
	w := int(float64(r.Dx()) * m.ScaleX)
	h := int(float64(r.Dy()) * m.ScaleY)
	return image.Rect(x, y, x+w, y+h)
}
