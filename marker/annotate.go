//go:build withcv
// +build withcv

/*
DESCRIPTION
  Draws detected markers onto a copy of the photo so that partial or
  invalid detections can be shown to the operator.

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
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Annotation colours.
var (
	validColour = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	extraColour = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	black       = color.RGBA{A: 255}
	white       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotation layout constants.
const (
	outlineThickness = 3
	centreRadius     = 8
	labelWidth       = 120
	labelHeight      = 60
	fontScale        = 0.5
	legendFontScale  = 0.7
)

var legendBox = image.Rect(10, 10, 350, 90)

// Annotate returns a copy of img with every marker in d outlined, its
// centre marked and its ID, role and status labelled, plus a legend of the
// marker counts. Recognised markers are green and extra markers orange.
func Annotate(img gocv.Mat, d Detection) gocv.Mat {
	out := img.Clone()
	for _, m := range d.All {
		c := extraColour
		status := "extra"
		if m.Role != Unrecognised {
			c = validColour
			status = "valid"
		}

		pts := make([]image.Point, len(m.Corners))
		for i, p := range m.Corners {
			pts[i] = image.Pt(int(p.X), int(p.Y))
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.Polylines(&out, pv, true, c, outlineThickness)
		pv.Close()

		ctr := m.Centre()
		centre := image.Pt(int(ctr.X), int(ctr.Y))
		gocv.Circle(&out, centre, centreRadius, c, -1)

		box := image.Rect(centre.X-labelWidth/2, centre.Y-labelHeight/2, centre.X+labelWidth/2, centre.Y+labelHeight/2)
		gocv.Rectangle(&out, box, white, -1)
		gocv.Rectangle(&out, box, black, 1)
		lines := []string{fmt.Sprintf("ID: %d", m.ID), m.Role.String(), status}
		for i, l := range lines {
			org := image.Pt(box.Min.X+5, box.Min.Y+16+i*17)
			gocv.PutText(&out, l, org, gocv.FontHersheySimplex, fontScale, black, 1)
		}
	}

	gocv.Rectangle(&out, legendBox, white, -1)
	gocv.Rectangle(&out, legendBox, black, 2)
	gocv.PutText(&out, fmt.Sprintf("Markers detected: %d", len(d.All)), image.Pt(20, 40), gocv.FontHersheySimplex, legendFontScale, black, 2)
	gocv.PutText(&out, fmt.Sprintf("Valid: %d/%d | Extra: %d", len(d.Recognised), len(Roles), len(d.Extra)), image.Pt(20, 75), gocv.FontHersheySimplex, legendFontScale, black, 2)
	return out
}
