//go:build withcv
// +build withcv

/*
DESCRIPTION
  Contour based extraction of patch rectangles from the reference chart.

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

package chart

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ausocean/colorkit/param"
)

// Contour extraction constants.
const (
	threshold  = 127
	maxValue   = 255
	minArea    = 100 // Square pixels.
	kernelSize = 3
)

// gray returns a single channel copy of img. The caller must close it.
func gray(img gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	if img.Channels() == 1 {
		img.CopyTo(&out)
		return out
	}
	gocv.CvtColor(img, &out, gocv.ColorBGRToGray)
	return out
}

// Bounds returns the bounding box of the largest external contour of the
// binarised chart, or the whole image if there are no contours.
func Bounds(img gocv.Mat) image.Rectangle {
	whole := image.Rect(0, 0, img.Cols(), img.Rows())

	g := gray(img)
	defer g.Close()
	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(g, &bin, threshold, maxValue, gocv.ThresholdBinary)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best, bestArea := -1, -1.0
	for i := 0; i < contours.Size(); i++ {
		a := gocv.ContourArea(contours.At(i))
		if a > bestArea {
			best, bestArea = i, a
		}
	}
	if best < 0 {
		return whole
	}
	return gocv.BoundingRect(contours.At(best))
}

// FindRects returns the bounding rectangles of the dark patches inside roi,
// in image coordinates. Contours smaller than the minimum area are noise
// and are dropped.
func FindRects(img gocv.Mat, roi image.Rectangle) ([]image.Rectangle, error) {
	roi = roi.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if roi.Empty() {
		return nil, errors.New("chart region is empty")
	}

	g := gray(img)
	defer g.Close()
	region := g.Region(roi)
	defer region.Close()

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(region, &bin, threshold, maxValue, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()
	gocv.MorphologyEx(bin, &bin, gocv.MorphClose, kernel)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var rects []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < minArea {
			continue
		}
		rects = append(rects, gocv.BoundingRect(c).Add(roi.Min))
	}
	return rects, nil
}

// Decode finds the chart bounds and patches in img and assigns them to
// families in column order.
func Decode(img gocv.Mat, families []param.Family) (*Decoding, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", ErrDecodeFailed)
	}
	bounds := Bounds(img)
	rects, err := FindRects(img, bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(rects) == 0 {
		return nil, fmt.Errorf("%w: no patches found", ErrDecodeFailed)
	}
	return &Decoding{Bounds: bounds, Families: families, Patches: Columnize(rects, families)}, nil
}
