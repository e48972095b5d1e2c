//go:build withcv
// +build withcv

/*
DESCRIPTION
  Tests for marker detection and rectification using synthetic cards.

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
	"errors"
	"image"
	"testing"

	"github.com/ausocean/utils/logging"
	"gocv.io/x/gocv"
)

const (
	canvasWidth  = 900
	canvasHeight = 700
	markerSide   = 100
	margin       = 40
)

// synthCard draws the given marker IDs at the corners of a white canvas in
// top left, top right, bottom left, bottom right order. Negative IDs are
// left blank.
func synthCard(t *testing.T, ids [4]int) gocv.Mat {
	t.Helper()
	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), canvasHeight, canvasWidth, gocv.MatTypeCV8UC3)
	origins := [4]image.Point{
		image.Pt(margin, margin),
		image.Pt(canvasWidth-margin-markerSide, margin),
		image.Pt(margin, canvasHeight-margin-markerSide),
		image.Pt(canvasWidth-margin-markerSide, canvasHeight-margin-markerSide),
	}
	for i, id := range ids {
		if id < 0 {
			continue
		}
		m := gocv.NewMat()
		gocv.ArucoGenerateImageMarker(Dictionary, id, markerSide, m, 1)
		bgr := gocv.NewMat()
		gocv.CvtColor(m, &bgr, gocv.ColorGrayToBGR)
		roi := canvas.Region(image.Rectangle{Min: origins[i], Max: origins[i].Add(image.Pt(markerSide, markerSide))})
		bgr.CopyTo(&roi)
		roi.Close()
		bgr.Close()
		m.Close()
	}
	return canvas
}

func TestRectify(t *testing.T) {
	d, err := NewDetector((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create detector: %v", err)
	}
	defer d.Close()

	img := synthCard(t, [4]int{3, 0, 1, 2})
	defer img.Close()

	r, err := d.Rectify(img)
	if err != nil {
		t.Fatalf("could not rectify card: %v", err)
	}
	defer r.Close()

	if got, want := r.Rectified.Cols(), DefaultWidth; got != want {
		t.Errorf("unexpected rectified width. Got: %d, Want: %d", got, want)
	}
	if got, want := r.Rectified.Rows(), DefaultHeight; got != want {
		t.Errorf("unexpected rectified height. Got: %d, Want: %d", got, want)
	}
	if len(r.Detection.Recognised) != 4 {
		t.Errorf("unexpected recognised count. Got: %d, Want: 4", len(r.Detection.Recognised))
	}

	p, err := d.RectifyTo(img, image.Pt(800, 513))
	if err != nil {
		t.Fatalf("could not rectify to probe size: %v", err)
	}
	defer p.Close()
	if p.Rectified.Rows() != 513 {
		t.Errorf("unexpected probe height. Got: %d, Want: 513", p.Rectified.Rows())
	}
}

func TestRectifyInsufficient(t *testing.T) {
	d, err := NewDetector((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create detector: %v", err)
	}
	defer d.Close()

	img := synthCard(t, [4]int{3, 0, -1, 7})
	defer img.Close()

	r, err := d.Rectify(img)
	if !errors.Is(err, ErrInsufficientMarkers) {
		t.Fatalf("expected ErrInsufficientMarkers, got: %v", err)
	}
	if r == nil {
		t.Fatal("expected diagnostic rectification")
	}
	defer r.Close()

	if r.OK() {
		t.Errorf("expected no rectified image")
	}
	if r.Annotated.Empty() {
		t.Errorf("expected annotated diagnostic image")
	}
	if got := len(r.Detection.Recognised); got != 2 {
		t.Errorf("unexpected recognised count. Got: %d, Want: 2", got)
	}
	if got := r.Detection.ExtraIDs(); len(got) != 1 || got[0] != 7 {
		t.Errorf("unexpected extra IDs: %v", got)
	}
}

func TestRectifyNoMarkers(t *testing.T) {
	d, err := NewDetector((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create detector: %v", err)
	}
	defer d.Close()

	img := synthCard(t, [4]int{-1, -1, -1, -1})
	defer img.Close()

	r, err := d.Rectify(img)
	if !errors.Is(err, ErrNoMarkers) {
		t.Fatalf("expected ErrNoMarkers, got: %v", err)
	}
	defer r.Close()
	if !r.Annotated.Empty() {
		t.Errorf("expected no annotated image without markers")
	}
}
