//go:build withcv
// +build withcv

/*
DESCRIPTION
  ArUco marker detection and perspective rectification of the colour card.

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
	"fmt"
	"image"
	"time"

	"github.com/ausocean/utils/logging"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/spatial/r2"
)

// Dictionary is the ArUco dictionary printed on the card.
const Dictionary = gocv.ArucoDict4x4_50

// Option is a functional option for NewDetector.
type Option func(*Detector) error

// WithLayout sets the expected marker layout.
func WithLayout(l Layout) Option {
	return func(d *Detector) error {
		if err := l.Validate(); err != nil {
			return err
		}
		d.layout = l
		return nil
	}
}

// WithSize sets the default rectified size.
func WithSize(size image.Point) Option {
	return func(d *Detector) error {
		if size.X <= 1 || size.Y <= 1 {
			return fmt.Errorf("invalid rectified size: %v", size)
		}
		d.size = size
		return nil
	}
}

// Detector finds the card markers in a photo and rectifies the card.
// A Detector is not safe for concurrent use.
type Detector struct {
	det    gocv.ArucoDetector
	layout Layout
	size   image.Point
	log    logging.Logger
}

// NewDetector returns a Detector using the default layout and size unless
// overridden by opts. Close must be called to release the detector.
func NewDetector(log logging.Logger, opts ...Option) (*Detector, error) {
	d := &Detector{layout: DefaultLayout, size: DefaultSize, log: log}
	for i, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	dict := gocv.GetPredefinedDictionary(Dictionary)
	params := gocv.NewArucoDetectorParameters()
	d.det = gocv.NewArucoDetectorWithParams(dict, params)
	return d, nil
}

// Close releases the underlying OpenCV detector.
func (d *Detector) Close() error {
	return d.det.Close()
}

// Layout returns the expected marker layout.
func (d *Detector) Layout() Layout { return d.layout }

// Detect returns every marker found in img, classified against the layout.
func (d *Detector) Detect(img gocv.Mat) (Detection, error) {
	if img.Empty() {
		return Detection{}, errors.New("image is empty, cannot detect markers")
	}
	corners, ids, _ := d.det.DetectMarkers(img)
	ms := make([]Marker, 0, len(ids))
	for i, id := range ids {
		m := Marker{ID: id}
		for j := 0; j < 4 && j < len(corners[i]); j++ {
			m.Corners[j] = r2.Vec{X: float64(corners[i][j].X), Y: float64(corners[i][j].Y)}
		}
		ms = append(ms, m)
	}
	return Classify(ms, d.layout), nil
}

// Rectification holds the outcome of a rectification attempt. On failure
// Rectified is empty while Annotated still shows whatever markers were
// detected. Close must be called to release the images.
type Rectification struct {
	Rectified  gocv.Mat
	Annotated  gocv.Mat
	Homography Homography
	Detection  Detection
	Size       image.Point
}

// OK reports whether a rectified image was produced.
func (r *Rectification) OK() bool { return !r.Rectified.Empty() }

// Close releases the images held by r.
func (r *Rectification) Close() {
	r.Rectified.Close()
	r.Annotated.Close()
}

// Rectify rectifies img to the detector's default size.
func (d *Detector) Rectify(img gocv.Mat) (*Rectification, error) {
	return d.RectifyTo(img, d.size)
}

// RectifyTo detects the card markers in img and warps the region bounded
// by their outer corners to an image of the given size. The returned
// Rectification is non-nil whenever detection ran, even on error, so the
// caller can show the annotated diagnostic image.
func (d *Detector) RectifyTo(img gocv.Mat, size image.Point) (*Rectification, error) {
	timer := time.Now()
	det, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	d.log.Debug("marker detection complete", "markers", len(det.All), "recognised", len(det.Recognised), "duration (sec)", time.Since(timer).Seconds())

	r := &Rectification{
		Rectified: gocv.NewMat(),
		Detection: det,
		Size:      size,
	}
	if len(det.All) > 0 {
		r.Annotated = Annotate(img, det)
	} else {
		r.Annotated = gocv.NewMat()
	}

	err = det.ValidateGeometry()
	if err != nil {
		d.log.Info("markers rejected", "found", det.Found(), "missing", det.Missing(), "extra", det.ExtraIDs(), "error", err)
		return r, err
	}

	src, _ := det.OuterCorners()
	h, err := NewHomography(src, TargetCorners(size))
	if err != nil {
		return r, err
	}
	r.Homography = h

	m := h.Mat()
	defer m.Close()
	gocv.WarpPerspective(img, &r.Rectified, m, size)
	if r.Rectified.Empty() {
		return r, fmt.Errorf("%w: warp produced an empty image", ErrRectificationFailed)
	}
	d.log.Debug("rectification successful", "width", size.X, "height", size.Y, "duration (sec)", time.Since(timer).Seconds())
	return r, nil
}

// Mat returns h as a 3x3 CV_64F matrix. The caller must close it.
func (h Homography) Mat() gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.SetDoubleAt(i, j, h[3*i+j])
		}
	}
	return m
}
