//go:build withcv
// +build withcv

/*
DESCRIPTION
  The OpenCV backed Kit: rectifies photos of the colour card, extracts
  calibration colours using the decoded reference chart, and draws the
  extraction debug image.

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

package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ausocean/utils/logging"
	"gocv.io/x/gocv"

	"github.com/ausocean/colorkit/chart"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/marker"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/sampler"
)

// Debug drawing colours per family, in column order.
var familyColours = []color.RGBA{
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 200, B: 0, A: 255},
	{R: 0, G: 0, B: 255, A: 255},
	{R: 255, G: 165, B: 0, A: 255},
	{R: 160, G: 32, B: 240, A: 255},
}

var (
	chartBoxColour = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	textColour     = color.RGBA{A: 255}
)

// Kit runs the vision pipeline. It is safe for concurrent use.
type Kit struct {
	mu  sync.Mutex // Guards det.
	det *marker.Detector
	ref *chart.Decoding
	smp *sampler.Sampler
	cfg Config
	log logging.Logger
}

// NewKit decodes the reference chart image and prepares the marker
// detector and sampler.
func NewKit(log logging.Logger, reference []byte, cfg Config) (*Kit, error) {
	img, err := gocv.IMDecode(reference, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: reference chart: %v", ErrDecodeImage, err)
	}
	defer img.Close()

	ref, err := chart.Decode(img, cfg.Families)
	if err != nil {
		return nil, err
	}
	log.Info("reference chart decoded", "patches", ref.Count(), "expected", ref.Expected(), "bounds", ref.Bounds.String())

	smp, err := sampler.New(log, cfg.Sampler)
	if err != nil {
		return nil, err
	}
	det, err := marker.NewDetector(log, marker.WithLayout(cfg.Layout), marker.WithSize(cfg.ChartSize))
	if err != nil {
		return nil, fmt.Errorf("could not create marker detector: %w", err)
	}
	return &Kit{det: det, ref: ref, smp: smp, cfg: cfg, log: log}, nil
}

// Close releases the marker detector.
func (k *Kit) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.det.Close()
}

// Reference returns the decoded reference chart.
func (k *Kit) Reference() *chart.Decoding { return k.ref }

// Rectify rectifies the encoded photo to size. Marker errors are returned
// together with a Rectification holding the diagnostic image.
func (k *Kit) Rectify(photo []byte, size image.Point) (*Rectification, error) {
	img, err := gocv.IMDecode(photo, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return nil, fmt.Errorf("%w: photo", ErrDecodeImage)
	}
	defer img.Close()

	k.mu.Lock()
	r, rerr := k.det.RectifyTo(img, size)
	k.mu.Unlock()
	if r == nil {
		return nil, rerr
	}
	defer r.Close()

	out := &Rectification{
		Homography: r.Homography,
		Size:       size,
		Markers:    len(r.Detection.All),
		Found:      r.Detection.Found(),
		Missing:    r.Detection.Missing(),
		Extra:      r.Detection.ExtraIDs(),
	}
	if !r.Annotated.Empty() {
		out.Annotated, err = encode(r.Annotated)
		if err != nil {
			return nil, err
		}
	}
	if rerr != nil {
		return out, rerr
	}
	out.Rectified, err = encode(r.Rectified)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Extract samples the calibration colours of the rectified photo, with
// the physical chart occupying box.
func (k *Kit) Extract(rectified []byte, box image.Rectangle) (*Extraction, error) {
	mat, err := gocv.IMDecode(rectified, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		return nil, fmt.Errorf("%w: rectified photo", ErrDecodeImage)
	}
	defer mat.Close()
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}

	entries, m, err := k.smp.Calibrate(img, box, k.ref)
	if err != nil {
		return nil, err
	}
	x := &Extraction{
		Entries: entries,
		Mapping: m,
		Stats:   NewStats(k.cfg.Families, entries, m),
	}
	k.log.Info("calibration extracted", "detected", x.Stats.Detected, "expected", x.Stats.Expected, "success (%)", x.Stats.Success)

	dbg := mat.Clone()
	defer dbg.Close()
	drawExtraction(&dbg, box, x)
	x.Debug, err = encode(dbg)
	if err != nil {
		return nil, err
	}
	return x, nil
}

// Probe returns the mean colour of area in a rectified probe photo. It
// decodes with OpenCV, as Extract does, so probe and calibration colours
// are comparable.
func (k *Kit) Probe(rectified []byte, area image.Rectangle) (colour.Colour, error) {
	mat, err := gocv.IMDecode(rectified, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		return colour.Colour{}, fmt.Errorf("%w: probe photo", ErrDecodeImage)
	}
	defer mat.Close()
	img, err := mat.ToImage()
	if err != nil {
		return colour.Colour{}, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}
	return sampler.MeanColour(img, area)
}

// drawExtraction marks the chart box and every sampled patch on img.
func drawExtraction(img *gocv.Mat, box image.Rectangle, x *Extraction) {
	gocv.Rectangle(img, box, chartBoxColour, 3)
	gocv.PutText(img, "Chart area", image.Pt(box.Min.X, max(box.Min.Y-10, 15)), gocv.FontHersheySimplex, 0.6, chartBoxColour, 2)

	for _, e := range x.Entries {
		c := familyColour(e.Family)
		gocv.Rectangle(img, e.PhotoRect, c, 2)
		ctr := image.Pt((e.PhotoRect.Min.X+e.PhotoRect.Max.X)/2, (e.PhotoRect.Min.Y+e.PhotoRect.Max.Y)/2)
		gocv.Circle(img, ctr, 3, c, -1)
		gocv.PutText(img, fmt.Sprintf("%g", e.Value), image.Pt(e.PhotoRect.Min.X, e.PhotoRect.Min.Y-3), gocv.FontHersheySimplex, 0.35, textColour, 1)
	}
}

func familyColour(f param.Family) color.RGBA {
	if !f.Valid() {
		return textColour
	}
	return familyColours[int(f)%len(familyColours)]
}

// encode encodes img as JPEG.
func encode(img gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("could not encode image: %w", err)
	}
	defer buf.Close()
	b := buf.GetBytes()
	if len(b) == 0 {
		return nil, errors.New("could not encode image: empty buffer")
	}
	return append([]byte(nil), b...), nil
}
