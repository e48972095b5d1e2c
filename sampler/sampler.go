/*
DESCRIPTION
  Multi-point colour sampling of mapped chart patches, with a confidence
  score derived from the dispersion of the sampled points.

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

// Package sampler extracts calibration colours from a rectified photo of
// the colour card by mapping reference chart patches into the photo and
// sampling each at several points.
package sampler

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/chart"
	"github.com/ausocean/colorkit/colour"
)

// Errors returned by the sampler.
var (
	ErrOutOfBounds      = errors.New("region out of image bounds")
	ErrRegionTooSmall   = errors.New("region too small")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrNoColours        = errors.New("no colours could be sampled")
)

// Confidence limits.
const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

// Config holds sampling parameters.
type Config struct {
	Points    int     // Sample points per patch including the centre.
	Radius    float64 // Ellipse radius as a fraction of patch width and height.
	MinSize   int     // Minimum patch width and height in pixels.
	MaxSpread float64 // Mean channel standard deviation at which confidence reaches zero.
}

// DefaultConfig returns the default sampling parameters.
func DefaultConfig() Config {
	return Config{Points: 5, Radius: 0.3, MinSize: 10, MaxSpread: 50}
}

// Sample is the averaged colour of one region.
type Sample struct {
	Colour     colour.Colour
	Confidence float64
	Points     int
	Spread     float64 // Mean per channel population standard deviation of RGB.
}

// Sampler samples patch colours.
type Sampler struct {
	cfg Config
	log logging.Logger
}

// New returns a Sampler using cfg.
func New(log logging.Logger, cfg Config) (*Sampler, error) {
	if cfg.Points < 1 || cfg.MinSize < 1 || cfg.MaxSpread <= 0 || cfg.Radius < 0 || cfg.Radius > 0.5 {
		return nil, fmt.Errorf("invalid sampler config: %+v", cfg)
	}
	return &Sampler{cfg: cfg, log: log}, nil
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config { return s.cfg }

// Points returns the sample points for r: the centre followed by points
// on an ellipse around it at equal angles, keeping only those inside r.
func (s *Sampler) Points(r image.Rectangle) []image.Point {
	w, h := r.Dx(), r.Dy()
	cx, cy := r.Min.X+w/2, r.Min.Y+h/2
	rx := float64(int(float64(w) * s.cfg.Radius))
	ry := float64(int(float64(h) * s.cfg.Radius))

	pts := []image.Point{{X: cx, Y: cy}}
	n := s.cfg.Points - 1
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		p := image.Pt(cx+int(rx*math.Cos(a)), cy+int(ry*math.Sin(a)))
		if p.In(r) {
			pts = append(pts, p)
		}
	}
	return pts
}

// Sample averages the colour of img at the sample points of r. Regions
// outside img or smaller than the minimum size give ErrOutOfBounds or
// ErrRegionTooSmall with a zero Sample.
func (s *Sampler) Sample(img image.Image, r image.Rectangle) (Sample, error) {
	if !r.In(img.Bounds()) {
		return Sample{}, fmt.Errorf("%w: %v not in %v", ErrOutOfBounds, r, img.Bounds())
	}
	if r.Dx() < s.cfg.MinSize || r.Dy() < s.cfg.MinSize {
		return Sample{}, fmt.Errorf("%w: %dx%d below %dpx", ErrRegionTooSmall, r.Dx(), r.Dy(), s.cfg.MinSize)
	}

	pts := s.Points(r)
	rgb := make([]colour.RGB, len(pts))
	ch := [3][]float64{make([]float64, len(pts)), make([]float64, len(pts)), make([]float64, len(pts))}
	for i, p := range pts {
		c := colour.FromColor(img.At(p.X, p.Y))
		rgb[i] = c
		ch[0][i], ch[1][i], ch[2][i] = float64(c.R), float64(c.G), float64(c.B)
	}

	var spread float64
	for _, v := range ch {
		_, std := stat.PopMeanStdDev(v, nil)
		spread += std
	}
	spread /= float64(len(ch))

	return Sample{
		Colour:     colour.Mean(rgb),
		Confidence: clamp(1-spread/s.cfg.MaxSpread, minConfidence, maxConfidence),
		Points:     len(pts),
		Spread:     spread,
	}, nil
}

// Calibrate maps every patch of d from the reference chart into photoBox
// of img and samples it. Patches that cannot be sampled are logged and
// skipped. It returns ErrNoColours if no patch could be sampled.
func (s *Sampler) Calibrate(img image.Image, photoBox image.Rectangle, d *chart.Decoding) ([]calibration.Entry, Mapping, error) {
	if err := ValidateSelection(img.Bounds(), photoBox, s.cfg.MinSize); err != nil {
		return nil, Mapping{}, err
	}

	timer := time.Now()
	m := NewMapping(photoBox, d.Bounds)
	s.log.Debug("mapping reference chart", "scale x", m.ScaleX, "scale y", m.ScaleY)

	var entries []calibration.Entry
	for _, p := range d.Patches {
		r := m.Map(p.Rect)
		smp, err := s.Sample(img, r)
		if err != nil {
			s.log.Warning("could not sample patch", "family", p.Family.String(), "value", p.Value, "rect", r.String(), "error", err)
			continue
		}
		entries = append(entries, calibration.Entry{
			Family:     p.Family,
			Value:      p.Value,
			PhotoRect:  r,
			RefRect:    p.Rect,
			Colour:     smp.Colour,
			Confidence: smp.Confidence,
			Points:     smp.Points,
		})
	}
	if len(entries) == 0 {
		return nil, m, ErrNoColours
	}
	s.log.Debug("calibration sampling complete", "sampled", len(entries), "patches", len(d.Patches), "duration (sec)", time.Since(timer).Seconds())
	return entries, m, nil
}

// ValidateSelection checks that r lies within bounds and is at least
// minSize pixels wide and high.
func ValidateSelection(bounds, r image.Rectangle, minSize int) error {
	if !r.In(bounds) {
		return fmt.Errorf("%w: %v outside %v", ErrInvalidSelection, r, bounds)
	}
	if r.Dx() < minSize || r.Dy() < minSize {
		return fmt.Errorf("%w: %dx%d smaller than %dpx", ErrInvalidSelection, r.Dx(), r.Dy(), minSize)
	}
	return nil
}

// MinProbeSize is the minimum side of a probe selection in pixels.
const MinProbeSize = 5

// MeanColour returns the mean colour of every pixel in r, rounded to the
// nearest integer per channel.
func MeanColour(img image.Image, r image.Rectangle) (colour.Colour, error) {
	if err := ValidateSelection(img.Bounds(), r, MinProbeSize); err != nil {
		return colour.Colour{}, err
	}
	var sr, sg, sb float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := colour.FromColor(img.At(x, y))
			sr += float64(c.R)
			sg += float64(c.G)
			sb += float64(c.B)
		}
	}
	n := float64(r.Dx() * r.Dy())
	return colour.New(colour.RGB{
		R: uint8(math.Round(sr / n)),
		G: uint8(math.Round(sg / n)),
		B: uint8(math.Round(sb / n)),
	}), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
