/*
DESCRIPTION
  Result types shared by the vision pipeline and its callers, extraction
  statistics and probe colour measurement over encoded images.

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

// Package pipeline runs rectification, calibration extraction and probe
// measurement over encoded photos. The OpenCV backed Kit needs the withcv
// build tag; without it NewKit returns ErrNoVision.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/marker"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/sampler"
)

// Errors returned by the pipeline.
var (
	ErrNoVision    = errors.New("built without OpenCV support")
	ErrDecodeImage = errors.New("could not decode image")
)

// Default image sizes.
var (
	ChartSize = marker.DefaultSize
	ProbeSize = image.Pt(800, 513)
)

// Config configures a Kit.
type Config struct {
	ChartSize image.Point
	Families  []param.Family
	Sampler   sampler.Config
	Layout    marker.Layout
}

// DefaultConfig returns the default Kit configuration.
func DefaultConfig() Config {
	return Config{
		ChartSize: ChartSize,
		Families:  param.All(),
		Sampler:   sampler.DefaultConfig(),
		Layout:    marker.DefaultLayout,
	}
}

// Rectification is the outcome of rectifying an encoded photo. On marker
// failure Rectified is nil and Annotated holds the diagnostic image if any
// marker was seen.
type Rectification struct {
	Rectified  []byte // JPEG.
	Annotated  []byte // JPEG.
	Homography marker.Homography
	Size       image.Point
	Markers    int
	Found      []int
	Missing    []int
	Extra      []int
}

// Extraction is the outcome of sampling calibration colours.
type Extraction struct {
	Entries []calibration.Entry
	Mapping sampler.Mapping
	Stats   Stats
	Debug   []byte // JPEG.
}

// FamilyStats summarises the extraction of one family.
type FamilyStats struct {
	Family         param.Family `json:"family"`
	Expected       int          `json:"expected"`
	Detected       int          `json:"detected"`
	Success        float64      `json:"success_percent"`
	MeanConfidence float64      `json:"mean_confidence"`
	Values         []float64    `json:"values"`
}

// Stats summarises an extraction.
type Stats struct {
	ScaleX         float64       `json:"scale_x"`
	ScaleY         float64       `json:"scale_y"`
	Expected       int           `json:"expected"`
	Detected       int           `json:"detected"`
	Success        float64       `json:"success_percent"`
	MeanConfidence float64       `json:"mean_confidence"`
	MinConfidence  float64       `json:"min_confidence"`
	MaxConfidence  float64       `json:"max_confidence"`
	MeanPoints     float64       `json:"mean_points"`
	Families       []FamilyStats `json:"families"`
}

// NewStats summarises entries extracted for families using m.
func NewStats(families []param.Family, entries []calibration.Entry, m sampler.Mapping) Stats {
	s := Stats{ScaleX: m.ScaleX, ScaleY: m.ScaleY, Detected: len(entries)}

	conf := make([]float64, len(entries))
	pts := make([]float64, len(entries))
	for i, e := range entries {
		conf[i] = e.Confidence
		pts[i] = float64(e.Points)
	}
	if len(entries) > 0 {
		s.MeanConfidence = stat.Mean(conf, nil)
		s.MeanPoints = stat.Mean(pts, nil)
		sorted := append([]float64(nil), conf...)
		sort.Float64s(sorted)
		s.MinConfidence, s.MaxConfidence = sorted[0], sorted[len(sorted)-1]
	}

	for _, f := range families {
		fs := FamilyStats{Family: f, Expected: len(f.Values())}
		var fc []float64
		for _, e := range entries {
			if e.Family != f {
				continue
			}
			fs.Detected++
			fs.Values = append(fs.Values, e.Value)
			fc = append(fc, e.Confidence)
		}
		sort.Float64s(fs.Values)
		if len(fc) > 0 {
			fs.MeanConfidence = stat.Mean(fc, nil)
		}
		if fs.Expected > 0 {
			fs.Success = 100 * float64(fs.Detected) / float64(fs.Expected)
		}
		s.Expected += fs.Expected
		s.Families = append(s.Families, fs)
	}
	if s.Expected > 0 {
		s.Success = 100 * float64(s.Detected) / float64(s.Expected)
	}
	return s
}

// Decode decodes a JPEG or PNG image.
func Decode(b []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}
	return img, nil
}

// Probe returns the mean colour of area in the encoded image.
func Probe(b []byte, area image.Rectangle) (colour.Colour, error) {
	img, err := Decode(b)
	if err != nil {
		return colour.Colour{}, err
	}
	return sampler.MeanColour(img, area)
}
