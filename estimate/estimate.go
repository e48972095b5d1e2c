/*
DESCRIPTION
  Estimates a parameter value from a sample colour by ranking the
  calibration colours of the family by RGB distance, then either taking
  the nearest value or interpolating between the two nearest.

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

// Package estimate converts a sample colour into a parameter value using
// a calibration table.
package estimate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

// ErrNoCalibrationData is returned when the table has no colours for the
// requested family.
var ErrNoCalibrationData = errors.New("no calibration data for family")

// Estimation constants.
const (
	DirectThreshold = 10.0  // Distances below this select the nearest value directly.
	distanceScale   = 100.0 // Distance at which confidence reaches zero.
	weightOffset    = 0.1   // Keeps inverse distance weights finite.
	minConfidence   = 0.1
	maxConfidence   = 1.0
	maxNeighbours   = 3
)

// Neighbour is a calibration value and its distance from the query.
type Neighbour struct {
	Label    string     `json:"label"`
	Value    float64    `json:"value"`
	RGB      colour.RGB `json:"-"`
	Distance float64    `json:"distance"`
}

// Result is the outcome of an estimate.
type Result struct {
	Family       param.Family
	Label        string
	Value        float64
	Confidence   float64
	Query        colour.RGB
	Nearest      []Neighbour
	Interpolated bool
	Considered   int     // Calibration values compared.
	MinDistance  float64 // Distance to the nearest value.
}

// Estimate ranks the calibration colours of family f by Euclidean RGB
// distance from q. If the nearest is closer than DirectThreshold, or the
// family has only one colour, its value is selected. Otherwise the two
// nearest values are blended with weights 1/(d+0.1). Confidence falls
// linearly with the nearest distance and is clamped to [0.1, 1].
func Estimate(q colour.RGB, f param.Family, t *calibration.Table) (Result, error) {
	if t == nil {
		return Result{}, fmt.Errorf("%w: no calibration table", ErrNoCalibrationData)
	}
	pts := t.Family(f)
	if len(pts) == 0 {
		return Result{}, fmt.Errorf("%w: %v", ErrNoCalibrationData, f)
	}

	ns := make([]Neighbour, len(pts))
	for i, p := range pts {
		ns[i] = Neighbour{Label: f.Label(p.Value), Value: p.Value, RGB: p.RGB, Distance: q.Distance(p.RGB)}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].Distance < ns[j].Distance })

	r := Result{
		Family:      f,
		Query:       q,
		Considered:  len(ns),
		MinDistance: ns[0].Distance,
		Confidence:  clamp(1-ns[0].Distance/distanceScale, minConfidence, maxConfidence),
	}

	if ns[0].Distance < DirectThreshold || len(ns) < 2 {
		r.Value = ns[0].Value
		r.Label = ns[0].Label
	} else {
		w0 := 1 / (ns[0].Distance + weightOffset)
		w1 := 1 / (ns[1].Distance + weightOffset)
		r.Value = (ns[0].Value*w0 + ns[1].Value*w1) / (w0 + w1)
		r.Label = f.Label(round(r.Value, 2))
		r.Interpolated = true
	}

	n := len(ns)
	if n > maxNeighbours {
		n = maxNeighbours
	}
	r.Nearest = ns[:n:n]
	return r, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
