/*
DESCRIPTION
  Tests for colour based parameter estimation.

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

package estimate

import (
	"errors"
	"math"
	"testing"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

func table(t *testing.T, f param.Family, pts map[float64]colour.RGB) *calibration.Table {
	t.Helper()
	var entries []calibration.Entry
	for v, c := range pts {
		entries = append(entries, calibration.Entry{Family: f, Value: v, Colour: colour.New(c)})
	}
	tbl, err := calibration.NewTable(entries)
	if err != nil {
		t.Fatalf("could not build table: %v", err)
	}
	return tbl
}

var phColours = map[float64]colour.RGB{
	6.0: {R: 230, G: 200, B: 40},
	6.4: {R: 220, G: 170, B: 40},
	6.6: {R: 210, G: 150, B: 50},
	6.8: {R: 200, G: 130, B: 60},
	7.0: {R: 190, G: 110, B: 70},
	7.2: {R: 180, G: 90, B: 80},
	7.6: {R: 160, G: 60, B: 100},
}

func TestRoundTrip(t *testing.T) {
	tbl := table(t, param.PH, phColours)
	for v, c := range phColours {
		r, err := Estimate(c, param.PH, tbl)
		if err != nil {
			t.Fatalf("could not estimate %v: %v", v, err)
		}
		if r.Value != v || r.Interpolated {
			t.Errorf("expected direct selection of %v, got: %v (interpolated %v)", v, r.Value, r.Interpolated)
		}
		if r.Confidence != 1 {
			t.Errorf("unexpected confidence for %v. Got: %v, Want: 1", v, r.Confidence)
		}
		if r.Nearest[0].Distance != 0 || r.MinDistance != 0 {
			t.Errorf("unexpected nearest distance for %v: %v", v, r.Nearest[0].Distance)
		}
		if len(r.Nearest) != 3 {
			t.Errorf("unexpected neighbour count. Got: %d, Want: 3", len(r.Nearest))
		}
		if r.Considered != 7 {
			t.Errorf("unexpected considered count. Got: %d, Want: 7", r.Considered)
		}
	}
}

func TestMidpointInterpolation(t *testing.T) {
	c0 := colour.RGB{R: 240, G: 240, B: 200}
	c10 := colour.RGB{R: 200, G: 120, B: 80}
	tbl := table(t, param.Nitrate, map[float64]colour.RGB{0: c0, 10: c10})

	mid := colour.RGB{R: 220, G: 180, B: 140}
	r, err := Estimate(mid, param.Nitrate, tbl)
	if err != nil {
		t.Fatalf("could not estimate: %v", err)
	}
	if !r.Interpolated {
		t.Errorf("expected interpolation")
	}
	if math.Abs(r.Value-5) > 1e-9 {
		t.Errorf("unexpected interpolated value. Got: %v, Want: 5", r.Value)
	}
	if r.Label != "Nitrate 5.0" {
		t.Errorf("unexpected label. Got: %s, Want: Nitrate 5.0", r.Label)
	}
	if len(r.Nearest) != 2 {
		t.Errorf("unexpected neighbour count. Got: %d, Want: 2", len(r.Nearest))
	}
}

func TestInterpolationWeighting(t *testing.T) {
	tbl := table(t, param.Nitrate, map[float64]colour.RGB{0: {R: 0, G: 0, B: 0}, 10: {R: 100, G: 0, B: 0}})

	r, err := Estimate(colour.RGB{R: 25}, param.Nitrate, tbl)
	if err != nil {
		t.Fatalf("could not estimate: %v", err)
	}
	w0, w1 := 1/(25+0.1), 1/(75+0.1)
	want := 10 * w1 / (w0 + w1)
	if math.Abs(r.Value-want) > 1e-9 {
		t.Errorf("unexpected interpolated value. Got: %v, Want: %v", r.Value, want)
	}
	if r.Value >= 5 {
		t.Errorf("expected value to lean towards the nearer colour, got: %v", r.Value)
	}
	if want := 0.75; math.Abs(r.Confidence-want) > 1e-9 {
		t.Errorf("unexpected confidence. Got: %v, Want: %v", r.Confidence, want)
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	tbl := table(t, param.Ammonia, map[float64]colour.RGB{0: {R: 250, G: 240, B: 100}})

	prev := 2.0
	for d := 0; d <= 200; d += 5 {
		q := colour.RGB{R: 250, G: 240, B: uint8(100 + d/2)}
		r, err := Estimate(q, param.Ammonia, tbl)
		if err != nil {
			t.Fatalf("could not estimate: %v", err)
		}
		if r.Confidence > prev {
			t.Errorf("confidence increased with distance at %d: %v > %v", d, r.Confidence, prev)
		}
		if r.Confidence < 0.1 || r.Confidence > 1 {
			t.Errorf("confidence out of range at %d: %v", d, r.Confidence)
		}
		if r.Interpolated {
			t.Errorf("single entry family should not interpolate")
		}
		prev = r.Confidence
	}

	far, _ := Estimate(colour.RGB{R: 0, G: 0, B: 255}, param.Ammonia, tbl)
	if far.Confidence != 0.1 {
		t.Errorf("expected confidence floor for distant colour, got: %v", far.Confidence)
	}
}

func TestStableTies(t *testing.T) {
	tbl := table(t, param.Nitrite, map[float64]colour.RGB{
		0:   {R: 100, G: 100, B: 100},
		0.5: {R: 120, G: 100, B: 100},
		1:   {R: 80, G: 100, B: 100},
	})
	r, err := Estimate(colour.RGB{R: 100, G: 100, B: 100}, param.Nitrite, tbl)
	if err != nil {
		t.Fatalf("could not estimate: %v", err)
	}
	// 0.5 and 1 are equidistant; declared order is kept.
	if r.Nearest[1].Value != 0.5 || r.Nearest[2].Value != 1 {
		t.Errorf("unexpected tie order: %+v", r.Nearest)
	}
}

func TestNoCalibrationData(t *testing.T) {
	tbl := table(t, param.PH, phColours)
	_, err := Estimate(colour.RGB{}, param.Nitrate, tbl)
	if !errors.Is(err, ErrNoCalibrationData) {
		t.Errorf("expected ErrNoCalibrationData, got: %v", err)
	}
}

func TestNilTable(t *testing.T) {
	_, err := Estimate(colour.RGB{R: 10}, param.PH, nil)
	if !errors.Is(err, ErrNoCalibrationData) {
		t.Errorf("expected ErrNoCalibrationData, got: %v", err)
	}
}
