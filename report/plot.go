/*
DESCRIPTION
  Plotting functions for calibration curves: the red, green and blue
  reference channels of a family against its declared values.

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

// Package report plots calibration curves.
package report

import (
	"fmt"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/param"
)

// Plot dimensions.
const (
	plotWidth  = 15 * vg.Centimeter
	plotHeight = 15 * vg.Centimeter
)

// Curve returns a plot of the reference channels of f in t. If r is not
// nil, the estimate is marked on the plot.
func Curve(t *calibration.Table, f param.Family, r *estimate.Result) (*plot.Plot, error) {
	pts := t.Family(f)
	if len(pts) == 0 {
		return nil, fmt.Errorf("%w: %v", estimate.ErrNoCalibrationData, f)
	}

	x := make([]float64, len(pts))
	var red, green, blue []float64
	for i, p := range pts {
		x[i] = p.Value
		red = append(red, float64(p.RGB.R))
		green = append(green, float64(p.RGB.G))
		blue = append(blue, float64(p.RGB.B))
	}

	return newPlot(f.FullName(), f.FullName(), "Channel value", func(p *plot.Plot) error {
		err := plotutil.AddLinePoints(p,
			"R", plotterXY(x, red),
			"G", plotterXY(x, green),
			"B", plotterXY(x, blue),
		)
		if err != nil || r == nil || r.Family != f {
			return err
		}
		q := r.Query
		s, err := plotter.NewScatter(plotterXY(
			[]float64{r.Value, r.Value, r.Value},
			[]float64{float64(q.R), float64(q.G), float64(q.B)},
		))
		if err != nil {
			return err
		}
		s.GlyphStyle.Shape = plotutil.Shape(5)
		p.Add(s)
		p.Legend.Add(r.Label, s)
		return nil
	})
}

// WritePNG renders p as a PNG to w.
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("could not render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveCurves saves one PNG curve per family of t into dir and returns the
// file paths.
func SaveCurves(dir string, t *calibration.Table) ([]string, error) {
	var paths []string
	for _, f := range t.Families() {
		p, err := Curve(t, f, nil)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, f.String()+".png")
		if err := p.Save(plotWidth, plotHeight, path); err != nil {
			return paths, fmt.Errorf("could not save plot: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// newPlot creates a plot with a specified name and x&y titles using the
// provided draw function.
func newPlot(name, xTitle, yTitle string, draw func(*plot.Plot) error) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = xTitle
	p.Y.Label.Text = yTitle
	p.Y.Min, p.Y.Max = 0, 255
	err := draw(p)
	if err != nil {
		return nil, fmt.Errorf("could not draw plot contents: %w", err)
	}
	return p, nil
}

// plotterXY provides a plotter.XYs type value based on the given x and y data.
func plotterXY(x, y []float64) plotter.XYs {
	xy := make(plotter.XYs, len(x))
	for i := range x {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}
