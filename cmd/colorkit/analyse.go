/*
DESCRIPTION
  analyse.go provides the analyse command, which measures the mean colour
  of a probe photo selection and estimates its parameter value from a
  calibration CSV file.

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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/pipeline"
	"github.com/ausocean/colorkit/report"
	"github.com/ausocean/colorkit/store"
)

// Plot size used by the analyse command, in points.
const plotSize = 425

type nearest struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	RGB      [3]int  `json:"rgb"`
	Distance float64 `json:"distance"`
}

// analysis is the JSON record written by the analyse command.
type analysis struct {
	ID           string       `json:"id,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
	Source       string       `json:"source"`
	Family       param.Family `json:"family"`
	Label        string       `json:"label"`
	Value        float64      `json:"value"`
	Confidence   float64      `json:"confidence"`
	Interpolated bool         `json:"interpolated"`
	RGB          [3]int       `json:"rgb"`
	Hex          string       `json:"hex"`
	MinDistance  float64      `json:"min_distance"`
	Considered   int          `json:"considered"`
	Nearest      []nearest    `json:"nearest"`
}

func newAnalysis(source string, r estimate.Result, at time.Time) analysis {
	a := analysis{
		Timestamp:    at,
		Source:       source,
		Family:       r.Family,
		Label:        r.Label,
		Value:        r.Value,
		Confidence:   r.Confidence,
		Interpolated: r.Interpolated,
		RGB:          [3]int{int(r.Query.R), int(r.Query.G), int(r.Query.B)},
		Hex:          r.Query.Hex(),
		MinDistance:  r.MinDistance,
		Considered:   r.Considered,
	}
	for _, n := range r.Nearest {
		a.Nearest = append(a.Nearest, nearest{
			Label:    n.Label,
			Value:    n.Value,
			RGB:      [3]int{int(n.RGB.R), int(n.RGB.G), int(n.RGB.B)},
			Distance: n.Distance,
		})
	}
	return a
}

// analyse runs the analyse command with args, writing the result JSON to
// out unless an output file is given.
func analyse(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyse", flag.ContinueOnError)
	probePath := fs.String("probe", "", "Rectified probe photo (JPEG or PNG).")
	coloursPath := fs.String("colours", "", "Calibration CSV written by calibrate.")
	family := fs.String("family", "", "Parameter family, e.g. pH, high_ph, ammonia, nitrite, nitrate.")
	area := fs.String("area", "", "Sample area as x,y,w,h.")
	outPath := fs.String("out", "", "Write the result JSON to this file instead of stdout.")
	plotPath := fs.String("plot", "", "Write a PNG plot of the calibration curve with the estimate marked.")
	dbPath := fs.String("db", "", "Record the analysis in this SQLite database.")
	session := fs.String("session", "cli", "Session key used when recording.")
	logPath := fs.String("LogPath", "", "Specifies log path")
	logLevel := fs.Int("LogLevel", int(logging.Warning), "Specifies log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *probePath == "" || *coloursPath == "" || *family == "" || *area == "" {
		fs.Usage()
		return fmt.Errorf("%w: -probe, -colours, -family and -area are required", errUsage)
	}
	log := newLogger(*logPath, *logLevel)

	f, err := param.Parse(*family)
	if err != nil {
		return err
	}
	r, err := parseRect(*area)
	if err != nil {
		return err
	}

	t, err := loadTable(*coloursPath)
	if err != nil {
		return err
	}
	img, err := os.ReadFile(*probePath)
	if err != nil {
		return fmt.Errorf("could not read probe photo: %w", err)
	}
	c, err := pipeline.Probe(img, r)
	if err != nil {
		return err
	}
	log.Info("probe colour measured", "rgb", c.RGB().String(), "lab", fmt.Sprintf("%.2f", c.Lab()))

	res, err := estimate.Estimate(c.RGB(), f, t)
	if err != nil {
		return err
	}
	a := newAnalysis(*probePath, res, time.Now().UTC())

	if *dbPath != "" {
		db, err := store.Open(*dbPath, log)
		if err != nil {
			return err
		}
		defer db.Close()
		id, err := db.RecordAnalysis(*session, *probePath, res, a.Timestamp)
		if err != nil {
			return err
		}
		a.ID = id.String()
	}

	if *plotPath != "" {
		p, err := report.Curve(t, f, &res)
		if err != nil {
			return err
		}
		if err := p.Save(plotSize, plotSize, *plotPath); err != nil {
			return fmt.Errorf("could not save plot: %w", err)
		}
	}

	if *outPath != "" {
		return writeJSON(*outPath, a)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// loadTable reads a calibration CSV file into a table.
func loadTable(path string) (*calibration.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open calibration: %w", err)
	}
	defer f.Close()
	entries, err := calibration.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return calibration.NewTable(entries)
}
