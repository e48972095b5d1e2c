/*
DESCRIPTION
  calibrate.go provides the calibrate command, which rectifies a chart photo,
  extracts its calibration colours and writes the images, calibration CSV,
  curve plots and a metadata record to an output directory.

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
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/marker"
	"github.com/ausocean/colorkit/pipeline"
	"github.com/ausocean/colorkit/report"
)

// Output file names.
const (
	markersFile   = "markers.jpg"
	rectifiedFile = "rectified.jpg"
	debugFile     = "debug.jpg"
	coloursFile   = "colours.csv"
	metadataFile  = "metadata.json"
)

// metadata is the JSON record of a calibrate run.
type metadata struct {
	Timestamp  time.Time          `json:"timestamp"`
	Photo      string             `json:"photo"`
	Reference  string             `json:"reference"`
	Size       [2]int             `json:"size"`
	Homography *marker.Homography `json:"homography,omitempty"`
	Markers    []int              `json:"markers,omitempty"`
	Box        [4]int             `json:"box"`
	Stats      pipeline.Stats     `json:"stats"`
	Files      []string           `json:"files"`
}

// calibrate runs the calibrate command with args, writing a summary to
// out.
func calibrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	photoPath := fs.String("photo", "", "Photo of the colour card with its four markers.")
	refPath := fs.String("reference", "", "Black and white reference chart image.")
	boxFlag := fs.String("box", "", "Chart area in the rectified photo as x,y,w,h. Defaults to the whole image.")
	outDir := fs.String("out", ".", "Output directory.")
	rectified := fs.Bool("rectified", false, "The photo is already rectified; skip marker detection.")
	logPath := fs.String("LogPath", "", "Specifies log path")
	logLevel := fs.Int("LogLevel", int(logging.Info), "Specifies log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *photoPath == "" || *refPath == "" {
		fs.Usage()
		return fmt.Errorf("%w: -photo and -reference are required", errUsage)
	}
	log := newLogger(*logPath, *logLevel)

	box, err := parseRect(*boxFlag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	ref, err := os.ReadFile(*refPath)
	if err != nil {
		return fmt.Errorf("could not read reference chart: %w", err)
	}
	kit, err := pipeline.NewKit(log, ref, pipeline.DefaultConfig())
	if err != nil {
		return err
	}
	defer kit.Close()

	photo, err := os.ReadFile(*photoPath)
	if err != nil {
		return fmt.Errorf("could not read photo: %w", err)
	}

	md := metadata{
		Timestamp: time.Now().UTC(),
		Photo:     *photoPath,
		Reference: *refPath,
	}
	write := func(name string, b []byte) error {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", name, err)
		}
		md.Files = append(md.Files, path)
		return nil
	}

	img := photo
	if !*rectified {
		r, err := kit.Rectify(photo, pipeline.ChartSize)
		if r != nil && len(r.Annotated) > 0 {
			if werr := write(markersFile, r.Annotated); werr != nil {
				return werr
			}
		}
		if err != nil {
			if r != nil {
				log.Warning("rectification failed", "found", r.Found, "missing", r.Missing, "extra", r.Extra)
			}
			return err
		}
		if err := write(rectifiedFile, r.Rectified); err != nil {
			return err
		}
		h := r.Homography
		md.Homography = &h
		md.Markers = r.Found
		md.Size = [2]int{r.Size.X, r.Size.Y}
		img = r.Rectified
	}

	if box.Empty() {
		decoded, err := pipeline.Decode(img)
		if err != nil {
			return err
		}
		box = decoded.Bounds()
	}
	md.Box = [4]int{box.Min.X, box.Min.Y, box.Dx(), box.Dy()}

	x, err := kit.Extract(img, box)
	if err != nil {
		return err
	}
	md.Stats = x.Stats
	if err := write(debugFile, x.Debug); err != nil {
		return err
	}

	var csv bytes.Buffer
	if err := calibration.WriteCSV(&csv, x.Entries); err != nil {
		return err
	}
	if err := write(coloursFile, csv.Bytes()); err != nil {
		return err
	}

	t, err := calibration.NewTable(x.Entries)
	if err != nil {
		return err
	}
	plots, err := report.SaveCurves(*outDir, t)
	md.Files = append(md.Files, plots...)
	if err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(*outDir, metadataFile), md); err != nil {
		return err
	}
	fmt.Fprintf(out, "extracted %d of %d colours (%.1f%%), mean confidence %.2f\n",
		x.Stats.Detected, x.Stats.Expected, x.Stats.Success, x.Stats.MeanConfidence)
	for _, f := range append(md.Files, filepath.Join(*outDir, metadataFile)) {
		fmt.Fprintln(out, " ", f)
	}
	return nil
}
