/*
DESCRIPTION
  Tests for the colorkit command.

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
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/store"
)

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    image.Rectangle
		wantErr bool
	}{
		{in: "", want: image.Rectangle{}},
		{in: "10,20,30,40", want: image.Rect(10, 20, 40, 60)},
		{in: " 1, 2, 3, 4", want: image.Rect(1, 2, 4, 6)},
		{in: "1,2,3", wantErr: true},
		{in: "1,2,x,4", wantErr: true},
		{in: "1,2,0,4", wantErr: true},
	}

	for i, test := range tests {
		got, err := parseRect(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("did not get expected error for test %d: %v", i, err)
			continue
		}
		if got != test.want {
			t.Errorf("unexpected rectangle for test %d. Got: %v, Want: %v", i, got, test.want)
		}
	}
}

// writeFixtures writes a two value pH calibration and a probe photo filled
// with fill, returning their paths.
func writeFixtures(t *testing.T, fill colour.RGB) (csvPath, probePath string) {
	t.Helper()
	dir := t.TempDir()

	entries := []calibration.Entry{
		{Family: param.PH, Value: 6.0, Colour: colour.New(colour.RGB{R: 0, G: 0, B: 0}), Confidence: 1, Points: 5},
		{Family: param.PH, Value: 7.6, Colour: colour.New(colour.RGB{R: 80, G: 0, B: 0}), Confidence: 1, Points: 5},
	}
	var buf bytes.Buffer
	if err := calibration.WriteCSV(&buf, entries); err != nil {
		t.Fatalf("could not write calibration: %v", err)
	}
	csvPath = filepath.Join(dir, "colours.csv")
	if err := os.WriteFile(csvPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: fill.R, G: fill.G, B: fill.B, A: 255}), image.Point{}, draw.Src)
	buf.Reset()
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("could not encode probe: %v", err)
	}
	probePath = filepath.Join(dir, "probe.png")
	if err := os.WriteFile(probePath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return csvPath, probePath
}

func TestAnalyse(t *testing.T) {
	// Midway between the two calibration colours, 40 from each.
	csvPath, probePath := writeFixtures(t, colour.RGB{R: 40})
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "curve.png")
	dbPath := filepath.Join(dir, "colorkit.db")

	var out bytes.Buffer
	err := analyse([]string{
		"-probe", probePath,
		"-colours", csvPath,
		"-family", "ph",
		"-area", "10,10,50,40",
		"-plot", plotPath,
		"-db", dbPath,
		"-session", "bench",
	}, &out)
	if err != nil {
		t.Fatalf("analyse failed: %v", err)
	}

	var got analysis
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("could not decode result: %v\n%s", err, out.String())
	}
	if got.Family != param.PH || !got.Interpolated {
		t.Errorf("unexpected result: %+v", got)
	}
	if math.Abs(got.Value-6.8) > 1e-9 {
		t.Errorf("unexpected value. Got: %v, Want: 6.8", got.Value)
	}
	if math.Abs(got.Confidence-0.6) > 1e-9 {
		t.Errorf("unexpected confidence. Got: %v, Want: 0.6", got.Confidence)
	}
	if diff := cmp.Diff([3]int{40, 0, 0}, got.RGB); diff != "" {
		t.Errorf("unexpected colour (-want +got):\n%s", diff)
	}
	if len(got.Nearest) != 2 || got.ID == "" {
		t.Errorf("unexpected nearest or id: %+v", got)
	}

	if fi, err := os.Stat(plotPath); err != nil || fi.Size() == 0 {
		t.Errorf("expected plot at %s: %v", plotPath, err)
	}

	db, err := store.Open(dbPath, (*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	defer db.Close()
	as, err := db.Analyses("bench")
	if err != nil {
		t.Fatalf("could not read analyses: %v", err)
	}
	if len(as) != 1 || as[0].ID.String() != got.ID {
		t.Errorf("unexpected recorded analyses: %+v", as)
	}
}

func TestAnalyseErrors(t *testing.T) {
	csvPath, probePath := writeFixtures(t, colour.RGB{R: 40})

	tests := []struct {
		name string
		args []string
		want error
	}{
		{
			name: "missing flags",
			args: []string{"-probe", probePath},
			want: errUsage,
		},
		{
			name: "unknown family",
			args: []string{"-probe", probePath, "-colours", csvPath, "-family", "chlorine", "-area", "10,10,20,20"},
			want: param.ErrUnknownFamily,
		},
		{
			name: "no calibration for family",
			args: []string{"-probe", probePath, "-colours", csvPath, "-family", "nitrate", "-area", "10,10,20,20"},
			want: estimate.ErrNoCalibrationData,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := analyse(test.args, &bytes.Buffer{})
			if !errors.Is(err, test.want) {
				t.Errorf("unexpected error. Got: %v, Want: %v", err, test.want)
			}
		})
	}
}
