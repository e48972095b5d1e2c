/*
DESCRIPTION
  Tests for the calibration interchange format.

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

package calibration

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/andreyvit/diff"

	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

func entry(f param.Family, v float64, r, g, b uint8) Entry {
	return Entry{Family: f, Value: v, Colour: colour.New(colour.RGB{R: r, G: g, B: b}), Confidence: 0.9, Points: 5}
}

func TestWriteCSV(t *testing.T) {
	entries := []Entry{
		entry(param.PH, 6.0, 200, 180, 40),
		entry(param.PH, 7.2, 180, 90, 30),
		entry(param.Ammonia, 0.25, 230, 220, 60),
		entry(param.Nitrate, 160, 150, 20, 40),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		t.Fatalf("could not write CSV: %v", err)
	}

	want := strings.Join([]string{
		"parameter,value,R,G,B",
		"pH,6,200,180,40",
		"pH,7.2,180,90,30",
		"Ammonia,0.25,230,220,60",
		"Nitrate,160,150,20,40",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Errorf("unexpected CSV:\n%s", diff.LineDiff(want, got))
	}

	read, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("could not read CSV: %v", err)
	}
	if len(read) != len(entries) {
		t.Fatalf("unexpected entry count. Got: %d, Want: %d", len(read), len(entries))
	}
	for i := range entries {
		if read[i].Family != entries[i].Family || read[i].Value != entries[i].Value || read[i].Colour.RGB() != entries[i].Colour.RGB() {
			t.Errorf("entry %d did not round trip. Got: %v %v %v, Want: %v %v %v", i,
				read[i].Family, read[i].Value, read[i].Colour.RGB(),
				entries[i].Family, entries[i].Value, entries[i].Colour.RGB())
		}
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "bad header", in: "family,value,R,G,B\n"},
		{name: "unknown family", in: "parameter,value,R,G,B\nphosphate,1,0,0,0\n", want: param.ErrUnknownFamily},
		{name: "undeclared value", in: "parameter,value,R,G,B\npH,6.1,0,0,0\n", want: ErrInvalidValue},
		{name: "channel overflow", in: "parameter,value,R,G,B\npH,6,256,0,0\n"},
		{name: "short record", in: "parameter,value,R,G,B\npH,6,1,2\n"},
	}

	for _, test := range tests {
		_, err := ReadCSV(strings.NewReader(test.in))
		if err == nil {
			t.Errorf("expected error for %s", test.name)
			continue
		}
		if test.want != nil && !errors.Is(err, test.want) {
			t.Errorf("unexpected error for %s. Got: %v, Want: %v", test.name, err, test.want)
		}
	}
}
