/*
DESCRIPTION
  Tabular interchange format for calibration colours, one record per
  entry with columns parameter, value, R, G, B.

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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

// Header is the first record of the interchange format.
var Header = []string{"parameter", "value", "R", "G", "B"}

// WriteCSV writes entries to w in the interchange format. Values use the
// shortest representation that parses back to the same float.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}
	for _, e := range entries {
		c := e.Colour.RGB()
		rec := []string{
			e.Family.String(),
			strconv.FormatFloat(e.Value, 'g', -1, 64),
			strconv.Itoa(int(c.R)),
			strconv.Itoa(int(c.G)),
			strconv.Itoa(int(c.B)),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("could not write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads entries written by WriteCSV. Only the family, value and
// colour are carried by the format.
func ReadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	for i := range Header {
		if hdr[i] != Header[i] {
			return nil, fmt.Errorf("unexpected header column %d: %q", i, hdr[i])
		}
	}

	var entries []Entry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read record: %w", err)
		}
		e, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseRecord(rec []string) (Entry, error) {
	f, err := param.Parse(rec[0])
	if err != nil {
		return Entry{}, err
	}
	v, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid value %q: %w", rec[1], err)
	}
	var ch [3]uint8
	for i := range ch {
		n, err := strconv.ParseUint(rec[2+i], 10, 8)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid %s channel %q: %w", Header[2+i], rec[2+i], err)
		}
		ch[i] = uint8(n)
	}
	e := Entry{
		Family: f,
		Value:  v,
		Colour: colour.New(colour.RGB{R: ch[0], G: ch[1], B: ch[2]}),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}
