/*
DESCRIPTION
  Declares the water quality parameter families measured by the test kit,
  their printed value lists and the fixed alias table used to resolve
  family names supplied by callers.

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

// Package param declares the parameter families of the colour chart.
package param

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Family is a water quality parameter family printed as one chart column.
type Family int

// Families in chart column order, left to right.
const (
	PH Family = iota
	HighRangePH
	Ammonia
	Nitrite
	Nitrate
)

// ErrUnknownFamily is returned when a name does not resolve to a family.
var ErrUnknownFamily = errors.New("unknown parameter family")

type info struct {
	name     string
	fullName string
	values   []float64
}

var families = [...]info{
	PH:          {name: "pH", fullName: "pH", values: []float64{6.0, 6.4, 6.6, 6.8, 7.0, 7.2, 7.6}},
	HighRangePH: {name: "High_Range_pH", fullName: "High Range pH", values: []float64{7.4, 7.8, 8.0, 8.2, 8.4, 8.8}},
	Ammonia:     {name: "Ammonia", fullName: "Ammonia (NH₃/NH₄⁺) ppm", values: []float64{0, 0.25, 0.5, 1, 2, 4, 8}},
	Nitrite:     {name: "Nitrite", fullName: "Nitrite (NO₂⁻) ppm", values: []float64{0, 0.25, 0.5, 1, 2, 5}},
	Nitrate:     {name: "Nitrate", fullName: "Nitrate (NO₃⁻) ppm", values: []float64{0, 5, 10, 20, 40, 80, 160}},
}

// aliases maps every accepted spelling to its family. Matching is exact.
var aliases = map[string]Family{
	"pH":            PH,
	"ph":            PH,
	"PH":            PH,
	"High_Range_pH": HighRangePH,
	"high_range_ph": HighRangePH,
	"High Range pH": HighRangePH,
	"high_ph":       HighRangePH,
	"high-range-ph": HighRangePH,
	"Ammonia":       Ammonia,
	"ammonia":       Ammonia,
	"NH3":           Ammonia,
	"nh3":           Ammonia,
	"Nitrite":       Nitrite,
	"nitrite":       Nitrite,
	"NO2":           Nitrite,
	"no2":           Nitrite,
	"Nitrate":       Nitrate,
	"nitrate":       Nitrate,
	"NO3":           Nitrate,
	"no3":           Nitrate,
}

// All returns every family in chart column order.
func All() []Family {
	return []Family{PH, HighRangePH, Ammonia, Nitrite, Nitrate}
}

// Parse resolves s to a family using the alias table. The canonical and
// full names are accepted as well.
func Parse(s string) (Family, error) {
	s = strings.TrimSpace(s)
	if f, ok := aliases[s]; ok {
		return f, nil
	}
	for i, fi := range families {
		if s == fi.fullName {
			return Family(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// Valid reports whether f is a declared family.
func (f Family) Valid() bool { return f >= 0 && int(f) < len(families) }

// String returns the canonical family name, e.g. High_Range_pH.
func (f Family) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Family(%d)", int(f))
	}
	return families[f].name
}

// FullName returns the human readable name including units.
func (f Family) FullName() string {
	if !f.Valid() {
		return f.String()
	}
	return families[f].fullName
}

// Values returns a copy of the declared values, top of the column first.
func (f Family) Values() []float64 {
	if !f.Valid() {
		return nil
	}
	return append([]float64(nil), families[f].values...)
}

// Index returns the position of v in the declared values, or -1.
func (f Family) Index(v float64) int {
	if !f.Valid() {
		return -1
	}
	for i, d := range families[f].values {
		if d == v {
			return i
		}
	}
	return -1
}

// Has reports whether v is one of the declared values of f.
func (f Family) Has(v float64) bool { return f.Index(v) >= 0 }

// Label returns the display label of value v, e.g. "pH 7.2". Whole
// values keep one decimal place, as in "pH 6.0".
func (f Family) Label(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return f.String() + " " + s
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFamily, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = p
	return nil
}
