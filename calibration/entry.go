/*
DESCRIPTION
  Calibration colour entries and the per family lookup table built from
  them.

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

// Package calibration holds sampled reference colours, the lookup table
// used for estimation, and a session keyed store with expiry.
package calibration

import (
	"errors"
	"fmt"
	"image"

	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

// Errors returned by this package.
var (
	ErrInvalidValue = errors.New("value not declared for family")
	ErrNotFound     = errors.New("calibration not found")
	ErrExpired      = errors.New("calibration expired")
	ErrEmpty        = errors.New("no calibration entries")
)

// Entry is one sampled reference colour for a declared family value.
type Entry struct {
	Family     param.Family
	Value      float64
	PhotoRect  image.Rectangle
	RefRect    image.Rectangle
	Colour     colour.Colour
	Confidence float64
	Points     int
}

// Validate checks that the value is declared for the family and that the
// confidence lies in [0,1].
func (e Entry) Validate() error {
	if !e.Family.Valid() {
		return fmt.Errorf("%w: %v", param.ErrUnknownFamily, e.Family)
	}
	if !e.Family.Has(e.Value) {
		return fmt.Errorf("%w: %v %g", ErrInvalidValue, e.Family, e.Value)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence out of range: %g", e.Confidence)
	}
	return nil
}

// Label returns the display label of the entry, e.g. "Nitrite 0.5".
func (e Entry) Label() string { return e.Family.Label(e.Value) }

// Point is one value and its reference colour.
type Point struct {
	Value float64
	RGB   colour.RGB
}

// Table maps each family to its reference colours in declared value
// order. It is built once per calibration and read many times.
type Table struct {
	points map[param.Family][]Point
}

// NewTable builds a Table from entries. Later entries for the same value
// replace earlier ones.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{points: make(map[param.Family][]Point)}
	for _, e := range entries {
		if err := t.Set(e.Family, e.Value, e.Colour.RGB()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Set stores c as the reference colour of value v of family f, replacing
// any existing colour and keeping declared order.
func (t *Table) Set(f param.Family, v float64, c colour.RGB) error {
	idx := f.Index(v)
	if idx < 0 {
		return fmt.Errorf("%w: %v %g", ErrInvalidValue, f, v)
	}
	ps := t.points[f]
	for i := range ps {
		if ps[i].Value == v {
			ps[i].RGB = c
			return nil
		}
	}
	at := len(ps)
	for i := range ps {
		if f.Index(ps[i].Value) > idx {
			at = i
			break
		}
	}
	ps = append(ps, Point{})
	copy(ps[at+1:], ps[at:])
	ps[at] = Point{Value: v, RGB: c}
	t.points[f] = ps
	return nil
}

// Family returns a copy of the points of f.
func (t *Table) Family(f param.Family) []Point {
	return append([]Point(nil), t.points[f]...)
}

// Families returns the families with at least one point, in column order.
func (t *Table) Families() []param.Family {
	var fs []param.Family
	for _, f := range param.All() {
		if len(t.points[f]) > 0 {
			fs = append(fs, f)
		}
	}
	return fs
}

// Len returns the total number of points.
func (t *Table) Len() int {
	var n int
	for _, ps := range t.points {
		n += len(ps)
	}
	return n
}
