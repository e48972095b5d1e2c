/*
DESCRIPTION
  Marker roles, classification of detected fiducial markers against the
  expected layout, and geometric validation of the four corner markers
  framing the colour card.

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

// Package marker locates the colour card in a photo using four ArUco
// markers and rectifies the card to a fixed size. Geometry is pure Go;
// detection, warping and annotation need OpenCV and the withcv build tag.
package marker

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Errors returned while locating and rectifying the card.
var (
	ErrNoMarkers           = errors.New("no markers detected")
	ErrInsufficientMarkers = errors.New("insufficient markers")
	ErrInvalidGeometry     = errors.New("invalid marker geometry")
	ErrRectificationFailed = errors.New("rectification failed")
	ErrInvalidLayout       = errors.New("invalid marker layout")
)

// Default rectified card dimensions.
const (
	DefaultWidth  = 800
	DefaultHeight = 533
)

// DefaultSize is the rectified size of the colour card.
var DefaultSize = image.Pt(DefaultWidth, DefaultHeight)

// Role is the corner of the card a marker is expected to occupy.
type Role int

const (
	Unrecognised Role = iota
	TopLeft
	TopRight
	BottomLeft
	BottomRight
)

// Roles lists the four corner roles.
var Roles = []Role{TopLeft, TopRight, BottomLeft, BottomRight}

func (r Role) String() string {
	switch r {
	case TopLeft:
		return "top_left"
	case TopRight:
		return "top_right"
	case BottomLeft:
		return "bottom_left"
	case BottomRight:
		return "bottom_right"
	default:
		return "unrecognised"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Marker is a single detected marker. Corners are in detector order,
// clockwise from the marker's own top left.
type Marker struct {
	ID      int
	Corners [4]r2.Vec
	Role    Role
}

// Centre returns the mean of the marker corners.
func (m Marker) Centre() r2.Vec {
	var c r2.Vec
	for _, p := range m.Corners {
		c = r2.Add(c, p)
	}
	return r2.Scale(0.25, c)
}

// Layout maps marker IDs to card corners.
type Layout map[int]Role

// DefaultLayout is the marker arrangement printed on the colour card,
// using the 4x4_50 dictionary.
var DefaultLayout = Layout{3: TopLeft, 0: TopRight, 1: BottomLeft, 2: BottomRight}

// Validate checks that l assigns each corner role to exactly one ID.
func (l Layout) Validate() error {
	if len(l) != len(Roles) {
		return fmt.Errorf("%w: want %d markers, have %d", ErrInvalidLayout, len(Roles), len(l))
	}
	seen := make(map[Role]bool)
	for id, r := range l {
		if r == Unrecognised || seen[r] {
			return fmt.Errorf("%w: id %d has role %v", ErrInvalidLayout, id, r)
		}
		seen[r] = true
	}
	return nil
}

// IDs returns the expected IDs in ascending order.
func (l Layout) IDs() []int {
	ids := make([]int, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Detection is the result of classifying the markers found in a photo.
type Detection struct {
	All        []Marker
	Recognised map[Role]Marker
	Extra      []Marker
	layout     Layout
}

// Classify assigns roles to markers using layout. Markers whose ID is not
// in the layout are extra. If an expected ID is seen twice, the first
// sighting is used and later ones are treated as extra.
func Classify(markers []Marker, layout Layout) Detection {
	d := Detection{Recognised: make(map[Role]Marker), layout: layout}
	for _, m := range markers {
		role, ok := layout[m.ID]
		if _, dup := d.Recognised[role]; ok && !dup {
			m.Role = role
			d.Recognised[role] = m
		} else {
			m.Role = Unrecognised
			d.Extra = append(d.Extra, m)
		}
		d.All = append(d.All, m)
	}
	return d
}

// Found returns the recognised IDs in ascending order.
func (d Detection) Found() []int {
	var ids []int
	for _, m := range d.Recognised {
		ids = append(ids, m.ID)
	}
	sort.Ints(ids)
	return ids
}

// Missing returns the expected IDs that were not found, in ascending order.
func (d Detection) Missing() []int {
	var ids []int
	for _, id := range d.layout.IDs() {
		if _, ok := d.Recognised[d.layout[id]]; !ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExtraIDs returns the IDs of extra markers in detection order.
func (d Detection) ExtraIDs() []int {
	var ids []int
	for _, m := range d.Extra {
		ids = append(ids, m.ID)
	}
	return ids
}

// InsufficientMarkersError reports which expected markers were found.
// It matches ErrInsufficientMarkers with errors.Is.
type InsufficientMarkersError struct {
	Found   []int
	Missing []int
	Extra   []int
}

func (e *InsufficientMarkersError) Error() string {
	return fmt.Sprintf("%v: found %v, missing %v, extra %v", ErrInsufficientMarkers, e.Found, e.Missing, e.Extra)
}

// Is reports whether target is ErrInsufficientMarkers.
func (e *InsufficientMarkersError) Is(target error) bool { return target == ErrInsufficientMarkers }

// Check returns ErrNoMarkers if nothing was detected, or an
// *InsufficientMarkersError unless all four expected markers were found.
func (d Detection) Check() error {
	if len(d.All) == 0 {
		return ErrNoMarkers
	}
	if len(d.Recognised) < len(Roles) {
		return &InsufficientMarkersError{Found: d.Found(), Missing: d.Missing(), Extra: d.ExtraIDs()}
	}
	return nil
}

// ValidateGeometry checks that the recognised markers are arranged as a
// card seen roughly upright: right hand markers strictly right of their
// left hand neighbours and bottom markers strictly below the top ones.
func (d Detection) ValidateGeometry() error {
	if err := d.Check(); err != nil {
		return err
	}
	tl := d.Recognised[TopLeft].Centre()
	tr := d.Recognised[TopRight].Centre()
	bl := d.Recognised[BottomLeft].Centre()
	br := d.Recognised[BottomRight].Centre()

	switch {
	case tr.X <= tl.X:
		return fmt.Errorf("%w: top right marker is not right of top left", ErrInvalidGeometry)
	case bl.Y <= tl.Y:
		return fmt.Errorf("%w: bottom left marker is not below top left", ErrInvalidGeometry)
	case br.X <= bl.X:
		return fmt.Errorf("%w: bottom right marker is not right of bottom left", ErrInvalidGeometry)
	case br.Y <= tr.Y:
		return fmt.Errorf("%w: bottom right marker is not below top right", ErrInvalidGeometry)
	}
	return nil
}

// OuterCorners returns the outermost corner of each recognised marker in
// the order top left, top right, bottom right, bottom left.
func (d Detection) OuterCorners() ([4]r2.Vec, error) {
	if err := d.Check(); err != nil {
		return [4]r2.Vec{}, err
	}
	return [4]r2.Vec{
		d.Recognised[TopLeft].Corners[0],
		d.Recognised[TopRight].Corners[1],
		d.Recognised[BottomRight].Corners[2],
		d.Recognised[BottomLeft].Corners[3],
	}, nil
}

// TargetCorners returns the corners of a size.X by size.Y image in the
// same order as OuterCorners.
func TargetCorners(size image.Point) [4]r2.Vec {
	w, h := float64(size.X-1), float64(size.Y-1)
	return [4]r2.Vec{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}
