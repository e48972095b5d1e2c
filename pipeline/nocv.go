//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  Replaces the OpenCV backed Kit when built without the withcv tag.

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

package pipeline

import (
	"image"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/colorkit/chart"
	"github.com/ausocean/colorkit/colour"
)

// Kit is unavailable without OpenCV.
type Kit struct{}

// NewKit always returns ErrNoVision.
func NewKit(log logging.Logger, reference []byte, cfg Config) (*Kit, error) {
	log.Warning("vision pipeline unavailable, rebuild with -tags withcv")
	return nil, ErrNoVision
}

func (k *Kit) Close() error { return nil }

func (k *Kit) Reference() *chart.Decoding { return nil }

func (k *Kit) Rectify(photo []byte, size image.Point) (*Rectification, error) {
	return nil, ErrNoVision
}

func (k *Kit) Extract(rectified []byte, box image.Rectangle) (*Extraction, error) {
	return nil, ErrNoVision
}

func (k *Kit) Probe(rectified []byte, area image.Rectangle) (colour.Colour, error) {
	return colour.Colour{}, ErrNoVision
}
