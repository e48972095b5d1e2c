//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  Tests for the Kit replacement used without OpenCV.

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
	"errors"
	"image"
	"testing"

	"github.com/ausocean/utils/logging"
)

func TestNoVision(t *testing.T) {
	_, err := NewKit((*logging.TestLogger)(t), nil, DefaultConfig())
	if !errors.Is(err, ErrNoVision) {
		t.Errorf("expected ErrNoVision, got: %v", err)
	}
}

func TestNoVisionProbe(t *testing.T) {
	var k *Kit
	if _, err := k.Probe(nil, image.Rect(0, 0, 10, 10)); !errors.Is(err, ErrNoVision) {
		t.Errorf("expected ErrNoVision, got: %v", err)
	}
}
