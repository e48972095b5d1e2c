/*
DESCRIPTION
  service.go provides the HTTP JSON API over the colour kit pipeline:
  chart and probe rectification, calibration extraction, probe analysis and
  calibration management by session.

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

// Package service serves the colour kit over HTTP. Requests and responses
// are JSON with images carried as base64 data URLs. Calibrations are kept
// per session key in a calibration.Store.
package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/uuid"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/chart"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/marker"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/pipeline"
	"github.com/ausocean/colorkit/sampler"
)

// Version is reported by the status route.
const Version = "1.0"

// maxBody limits request bodies, which carry full size photos.
const maxBody = 32 << 20

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// Vision rectifies photos, extracts calibrations from them and measures
// probe colours. Calibration and probe images go through the same decoder.
// *pipeline.Kit satisfies Vision.
type Vision interface {
	Rectify(photo []byte, size image.Point) (*pipeline.Rectification, error)
	Extract(rectified []byte, box image.Rectangle) (*pipeline.Extraction, error)
	Probe(rectified []byte, area image.Rectangle) (colour.Colour, error)
}

// Recorder records completed analyses.
type Recorder interface {
	RecordAnalysis(session, source string, r estimate.Result, at time.Time) (uuid.UUID, error)
}

// Option is a functional option for New.
type Option func(*Server) error

// WithRecorder records every analysis with rec.
func WithRecorder(rec Recorder) Option {
	return func(s *Server) error {
		if rec == nil {
			return errors.New("nil recorder")
		}
		s.rec = rec
		return nil
	}
}

// WithClock sets the function used to read the current time. It should
// agree with the clock of the calibration store.
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		s.now = now
		return nil
	}
}

// WithProbeSize sets the size probe photos are rectified to.
func WithProbeSize(size image.Point) Option {
	return func(s *Server) error {
		if size.X <= 0 || size.Y <= 0 {
			return fmt.Errorf("invalid probe size: %v", size)
		}
		s.probeSize = size
		return nil
	}
}

// Server is an http.Handler serving the colour kit API.
type Server struct {
	vision    Vision
	store     *calibration.Store
	rec       Recorder
	now       func() time.Time
	chartSize image.Point
	probeSize image.Point
	mux       *http.ServeMux
	log       logging.Logger
}

// New returns a Server using v for image work and st for calibrations.
func New(log logging.Logger, v Vision, st *calibration.Store, opts ...Option) (*Server, error) {
	if v == nil || st == nil {
		return nil, errors.New("vision and store are required")
	}
	s := &Server{
		vision:    v,
		store:     st,
		now:       time.Now,
		chartSize: pipeline.ChartSize,
		probeSize: pipeline.ProbeSize,
		mux:       http.NewServeMux(),
		log:       log,
	}
	for i, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}

	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("POST /markers", s.handleMarkers)
	s.mux.HandleFunc("POST /colours", s.handleColours)
	s.mux.HandleFunc("POST /probe/rectify", s.handleProbeRectify)
	s.mux.HandleFunc("POST /probe/analyse", s.handleAnalyse)
	s.mux.HandleFunc("POST /calibration/status", s.handleStatus)
	s.mux.HandleFunc("POST /calibration/invalidate", s.handleInvalidate)
	s.mux.HandleFunc("GET /calibration/export", s.handleExport)
	s.mux.HandleFunc("GET /calibration/plot", s.handlePlot)
	return s, nil
}

// ServeHTTP adds CORS headers to every response and answers preflight
// requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// reply is the common part of every JSON response.
type reply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("could not marshal response", "error", err)
		http.Error(w, `{"ok":false,"message":"could not marshal response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError writes err as a failed reply with the status given by
// statusOf.
func (s *Server) writeError(w http.ResponseWriter, route string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "route", route, "error", err)
	} else {
		s.log.Debug("request rejected", "route", route, "error", err)
	}
	s.writeJSON(w, status, reply{Message: err.Error()})
}

// statusOf maps errors to HTTP statuses. Marker and extraction failures
// are reported with 200 and ok false so the caller can show diagnostics.
func statusOf(err error) int {
	switch {
	case err == nil,
		errors.Is(err, marker.ErrNoMarkers),
		errors.Is(err, marker.ErrInsufficientMarkers),
		errors.Is(err, marker.ErrInvalidGeometry),
		errors.Is(err, marker.ErrRectificationFailed),
		errors.Is(err, sampler.ErrNoColours):
		return http.StatusOK
	case errors.Is(err, errBadRequest),
		errors.Is(err, pipeline.ErrDecodeImage),
		errors.Is(err, param.ErrUnknownFamily),
		errors.Is(err, sampler.ErrInvalidSelection),
		errors.Is(err, calibration.ErrNotFound),
		errors.Is(err, calibration.ErrExpired),
		errors.Is(err, estimate.ErrNoCalibrationData),
		errors.Is(err, chart.ErrDecodeFailed):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoVision):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes the request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// decodeImage returns the bytes of a base64 image, with or without a
// data URL prefix.
func decodeImage(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing image", errBadRequest)
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", errBadRequest)
		}
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 image: %v", pipeline.ErrDecodeImage, err)
	}
	return b, nil
}

// dataURL encodes a JPEG image as a data URL. Empty images give "".
func dataURL(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b)
}

// parseRect converts an [x, y, w, h] list to a rectangle.
func parseRect(name string, v []int) (image.Rectangle, error) {
	if len(v) != 4 {
		return image.Rectangle{}, fmt.Errorf("%w: %s must be [x, y, w, h]", errBadRequest, name)
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %s size %dx%d is not positive", sampler.ErrInvalidSelection, name, v[2], v[3])
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// sessionKey returns key, or a new key if it is empty.
func sessionKey(key string) string {
	if key == "" {
		return uuid.NewString()
	}
	return key
}

// requireSession returns an error if key is empty.
func requireSession(key string) error {
	if key == "" {
		return fmt.Errorf("%w: missing session", errBadRequest)
	}
	return nil
}
