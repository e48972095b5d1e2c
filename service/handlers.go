/*
DESCRIPTION
  handlers.go provides the route handlers of the colour kit API.

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

package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/param"
	"github.com/ausocean/colorkit/pipeline"
	"github.com/ausocean/colorkit/report"
)

type homeResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Version      string `json:"version"`
	Calibrations int    `json:"active_calibrations"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, homeResponse{
		Status:       "ok",
		Message:      "colour kit analyser running",
		Version:      Version,
		Calibrations: s.store.Len(),
	})
}

type rectifyRequest struct {
	Image   string `json:"image"`
	Session string `json:"session"`
}

type rectifyResponse struct {
	reply
	Session   string `json:"session"`
	Rectified string `json:"rectified,omitempty"`
	Annotated string `json:"annotated,omitempty"`
	Markers   int    `json:"markers"`
	Found     []int  `json:"found,omitempty"`
	Missing   []int  `json:"missing,omitempty"`
	Extra     []int  `json:"extra,omitempty"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	s.rectify(w, r, "markers", s.chartSize)
}

func (s *Server) handleProbeRectify(w http.ResponseWriter, r *http.Request) {
	s.rectify(w, r, "probe/rectify", s.probeSize)
}

// rectify handles chart and probe rectification, which differ only in
// target size.
func (s *Server) rectify(w http.ResponseWriter, r *http.Request, route string, size image.Point) {
	var req rectifyRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, route, err)
		return
	}
	photo, err := decodeImage(req.Image)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	key := sessionKey(req.Session)
	s.log.Info("rectifying photo", "route", route, "session", key, "size", size.String())

	res, err := s.vision.Rectify(photo, size)
	if res == nil {
		if err == nil {
			err = errors.New("no rectification result")
		}
		s.writeError(w, route, err)
		return
	}

	resp := rectifyResponse{
		reply:     reply{OK: err == nil, Message: "photo rectified"},
		Session:   key,
		Rectified: dataURL(res.Rectified),
		Annotated: dataURL(res.Annotated),
		Markers:   res.Markers,
		Found:     res.Found,
		Missing:   res.Missing,
		Extra:     res.Extra,
	}
	if err != nil {
		resp.Message = err.Error()
		s.log.Info("rectification failed", "route", route, "session", key, "error", err)
	}
	s.writeJSON(w, statusOf(err), resp)
}

type coloursRequest struct {
	Image   string `json:"image"`
	Box     []int  `json:"box"` // Chart area as [x, y, w, h].
	Session string `json:"session"`
}

type coloursResponse struct {
	reply
	Session   string          `json:"session"`
	Colours   int             `json:"colours"`
	Debug     string          `json:"debug,omitempty"`
	ExpiresIn float64         `json:"expires_in"`
	Stats     *pipeline.Stats `json:"stats,omitempty"`
}

func (s *Server) handleColours(w http.ResponseWriter, r *http.Request) {
	const route = "colours"
	var req coloursRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, route, err)
		return
	}
	box, err := parseRect("box", req.Box)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	key := sessionKey(req.Session)
	s.log.Info("extracting colours", "session", key, "box", box.String())

	x, err := s.vision.Extract(img, box)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	sess, err := s.store.Put(key, x.Entries)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, http.StatusOK, coloursResponse{
		reply:     reply{OK: true, Message: fmt.Sprintf("extracted %d colours", len(x.Entries))},
		Session:   key,
		Colours:   len(x.Entries),
		Debug:     dataURL(x.Debug),
		ExpiresIn: sess.Remaining(s.now()).Seconds(),
		Stats:     &x.Stats,
	})
}

type analyseRequest struct {
	Image   string `json:"image"`
	Family  string `json:"family"`
	Area    []int  `json:"area"` // Sample area as [x, y, w, h].
	Session string `json:"session"`
}

type neighbour struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	RGB      [3]int  `json:"rgb"`
	Distance float64 `json:"distance"`
}

type analyseResponse struct {
	reply
	ID           string      `json:"id,omitempty"`
	Family       string      `json:"family"`
	Value        float64     `json:"value"`
	Label        string      `json:"label"`
	Confidence   float64     `json:"confidence"`
	Interpolated bool        `json:"interpolated"`
	RGB          [3]int      `json:"rgb"`
	Hex          string      `json:"hex"`
	Nearest      []neighbour `json:"nearest"`
}

func rgbOf(c colour.RGB) [3]int { return [3]int{int(c.R), int(c.G), int(c.B)} }

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	const route = "probe/analyse"
	var req analyseRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := requireSession(req.Session); err != nil {
		s.writeError(w, route, err)
		return
	}
	f, err := param.Parse(req.Family)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	area, err := parseRect("area", req.Area)
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	sess, err := s.store.Get(req.Session)
	if err != nil {
		s.writeError(w, route, fmt.Errorf("recalibrate the chart: %w", err))
		return
	}
	t, err := sess.Table()
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	img, err := decodeImage(req.Image)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	c, err := s.vision.Probe(img, area)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	s.log.Info("probe colour measured", "session", req.Session, "family", f, "rgb", c.RGB().String())

	res, err := estimate.Estimate(c.RGB(), f, t)
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	resp := analyseResponse{
		reply:        reply{OK: true},
		Family:       f.String(),
		Value:        res.Value,
		Label:        res.Label,
		Confidence:   res.Confidence,
		Interpolated: res.Interpolated,
		RGB:          rgbOf(res.Query),
		Hex:          res.Query.Hex(),
	}
	for _, n := range res.Nearest {
		resp.Nearest = append(resp.Nearest, neighbour{Label: n.Label, Value: n.Value, RGB: rgbOf(n.RGB), Distance: n.Distance})
	}
	if s.rec != nil {
		id, err := s.rec.RecordAnalysis(req.Session, route, res, s.now())
		if err != nil {
			s.log.Warning("could not record analysis", "session", req.Session, "error", err)
		} else {
			resp.ID = id.String()
		}
	}
	s.log.Info("probe analysed", "session", req.Session, "label", res.Label, "value", res.Value, "confidence", res.Confidence)
	s.writeJSON(w, http.StatusOK, resp)
}

type sessionRequest struct {
	Session string `json:"session"`
}

type statusResponse struct {
	reply
	Active    bool `json:"active"`
	ExpiresIn int  `json:"expires_in,omitempty"`
	Colours   int  `json:"colours,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	const route = "calibration/status"
	var req sessionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := requireSession(req.Session); err != nil {
		s.writeError(w, route, err)
		return
	}

	sess, err := s.store.Get(req.Session)
	switch {
	case errors.Is(err, calibration.ErrNotFound), errors.Is(err, calibration.ErrExpired):
		s.writeJSON(w, http.StatusOK, statusResponse{reply: reply{OK: true}})
		return
	case err != nil:
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		reply:     reply{OK: true},
		Active:    true,
		ExpiresIn: int(sess.Remaining(s.now()).Seconds()),
		Colours:   len(sess.Entries),
	})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	const route = "calibration/invalidate"
	var req sessionRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := requireSession(req.Session); err != nil {
		s.writeError(w, route, err)
		return
	}
	if err := s.store.Invalidate(req.Session); err != nil {
		s.writeError(w, route, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reply{OK: true, Message: "calibration invalidated"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	const route = "calibration/export"
	key := r.URL.Query().Get("session")
	if err := requireSession(key); err != nil {
		s.writeError(w, route, err)
		return
	}
	sess, err := s.store.Get(key)
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	var buf bytes.Buffer
	if err := calibration.WriteCSV(&buf, sess.Entries); err != nil {
		s.writeError(w, route, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "colours-"+key+".csv"))
	w.Write(buf.Bytes())
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	const route = "calibration/plot"
	q := r.URL.Query()
	key := q.Get("session")
	if err := requireSession(key); err != nil {
		s.writeError(w, route, err)
		return
	}
	f, err := param.Parse(q.Get("family"))
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	sess, err := s.store.Get(key)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	t, err := sess.Table()
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	p, err := report.Curve(t, f, nil)
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePNG(&buf, p); err != nil {
		s.writeError(w, route, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
