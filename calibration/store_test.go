/*
DESCRIPTION
  Tests for the calibration table and session store.

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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/param"
)

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)} }

// memPersister is an in memory Persister.
type memPersister struct {
	sessions map[string]Session
	deleted  []string
}

func (p *memPersister) Save(s Session) error {
	p.sessions[s.Key] = s
	return nil
}

func (p *memPersister) Load(key string) (Session, error) {
	s, ok := p.sessions[key]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (p *memPersister) Delete(key string) error {
	delete(p.sessions, key)
	p.deleted = append(p.deleted, key)
	return nil
}

func TestTable(t *testing.T) {
	tbl, err := NewTable([]Entry{
		entry(param.PH, 7.2, 3, 3, 3),
		entry(param.PH, 6.0, 1, 1, 1),
		entry(param.PH, 6.6, 2, 2, 2),
		entry(param.Nitrite, 5, 9, 9, 9),
		entry(param.PH, 6.0, 4, 4, 4),
	})
	if err != nil {
		t.Fatalf("could not build table: %v", err)
	}

	want := []Point{
		{Value: 6.0, RGB: colour.RGB{R: 4, G: 4, B: 4}},
		{Value: 6.6, RGB: colour.RGB{R: 2, G: 2, B: 2}},
		{Value: 7.2, RGB: colour.RGB{R: 3, G: 3, B: 3}},
	}
	if diff := cmp.Diff(want, tbl.Family(param.PH)); diff != "" {
		t.Errorf("unexpected pH points (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]param.Family{param.PH, param.Nitrite}, tbl.Families()); diff != "" {
		t.Errorf("unexpected families (-want +got):\n%s", diff)
	}
	if got := tbl.Len(); got != 4 {
		t.Errorf("unexpected table length. Got: %d, Want: 4", got)
	}

	if err := tbl.Set(param.Ammonia, 3, colour.RGB{}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got: %v", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	clk := newClock()
	s, err := NewStore((*logging.TestLogger)(t), WithClock(clk.now))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}

	entries := []Entry{entry(param.PH, 7.0, 10, 20, 30)}
	if _, err := s.Put("a", entries); err != nil {
		t.Fatalf("could not put calibration: %v", err)
	}

	clk.advance(DefaultTTL - time.Second)
	sess, err := s.Get("a")
	if err != nil {
		t.Fatalf("could not get calibration before expiry: %v", err)
	}
	if got := sess.Remaining(clk.now()); got != time.Second {
		t.Errorf("unexpected remaining time. Got: %v, Want: %v", got, time.Second)
	}

	clk.advance(time.Second)
	if _, err := s.Get("a"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired after sweep, got: %v", err)
	}

	if _, err := s.Put("a", []Entry{entry(param.PH, 7.6, 1, 2, 3)}); err != nil {
		t.Fatalf("could not rewrite calibration: %v", err)
	}
	sess, err = s.Get("a")
	if err != nil {
		t.Fatalf("could not get rewritten calibration: %v", err)
	}
	if sess.Entries[0].Value != 7.6 {
		t.Errorf("unexpected rewritten value. Got: %v, Want: 7.6", sess.Entries[0].Value)
	}
}

func TestStoreExpiredAfterSweep(t *testing.T) {
	clk := newClock()
	s, err := NewStore((*logging.TestLogger)(t), WithClock(clk.now))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	if _, err := s.Put("a", []Entry{entry(param.PH, 7.0, 10, 20, 30)}); err != nil {
		t.Fatalf("could not put calibration: %v", err)
	}
	if _, err := s.Put("b", []Entry{entry(param.PH, 7.0, 10, 20, 30)}); err != nil {
		t.Fatalf("could not put calibration: %v", err)
	}

	clk.advance(DefaultTTL)
	if got := s.Len(); got != 0 {
		t.Fatalf("unexpected live calibrations. Got: %d, Want: 0", got)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired for a swept key, got: %v", err)
	}
	if err := s.Invalidate("b"); err != nil {
		t.Fatalf("could not invalidate: %v", err)
	}
	if _, err := s.Get("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after invalidate, got: %v", err)
	}

	clk.advance(DefaultTTL)
	s.Sweep()
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound once the expiry is forgotten, got: %v", err)
	}
}

func TestStoreIndependentKeys(t *testing.T) {
	clk := newClock()
	s, err := NewStore((*logging.TestLogger)(t), WithClock(clk.now), WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}

	s.Put("a", []Entry{entry(param.PH, 7.0, 1, 1, 1)})
	clk.advance(30 * time.Minute)
	s.Put("b", []Entry{entry(param.PH, 7.0, 2, 2, 2)})
	clk.advance(30 * time.Minute)

	if got := s.Sweep(); got != 1 {
		t.Errorf("unexpected swept count. Got: %d, Want: 1", got)
	}
	if _, err := s.Get("b"); err != nil {
		t.Errorf("unexpected error for live key: %v", err)
	}
	if err := s.Invalidate("b"); err != nil {
		t.Fatalf("could not invalidate: %v", err)
	}
	if _, err := s.Get("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after invalidate, got: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d sessions", s.Len())
	}
}

func TestStorePut(t *testing.T) {
	s, err := NewStore((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	if _, err := s.Put("a", nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got: %v", err)
	}
	if _, err := s.Put("a", []Entry{entry(param.PH, 6.1, 0, 0, 0)}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got: %v", err)
	}
	if _, err := s.Put("", []Entry{entry(param.PH, 6.0, 0, 0, 0)}); err == nil {
		t.Errorf("expected error for empty key")
	}
	if _, err := NewStore((*logging.TestLogger)(t), WithTTL(0)); err == nil {
		t.Errorf("expected error for zero ttl")
	}
}

func TestStorePersister(t *testing.T) {
	clk := newClock()
	p := &memPersister{sessions: make(map[string]Session)}
	s1, err := NewStore((*logging.TestLogger)(t), WithClock(clk.now), WithPersister(p))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	if _, err := s1.Put("a", []Entry{entry(param.Nitrite, 0.5, 5, 6, 7)}); err != nil {
		t.Fatalf("could not put calibration: %v", err)
	}

	// A second store sharing the persister sees the calibration.
	s2, err := NewStore((*logging.TestLogger)(t), WithClock(clk.now), WithPersister(p))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}
	sess, err := s2.Get("a")
	if err != nil {
		t.Fatalf("could not load persisted calibration: %v", err)
	}
	if got := sess.Entries[0].Colour.RGB(); got != (colour.RGB{R: 5, G: 6, B: 7}) {
		t.Errorf("unexpected persisted colour: %v", got)
	}

	clk.advance(DefaultTTL)
	if _, err := s2.Get("a"); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got: %v", err)
	}
	if _, ok := p.sessions["a"]; ok {
		t.Errorf("expected expired session to be deleted from persister")
	}
}

func TestStoreConcurrent(t *testing.T) {
	s, err := NewStore((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create store: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("session-%d", i)
			for j := 0; j < 50; j++ {
				s.Put(key, []Entry{entry(param.PH, 7.0, uint8(i), uint8(j), 0)})
				if _, err := s.Get(key); err != nil {
					t.Errorf("could not get %s: %v", key, err)
					return
				}
				s.Sweep()
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 8 {
		t.Errorf("unexpected session count. Got: %d, Want: 8", s.Len())
	}
}
