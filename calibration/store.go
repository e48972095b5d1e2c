/*
DESCRIPTION
  A session keyed calibration store with a fixed time to live. Expired
  sessions are swept lazily before every access.

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
	"time"

	"github.com/ausocean/utils/logging"
)

// DefaultTTL is how long a calibration remains usable.
const DefaultTTL = 2 * time.Hour

// Session is the calibration stored under one key.
type Session struct {
	Key     string
	Entries []Entry
	Created time.Time
	Expires time.Time
}

// Table builds the lookup table for the session entries.
func (s Session) Table() (*Table, error) { return NewTable(s.Entries) }

// Remaining returns the time left before the session expires at now.
func (s Session) Remaining(now time.Time) time.Duration {
	d := s.Expires.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (s Session) expired(now time.Time) bool { return !now.Before(s.Expires) }

// Persister stores sessions outside the process. Load returns ErrNotFound
// for unknown keys.
type Persister interface {
	Save(s Session) error
	Load(key string) (Session, error)
	Delete(key string) error
}

// Option is a functional option for NewStore.
type Option func(*Store) error

// WithTTL sets the session time to live.
func WithTTL(d time.Duration) Option {
	return func(s *Store) error {
		if d <= 0 {
			return fmt.Errorf("invalid ttl: %v", d)
		}
		s.ttl = d
		return nil
	}
}

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}

// WithPersister writes sessions through to p and reads from p on a
// memory miss.
func WithPersister(p Persister) Option {
	return func(s *Store) error {
		s.persist = p
		return nil
	}
}

// Store holds calibrations by session key. It is safe for concurrent use;
// writes to the same key are last write wins.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	expired  map[string]time.Time // Expiry of swept sessions, kept for one more ttl.
	ttl      time.Duration
	now      func() time.Time
	persist  Persister
	log      logging.Logger
}

// NewStore returns an empty Store.
func NewStore(log logging.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		sessions: make(map[string]Session),
		expired:  make(map[string]time.Time),
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      log,
	}
	for i, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("could not apply option %d: %w", i, err)
		}
	}
	return s, nil
}

// TTL returns the session time to live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores entries under key, replacing any previous calibration.
func (s *Store) Put(key string, entries []Entry) (Session, error) {
	if key == "" {
		return Session{}, errors.New("empty session key")
	}
	if len(entries) == 0 {
		return Session{}, ErrEmpty
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return Session{}, fmt.Errorf("invalid entry %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)

	sess := Session{
		Key:     key,
		Entries: append([]Entry(nil), entries...),
		Created: now,
		Expires: now.Add(s.ttl),
	}
	s.sessions[key] = sess
	delete(s.expired, key)
	if s.persist != nil {
		if err := s.persist.Save(sess); err != nil {
			return sess, fmt.Errorf("could not persist session: %w", err)
		}
	}
	s.log.Info("calibration stored", "session", key, "entries", len(entries), "expires", sess.Expires.Format(time.RFC3339))
	return sess, nil
}

// Get returns the calibration stored under key. It returns ErrExpired if
// the calibration outlived its time to live, including when a sweep has
// already removed it within the last ttl, and ErrNotFound if there is none.
func (s *Store) Get(key string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	sess, ok := s.sessions[key]
	if !ok && s.persist != nil {
		p, err := s.persist.Load(key)
		switch {
		case err == nil:
			sess, ok = p, true
			s.sessions[key] = p
		case !errors.Is(err, ErrNotFound):
			s.log.Warning("could not load persisted session", "session", key, "error", err)
		}
	}
	if ok && sess.expired(now) {
		s.sweep(now)
		return Session{}, fmt.Errorf("%w: session %s expired at %s", ErrExpired, key, sess.Expires.Format(time.RFC3339))
	}

	s.sweep(now)
	if !ok {
		if exp, swept := s.expired[key]; swept {
			return Session{}, fmt.Errorf("%w: session %s expired at %s", ErrExpired, key, exp.Format(time.RFC3339))
		}
		return Session{}, fmt.Errorf("%w: session %s", ErrNotFound, key)
	}
	return sess, nil
}

// Invalidate removes the calibration stored under key.
func (s *Store) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())

	delete(s.sessions, key)
	delete(s.expired, key)
	if s.persist != nil {
		if err := s.persist.Delete(key); err != nil {
			return fmt.Errorf("could not delete persisted session: %w", err)
		}
	}
	s.log.Info("calibration invalidated", "session", key)
	return nil
}

// Sweep removes every expired calibration and returns how many were
// removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(s.now())
}

// Len returns the number of live calibrations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
	return len(s.sessions)
}

// sweep must be called with mu held.
func (s *Store) sweep(now time.Time) int {
	var n int
	for key, sess := range s.sessions {
		if !sess.expired(now) {
			continue
		}
		delete(s.sessions, key)
		s.expired[key] = sess.Expires
		n++
		if s.persist != nil {
			if err := s.persist.Delete(key); err != nil {
				s.log.Warning("could not delete expired session", "session", key, "error", err)
			}
		}
	}
	for key, exp := range s.expired {
		if now.Sub(exp) >= s.ttl {
			delete(s.expired, key)
		}
	}
	if n > 0 {
		s.log.Debug("swept expired calibrations", "count", n)
	}
	return n
}
