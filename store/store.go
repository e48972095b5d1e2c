/*
DESCRIPTION
  SQLite backed persistence of calibration sessions and analysis results.
  The schema is managed by embedded migrations.

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

// Package store persists calibrations and analyses in SQLite. DB
// implements calibration.Persister.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ausocean/colorkit/calibration"
	"github.com/ausocean/colorkit/colour"
	"github.com/ausocean/colorkit/estimate"
	"github.com/ausocean/colorkit/param"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is a SQLite database holding calibration sessions and analyses.
type DB struct {
	*sql.DB
	log logging.Logger
}

// Open opens or creates the database at path and migrates it to the
// latest schema.
func Open(path string, log logging.Logger) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// SQLite allows a single writer.
	sdb.SetMaxOpenConns(1)

	db := &DB{DB: sdb, log: log}
	if err := db.migrateUp(); err != nil {
		sdb.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp runs all pending migrations.
func (db *DB) migrateUp() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	// m is not closed since that would close the database.
	m.Log = &migrateLogger{log: db.log}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	v, _, err := m.Version()
	if err == nil {
		db.log.Debug("database migrated", "version", v)
	}
	return nil
}

// migrateLogger adapts a logging.Logger to migrate.Logger.
type migrateLogger struct {
	log logging.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf("migrate: "+format, v...))
}

func (l *migrateLogger) Verbose() bool { return false }

// Save implements calibration.Persister, replacing any session stored
// under the same key.
func (db *DB) Save(s calibration.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteSession(tx, s.Key); err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO sessions (session_key, created_unix, expires_unix) VALUES (?, ?, ?)`,
		s.Key, s.Created.UnixNano(), s.Expires.UnixNano())
	if err != nil {
		return fmt.Errorf("could not insert session: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO entries (
		session_key, position, family, value, r, g, b, lab_l, lab_a, lab_b, confidence, points,
		photo_x0, photo_y0, photo_x1, photo_y1, ref_x0, ref_y0, ref_x1, ref_y1
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("could not prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range s.Entries {
		c, l := e.Colour.RGB(), e.Colour.Lab()
		_, err := stmt.Exec(
			s.Key, i, e.Family.String(), e.Value, int(c.R), int(c.G), int(c.B), l.L, l.A, l.B, e.Confidence, e.Points,
			e.PhotoRect.Min.X, e.PhotoRect.Min.Y, e.PhotoRect.Max.X, e.PhotoRect.Max.Y,
			e.RefRect.Min.X, e.RefRect.Min.Y, e.RefRect.Max.X, e.RefRect.Max.Y,
		)
		if err != nil {
			return fmt.Errorf("could not insert entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load implements calibration.Persister.
func (db *DB) Load(key string) (calibration.Session, error) {
	s := calibration.Session{Key: key}
	var created, expires int64
	err := db.QueryRow(`SELECT created_unix, expires_unix FROM sessions WHERE session_key = ?`, key).Scan(&created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("%w: session %s", calibration.ErrNotFound, key)
	}
	if err != nil {
		return s, fmt.Errorf("could not query session: %w", err)
	}
	s.Created = time.Unix(0, created).UTC()
	s.Expires = time.Unix(0, expires).UTC()

	rows, err := db.Query(`SELECT
		family, value, r, g, b, lab_l, lab_a, lab_b, confidence, points,
		photo_x0, photo_y0, photo_x1, photo_y1, ref_x0, ref_y0, ref_x1, ref_y1
		FROM entries WHERE session_key = ? ORDER BY position`, key)
	if err != nil {
		return s, fmt.Errorf("could not query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e       calibration.Entry
			family  string
			r, g, b int
			lab     colour.Lab
			p, ref  image.Rectangle
		)
		err := rows.Scan(&family, &e.Value, &r, &g, &b, &lab.L, &lab.A, &lab.B, &e.Confidence, &e.Points,
			&p.Min.X, &p.Min.Y, &p.Max.X, &p.Max.Y, &ref.Min.X, &ref.Min.Y, &ref.Max.X, &ref.Max.Y)
		if err != nil {
			return s, fmt.Errorf("could not scan entry: %w", err)
		}
		e.Family, err = param.Parse(family)
		if err != nil {
			return s, err
		}
		rgb := colour.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
		e.Colour = colour.Of(rgb.BGR(), rgb, lab)
		e.PhotoRect, e.RefRect = p, ref
		s.Entries = append(s.Entries, e)
	}
	return s, rows.Err()
}

// Delete implements calibration.Persister.
func (db *DB) Delete(key string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := deleteSession(tx, key); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSession(tx *sql.Tx, key string) error {
	if _, err := tx.Exec(`DELETE FROM entries WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("could not delete entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}
	return nil
}

// Analysis is a recorded estimate.
type Analysis struct {
	ID           uuid.UUID
	Session      string
	Family       param.Family
	Value        float64
	Label        string
	Confidence   float64
	Interpolated bool
	Query        colour.RGB
	MinDistance  float64
	Source       string
	Created      time.Time
}

// RecordAnalysis stores r against session and returns its new ID.
func (db *DB) RecordAnalysis(session, source string, r estimate.Result, at time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO analyses (
		analysis_id, session_key, family, value, label, confidence, interpolated, r, g, b, min_distance, source, created_unix
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), session, r.Family.String(), r.Value, r.Label, r.Confidence, r.Interpolated,
		int(r.Query.R), int(r.Query.G), int(r.Query.B), r.MinDistance, source, at.UnixNano(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("could not insert analysis: %w", err)
	}
	db.log.Debug("analysis recorded", "id", id.String(), "session", session, "label", r.Label)
	return id, nil
}

// Analyses returns the analyses recorded for session, oldest first.
func (db *DB) Analyses(session string) ([]Analysis, error) {
	rows, err := db.Query(`SELECT
		analysis_id, family, value, label, confidence, interpolated, r, g, b, min_distance, source, created_unix
		FROM analyses WHERE session_key = ? ORDER BY created_unix, analysis_id`, session)
	if err != nil {
		return nil, fmt.Errorf("could not query analyses: %w", err)
	}
	defer rows.Close()

	var as []Analysis
	for rows.Next() {
		var (
			a       = Analysis{Session: session}
			id      string
			family  string
			r, g, b int
			created int64
		)
		err := rows.Scan(&id, &family, &a.Value, &a.Label, &a.Confidence, &a.Interpolated, &r, &g, &b, &a.MinDistance, &a.Source, &created)
		if err != nil {
			return nil, fmt.Errorf("could not scan analysis: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid analysis id %q: %w", id, err)
		}
		if a.Family, err = param.Parse(family); err != nil {
			return nil, err
		}
		a.Query = colour.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
		a.Created = time.Unix(0, created).UTC()
		as = append(as, a)
	}
	return as, rows.Err()
}
