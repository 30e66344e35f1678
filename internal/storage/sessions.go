package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"saillogger/internal/race"
)

// StartSession opens a new race or practice session. When event is empty the
// weekday default is used; the race number is the next free number for that
// date and session type. Any still-open session on the same date is closed
// first so back-to-back races need only one tap.
func (s *Store) StartSession(event, sessionType string, now time.Time) (*race.Race, error) {
	now = now.UTC()
	if sessionType != race.TypeRace && sessionType != race.TypePractice {
		return nil, fmt.Errorf("unknown session type %q", sessionType)
	}
	if event == "" {
		event = race.DefaultEventForDate(now)
		if event == "" {
			return nil, fmt.Errorf("no default event for %s; supply one", now.Format("2006-01-02"))
		}
	}

	current, err := s.CurrentSession()
	if err != nil {
		return nil, err
	}
	if current != nil {
		if err := s.EndSession(current.ID, now); err != nil {
			return nil, err
		}
		slog.Info("auto-closed previous session", "name", current.Name)
	}

	date := now.Format("2006-01-02")
	var count int
	row := s.db.QueryRow(
		"SELECT COUNT(*) FROM races WHERE date = ? AND session_type = ?",
		date, sessionType,
	)
	if err := row.Scan(&count); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	raceNum := count + 1
	name := race.BuildName(event, now, raceNum, sessionType)

	res, err := s.db.Exec(
		"INSERT INTO races (name, event, race_num, date, start_utc, session_type) VALUES (?, ?, ?, ?, ?, ?)",
		name, event, raceNum, date, formatTS(now), sessionType,
	)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessionActive = true
	s.mu.Unlock()

	slog.Info("session started", "name", name)
	return &race.Race{
		ID:          id,
		Name:        name,
		Event:       event,
		RaceNum:     raceNum,
		Date:        date,
		StartUTC:    now,
		SessionType: sessionType,
	}, nil
}

// EndSession closes an open session and flushes buffered instrument rows.
func (s *Store) EndSession(id int64, end time.Time) error {
	res, err := s.db.Exec(
		"UPDATE races SET end_utc = ? WHERE id = ? AND end_utc IS NULL",
		formatTS(end.UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %d not found or already ended", id)
	}

	s.mu.Lock()
	s.sessionActive = false
	s.mu.Unlock()

	slog.Info("session ended", "id", id)
	return s.Flush()
}

// SessionByName looks a session up by its unique name.
func (s *Store) SessionByName(name string) (*race.Race, error) {
	row := s.db.QueryRow(
		"SELECT id, name, event, race_num, date, start_utc, end_utc, session_type"+
			" FROM races WHERE name = ?", name,
	)
	r, err := scanRace(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no session named %q", name)
	}
	return r, err
}

// EndCurrentSession closes whichever session is open. Errors when none is.
func (s *Store) EndCurrentSession(end time.Time) error {
	current, err := s.CurrentSession()
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("no open session")
	}
	return s.EndSession(current.ID, end)
}

// CurrentSession returns the open session, or nil when none is running.
func (s *Store) CurrentSession() (*race.Race, error) {
	row := s.db.QueryRow(
		"SELECT id, name, event, race_num, date, start_utc, end_utc, session_type" +
			" FROM races WHERE end_utc IS NULL ORDER BY start_utc DESC LIMIT 1",
	)
	r, err := scanRace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// CompletedSessions returns all sessions that have both start and end, in
// start order. These are the inputs to the polar baseline.
func (s *Store) CompletedSessions() ([]race.Race, error) {
	rows, err := s.db.Query(
		"SELECT id, name, event, race_num, date, start_utc, end_utc, session_type" +
			" FROM races WHERE end_utc IS NOT NULL ORDER BY start_utc",
	)
	if err != nil {
		return nil, fmt.Errorf("completed sessions: %w", err)
	}
	defer rows.Close()

	var out []race.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListSessionsForDate returns all sessions on a UTC date ("2006-01-02").
func (s *Store) ListSessionsForDate(date string) ([]race.Race, error) {
	rows, err := s.db.Query(
		"SELECT id, name, event, race_num, date, start_utc, end_utc, session_type"+
			" FROM races WHERE date = ? ORDER BY start_utc",
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []race.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRace(row rowScanner) (*race.Race, error) {
	var r race.Race
	var startTS string
	var endTS sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Event, &r.RaceNum, &r.Date, &startTS, &endTS, &r.SessionType); err != nil {
		return nil, err
	}

	start, err := parseTS(startTS)
	if err != nil {
		return nil, err
	}
	r.StartUTC = start

	if endTS.Valid {
		end, err := parseTS(endTS.String)
		if err != nil {
			return nil, err
		}
		r.EndUTC = &end
	}
	return &r, nil
}
