package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"saillogger/internal/nmea2000"
)

const (
	flushInterval = 1 * time.Second
	flushBatch    = 200
)

// Instrument table names accepted by QueryRange and StatusSummary.
var instrumentTables = []string{
	"headings",
	"speeds",
	"depths",
	"positions",
	"cogsog",
	"winds",
	"environmental",
}

type Config struct {
	Path string
}

// Store is the single owner of the SQLite database. Instrument writes are
// buffered and committed in batches so a 10 Hz bus does not fsync per frame.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	pending   []pendingWrite
	lastFlush time.Time

	sessionActive bool

	live liveCache
}

type pendingWrite struct {
	query string
	args  []any
}

func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := open(cfg.Path)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, lastFlush: time.Now()}
	s.live.init()
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Resume an interrupted session so a crash mid-race keeps logging.
	current, err := s.CurrentSession()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.mu.Lock()
	s.sessionActive = current != nil
	s.mu.Unlock()

	slog.Info("storage open", "path", cfg.Path, "session_active", current != nil)
	return s, nil
}

// Close flushes buffered writes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.Flush(); err != nil {
		slog.Warn("flush on close failed", "err", err)
	}
	return s.db.Close()
}

// SessionActive reports whether a race or practice session is in progress.
// Instrument rows are only persisted while a session is active; the live
// cache is updated regardless.
func (s *Store) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionActive
}

// Write buffers one decoded reading for insertion. The buffer is committed
// when it reaches flushBatch records or flushInterval has elapsed.
func (s *Store) Write(r nmea2000.Reading) error {
	w, err := insertFor(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, w)
	needFlush := len(s.pending) >= flushBatch || time.Since(s.lastFlush) >= flushInterval
	s.mu.Unlock()

	if needFlush {
		return s.Flush()
	}
	return nil
}

// Flush commits all buffered writes in one transaction.
func (s *Store) Flush() error {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.lastFlush = time.Now()
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	for _, w := range batch {
		if _, err := tx.Exec(w.query, w.args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("flush insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flush: %w", err)
	}
	slog.Debug("flushed records", "count", len(batch))
	return nil
}

func insertFor(r nmea2000.Reading) (pendingWrite, error) {
	h := nmea2000.HeaderOf(r)
	ts := formatTS(h.Timestamp)

	switch v := r.(type) {
	case nmea2000.Heading:
		return pendingWrite{
			"INSERT INTO headings (ts, source_addr, heading_deg, deviation_deg, variation_deg) VALUES (?, ?, ?, ?, ?)",
			[]any{ts, h.SourceAddr, v.HeadingDeg, optional(v.DeviationDeg), optional(v.VariationDeg)},
		}, nil
	case nmea2000.Speed:
		return pendingWrite{
			"INSERT INTO speeds (ts, source_addr, speed_kts) VALUES (?, ?, ?)",
			[]any{ts, h.SourceAddr, v.SpeedKts},
		}, nil
	case nmea2000.Depth:
		return pendingWrite{
			"INSERT INTO depths (ts, source_addr, depth_m, offset_m) VALUES (?, ?, ?, ?)",
			[]any{ts, h.SourceAddr, v.DepthM, optional(v.OffsetM)},
		}, nil
	case nmea2000.Position:
		return pendingWrite{
			"INSERT INTO positions (ts, source_addr, latitude_deg, longitude_deg) VALUES (?, ?, ?, ?)",
			[]any{ts, h.SourceAddr, v.LatitudeDeg, v.LongitudeDeg},
		}, nil
	case nmea2000.COGSOG:
		return pendingWrite{
			"INSERT INTO cogsog (ts, source_addr, cog_deg, sog_kts) VALUES (?, ?, ?, ?)",
			[]any{ts, h.SourceAddr, v.COGDeg, v.SOGKts},
		}, nil
	case nmea2000.Wind:
		return pendingWrite{
			"INSERT INTO winds (ts, source_addr, wind_speed_kts, wind_angle_deg, reference) VALUES (?, ?, ?, ?, ?)",
			[]any{ts, h.SourceAddr, v.WindSpeedKts, v.WindAngleDeg, v.Reference},
		}, nil
	case nmea2000.Environmental:
		return pendingWrite{
			"INSERT INTO environmental (ts, source_addr, water_temp_c) VALUES (?, ?, ?)",
			[]any{ts, h.SourceAddr, v.WaterTempC},
		}, nil
	default:
		return pendingWrite{}, fmt.Errorf("unknown reading type %T", r)
	}
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// QueryRange returns all readings in [start, end] from the given instrument
// table, ordered by timestamp then insertion order. An unknown table name is
// a caller bug and returns an error.
func (s *Store) QueryRange(table string, start, end time.Time) ([]nmea2000.Reading, error) {
	if !validTable(table) {
		return nil, fmt.Errorf("unknown instrument table %q", table)
	}
	if err := s.Flush(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		fmt.Sprintf("SELECT * FROM %s WHERE ts >= ? AND ts <= ? ORDER BY ts, id", table),
		formatTS(start), formatTS(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var out []nmea2000.Reading
	for rows.Next() {
		r, err := scanReading(table, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func validTable(table string) bool {
	for _, t := range instrumentTables {
		if t == table {
			return true
		}
	}
	return false
}

func scanReading(table string, rows *sql.Rows) (nmea2000.Reading, error) {
	var (
		id   int64
		ts   string
		src  int
		err  error
		head nmea2000.Header
	)

	switch table {
	case "headings":
		var hdg float64
		var dev, vr sql.NullFloat64
		if err = rows.Scan(&id, &ts, &src, &hdg, &dev, &vr); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNVesselHeading, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Heading{Header: head, HeadingDeg: hdg, DeviationDeg: nullable(dev), VariationDeg: nullable(vr)}, nil
	case "speeds":
		var kts float64
		if err = rows.Scan(&id, &ts, &src, &kts); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNSpeedThroughWater, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Speed{Header: head, SpeedKts: kts}, nil
	case "depths":
		var depth float64
		var offset sql.NullFloat64
		if err = rows.Scan(&id, &ts, &src, &depth, &offset); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNWaterDepth, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Depth{Header: head, DepthM: depth, OffsetM: nullable(offset)}, nil
	case "positions":
		var lat, lon float64
		if err = rows.Scan(&id, &ts, &src, &lat, &lon); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNPositionRapid, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Position{Header: head, LatitudeDeg: lat, LongitudeDeg: lon}, nil
	case "cogsog":
		var cog, sog float64
		if err = rows.Scan(&id, &ts, &src, &cog, &sog); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNCOGSOGRapid, src, ts)
		if err != nil {
			break
		}
		return nmea2000.COGSOG{Header: head, COGDeg: cog, SOGKts: sog}, nil
	case "winds":
		var spd, ang float64
		var ref int
		if err = rows.Scan(&id, &ts, &src, &spd, &ang, &ref); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNWindData, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Wind{Header: head, WindSpeedKts: spd, WindAngleDeg: ang, Reference: ref}, nil
	case "environmental":
		var temp float64
		if err = rows.Scan(&id, &ts, &src, &temp); err != nil {
			break
		}
		head, err = headerFrom(nmea2000.PGNEnvironmental, src, ts)
		if err != nil {
			break
		}
		return nmea2000.Environmental{Header: head, WaterTempC: temp}, nil
	default:
		err = fmt.Errorf("unknown instrument table %q", table)
	}
	return nil, err
}

func headerFrom(pgn uint32, src int, ts string) (nmea2000.Header, error) {
	t, err := parseTS(ts)
	if err != nil {
		return nmea2000.Header{}, err
	}
	return nmea2000.Header{PGN: pgn, SourceAddr: uint8(src), Timestamp: t}, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// TableStatus summarises one instrument table for the status command.
type TableStatus struct {
	Count    int64  `json:"count"`
	LastSeen string `json:"last_seen"`
}

// StatusSummary returns row counts and last-seen timestamps per table.
func (s *Store) StatusSummary() (map[string]TableStatus, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	out := make(map[string]TableStatus, len(instrumentTables))
	for _, table := range instrumentTables {
		var count int64
		var last sql.NullString
		row := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*), MAX(ts) FROM %s", table))
		if err := row.Scan(&count, &last); err != nil {
			return nil, fmt.Errorf("status %s: %w", table, err)
		}
		st := TableStatus{Count: count, LastSeen: "never"}
		if last.Valid {
			st.LastSeen = last.String
		}
		out[table] = st
	}
	return out, nil
}

// LatestPosition returns the most recent position row, or nil when none
// has been logged yet.
func (s *Store) LatestPosition() (*nmea2000.Position, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	row := s.db.QueryRow("SELECT ts, source_addr, latitude_deg, longitude_deg FROM positions ORDER BY ts DESC, id DESC LIMIT 1")

	var ts string
	var src int
	var lat, lon float64
	if err := row.Scan(&ts, &src, &lat, &lon); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	head, err := headerFrom(nmea2000.PGNPositionRapid, src, ts)
	if err != nil {
		return nil, err
	}
	return &nmea2000.Position{Header: head, LatitudeDeg: lat, LongitudeDeg: lon}, nil
}
