package storage

import (
	"fmt"
	"log/slog"
	"sort"
)

// Schema is versioned with simple integer migrations, applied in order on
// open. Never edit an existing entry; add a new version.
var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS headings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            TEXT    NOT NULL,
			source_addr   INTEGER NOT NULL,
			heading_deg   REAL    NOT NULL,
			deviation_deg REAL,
			variation_deg REAL
		);
		CREATE TABLE IF NOT EXISTS speeds (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT    NOT NULL,
			source_addr INTEGER NOT NULL,
			speed_kts   REAL    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS depths (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT    NOT NULL,
			source_addr INTEGER NOT NULL,
			depth_m     REAL    NOT NULL,
			offset_m    REAL
		);
		CREATE TABLE IF NOT EXISTS positions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            TEXT    NOT NULL,
			source_addr   INTEGER NOT NULL,
			latitude_deg  REAL    NOT NULL,
			longitude_deg REAL    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS cogsog (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT    NOT NULL,
			source_addr INTEGER NOT NULL,
			cog_deg     REAL    NOT NULL,
			sog_kts     REAL    NOT NULL
		);
		CREATE TABLE IF NOT EXISTS winds (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			ts             TEXT    NOT NULL,
			source_addr    INTEGER NOT NULL,
			wind_speed_kts REAL    NOT NULL,
			wind_angle_deg REAL    NOT NULL,
			reference      INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS environmental (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           TEXT    NOT NULL,
			source_addr  INTEGER NOT NULL,
			water_temp_c REAL    NOT NULL
		);
	`,
	2: `
		CREATE INDEX IF NOT EXISTS idx_headings_ts      ON headings(ts);
		CREATE INDEX IF NOT EXISTS idx_speeds_ts        ON speeds(ts);
		CREATE INDEX IF NOT EXISTS idx_depths_ts        ON depths(ts);
		CREATE INDEX IF NOT EXISTS idx_positions_ts     ON positions(ts);
		CREATE INDEX IF NOT EXISTS idx_cogsog_ts        ON cogsog(ts);
		CREATE INDEX IF NOT EXISTS idx_winds_ts         ON winds(ts);
		CREATE INDEX IF NOT EXISTS idx_environmental_ts ON environmental(ts);
	`,
	3: `
		CREATE TABLE IF NOT EXISTS races (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			name         TEXT    NOT NULL UNIQUE,
			event        TEXT    NOT NULL,
			race_num     INTEGER NOT NULL,
			date         TEXT    NOT NULL,
			start_utc    TEXT    NOT NULL,
			end_utc      TEXT,
			session_type TEXT    NOT NULL DEFAULT 'race'
		);
		CREATE INDEX IF NOT EXISTS idx_races_date ON races(date);
	`,
	4: `
		CREATE TABLE IF NOT EXISTS video_sessions (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			url           TEXT    NOT NULL,
			video_id      TEXT    NOT NULL,
			title         TEXT    NOT NULL,
			duration_s    REAL    NOT NULL,
			sync_utc      TEXT    NOT NULL,
			sync_offset_s REAL    NOT NULL,
			created_at    TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_video_sessions_sync_utc ON video_sessions(sync_utc);
	`,
	5: `
		CREATE TABLE IF NOT EXISTS weather (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			ts             TEXT NOT NULL,
			lat            REAL NOT NULL,
			lon            REAL NOT NULL,
			wind_speed_kts REAL NOT NULL,
			wind_dir_deg   REAL NOT NULL,
			air_temp_c     REAL NOT NULL,
			pressure_hpa   REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_weather_ts ON weather(ts);
		CREATE TABLE IF NOT EXISTS tides (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ts           TEXT NOT NULL,
			station_id   TEXT NOT NULL,
			station_name TEXT NOT NULL,
			height_m     REAL NOT NULL,
			type         TEXT NOT NULL,
			UNIQUE(ts, station_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tides_ts ON tides(ts);
	`,
	6: `
		CREATE TABLE IF NOT EXISTS polar_baseline (
			tws_bin       INTEGER NOT NULL,
			twa_bin       INTEGER NOT NULL,
			mean_bsp      REAL    NOT NULL,
			p90_bsp       REAL    NOT NULL,
			session_count INTEGER NOT NULL,
			sample_count  INTEGER NOT NULL,
			built_at      TEXT    NOT NULL,
			PRIMARY KEY (tws_bin, twa_bin)
		);
	`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec("CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("schema_version: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	versions := make([]int, 0, len(migrations))
	for v := range migrations {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	for _, v := range versions {
		if v <= current {
			continue
		}
		slog.Info("applying schema migration", "version", v)
		if _, err := s.db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migration v%d: %w", v, err)
		}
		if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("record migration v%d: %w", v, err)
		}
	}
	return nil
}
