package storage

import (
	"fmt"
	"time"

	"saillogger/internal/external"
)

// UpsertWeather stores hourly weather observations, replacing any existing
// row for the same timestamp.
func (s *Store) UpsertWeather(obs []external.WeatherObs) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin weather tx: %w", err)
	}
	defer tx.Rollback()

	for _, o := range obs {
		_, err := tx.Exec(`
			DELETE FROM weather WHERE ts = ?`, formatTS(o.TS))
		if err != nil {
			return fmt.Errorf("clear weather row: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO weather (ts, lat, lon, wind_speed_kts, wind_dir_deg, air_temp_c, pressure_hpa)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			formatTS(o.TS), o.Lat, o.Lon, o.WindSpeedKts, o.WindDirDeg, o.AirTempC, o.PressureHPa)
		if err != nil {
			return fmt.Errorf("insert weather row: %w", err)
		}
	}
	return tx.Commit()
}

// WeatherRange returns hourly weather rows with start <= ts <= end.
func (s *Store) WeatherRange(start, end time.Time) ([]external.WeatherObs, error) {
	rows, err := s.db.Query(`
		SELECT ts, lat, lon, wind_speed_kts, wind_dir_deg, air_temp_c, pressure_hpa
		FROM weather WHERE ts >= ? AND ts <= ? ORDER BY ts`,
		formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("query weather: %w", err)
	}
	defer rows.Close()

	var out []external.WeatherObs
	for rows.Next() {
		var o external.WeatherObs
		var ts string
		if err := rows.Scan(&ts, &o.Lat, &o.Lon, &o.WindSpeedKts, &o.WindDirDeg, &o.AirTempC, &o.PressureHPa); err != nil {
			return nil, fmt.Errorf("scan weather: %w", err)
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, fmt.Errorf("weather ts: %w", err)
		}
		o.TS = t
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertTides stores tide predictions, keyed on (timestamp, station).
func (s *Store) UpsertTides(preds []external.TidePrediction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tide tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range preds {
		_, err := tx.Exec(`
			INSERT INTO tides (ts, station_id, station_name, height_m, type)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(ts, station_id) DO UPDATE SET
				station_name = excluded.station_name,
				height_m     = excluded.height_m,
				type         = excluded.type`,
			formatTS(p.TS), p.StationID, p.StationName, p.HeightM, p.Type)
		if err != nil {
			return fmt.Errorf("upsert tide row: %w", err)
		}
	}
	return tx.Commit()
}

// TideRange returns tide predictions with start <= ts <= end.
func (s *Store) TideRange(start, end time.Time) ([]external.TidePrediction, error) {
	rows, err := s.db.Query(`
		SELECT ts, station_id, station_name, height_m, type
		FROM tides WHERE ts >= ? AND ts <= ? ORDER BY ts`,
		formatTS(start), formatTS(end))
	if err != nil {
		return nil, fmt.Errorf("query tides: %w", err)
	}
	defer rows.Close()

	var out []external.TidePrediction
	for rows.Next() {
		var p external.TidePrediction
		var ts string
		if err := rows.Scan(&ts, &p.StationID, &p.StationName, &p.HeightM, &p.Type); err != nil {
			return nil, fmt.Errorf("scan tide: %w", err)
		}
		t, err := parseTS(ts)
		if err != nil {
			return nil, fmt.Errorf("tide ts: %w", err)
		}
		p.TS = t
		out = append(out, p)
	}
	return out, rows.Err()
}
