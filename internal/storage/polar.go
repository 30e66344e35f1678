package storage

import (
	"fmt"
	"time"

	"saillogger/internal/polar"
)

// ReplacePolarBaseline swaps the stored baseline wholesale for the given
// points. A rebuild always replaces everything; stale cells never linger.
func (s *Store) ReplacePolarBaseline(points []polar.Point, builtAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin baseline tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM polar_baseline"); err != nil {
		return fmt.Errorf("clear baseline: %w", err)
	}
	built := formatTS(builtAt.UTC())
	for _, p := range points {
		_, err := tx.Exec(`
			INSERT INTO polar_baseline (tws_bin, twa_bin, mean_bsp, p90_bsp, session_count, sample_count, built_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.TWSBin, p.TWABin, p.MeanBSP, p.P90BSP, p.SessionCount, p.SampleCount, built)
		if err != nil {
			return fmt.Errorf("insert baseline cell (%d,%d): %w", p.TWSBin, p.TWABin, err)
		}
	}
	return tx.Commit()
}

// PolarBaseline returns all stored baseline cells ordered by bin.
func (s *Store) PolarBaseline() ([]polar.Point, error) {
	rows, err := s.db.Query(`
		SELECT tws_bin, twa_bin, mean_bsp, p90_bsp, session_count, sample_count
		FROM polar_baseline ORDER BY tws_bin, twa_bin`)
	if err != nil {
		return nil, fmt.Errorf("query baseline: %w", err)
	}
	defer rows.Close()

	var out []polar.Point
	for rows.Next() {
		var p polar.Point
		if err := rows.Scan(&p.TWSBin, &p.TWABin, &p.MeanBSP, &p.P90BSP, &p.SessionCount, &p.SampleCount); err != nil {
			return nil, fmt.Errorf("scan baseline cell: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
