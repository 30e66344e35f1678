package storage

import (
	"fmt"
	"time"

	"saillogger/internal/video"
)

// AddVideoSession persists a video sync record.
func (s *Store) AddVideoSession(vs video.Session, now time.Time) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO video_sessions (url, video_id, title, duration_s, sync_utc, sync_offset_s, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		vs.URL, vs.VideoID, vs.Title, vs.DurationS,
		formatTS(vs.SyncUTC), vs.SyncOffsetS, formatTS(now.UTC()))
	if err != nil {
		return 0, fmt.Errorf("insert video session: %w", err)
	}
	return res.LastInsertId()
}

// VideoSessions returns all video sync records, oldest first.
func (s *Store) VideoSessions() ([]video.Session, error) {
	rows, err := s.db.Query(`
		SELECT id, url, video_id, title, duration_s, sync_utc, sync_offset_s
		FROM video_sessions ORDER BY sync_utc`)
	if err != nil {
		return nil, fmt.Errorf("query video sessions: %w", err)
	}
	defer rows.Close()

	var out []video.Session
	for rows.Next() {
		var vs video.Session
		var sync string
		if err := rows.Scan(&vs.ID, &vs.URL, &vs.VideoID, &vs.Title, &vs.DurationS, &sync, &vs.SyncOffsetS); err != nil {
			return nil, fmt.Errorf("scan video session: %w", err)
		}
		ts, err := parseTS(sync)
		if err != nil {
			return nil, fmt.Errorf("video session %d: %w", vs.ID, err)
		}
		vs.SyncUTC = ts
		out = append(out, vs)
	}
	return out, rows.Err()
}
