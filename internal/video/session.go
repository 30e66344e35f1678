// Package video correlates recorded YouTube footage with logged instrument
// data. A session stores one sync point — a (UTC wall clock, video offset)
// pair — which anchors the video timeline to real time without knowing the
// exact recording start.
package video

import (
	"fmt"
	"time"
)

// Session is a YouTube video linked to logged data via a sync point: at
// SyncUTC the playback position was SyncOffsetS seconds.
type Session struct {
	ID        int64
	URL       string
	VideoID   string // e.g. "dQw4w9WgXcQ"
	Title     string
	DurationS float64

	SyncUTC     time.Time
	SyncOffsetS float64
}

// OffsetAt returns the playback position in seconds at the given UTC time.
// The result may fall outside [0, DurationS].
func (s Session) OffsetAt(utc time.Time) float64 {
	return s.SyncOffsetS + utc.Sub(s.SyncUTC).Seconds()
}

// Covers reports whether the UTC time falls within the video.
func (s Session) Covers(utc time.Time) bool {
	off := s.OffsetAt(utc)
	return off >= 0 && off <= s.DurationS
}

// URLAt returns a youtu.be deep link with ?t= for the given UTC time, or ""
// when the time falls outside the video.
func (s Session) URLAt(utc time.Time) string {
	off := s.OffsetAt(utc)
	if off < 0 || off > s.DurationS {
		return ""
	}
	return fmt.Sprintf("https://youtu.be/%s?t=%d", s.VideoID, int(off))
}
