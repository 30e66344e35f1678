// Package polar builds a boat-speed baseline from logged instrument data.
// Samples are bucketed by true wind speed (1 kt bins) and true wind angle
// (5 degree bins, folded to 0..180); each bucket keeps the mean and 90th
// percentile of boat speed seen across sessions.
package polar

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"saillogger/internal/nmea2000"
)

// Point is one baseline cell.
type Point struct {
	TWSBin       int     `json:"tws_bin"`
	TWABin       int     `json:"twa_bin"`
	MeanBSP      float64 `json:"mean_bsp"`
	P90BSP       float64 `json:"p90_bsp"`
	SessionCount int     `json:"session_count"`
	SampleCount  int     `json:"sample_count"`
}

// TWSBin is the whole-knot bucket for a true wind speed. Negative speeds
// clamp to bin 0.
func TWSBin(tws float64) int {
	if tws < 0 {
		return 0
	}
	return int(math.Floor(tws))
}

// TWABin folds a true wind angle to [0, 180] and buckets it into 5 degree
// bins. Port and starboard tacks land in the same bin.
func TWABin(twa float64) int {
	a := math.Mod(math.Abs(twa), 360)
	if a > 180 {
		a = 360 - a
	}
	return int(math.Floor(a/5)) * 5
}

// ComputeTWA converts a north-referenced true wind direction to a boat-
// relative angle given the heading.
func ComputeTWA(twdDeg, headingDeg float64) float64 {
	return math.Mod(twdDeg-headingDeg+360, 360)
}

// SessionData is one session's worth of per-second samples used as build
// input.
type SessionData struct {
	SessionID int64
	Speeds    []nmea2000.Speed
	Winds     []nmea2000.Wind
	Headings  []nmea2000.Heading
}

type bucket struct {
	speeds   []float64
	sessions map[int64]struct{}
}

// Build computes the baseline from per-session data. Within each session the
// speed, wind and heading streams are indexed by second with the latest
// sample per second winning; a sample joins a bucket only when boat speed
// and true wind share a second (north-referenced wind also needs a heading
// that second). Buckets seen in fewer than minSessions distinct sessions
// are dropped.
func Build(sessions []SessionData, minSessions int) []Point {
	buckets := map[[2]int]*bucket{}

	for _, sd := range sessions {
		speeds := map[int64]float64{}
		for _, sp := range sd.Speeds {
			speeds[second(sp.Timestamp)] = sp.SpeedKts
		}
		headings := map[int64]float64{}
		for _, h := range sd.Headings {
			headings[second(h.Timestamp)] = h.HeadingDeg
		}
		winds := map[int64]nmea2000.Wind{}
		for _, w := range sd.Winds {
			if w.Reference != nmea2000.WindRefTrue && w.Reference != nmea2000.WindRefNorth {
				continue
			}
			winds[second(w.Timestamp)] = w
		}

		for sec, w := range winds {
			bsp, ok := speeds[sec]
			if !ok {
				continue
			}
			twa := w.WindAngleDeg
			if w.Reference == nmea2000.WindRefNorth {
				hdg, ok := headings[sec]
				if !ok {
					continue
				}
				twa = ComputeTWA(w.WindAngleDeg, hdg)
			}
			key := [2]int{TWSBin(w.WindSpeedKts), TWABin(twa)}
			b := buckets[key]
			if b == nil {
				b = &bucket{sessions: map[int64]struct{}{}}
				buckets[key] = b
			}
			b.speeds = append(b.speeds, bsp)
			b.sessions[sd.SessionID] = struct{}{}
		}
	}

	var out []Point
	for key, b := range buckets {
		if len(b.sessions) < minSessions {
			continue
		}
		sort.Float64s(b.speeds)
		out = append(out, Point{
			TWSBin:       key[0],
			TWABin:       key[1],
			MeanBSP:      round4(stat.Mean(b.speeds, nil)),
			P90BSP:       round4(stat.Quantile(0.9, stat.Empirical, b.speeds, nil)),
			SessionCount: len(b.sessions),
			SampleCount:  len(b.speeds),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TWSBin != out[j].TWSBin {
			return out[i].TWSBin < out[j].TWSBin
		}
		return out[i].TWABin < out[j].TWABin
	})
	return out
}

func second(ts time.Time) int64 { return ts.Unix() }

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
