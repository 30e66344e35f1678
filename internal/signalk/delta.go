// Package signalk consumes a Signal K delta stream and turns path/value
// updates into the same typed readings the NMEA 2000 decoder produces, so
// storage and export do not care which source owns the bus.
package signalk

import (
	"encoding/json"
	"log/slog"
	"time"

	"saillogger/internal/nmea2000"
)

// SourceAddr is used for all Signal-K-derived readings; there is no CAN
// source address on a WebSocket feed.
const SourceAddr uint8 = 0

// PairBuffer accumulates the partial values of multi-field readings
// (COG+SOG, wind speed+angle) across deltas. It is owned by the caller; one
// buffer per stream, not shared between independent streams.
type PairBuffer map[string]float64

type delta struct {
	Updates []struct {
		Timestamp string `json:"timestamp"`
		Values    []struct {
			Path  string          `json:"path"`
			Value json.RawMessage `json:"value"`
		} `json:"values"`
	} `json:"updates"`
}

type simpleFunc func(v float64, ts time.Time) nmea2000.Reading

var simplePaths = map[string]simpleFunc{
	"navigation.headingTrue": func(v float64, ts time.Time) nmea2000.Reading {
		return nmea2000.Heading{
			Header:     hdr(nmea2000.PGNVesselHeading, ts),
			HeadingDeg: nmea2000.RadToDeg(v),
		}
	},
	"navigation.speedThroughWater": func(v float64, ts time.Time) nmea2000.Reading {
		return nmea2000.Speed{
			Header:   hdr(nmea2000.PGNSpeedThroughWater, ts),
			SpeedKts: nmea2000.MpsToKts(v),
		}
	},
	"environment.depth.belowKeel": func(v float64, ts time.Time) nmea2000.Reading {
		return nmea2000.Depth{
			Header: hdr(nmea2000.PGNWaterDepth, ts),
			DepthM: v,
		}
	},
	"environment.water.temperature": func(v float64, ts time.Time) nmea2000.Reading {
		return nmea2000.Environmental{
			Header:     hdr(nmea2000.PGNEnvironmental, ts),
			WaterTempC: nmea2000.KelvinToCelsius(v),
		}
	},
}

type pairFunc func(buf PairBuffer, ts time.Time) (nmea2000.Reading, bool)

var pairPaths = map[string]pairFunc{
	"navigation.courseOverGroundTrue":  tryCOGSOG,
	"navigation.speedOverGround":       tryCOGSOG,
	"environment.wind.speedTrue":       tryTrueWind,
	"environment.wind.angleTrue":       tryTrueWind,
	"environment.wind.angleTrueWater":  tryTrueWind,
	"environment.wind.angleTrueGround": tryTrueWind,
	"environment.wind.directionTrue":   tryTrueWind,
	"environment.wind.speedApparent":   tryApparentWind,
	"environment.wind.angleApparent":   tryApparentWind,
}

func hdr(pgn uint32, ts time.Time) nmea2000.Header {
	return nmea2000.Header{PGN: pgn, SourceAddr: SourceAddr, Timestamp: ts}
}

func tryCOGSOG(buf PairBuffer, ts time.Time) (nmea2000.Reading, bool) {
	cog, okCOG := buf["navigation.courseOverGroundTrue"]
	sog, okSOG := buf["navigation.speedOverGround"]
	if !okCOG || !okSOG {
		return nil, false
	}
	return nmea2000.COGSOG{
		Header: hdr(nmea2000.PGNCOGSOGRapid, ts),
		COGDeg: nmea2000.RadToDeg(cog),
		SOGKts: nmea2000.MpsToKts(sog),
	}, true
}

// tryTrueWind prefers a boat-referenced angle (TWA, reference 0) in any of
// its Signal K spellings, then falls back to a north-referenced direction
// (TWD, reference 4) as emitted by B&G units.
func tryTrueWind(buf PairBuffer, ts time.Time) (nmea2000.Reading, bool) {
	spd, ok := buf["environment.wind.speedTrue"]
	if !ok {
		return nil, false
	}
	for _, angleKey := range []string{
		"environment.wind.angleTrue",
		"environment.wind.angleTrueWater",
		"environment.wind.angleTrueGround",
	} {
		if ang, ok := buf[angleKey]; ok {
			return nmea2000.Wind{
				Header:       hdr(nmea2000.PGNWindData, ts),
				WindSpeedKts: nmea2000.MpsToKts(spd),
				WindAngleDeg: nmea2000.RadToDeg(ang),
				Reference:    nmea2000.WindRefTrue,
			}, true
		}
	}
	if dir, ok := buf["environment.wind.directionTrue"]; ok {
		return nmea2000.Wind{
			Header:       hdr(nmea2000.PGNWindData, ts),
			WindSpeedKts: nmea2000.MpsToKts(spd),
			WindAngleDeg: nmea2000.RadToDeg(dir),
			Reference:    nmea2000.WindRefNorth,
		}, true
	}
	return nil, false
}

func tryApparentWind(buf PairBuffer, ts time.Time) (nmea2000.Reading, bool) {
	spd, okSpd := buf["environment.wind.speedApparent"]
	ang, okAng := buf["environment.wind.angleApparent"]
	if !okSpd || !okAng {
		return nil, false
	}
	return nmea2000.Wind{
		Header:       hdr(nmea2000.PGNWindData, ts),
		WindSpeedKts: nmea2000.MpsToKts(spd),
		WindAngleDeg: nmea2000.RadToDeg(ang),
		Reference:    nmea2000.WindRefApparent,
	}, true
}

// ProcessDelta parses one Signal K delta message and returns the readings it
// produces, updating buf in place for the paired paths. Malformed JSON yields
// an empty slice; a bad entry is skipped without aborting the rest of the
// delta. Unknown paths are ignored.
func ProcessDelta(raw []byte, buf PairBuffer) []nmea2000.Reading {
	var d delta
	if err := json.Unmarshal(raw, &d); err != nil {
		slog.Warn("malformed delta JSON", "err", err)
		return nil
	}

	var out []nmea2000.Reading
	for _, update := range d.Updates {
		ts, err := time.Parse(time.RFC3339, update.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		} else {
			ts = ts.UTC()
		}

		for _, entry := range update.Values {
			if len(entry.Value) == 0 || string(entry.Value) == "null" {
				continue
			}

			if entry.Path == "navigation.position" {
				var pos struct {
					Latitude  *float64 `json:"latitude"`
					Longitude *float64 `json:"longitude"`
				}
				if err := json.Unmarshal(entry.Value, &pos); err != nil || pos.Latitude == nil || pos.Longitude == nil {
					slog.Warn("bad position value", "value", string(entry.Value))
					continue
				}
				out = append(out, nmea2000.Position{
					Header:       hdr(nmea2000.PGNPositionRapid, ts),
					LatitudeDeg:  *pos.Latitude,
					LongitudeDeg: *pos.Longitude,
				})
				continue
			}

			if fn, ok := simplePaths[entry.Path]; ok {
				v, err := asNumber(entry.Value)
				if err != nil {
					slog.Warn("non-numeric delta value", "path", entry.Path, "value", string(entry.Value))
					continue
				}
				out = append(out, fn(v, ts))
				continue
			}

			if fn, ok := pairPaths[entry.Path]; ok {
				v, err := asNumber(entry.Value)
				if err != nil {
					slog.Warn("non-numeric delta value", "path", entry.Path, "value", string(entry.Value))
					continue
				}
				buf[entry.Path] = v
				if r, done := fn(buf, ts); done {
					out = append(out, r)
				}
				continue
			}

			slog.Debug("unknown delta path", "path", entry.Path)
		}
	}
	return out
}

func asNumber(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
