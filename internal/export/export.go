// Package export joins the per-quantity instrument tables onto a one-second
// grid and renders the result as CSV, GPX or JSON.
package export

import (
	"fmt"
	"time"

	"saillogger/internal/external"
	"saillogger/internal/nmea2000"
	"saillogger/internal/video"
)

// DataSource is the slice of the store the join engine reads.
type DataSource interface {
	QueryRange(table string, start, end time.Time) ([]nmea2000.Reading, error)
	WeatherRange(start, end time.Time) ([]external.WeatherObs, error)
	TideRange(start, end time.Time) ([]external.TidePrediction, error)
	VideoSessions() ([]video.Session, error)
}

// Row is one second of joined data. Nil pointers mean no sample landed in
// that second.
type Row struct {
	Timestamp time.Time `json:"timestamp"`

	HDG   *float64 `json:"hdg,omitempty"`
	BSP   *float64 `json:"bsp,omitempty"`
	Depth *float64 `json:"depth,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
	COG   *float64 `json:"cog,omitempty"`
	SOG   *float64 `json:"sog,omitempty"`
	TWS   *float64 `json:"tws,omitempty"`
	TWA   *float64 `json:"twa,omitempty"`
	AWA   *float64 `json:"awa,omitempty"`
	AWS   *float64 `json:"aws,omitempty"`
	WTemp *float64 `json:"wtemp,omitempty"`

	VideoURL string `json:"video_url,omitempty"`

	WxTWS    *float64 `json:"wx_tws,omitempty"`
	WxTWD    *float64 `json:"wx_twd,omitempty"`
	AirTemp  *float64 `json:"air_temp,omitempty"`
	Pressure *float64 `json:"pressure,omitempty"`
	TideHt   *float64 `json:"tide_ht,omitempty"`
}

// BuildRows joins all instrument, weather, tide and video data onto an
// inclusive one-second grid from floor(start) through floor(end). Within a
// second the latest sample in insertion order wins.
func BuildRows(src DataSource, start, end time.Time) ([]Row, error) {
	first := start.UTC().Truncate(time.Second)
	last := end.UTC().Truncate(time.Second)
	if last.Before(first) {
		return nil, nil
	}

	idx, err := buildIndexes(src, first, last)
	if err != nil {
		return nil, err
	}

	videos, err := src.VideoSessions()
	if err != nil {
		return nil, err
	}

	n := int(last.Sub(first)/time.Second) + 1
	rows := make([]Row, 0, n)
	for sec := first; !sec.After(last); sec = sec.Add(time.Second) {
		r := Row{Timestamp: sec}
		k := sec.Unix()

		if v, ok := idx.heading[k]; ok {
			r.HDG = ptr(v)
		}
		if v, ok := idx.speed[k]; ok {
			r.BSP = ptr(v)
		}
		if v, ok := idx.depth[k]; ok {
			r.Depth = ptr(v)
		}
		if p, ok := idx.position[k]; ok {
			r.Lat = ptr(p[0])
			r.Lon = ptr(p[1])
		}
		if p, ok := idx.cogsog[k]; ok {
			r.COG = ptr(p[0])
			r.SOG = ptr(p[1])
		}
		if p, ok := idx.trueWind[k]; ok {
			r.TWS = ptr(p[0])
			r.TWA = ptr(p[1])
		}
		if p, ok := idx.appWind[k]; ok {
			r.AWS = ptr(p[0])
			r.AWA = ptr(p[1])
		}
		if v, ok := idx.wtemp[k]; ok {
			r.WTemp = ptr(v)
		}

		hour := sec.Truncate(time.Hour).Unix()
		if w, ok := idx.weather[hour]; ok {
			r.WxTWS = ptr(w.WindSpeedKts)
			r.WxTWD = ptr(w.WindDirDeg)
			r.AirTemp = ptr(w.AirTempC)
			r.Pressure = ptr(w.PressureHPa)
		}
		if h, ok := idx.tide[hour]; ok {
			r.TideHt = ptr(h)
		}

		for _, vs := range videos {
			if vs.Covers(sec) {
				r.VideoURL = vs.URLAt(sec)
				break
			}
		}

		rows = append(rows, r)
	}
	return rows, nil
}

type indexes struct {
	heading  map[int64]float64
	speed    map[int64]float64
	depth    map[int64]float64
	position map[int64][2]float64
	cogsog   map[int64][2]float64
	trueWind map[int64][2]float64
	appWind  map[int64][2]float64
	wtemp    map[int64]float64
	weather  map[int64]external.WeatherObs
	tide     map[int64]float64
}

func buildIndexes(src DataSource, start, end time.Time) (*indexes, error) {
	idx := &indexes{
		heading:  map[int64]float64{},
		speed:    map[int64]float64{},
		depth:    map[int64]float64{},
		position: map[int64][2]float64{},
		cogsog:   map[int64][2]float64{},
		trueWind: map[int64][2]float64{},
		appWind:  map[int64][2]float64{},
		wtemp:    map[int64]float64{},
		weather:  map[int64]external.WeatherObs{},
		tide:     map[int64]float64{},
	}

	// Fetch through the end of the last grid second so sub-second samples in
	// it still win their bucket. Anything landing exactly on the next second
	// keys outside the grid and is ignored.
	fetchEnd := end.Add(time.Second)

	for _, table := range []string{"headings", "speeds", "depths", "positions", "cogsog", "winds", "environmental"} {
		readings, err := src.QueryRange(table, start, fetchEnd)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		for _, r := range readings {
			k := nmea2000.HeaderOf(r).Timestamp.Unix()
			switch v := r.(type) {
			case nmea2000.Heading:
				idx.heading[k] = v.HeadingDeg
			case nmea2000.Speed:
				idx.speed[k] = v.SpeedKts
			case nmea2000.Depth:
				idx.depth[k] = v.DepthM
			case nmea2000.Position:
				idx.position[k] = [2]float64{v.LatitudeDeg, v.LongitudeDeg}
			case nmea2000.COGSOG:
				idx.cogsog[k] = [2]float64{v.COGDeg, v.SOGKts}
			case nmea2000.Wind:
				switch v.Reference {
				case nmea2000.WindRefTrue:
					idx.trueWind[k] = [2]float64{v.WindSpeedKts, v.WindAngleDeg}
				case nmea2000.WindRefApparent:
					idx.appWind[k] = [2]float64{v.WindSpeedKts, v.WindAngleDeg}
				}
			case nmea2000.Environmental:
				idx.wtemp[k] = v.WaterTempC
			}
		}
	}

	// Weather and tide are hourly; join each row to its hour.
	hourStart := start.Truncate(time.Hour)
	obs, err := src.WeatherRange(hourStart, end)
	if err != nil {
		return nil, fmt.Errorf("export weather: %w", err)
	}
	for _, o := range obs {
		idx.weather[o.TS.Truncate(time.Hour).Unix()] = o
	}
	preds, err := src.TideRange(hourStart, end)
	if err != nil {
		return nil, fmt.Errorf("export tides: %w", err)
	}
	for _, p := range preds {
		idx.tide[p.TS.Truncate(time.Hour).Unix()] = p.HeightM
	}
	return idx, nil
}

func ptr(v float64) *float64 { return &v }
