package storage

import (
	"math"
	"sync"

	"saillogger/internal/nmea2000"
)

// liveCache holds the latest value of each cockpit instrument regardless of
// whether a session is active. True wind is recomputed whenever heading or
// wind changes: with a boat-referenced angle (TWA) the direction is derived
// from heading, and with a north-referenced direction (TWD) the angle is.
type liveCache struct {
	mu     sync.Mutex
	values map[string]*float64

	twRef      int
	twAngleRaw *float64
}

var liveKeys = []string{
	"heading_deg",
	"bsp_kts",
	"depth_m",
	"latitude_deg",
	"longitude_deg",
	"cog_deg",
	"sog_kts",
	"tws_kts",
	"twa_deg",
	"twd_deg",
	"aws_kts",
	"awa_deg",
	"water_temp_c",
}

func (c *liveCache) init() {
	c.values = make(map[string]*float64, len(liveKeys))
	for _, k := range liveKeys {
		c.values[k] = nil
	}
	c.twRef = -1
}

func (c *liveCache) set(key string, v float64, decimals int) {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	c.values[key] = &r
}

func (c *liveCache) recomputeTrueWind() {
	if c.twAngleRaw == nil {
		return
	}
	ang := *c.twAngleRaw
	hdg := c.values["heading_deg"]

	if c.twRef == nmea2000.WindRefTrue {
		c.set("twa_deg", ang, 1)
		if hdg != nil {
			c.set("twd_deg", math.Mod(*hdg+ang+360, 360), 1)
		} else {
			c.values["twd_deg"] = nil
		}
		return
	}

	// north-referenced direction
	c.set("twd_deg", math.Mod(ang+360, 360), 1)
	if hdg != nil {
		c.set("twa_deg", math.Mod(ang-*hdg+360, 360), 1)
	} else {
		c.values["twa_deg"] = nil
	}
}

// UpdateLive refreshes the in-memory instrument cache from a decoded reading.
// No database I/O happens here.
func (s *Store) UpdateLive(r nmea2000.Reading) {
	c := &s.live
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v := r.(type) {
	case nmea2000.Heading:
		c.set("heading_deg", v.HeadingDeg, 1)
		c.recomputeTrueWind()
	case nmea2000.Speed:
		c.set("bsp_kts", v.SpeedKts, 2)
	case nmea2000.Depth:
		c.set("depth_m", v.DepthM, 1)
	case nmea2000.Position:
		c.set("latitude_deg", v.LatitudeDeg, 6)
		c.set("longitude_deg", v.LongitudeDeg, 6)
	case nmea2000.COGSOG:
		c.set("cog_deg", v.COGDeg, 1)
		c.set("sog_kts", v.SOGKts, 2)
	case nmea2000.Environmental:
		c.set("water_temp_c", v.WaterTempC, 1)
	case nmea2000.Wind:
		switch v.Reference {
		case nmea2000.WindRefApparent:
			c.set("aws_kts", v.WindSpeedKts, 1)
			c.set("awa_deg", v.WindAngleDeg, 1)
		case nmea2000.WindRefTrue, nmea2000.WindRefNorth:
			c.set("tws_kts", v.WindSpeedKts, 1)
			c.twRef = v.Reference
			ang := v.WindAngleDeg
			c.twAngleRaw = &ang
			c.recomputeTrueWind()
		}
	}
}

// LiveInstruments returns a copy of the current instrument cache. Keys with
// no reading yet map to nil.
func (s *Store) LiveInstruments() map[string]*float64 {
	c := &s.live
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*float64, len(c.values))
	for k, v := range c.values {
		if v == nil {
			out[k] = nil
			continue
		}
		f := *v
		out[k] = &f
	}
	return out
}
