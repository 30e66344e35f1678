// Package nmea2000 decodes raw NMEA 2000 CAN payloads into typed instrument
// readings. Only the seven PGNs a sailing logger needs are supported; anything
// else is ignored.
package nmea2000

import "time"

// Header carries the provenance shared by every reading variant.
// SourceAddr is the CAN source address byte, or 0 for readings that did not
// originate on the bus (e.g. Signal K deltas).
type Header struct {
	PGN        uint32
	SourceAddr uint8
	Timestamp  time.Time
}

func (h Header) header() Header { return h }

// Reading is the closed set of decoded instrument values. Implementations are
// immutable value types; optional fields use nil rather than a sentinel number.
type Reading interface {
	header() Header
}

// HeaderOf returns the common header of any reading variant.
func HeaderOf(r Reading) Header { return r.header() }

// Heading is PGN 127250 — Vessel Heading.
type Heading struct {
	Header
	HeadingDeg   float64  // degrees true
	DeviationDeg *float64 // magnetic deviation, degrees
	VariationDeg *float64 // magnetic variation, degrees
}

// Speed is PGN 128259 — Speed Through Water.
type Speed struct {
	Header
	SpeedKts float64
}

// Depth is PGN 128267 — Water Depth.
type Depth struct {
	Header
	DepthM  float64  // metres below transducer
	OffsetM *float64 // transducer offset, positive = above keel
}

// Position is PGN 129025 — Position Rapid Update.
type Position struct {
	Header
	LatitudeDeg  float64 // positive North
	LongitudeDeg float64 // positive East
}

// COGSOG is PGN 129026 — COG & SOG Rapid Update.
type COGSOG struct {
	Header
	COGDeg float64 // degrees true
	SOGKts float64
}

// Wind reference values as they appear on the wire and in storage.
const (
	WindRefTrue     = 0 // angle is TWA, boat-referenced
	WindRefMagnetic = 1
	WindRefApparent = 2
	WindRefBoat     = 3
	WindRefNorth    = 4 // angle is TWD, north-referenced
)

// Wind is PGN 130306 — Wind Data.
type Wind struct {
	Header
	WindSpeedKts float64
	WindAngleDeg float64
	Reference    int
}

// Environmental is PGN 130310 — Environmental Parameters (water temperature).
type Environmental struct {
	Header
	WaterTempC float64
}
