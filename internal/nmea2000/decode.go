package nmea2000

import (
	"encoding/binary"
	"log/slog"
	"time"
)

// NMEA 2000 "not available" wire sentinels.
const (
	naUint16 = 0xFFFF
	naUint32 = 0xFFFFFFFF
	naInt16  = int16(-32768) // 0x8000
	naInt32  = int32(-2147483648)
	// Deviation/variation use 0x7FFF rather than 0x8000.
	naAngle16 = int16(0x7FFF)
)

type decodeFunc func(data []byte, source uint8, ts time.Time) (Reading, bool)

var decoders = map[uint32]decodeFunc{
	PGNVesselHeading:     decodeHeading,
	PGNSpeedThroughWater: decodeSpeed,
	PGNWaterDepth:        decodeDepth,
	PGNPositionRapid:     decodePosition,
	PGNCOGSOGRapid:       decodeCOGSOG,
	PGNWindData:          decodeWind,
	PGNEnvironmental:     decodeEnvironmental,
}

// Decode turns a raw CAN payload into a typed reading.
//
// Unsupported PGNs return (nil, false) silently. Payloads that are too short
// or whose mandatory fields carry the "not available" sentinel also return
// (nil, false); one bad frame must never halt the stream, so there is no
// error return. Decode holds no state and is safe to call concurrently.
func Decode(pgn uint32, data []byte, source uint8, ts time.Time) (Reading, bool) {
	dec, ok := decoders[pgn]
	if !ok {
		return nil, false
	}
	return dec(data, source, ts.UTC())
}

func u16(data []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(data[off : off+2])
}

func u32(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func i16(data []byte, off int) int16 {
	return int16(binary.LittleEndian.Uint16(data[off : off+2]))
}

func i32(data []byte, off int) int32 {
	return int32(binary.LittleEndian.Uint32(data[off : off+4]))
}

func shortData(pgn uint32, data []byte) {
	slog.Warn("short PGN payload", "pgn", pgn, "bytes", len(data))
}

// PGN 127250 — Vessel Heading (8 bytes).
//
//	0    SID
//	1-2  heading   uint16, 0.0001 rad/bit
//	3-4  deviation int16,  0.0001 rad/bit, 0x7FFF = n/a
//	5-6  variation int16,  0.0001 rad/bit, 0x7FFF = n/a
//	7    reference bits
func decodeHeading(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 8 {
		shortData(PGNVesselHeading, data)
		return nil, false
	}

	rawHdg := u16(data, 1)
	if rawHdg == naUint16 {
		slog.Debug("heading not available", "pgn", PGNVesselHeading)
		return nil, false
	}

	out := Heading{
		Header:     Header{PGN: PGNVesselHeading, SourceAddr: source, Timestamp: ts},
		HeadingDeg: RadToDeg(float64(rawHdg) * 0.0001),
	}
	if rawDev := i16(data, 3); rawDev != naAngle16 {
		v := RadToDeg(float64(rawDev) * 0.0001)
		out.DeviationDeg = &v
	}
	if rawVar := i16(data, 5); rawVar != naAngle16 {
		v := RadToDeg(float64(rawVar) * 0.0001)
		out.VariationDeg = &v
	}
	return out, true
}

// PGN 128259 — Speed Through Water (6 bytes).
//
//	0    SID
//	1-2  speed uint16, 0.01 m/s per bit
func decodeSpeed(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 6 {
		shortData(PGNSpeedThroughWater, data)
		return nil, false
	}

	rawSpeed := u16(data, 1)
	if rawSpeed == naUint16 {
		slog.Debug("speed not available", "pgn", PGNSpeedThroughWater)
		return nil, false
	}

	return Speed{
		Header:   Header{PGN: PGNSpeedThroughWater, SourceAddr: source, Timestamp: ts},
		SpeedKts: MpsToKts(float64(rawSpeed) * 0.01),
	}, true
}

// PGN 128267 — Water Depth (7 bytes).
//
//	0    SID
//	1-4  depth  uint32, 0.01 m per bit
//	5-6  offset int16,  0.001 m per bit, 0x8000 = n/a
func decodeDepth(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 7 {
		shortData(PGNWaterDepth, data)
		return nil, false
	}

	rawDepth := u32(data, 1)
	if rawDepth == naUint32 {
		slog.Debug("depth not available", "pgn", PGNWaterDepth)
		return nil, false
	}

	out := Depth{
		Header: Header{PGN: PGNWaterDepth, SourceAddr: source, Timestamp: ts},
		DepthM: float64(rawDepth) * 0.01,
	}
	if rawOffset := i16(data, 5); rawOffset != naInt16 {
		v := float64(rawOffset) * 0.001
		out.OffsetM = &v
	}
	return out, true
}

// PGN 129025 — Position Rapid Update (8 bytes).
//
//	0-3  latitude  int32, 1e-7 deg per bit
//	4-7  longitude int32, 1e-7 deg per bit
func decodePosition(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 8 {
		shortData(PGNPositionRapid, data)
		return nil, false
	}

	rawLat := i32(data, 0)
	rawLon := i32(data, 4)
	if rawLat == naInt32 || rawLon == naInt32 {
		slog.Debug("position not available", "pgn", PGNPositionRapid)
		return nil, false
	}

	return Position{
		Header:       Header{PGN: PGNPositionRapid, SourceAddr: source, Timestamp: ts},
		LatitudeDeg:  float64(rawLat) * 1e-7,
		LongitudeDeg: float64(rawLon) * 1e-7,
	}, true
}

// PGN 129026 — COG & SOG Rapid Update (8 bytes).
//
//	0    SID
//	1    COG reference bits
//	2-3  COG uint16, 0.0001 rad per bit
//	4-5  SOG uint16, 0.01 m/s per bit
func decodeCOGSOG(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 8 {
		shortData(PGNCOGSOGRapid, data)
		return nil, false
	}

	rawCOG := u16(data, 2)
	rawSOG := u16(data, 4)
	if rawCOG == naUint16 || rawSOG == naUint16 {
		slog.Debug("COG/SOG not available", "pgn", PGNCOGSOGRapid)
		return nil, false
	}

	return COGSOG{
		Header: Header{PGN: PGNCOGSOGRapid, SourceAddr: source, Timestamp: ts},
		COGDeg: RadToDeg(float64(rawCOG) * 0.0001),
		SOGKts: MpsToKts(float64(rawSOG) * 0.01),
	}, true
}

// PGN 130306 — Wind Data (6 bytes).
//
//	0    SID
//	1-2  wind speed uint16, 0.01 m/s per bit
//	3-4  wind angle uint16, 0.0001 rad per bit
//	5    reference, low 3 bits
func decodeWind(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 6 {
		shortData(PGNWindData, data)
		return nil, false
	}

	rawSpeed := u16(data, 1)
	rawAngle := u16(data, 3)
	if rawSpeed == naUint16 || rawAngle == naUint16 {
		slog.Debug("wind not available", "pgn", PGNWindData)
		return nil, false
	}

	return Wind{
		Header:       Header{PGN: PGNWindData, SourceAddr: source, Timestamp: ts},
		WindSpeedKts: MpsToKts(float64(rawSpeed) * 0.01),
		WindAngleDeg: RadToDeg(float64(rawAngle) * 0.0001),
		Reference:    int(data[5] & 0x07),
	}, true
}

// PGN 130310 — Environmental Parameters (7 bytes).
//
//	0    SID
//	1-2  water temperature uint16, 0.01 K per bit
//	3-4  atmospheric pressure, ignored
func decodeEnvironmental(data []byte, source uint8, ts time.Time) (Reading, bool) {
	if len(data) < 7 {
		shortData(PGNEnvironmental, data)
		return nil, false
	}

	rawTemp := u16(data, 1)
	if rawTemp == naUint16 {
		slog.Debug("water temperature not available", "pgn", PGNEnvironmental)
		return nil, false
	}

	return Environmental{
		Header:     Header{PGN: PGNEnvironmental, SourceAddr: source, Timestamp: ts},
		WaterTempC: KelvinToCelsius(float64(rawTemp) * 0.01),
	}, true
}
