package signalk

import (
	"fmt"
	"math"
	"testing"
	"time"

	"saillogger/internal/nmea2000"
)

func deltaJSON(ts string, entries ...string) []byte {
	values := ""
	for i, e := range entries {
		if i > 0 {
			values += ","
		}
		values += e
	}
	return []byte(fmt.Sprintf(`{"context":"vessels.self","updates":[{"timestamp":%q,"values":[%s]}]}`, ts, values))
}

func entry(path string, value string) string {
	return fmt.Sprintf(`{"path":%q,"value":%s}`, path, value)
}

const testTS = "2025-08-10T19:30:00Z"

func TestProcessDelta_DirectHeading(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS, entry("navigation.headingTrue", "3.14159265")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	h, ok := out[0].(nmea2000.Heading)
	if !ok {
		t.Fatalf("expected Heading, got %T", out[0])
	}
	if math.Abs(h.HeadingDeg-180.0) > 0.01 {
		t.Fatalf("heading=%v want ~180", h.HeadingDeg)
	}
	if h.SourceAddr != SourceAddr {
		t.Fatalf("source=%d want %d", h.SourceAddr, SourceAddr)
	}
	want := time.Date(2025, 8, 10, 19, 30, 0, 0, time.UTC)
	if !h.Timestamp.Equal(want) {
		t.Fatalf("ts=%v want %v", h.Timestamp, want)
	}
}

func TestProcessDelta_DirectSpeedDepthTemp(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS,
		entry("navigation.speedThroughWater", "2.572"),
		entry("environment.depth.belowKeel", "7.5"),
		entry("environment.water.temperature", "293.15"),
	), buf)
	if len(out) != 3 {
		t.Fatalf("got %d readings, want 3", len(out))
	}
	if s := out[0].(nmea2000.Speed); math.Abs(s.SpeedKts-5.0) > 0.05 {
		t.Fatalf("speed=%v want ~5", s.SpeedKts)
	}
	if d := out[1].(nmea2000.Depth); d.DepthM != 7.5 || d.OffsetM != nil {
		t.Fatalf("depth=%+v", d)
	}
	if e := out[2].(nmea2000.Environmental); math.Abs(e.WaterTempC-20.0) > 0.01 {
		t.Fatalf("temp=%v want ~20", e.WaterTempC)
	}
}

func TestProcessDelta_Position(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS,
		entry("navigation.position", `{"latitude":47.6,"longitude":-122.3}`),
	), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	p := out[0].(nmea2000.Position)
	if p.LatitudeDeg != 47.6 || p.LongitudeDeg != -122.3 {
		t.Fatalf("position=%+v", p)
	}
}

func TestProcessDelta_BadPositionShapeSkipped(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS,
		entry("navigation.position", `{"latitude":47.6}`),
		entry("navigation.headingTrue", "1.0"),
	), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want just the heading", len(out))
	}
	if _, ok := out[0].(nmea2000.Heading); !ok {
		t.Fatalf("expected Heading, got %T", out[0])
	}
}

func TestProcessDelta_TrueWindPairing(t *testing.T) {
	buf := PairBuffer{}

	out := ProcessDelta(deltaJSON(testTS, entry("environment.wind.speedTrue", "5.144")), buf)
	if len(out) != 0 {
		t.Fatalf("speed alone emitted %d readings", len(out))
	}

	out = ProcessDelta(deltaJSON(testTS, entry("environment.wind.angleTrue", "0.7854")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings after angle, want 1", len(out))
	}
	w := out[0].(nmea2000.Wind)
	if w.Reference != nmea2000.WindRefTrue {
		t.Fatalf("reference=%d want %d", w.Reference, nmea2000.WindRefTrue)
	}
	if math.Abs(w.WindSpeedKts-10.0) > 0.05 {
		t.Fatalf("speed=%v want ~10", w.WindSpeedKts)
	}
	if math.Abs(w.WindAngleDeg-45.0) > 0.01 {
		t.Fatalf("angle=%v want ~45", w.WindAngleDeg)
	}
}

func TestProcessDelta_TrueWindDirectionFallback(t *testing.T) {
	buf := PairBuffer{}
	ProcessDelta(deltaJSON(testTS, entry("environment.wind.speedTrue", "5.0")), buf)
	out := ProcessDelta(deltaJSON(testTS, entry("environment.wind.directionTrue", "1.5708")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	w := out[0].(nmea2000.Wind)
	if w.Reference != nmea2000.WindRefNorth {
		t.Fatalf("reference=%d want %d", w.Reference, nmea2000.WindRefNorth)
	}
	if math.Abs(w.WindAngleDeg-90.0) > 0.01 {
		t.Fatalf("angle=%v want ~90", w.WindAngleDeg)
	}
}

func TestProcessDelta_ApparentWindPairing(t *testing.T) {
	buf := PairBuffer{}
	ProcessDelta(deltaJSON(testTS, entry("environment.wind.angleApparent", "0.5")), buf)
	out := ProcessDelta(deltaJSON(testTS, entry("environment.wind.speedApparent", "6.0")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	w := out[0].(nmea2000.Wind)
	if w.Reference != nmea2000.WindRefApparent {
		t.Fatalf("reference=%d want %d", w.Reference, nmea2000.WindRefApparent)
	}
}

func TestProcessDelta_COGSOGPairing(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS, entry("navigation.courseOverGroundTrue", "1.5708")), buf)
	if len(out) != 0 {
		t.Fatalf("cog alone emitted %d readings", len(out))
	}
	out = ProcessDelta(deltaJSON(testTS, entry("navigation.speedOverGround", "3.5")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	cs := out[0].(nmea2000.COGSOG)
	if math.Abs(cs.COGDeg-90.0) > 0.01 || math.Abs(cs.SOGKts-6.8) > 0.05 {
		t.Fatalf("cogsog=%+v", cs)
	}
}

// A value set once stays in the buffer, so a later update to only one half of
// a pair still emits using the stale other half.
func TestProcessDelta_StaleValueStillPairs(t *testing.T) {
	buf := PairBuffer{}
	ProcessDelta(deltaJSON(testTS, entry("navigation.courseOverGroundTrue", "1.0")), buf)
	ProcessDelta(deltaJSON(testTS, entry("navigation.speedOverGround", "2.0")), buf)

	out := ProcessDelta(deltaJSON(testTS, entry("navigation.speedOverGround", "4.0")), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	cs := out[0].(nmea2000.COGSOG)
	if math.Abs(cs.SOGKts-nmea2000.MpsToKts(4.0)) > 1e-9 {
		t.Fatalf("sog=%v want updated value", cs.SOGKts)
	}
}

func TestProcessDelta_IndependentBuffers(t *testing.T) {
	bufA := PairBuffer{}
	bufB := PairBuffer{}
	ProcessDelta(deltaJSON(testTS, entry("environment.wind.speedTrue", "5.0")), bufA)
	out := ProcessDelta(deltaJSON(testTS, entry("environment.wind.angleTrue", "0.5")), bufB)
	if len(out) != 0 {
		t.Fatalf("buffers leaked between streams: %d readings", len(out))
	}
}

func TestProcessDelta_MalformedJSON(t *testing.T) {
	if out := ProcessDelta([]byte("{not json"), PairBuffer{}); len(out) != 0 {
		t.Fatalf("got %d readings, want 0", len(out))
	}
}

func TestProcessDelta_NonNumericSkippedRestProcessed(t *testing.T) {
	buf := PairBuffer{}
	out := ProcessDelta(deltaJSON(testTS,
		entry("navigation.headingTrue", `"north"`),
		entry("navigation.speedThroughWater", "1.0"),
	), buf)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	if _, ok := out[0].(nmea2000.Speed); !ok {
		t.Fatalf("expected Speed, got %T", out[0])
	}
}

func TestProcessDelta_UnknownPathIgnored(t *testing.T) {
	out := ProcessDelta(deltaJSON(testTS, entry("electrical.batteries.0.voltage", "12.6")), PairBuffer{})
	if len(out) != 0 {
		t.Fatalf("got %d readings, want 0", len(out))
	}
}

func TestProcessDelta_BadTimestampFallsBackToNow(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	out := ProcessDelta(deltaJSON("not-a-time", entry("navigation.headingTrue", "1.0")), PairBuffer{})
	after := time.Now().UTC().Add(time.Second)
	if len(out) != 1 {
		t.Fatalf("got %d readings, want 1", len(out))
	}
	ts := nmea2000.HeaderOf(out[0]).Timestamp
	if ts.Before(before) || ts.After(after) {
		t.Fatalf("fallback timestamp %v not near now", ts)
	}
}
