package storage

import (
	"path/filepath"
	"testing"
	"time"

	"saillogger/internal/external"
	"saillogger/internal/nmea2000"
	"saillogger/internal/polar"
	"saillogger/internal/race"
	"saillogger/internal/video"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2025, 8, 10, 19, 30, 0, 0, time.UTC)

func hdrAt(ts time.Time) nmea2000.Header {
	return nmea2000.Header{SourceAddr: 35, Timestamp: ts}
}

func TestWriteQueryRoundTrip(t *testing.T) {
	s := testStore(t)

	dev := 1.5
	readings := []nmea2000.Reading{
		nmea2000.Heading{Header: hdrAt(base), HeadingDeg: 271.2, DeviationDeg: &dev},
		nmea2000.Speed{Header: hdrAt(base.Add(time.Second)), SpeedKts: 6.1},
		nmea2000.Wind{Header: hdrAt(base), WindSpeedKts: 14.2, WindAngleDeg: 42, Reference: nmea2000.WindRefTrue},
	}
	for _, r := range readings {
		if err := s.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got, err := s.QueryRange("headings", base, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d headings, want 1", len(got))
	}
	h, ok := got[0].(nmea2000.Heading)
	if !ok {
		t.Fatalf("got %T, want Heading", got[0])
	}
	if h.HeadingDeg != 271.2 {
		t.Fatalf("heading: got %v, want 271.2", h.HeadingDeg)
	}
	if h.DeviationDeg == nil || *h.DeviationDeg != 1.5 {
		t.Fatalf("deviation: got %v, want 1.5", h.DeviationDeg)
	}
	if h.VariationDeg != nil {
		t.Fatalf("variation should be nil, got %v", *h.VariationDeg)
	}
	if !nmea2000.HeaderOf(h).Timestamp.Equal(base) {
		t.Fatalf("timestamp: got %v, want %v", nmea2000.HeaderOf(h).Timestamp, base)
	}

	winds, err := s.QueryRange("winds", base, base)
	if err != nil {
		t.Fatalf("QueryRange winds: %v", err)
	}
	if len(winds) != 1 {
		t.Fatalf("got %d winds, want 1", len(winds))
	}
	if w := winds[0].(nmea2000.Wind); w.Reference != nmea2000.WindRefTrue {
		t.Fatalf("reference: got %d, want %d", w.Reference, nmea2000.WindRefTrue)
	}
}

func TestQueryRangeUnknownTable(t *testing.T) {
	s := testStore(t)
	if _, err := s.QueryRange("races", base, base); err == nil {
		t.Fatal("expected error for non-instrument table")
	}
}

func TestQueryRangeInclusiveOrdering(t *testing.T) {
	s := testStore(t)
	for i := 0; i < 5; i++ {
		r := nmea2000.Speed{Header: hdrAt(base.Add(time.Duration(i) * time.Second)), SpeedKts: float64(i)}
		if err := s.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	got, err := s.QueryRange("speeds", base.Add(time.Second), base.Add(3*time.Second))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3 (inclusive bounds)", len(got))
	}
	for i := 1; i < len(got); i++ {
		a := nmea2000.HeaderOf(got[i-1]).Timestamp
		b := nmea2000.HeaderOf(got[i]).Timestamp
		if b.Before(a) {
			t.Fatalf("rows out of order at %d", i)
		}
	}
}

func TestSubSecondTimestampOrdering(t *testing.T) {
	s := testStore(t)
	// Fractional-second rows must sort correctly against whole-second query
	// bounds under string comparison.
	r := nmea2000.Speed{Header: hdrAt(base.Add(500 * time.Millisecond)), SpeedKts: 5.5}
	if err := s.Write(r); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.QueryRange("speeds", base, base.Add(time.Second))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := testStore(t)
	if s.SessionActive() {
		t.Fatal("no session should be active on a fresh store")
	}

	// Sunday 2025-08-10: no weekday default, event required.
	if _, err := s.StartSession("", race.TypeRace, base); err == nil {
		t.Fatal("expected error for missing event on a non-default day")
	}

	r1, err := s.StartSession("Summer", race.TypeRace, base)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if r1.Name != "20250810-Summer-1" {
		t.Fatalf("name: got %q, want 20250810-Summer-1", r1.Name)
	}
	if !s.SessionActive() {
		t.Fatal("session should be active")
	}

	// Starting a second session closes the first.
	r2, err := s.StartSession("Summer", race.TypeRace, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if r2.Name != "20250810-Summer-2" {
		t.Fatalf("name: got %q, want 20250810-Summer-2", r2.Name)
	}
	cur, err := s.CurrentSession()
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if cur == nil || cur.ID != r2.ID {
		t.Fatalf("current: got %+v, want session %d", cur, r2.ID)
	}

	if err := s.EndCurrentSession(base.Add(2 * time.Hour)); err != nil {
		t.Fatalf("EndCurrentSession: %v", err)
	}
	if s.SessionActive() {
		t.Fatal("session should be closed")
	}
	if err := s.EndCurrentSession(base.Add(3 * time.Hour)); err == nil {
		t.Fatal("expected error ending with no open session")
	}

	done, err := s.CompletedSessions()
	if err != nil {
		t.Fatalf("CompletedSessions: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("got %d completed sessions, want 2", len(done))
	}
}

func TestSessionWeekdayDefaultAndPractice(t *testing.T) {
	s := testStore(t)
	monday := time.Date(2025, 8, 11, 18, 0, 0, 0, time.UTC)
	r, err := s.StartSession("", race.TypeRace, monday)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if r.Event != "BallardCup" {
		t.Fatalf("event: got %q, want BallardCup", r.Event)
	}

	p, err := s.StartSession("Tuning", race.TypePractice, monday.Add(time.Hour))
	if err != nil {
		t.Fatalf("StartSession practice: %v", err)
	}
	if p.Name != "20250811-Tuning-P1" {
		t.Fatalf("name: got %q, want 20250811-Tuning-P1", p.Name)
	}

	if _, err := s.StartSession("X", "regatta", monday); err == nil {
		t.Fatal("expected error for unknown session type")
	}
}

func TestSessionResumeOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.StartSession("Summer", race.TypeRace, base); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s.Close()

	s2, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if !s2.SessionActive() {
		t.Fatal("open session should survive a restart")
	}
}

func TestLiveCacheTrueWindRecompute(t *testing.T) {
	s := testStore(t)
	s.UpdateLive(nmea2000.Heading{Header: hdrAt(base), HeadingDeg: 300})
	s.UpdateLive(nmea2000.Wind{Header: hdrAt(base), WindSpeedKts: 12, WindAngleDeg: 45, Reference: nmea2000.WindRefTrue})

	live := s.LiveInstruments()
	if v := live["twa_deg"]; v == nil || *v != 45 {
		t.Fatalf("twa: got %v, want 45", v)
	}
	if v := live["twd_deg"]; v == nil || *v != 345 {
		t.Fatalf("twd: got %v, want 345", v)
	}

	s.UpdateLive(nmea2000.Wind{Header: hdrAt(base), WindSpeedKts: 12, WindAngleDeg: 340, Reference: nmea2000.WindRefNorth})
	live = s.LiveInstruments()
	if v := live["twd_deg"]; v == nil || *v != 340 {
		t.Fatalf("north-ref twd: got %v, want 340", v)
	}
	if v := live["twa_deg"]; v == nil || *v != 40 {
		t.Fatalf("north-ref twa: got %v, want 40", v)
	}
}

func TestStatusSummary(t *testing.T) {
	s := testStore(t)
	if err := s.Write(nmea2000.Speed{Header: hdrAt(base), SpeedKts: 6}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	st, err := s.StatusSummary()
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	if st["speeds"].Count != 1 {
		t.Fatalf("speeds count: got %d, want 1", st["speeds"].Count)
	}
	if st["depths"].Count != 0 || st["depths"].LastSeen != "never" {
		t.Fatalf("depths: got %+v", st["depths"])
	}
}

func TestVideoSessionRoundTrip(t *testing.T) {
	s := testStore(t)
	vs := video.Session{
		URL: "https://youtu.be/vid1", VideoID: "vid1", Title: "Race 3",
		DurationS: 3600, SyncUTC: base, SyncOffsetS: 120,
	}
	if _, err := s.AddVideoSession(vs, base); err != nil {
		t.Fatalf("AddVideoSession: %v", err)
	}
	got, err := s.VideoSessions()
	if err != nil {
		t.Fatalf("VideoSessions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d sessions, want 1", len(got))
	}
	if got[0].VideoID != "vid1" || !got[0].SyncUTC.Equal(base) || got[0].SyncOffsetS != 120 {
		t.Fatalf("round trip mismatch: %+v", got[0])
	}
}

func TestWeatherAndTideUpsert(t *testing.T) {
	s := testStore(t)
	hour := base.Truncate(time.Hour)

	obs := external.WeatherObs{TS: hour, Lat: 47.66, Lon: -122.41, WindSpeedKts: 10}
	if err := s.UpsertWeather([]external.WeatherObs{obs}); err != nil {
		t.Fatalf("UpsertWeather: %v", err)
	}
	obs.WindSpeedKts = 14
	if err := s.UpsertWeather([]external.WeatherObs{obs}); err != nil {
		t.Fatalf("UpsertWeather update: %v", err)
	}
	w, err := s.WeatherRange(hour, hour)
	if err != nil {
		t.Fatalf("WeatherRange: %v", err)
	}
	if len(w) != 1 || w[0].WindSpeedKts != 14 {
		t.Fatalf("weather upsert: got %+v", w)
	}

	p := external.TidePrediction{TS: hour, StationID: "9447130", StationName: "Seattle", HeightM: 2.0, Type: "pred"}
	if err := s.UpsertTides([]external.TidePrediction{p}); err != nil {
		t.Fatalf("UpsertTides: %v", err)
	}
	p.HeightM = 2.2
	if err := s.UpsertTides([]external.TidePrediction{p}); err != nil {
		t.Fatalf("UpsertTides update: %v", err)
	}
	tides, err := s.TideRange(hour, hour)
	if err != nil {
		t.Fatalf("TideRange: %v", err)
	}
	if len(tides) != 1 || tides[0].HeightM != 2.2 {
		t.Fatalf("tide upsert: got %+v", tides)
	}
}

func TestPolarBaselineReplace(t *testing.T) {
	s := testStore(t)
	first := []polar.Point{
		{TWSBin: 10, TWABin: 45, MeanBSP: 6.0, P90BSP: 6.4, SessionCount: 3, SampleCount: 100},
		{TWSBin: 12, TWABin: 90, MeanBSP: 7.1, P90BSP: 7.5, SessionCount: 2, SampleCount: 50},
	}
	if err := s.ReplacePolarBaseline(first, base); err != nil {
		t.Fatalf("ReplacePolarBaseline: %v", err)
	}
	second := []polar.Point{
		{TWSBin: 14, TWABin: 135, MeanBSP: 7.8, P90BSP: 8.2, SessionCount: 4, SampleCount: 200},
	}
	if err := s.ReplacePolarBaseline(second, base.Add(time.Hour)); err != nil {
		t.Fatalf("ReplacePolarBaseline second: %v", err)
	}
	got, err := s.PolarBaseline()
	if err != nil {
		t.Fatalf("PolarBaseline: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("replace should be wholesale: got %d cells, want 1", len(got))
	}
	if got[0].TWSBin != 14 || got[0].P90BSP != 8.2 {
		t.Fatalf("cell mismatch: %+v", got[0])
	}
}

func TestLatestPosition(t *testing.T) {
	s := testStore(t)
	p, err := s.LatestPosition()
	if err != nil {
		t.Fatalf("LatestPosition: %v", err)
	}
	if p != nil {
		t.Fatalf("empty store: got %+v, want nil", p)
	}
	if err := s.Write(nmea2000.Position{Header: hdrAt(base), LatitudeDeg: 47.6, LongitudeDeg: -122.4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(nmea2000.Position{Header: hdrAt(base.Add(time.Second)), LatitudeDeg: 47.7, LongitudeDeg: -122.5}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p, err = s.LatestPosition()
	if err != nil {
		t.Fatalf("LatestPosition: %v", err)
	}
	if p == nil || p.LatitudeDeg != 47.7 {
		t.Fatalf("latest: got %+v, want lat 47.7", p)
	}
}
