// Package race holds the pure session-naming logic. Persistence lives in
// storage; nothing here touches the database.
package race

import (
	"fmt"
	"time"
)

const (
	TypeRace     = "race"
	TypePractice = "practice"
)

// Race is one race or practice session window. EndUTC is nil while the
// session is still running.
type Race struct {
	ID          int64
	Name        string // e.g. "20250810-BallardCup-2" or "20250810-BallardCup-P1"
	Event       string
	RaceNum     int
	Date        string // UTC date "2006-01-02"
	StartUTC    time.Time
	EndUTC      *time.Time
	SessionType string
}

// Completed reports whether the session has both a start and an end.
func (r Race) Completed() bool { return r.EndUTC != nil }

var weekdayEvents = map[time.Weekday]string{
	time.Monday:    "BallardCup",
	time.Wednesday: "CYC",
}

// DefaultEventForDate returns the regular event name for a UTC date, or ""
// when there is no scheduled series that day and the caller must name one.
func DefaultEventForDate(d time.Time) string {
	return weekdayEvents[d.UTC().Weekday()]
}

// BuildName builds the session identifier, e.g.
//
//	BuildName("BallardCup", d, 2, TypeRace)     -> "20250810-BallardCup-2"
//	BuildName("BallardCup", d, 1, TypePractice) -> "20250810-BallardCup-P1"
func BuildName(event string, d time.Time, raceNum int, sessionType string) string {
	num := fmt.Sprintf("%d", raceNum)
	if sessionType == TypePractice {
		num = fmt.Sprintf("P%d", raceNum)
	}
	return fmt.Sprintf("%s-%s-%s", d.UTC().Format("20060102"), event, num)
}
