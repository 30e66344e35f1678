package polar

// Baseline indexes points for target lookup during a race.
type Baseline struct {
	points map[[2]int]Point
}

// NewBaseline builds a lookup index over the given points.
func NewBaseline(points []Point) *Baseline {
	m := make(map[[2]int]Point, len(points))
	for _, p := range points {
		m[[2]int{p.TWSBin, p.TWABin}] = p
	}
	return &Baseline{points: m}
}

// Target returns the baseline cell for the given true wind, if one exists
// with at least minSessions distinct sessions behind it. The threshold here
// is independent of the one used at build time.
func (b *Baseline) Target(tws, twa float64, minSessions int) (Point, bool) {
	p, ok := b.points[[2]int{TWSBin(tws), TWABin(twa)}]
	if !ok || p.SessionCount < minSessions {
		return Point{}, false
	}
	return p, true
}
