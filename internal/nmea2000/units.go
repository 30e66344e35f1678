package nmea2000

import "math"

const (
	radToDeg     = 180.0 / math.Pi
	mpsToKtsRate = 1.94384449
	kelvinOffset = 273.15
)

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * radToDeg }

// MpsToKts converts metres per second to knots.
func MpsToKts(mps float64) float64 { return mps * mpsToKtsRate }

// KelvinToCelsius converts Kelvin to degrees Celsius.
func KelvinToCelsius(k float64) float64 { return k - kelvinOffset }
