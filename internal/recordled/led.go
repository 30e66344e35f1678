// Package recordled drives the cockpit recording indicator: a single LED
// that is lit while a race or practice session is being logged.
package recordled

// LED is a digital output holding the indicator state.
type LED interface {
	Set(on bool) error
	Close() error
}

// Open requests the LED line. Returns an error on platforms without the
// Linux GPIO character device.
func Open(chip string, line int) (LED, error) {
	return openLED(chip, line)
}
