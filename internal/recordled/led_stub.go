//go:build !linux

package recordled

import "fmt"

func openLED(chip string, offset int) (LED, error) {
	return nil, fmt.Errorf("recordled: gpio unsupported on this platform")
}
