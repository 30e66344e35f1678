//go:build linux

package recordled

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

type gpiodLED struct {
	line *gpiocdev.Line
}

func openLED(chip string, offset int) (LED, error) {
	if offset < 0 {
		return nil, fmt.Errorf("recordled: invalid gpio line %d", offset)
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("saillogger-record"))
	if err != nil {
		return nil, fmt.Errorf("recordled: request %s line %d: %w", chip, offset, err)
	}
	return &gpiodLED{line: line}, nil
}

func (l *gpiodLED) Set(on bool) error {
	if l == nil || l.line == nil {
		return fmt.Errorf("recordled: not initialized")
	}
	v := 0
	if on {
		v = 1
	}
	return l.line.SetValue(v)
}

func (l *gpiodLED) Close() error {
	if l == nil || l.line == nil {
		return nil
	}
	// Leave the indicator off.
	_ = l.line.SetValue(0)
	err := l.line.Close()
	l.line = nil
	return err
}
