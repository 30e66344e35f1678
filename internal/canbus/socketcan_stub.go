//go:build !linux

package canbus

import "fmt"

type socketCAN struct{}

func openSocketCAN(ifname string) (*socketCAN, error) {
	return nil, fmt.Errorf("canbus: socketcan not supported on this platform")
}

func (s *socketCAN) Close() error { return nil }

func (s *socketCAN) ReadFrame() (Frame, error) {
	return Frame{}, fmt.Errorf("canbus: socketcan not supported on this platform")
}
