//go:build linux

package canbus

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// canFrameSize is the size of the classic struct can_frame on the wire:
// 4 bytes id, 1 byte dlc, 3 bytes padding, 8 bytes data.
const canFrameSize = 16

type socketCAN struct {
	fd   int
	name string
}

func openSocketCAN(ifname string) (*socketCAN, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("canbus: interface %s: %w", ifname, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %s: %w", ifname, err)
	}

	return &socketCAN{fd: fd, name: ifname}, nil
}

func (s *socketCAN) Close() error {
	return unix.Close(s.fd)
}

// ReadFrame blocks until one frame arrives. Non-extended (11-bit) frames are
// skipped; NMEA 2000 only uses the 29-bit format.
func (s *socketCAN) ReadFrame() (Frame, error) {
	buf := make([]byte, canFrameSize)
	for {
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			return Frame{}, os.NewSyscallError("read", err)
		}
		if n < canFrameSize {
			continue
		}

		id := binary.LittleEndian.Uint32(buf[0:4])
		if id&unix.CAN_EFF_FLAG == 0 {
			continue
		}

		dlc := int(buf[4])
		if dlc > 8 {
			dlc = 8
		}
		data := make([]byte, dlc)
		copy(data, buf[8:8+dlc])

		return Frame{
			ArbitrationID: id & unix.CAN_EFF_MASK,
			Data:          data,
			Timestamp:     time.Now().UTC(),
		}, nil
	}
}
