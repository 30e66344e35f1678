// Package canbus delivers raw NMEA 2000 CAN frames from either a local
// socketcan interface or an MQTT gateway topic. Decoding lives in nmea2000;
// this package only moves frames.
package canbus

import "time"

// Frame is one raw extended-format CAN frame. Non-extended frames are
// filtered out at the source and never reach the decoder.
type Frame struct {
	ArbitrationID uint32
	Data          []byte
	Timestamp     time.Time
}
