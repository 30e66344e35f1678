package canbus

import (
	"bytes"
	"testing"
	"time"
)

func TestParseFramePayload_HexData(t *testing.T) {
	payload := []byte(`{"id":233904402,"ext":true,"data":"00d83200ffff7f00","ts":1723315800123}`)
	frame, ok := ParseFramePayload(payload)
	if !ok {
		t.Fatalf("expected frame")
	}
	if frame.ArbitrationID != 233904402&0x1FFFFFFF {
		t.Fatalf("id=%#x", frame.ArbitrationID)
	}
	if !bytes.Equal(frame.Data, []byte{0x00, 0xD8, 0x32, 0x00, 0xFF, 0xFF, 0x7F, 0x00}) {
		t.Fatalf("data=%x", frame.Data)
	}
	want := time.UnixMilli(1723315800123).UTC()
	if !frame.Timestamp.Equal(want) {
		t.Fatalf("ts=%v want %v", frame.Timestamp, want)
	}
}

func TestParseFramePayload_ArrayData(t *testing.T) {
	payload := []byte(`{"id":100,"data":[0,216,50,0]}`)
	frame, ok := ParseFramePayload(payload)
	if !ok {
		t.Fatalf("expected frame")
	}
	if !bytes.Equal(frame.Data, []byte{0, 216, 50, 0}) {
		t.Fatalf("data=%x", frame.Data)
	}
}

func TestParseFramePayload_MissingTimestampFallsBack(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	frame, ok := ParseFramePayload([]byte(`{"id":1,"data":"00"}`))
	after := time.Now().UTC().Add(time.Second)
	if !ok {
		t.Fatalf("expected frame")
	}
	if frame.Timestamp.Before(before) || frame.Timestamp.After(after) {
		t.Fatalf("timestamp %v not near now", frame.Timestamp)
	}
}

func TestParseFramePayload_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", `{oops`},
		{"non-extended", `{"id":1,"ext":false,"data":"00"}`},
		{"bad hex", `{"id":1,"data":"zz"}`},
		{"oversized", `{"id":1,"data":"000102030405060708"}`},
		{"byte out of range", `{"id":1,"data":[300]}`},
		{"no data", `{"id":1}`},
	}
	for _, tc := range cases {
		if _, ok := ParseFramePayload([]byte(tc.payload)); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestParseFramePayload_MasksTo29Bits(t *testing.T) {
	// High bits above the 29-bit identifier must be stripped.
	frame, ok := ParseFramePayload([]byte(`{"id":4294967295,"data":"00"}`))
	if !ok {
		t.Fatalf("expected frame")
	}
	if frame.ArbitrationID != 0x1FFFFFFF {
		t.Fatalf("id=%#x want 0x1FFFFFFF", frame.ArbitrationID)
	}
}
