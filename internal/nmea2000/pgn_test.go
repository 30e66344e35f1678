package nmea2000

import "testing"

// arbID builds a 29-bit identifier from its J1939 parts.
func arbID(priority, dataPage, pf, ps, src uint32) uint32 {
	return priority<<26 | dataPage<<24 | pf<<16 | ps<<8 | src
}

func TestExtractPGN_PDU2Broadcast(t *testing.T) {
	// 127250 (0x1F112): data page 1, PF 0xF1, PS 0x12.
	id := arbID(2, 1, 0xF1, 0x12, 0x23)
	if got := ExtractPGN(id); got != PGNVesselHeading {
		t.Fatalf("pgn=%d want %d", got, PGNVesselHeading)
	}

	// 130306 (0x1FD02): data page 1, PF 0xFD, PS 0x02.
	id = arbID(6, 1, 0xFD, 0x02, 0x42)
	if got := ExtractPGN(id); got != PGNWindData {
		t.Fatalf("pgn=%d want %d", got, PGNWindData)
	}
}

func TestExtractPGN_PDU1ExcludesDestination(t *testing.T) {
	// PF < 240: the PS byte is a destination address, not part of the PGN.
	for _, ps := range []uint32{0x00, 0x12, 0xFE, 0xFF} {
		id := arbID(3, 0, 0xEA, ps, 0x10)
		if got := ExtractPGN(id); got != 0xEA00 {
			t.Fatalf("ps=%#x pgn=%#x want 0xEA00", ps, got)
		}
	}
}

func TestExtractPGN_DestinationIdempotence(t *testing.T) {
	a := ExtractPGN(arbID(0, 1, 0x80, 0x01, 0x05))
	b := ExtractPGN(arbID(0, 1, 0x80, 0xC8, 0x05))
	if a != b {
		t.Fatalf("PDU1 PGNs differ across destinations: %#x vs %#x", a, b)
	}
}

func TestExtractPGN_PriorityBitsIgnored(t *testing.T) {
	low := arbID(0, 1, 0xF1, 0x12, 0x23)
	high := arbID(7, 1, 0xF1, 0x12, 0x23)
	if ExtractPGN(low) != ExtractPGN(high) {
		t.Fatalf("priority bits leaked into PGN")
	}
}

func TestSourceAddr(t *testing.T) {
	if got := SourceAddr(arbID(2, 1, 0xF1, 0x12, 0xA7)); got != 0xA7 {
		t.Fatalf("source=%#x want 0xA7", got)
	}
}
