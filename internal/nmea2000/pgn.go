package nmea2000

// Supported NMEA 2000 Parameter Group Numbers.
const (
	PGNVesselHeading     uint32 = 127250
	PGNSpeedThroughWater uint32 = 128259
	PGNWaterDepth        uint32 = 128267
	PGNPositionRapid     uint32 = 129025
	PGNCOGSOGRapid       uint32 = 129026
	PGNWindData          uint32 = 130306
	PGNEnvironmental     uint32 = 130310
)

// ExtractPGN derives the PGN from a 29-bit J1939 extended CAN identifier.
//
// Layout of the identifier:
//
//	bits 28-26  priority
//	bit  25     reserved
//	bit  24     data page
//	bits 23-16  PDU format (PF)
//	bits 15-8   PDU specific (PS)
//	bits 7-0    source address
//
// For PDU2 (PF >= 240, broadcast) the PS byte belongs to the PGN. For PDU1
// (PF < 240, addressed) the PS byte is a destination address and is excluded,
// so frames that differ only in destination yield the same PGN.
func ExtractPGN(arbitrationID uint32) uint32 {
	dataPage := (arbitrationID >> 24) & 0x1
	pduFormat := (arbitrationID >> 16) & 0xFF
	pduSpecific := (arbitrationID >> 8) & 0xFF

	if pduFormat >= 240 {
		return dataPage<<16 | pduFormat<<8 | pduSpecific
	}
	return dataPage<<16 | pduFormat<<8
}

// SourceAddr returns the source address byte of an extended CAN identifier.
func SourceAddr(arbitrationID uint32) uint8 {
	return uint8(arbitrationID & 0xFF)
}
