package sml

import "github.com/snksoft/crc"

// messageCRCParams is the X.25 CRC used to protect each SML message's body.
// Distinct from the transport frame's CRC only in how the digest is placed
// on the wire: the message-level CRC is byte-swapped before comparison,
// the transport CRC is written little-endian.
var messageCRCParams = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	Init:       0xFFFF,
	ReflectIn:  true,
	ReflectOut: true,
	FinalXor:   0xFFFF,
	Name:       "X-25",
}

func messageChecksum(data []byte) uint16 {
	return uint16(crc.CalculateCRC(messageCRCParams, data))
}

func swapBytes16(v uint16) uint16 {
	return v<<8 | v>>8
}
