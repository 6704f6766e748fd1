package transport

import "github.com/snksoft/crc"

// x25Params is CRC-16/X.25: poly 0x1021, init 0xFFFF, reflected in and out,
// xorout 0xFFFF. This is the checksum used both by the transport trailer
// (little-endian on the wire) and, independently, by the SML message body
// (big-endian on the wire and byte-swapped before comparison).
var x25Params = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	Init:       0xFFFF,
	ReflectIn:  true,
	ReflectOut: true,
	FinalXor:   0xFFFF,
	Name:       "X-25",
}

// crcState is an incremental CRC-16/X.25 accumulator, fed one chunk at a
// time as frame bytes are consumed or produced.
type crcState struct {
	h *crc.Hash
}

func newCRCState() crcState {
	return crcState{h: crc.NewHash(x25Params)}
}

func (c crcState) update(b []byte) {
	c.h.Update(b)
}

func (c crcState) current() uint16 {
	return uint16(c.h.CRC16())
}

// clone snapshots the running digest so it can be finalized without
// disturbing the original, mirroring the reference decoder swapping out a
// clone of its digest at the end marker.
func (c crcState) clone() crcState {
	cp := *c.h
	return crcState{h: &cp}
}

// checksumX25 computes the CRC-16/X.25 of data in one shot. Encode uses it
// for the transport trailer, since it already holds the whole frame in its
// buffer; the decoder and StreamEncoder use the incremental crcState.
func checksumX25(data []byte) uint16 {
	return uint16(crc.CalculateCRC(x25Params, data))
}
