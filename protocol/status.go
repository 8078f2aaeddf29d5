package protocol

import "encoding/binary"

// StatusLen is the exact size of an FPGA status datagram.
const StatusLen = 13

// FpgaStatus is the parsed 13-byte ACK the FPGA emits, either in answer to
// CmdGetStatus or as an unsolicited echo after a blit.
type FpgaStatus struct {
	FrameEcho  uint32
	VCountEcho uint16
	Frame      uint32
	VCount     uint16

	VRAMReady    bool
	VRAMEndFrame bool
	VRAMSynced   bool
	VGAFrameskip bool
	VGAVBlank    bool
	VGAField1    bool
	AudioActive  bool
	VRAMQueue    bool
}

// ParseStatus decodes a status datagram. Datagrams shorter than StatusLen are
// discarded; bytes beyond the first 13 are ignored.
func ParseStatus(b []byte) (FpgaStatus, bool) {
	if len(b) < StatusLen {
		return FpgaStatus{}, false
	}

	bits := b[12]

	return FpgaStatus{
		FrameEcho:  binary.LittleEndian.Uint32(b[0:]),
		VCountEcho: binary.LittleEndian.Uint16(b[4:]),
		Frame:      binary.LittleEndian.Uint32(b[6:]),
		VCount:     binary.LittleEndian.Uint16(b[10:]),

		VRAMReady:    bits&(1<<0) != 0,
		VRAMEndFrame: bits&(1<<1) != 0,
		VRAMSynced:   bits&(1<<2) != 0,
		VGAFrameskip: bits&(1<<3) != 0,
		VGAVBlank:    bits&(1<<4) != 0,
		VGAField1:    bits&(1<<5) != 0,
		AudioActive:  bits&(1<<6) != 0,
		VRAMQueue:    bits&(1<<7) != 0,
	}, true
}
