package protocol

import (
	"encoding/binary"
	"math"
)

// Decoders for the host-to-FPGA command packets. The library never receives
// these itself; they exist for FPGA stand-ins in tests and tooling that wants
// to observe a stream.

// InitInfo is the decoded CmdInit payload.
type InitInfo struct {
	LZ4On         bool
	SoundRate     SoundRate
	SoundChannels SoundChannels
	RGBMode       RGBMode
}

// BlitHeader is the decoded header of any of the three blit variants.
type BlitHeader struct {
	Frame     uint32
	Field     uint8
	VsyncLine uint16

	Compressed     bool
	CompressedSize uint32
	Delta          bool
}

// DecodeInit decodes a 5-byte CmdInit packet.
func DecodeInit(b []byte) (InitInfo, bool) {
	if len(b) != 5 || b[0] != CmdInit {
		return InitInfo{}, false
	}
	return InitInfo{
		LZ4On:         b[1] != 0,
		SoundRate:     SoundRate(b[2]),
		SoundChannels: SoundChannels(b[3]),
		RGBMode:       RGBMode(b[4]),
	}, true
}

// DecodeSwitchRes decodes a 26-byte CmdSwitchRes packet.
func DecodeSwitchRes(b []byte) (Modeline, bool) {
	if len(b) != 26 || b[0] != CmdSwitchRes {
		return Modeline{}, false
	}
	return Modeline{
		PixelClock: math.Float64frombits(binary.LittleEndian.Uint64(b[1:])),
		HActive:    binary.LittleEndian.Uint16(b[9:]),
		HBegin:     binary.LittleEndian.Uint16(b[11:]),
		HEnd:       binary.LittleEndian.Uint16(b[13:]),
		HTotal:     binary.LittleEndian.Uint16(b[15:]),
		VActive:    binary.LittleEndian.Uint16(b[17:]),
		VBegin:     binary.LittleEndian.Uint16(b[19:]),
		VEnd:       binary.LittleEndian.Uint16(b[21:]),
		VTotal:     binary.LittleEndian.Uint16(b[23:]),
		Interlaced: b[25] != 0,
	}, true
}

// DecodeAudio decodes a 3-byte CmdAudio header.
func DecodeAudio(b []byte) (uint16, bool) {
	if len(b) != 3 || b[0] != CmdAudio {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[1:]), true
}

// DecodeBlitHeader decodes an 8-, 12-, or 13-byte blit header.
func DecodeBlitHeader(b []byte) (BlitHeader, bool) {
	switch len(b) {
	case 8, 12, 13:
	default:
		return BlitHeader{}, false
	}
	if b[0] != CmdBlit {
		return BlitHeader{}, false
	}

	h := BlitHeader{
		Frame:     binary.LittleEndian.Uint32(b[1:]),
		Field:     b[5],
		VsyncLine: binary.LittleEndian.Uint16(b[6:]),
	}

	if len(b) >= 12 {
		h.Compressed = true
		h.CompressedSize = binary.LittleEndian.Uint32(b[8:])
	}
	if len(b) == 13 {
		h.Delta = b[12] != 0
	}

	return h, true
}
