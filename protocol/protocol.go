// Package protocol builds and parses the fixed-layout UDP packets spoken by
// the Groovy_MiSTer core. All multi-byte integers are little-endian; the pixel
// clock travels as an IEEE 754 binary64.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command opcodes. The opcode is always the first byte of a datagram sent to
// the FPGA's command port.
const (
	CmdClose      = 1
	CmdInit       = 2
	CmdSwitchRes  = 3
	CmdAudio      = 4
	CmdGetStatus  = 5
	CmdBlit       = 7
	CmdGetVersion = 8
)

// RGBMode selects the pixel format of blitted frames.
type RGBMode uint8

const (
	BGR888 RGBMode = iota
	BGRA8888
	RGB565
)

// BytesPerPixel returns the frame-buffer stride per pixel for the mode.
func (m RGBMode) BytesPerPixel() int {
	switch m {
	case BGRA8888:
		return 4
	case RGB565:
		return 2
	default:
		return 3
	}
}

func (m RGBMode) Valid() bool {
	return m <= RGB565
}

// SoundRate selects the PCM sample rate streamed with CmdAudio.
type SoundRate uint8

const (
	SoundOff SoundRate = iota
	Sound22050
	Sound44100
	Sound48000
)

// Hz returns the sample rate in hertz, 0 when sound is off.
func (r SoundRate) Hz() int {
	switch r {
	case Sound22050:
		return 22050
	case Sound44100:
		return 44100
	case Sound48000:
		return 48000
	default:
		return 0
	}
}

func (r SoundRate) Valid() bool {
	return r <= Sound48000
}

// SoundChannels selects the PCM channel layout.
type SoundChannels uint8

const (
	ChannelsOff SoundChannels = iota
	ChannelsMono
	ChannelsStereo
)

// Count returns the number of interleaved channels, 0 when sound is off.
func (c SoundChannels) Count() int {
	if c > ChannelsStereo {
		return 0
	}
	return int(c)
}

func (c SoundChannels) Valid() bool {
	return c <= ChannelsStereo
}

// LZ4Mode selects the host-side compression strategy. The firmware only
// distinguishes compressed from raw; every variant beyond that is a host-side
// choice, so the init packet clamps the mode to one bit.
type LZ4Mode uint8

const (
	LZ4Off LZ4Mode = iota
	LZ4
	LZ4Delta
	LZ4HC
	LZ4HCDelta
	LZ4Adaptive
	LZ4AdaptiveDelta
)

func (m LZ4Mode) Valid() bool {
	return m <= LZ4AdaptiveDelta
}

// Enabled reports whether any compression happens at all.
func (m LZ4Mode) Enabled() bool {
	return m != LZ4Off
}

// Delta reports whether frames are delta-encoded against the previous frame
// of the same field.
func (m LZ4Mode) Delta() bool {
	return m == LZ4Delta || m == LZ4HCDelta || m == LZ4AdaptiveDelta
}

// HC reports whether the high-compression block encoder is used.
func (m LZ4Mode) HC() bool {
	return m == LZ4HC || m == LZ4HCDelta
}

// Adaptive reports whether the encoder picks fast or HC per frame.
func (m LZ4Mode) Adaptive() bool {
	return m == LZ4Adaptive || m == LZ4AdaptiveDelta
}

// Modeline holds the CRT timing parameters of a display mode. It is both the
// payload of CmdSwitchRes and the input to the timing math.
type Modeline struct {
	PixelClock float64 // MHz

	HActive uint16
	HBegin  uint16
	HEnd    uint16
	HTotal  uint16

	VActive uint16
	VBegin  uint16
	VEnd    uint16
	VTotal  uint16

	Interlaced bool
}

// Validate checks the ordering invariants the FPGA relies on.
func (m Modeline) Validate() error {
	if m.PixelClock <= 0 {
		return fmt.Errorf("pixel clock %f out of range", m.PixelClock)
	}
	if !(m.HActive <= m.HBegin && m.HBegin < m.HEnd && m.HEnd <= m.HTotal) {
		return fmt.Errorf("horizontal timings out of order: %d %d %d %d",
			m.HActive, m.HBegin, m.HEnd, m.HTotal)
	}
	if !(m.VActive <= m.VBegin && m.VBegin < m.VEnd && m.VEnd <= m.VTotal) {
		return fmt.Errorf("vertical timings out of order: %d %d %d %d",
			m.VActive, m.VBegin, m.VEnd, m.VTotal)
	}
	return nil
}

// Close encodes a CmdClose packet.
func Close() []byte {
	return []byte{CmdClose}
}

// GetStatus encodes a CmdGetStatus packet. The FPGA answers with a 13-byte
// status datagram.
func GetStatus() []byte {
	return []byte{CmdGetStatus}
}

// GetVersion encodes a CmdGetVersion packet.
func GetVersion() []byte {
	return []byte{CmdGetVersion}
}

// Init encodes a CmdInit packet. The on-wire LZ4 byte is clamped to one bit:
// the firmware only needs to know whether blit payloads are compressed.
func Init(lz4 LZ4Mode, rate SoundRate, channels SoundChannels, rgb RGBMode) []byte {
	b := make([]byte, 5)
	b[0] = CmdInit
	if lz4.Enabled() {
		b[1] = 1
	}
	b[2] = uint8(rate)
	b[3] = uint8(channels)
	b[4] = uint8(rgb)
	return b
}

// SwitchRes encodes a CmdSwitchRes packet carrying the full modeline.
func SwitchRes(m Modeline) []byte {
	b := make([]byte, 26)
	b[0] = CmdSwitchRes
	binary.LittleEndian.PutUint64(b[1:], math.Float64bits(m.PixelClock))
	binary.LittleEndian.PutUint16(b[9:], m.HActive)
	binary.LittleEndian.PutUint16(b[11:], m.HBegin)
	binary.LittleEndian.PutUint16(b[13:], m.HEnd)
	binary.LittleEndian.PutUint16(b[15:], m.HTotal)
	binary.LittleEndian.PutUint16(b[17:], m.VActive)
	binary.LittleEndian.PutUint16(b[19:], m.VBegin)
	binary.LittleEndian.PutUint16(b[21:], m.VEnd)
	binary.LittleEndian.PutUint16(b[23:], m.VTotal)
	if m.Interlaced {
		b[25] = 1
	}
	return b
}

// Audio encodes a CmdAudio header. The PCM payload follows in separate
// MTU-bounded datagrams.
func Audio(sampleBytes uint16) []byte {
	b := make([]byte, 3)
	b[0] = CmdAudio
	binary.LittleEndian.PutUint16(b[1:], sampleBytes)
	return b
}

// BlitRaw encodes the 8-byte header of an uncompressed frame.
func BlitRaw(frame uint32, field uint8, vsyncLine uint16) []byte {
	b := make([]byte, 8)
	b[0] = CmdBlit
	binary.LittleEndian.PutUint32(b[1:], frame)
	b[5] = field
	binary.LittleEndian.PutUint16(b[6:], vsyncLine)
	return b
}

// BlitLZ4 encodes the 12-byte header of an LZ4-compressed frame. Its first 8
// bytes match BlitRaw.
func BlitLZ4(frame uint32, field uint8, vsyncLine uint16, compressedSize uint32) []byte {
	b := make([]byte, 12)
	copy(b, BlitRaw(frame, field, vsyncLine))
	binary.LittleEndian.PutUint32(b[8:], compressedSize)
	return b
}

// BlitLZ4Delta encodes the 13-byte header of an LZ4-compressed delta frame.
// Its first 12 bytes match BlitLZ4; the trailing byte tells the FPGA to add
// the decompressed payload onto its previous frame instead of replacing it.
func BlitLZ4Delta(frame uint32, field uint8, vsyncLine uint16, compressedSize uint32) []byte {
	b := make([]byte, 13)
	copy(b, BlitLZ4(frame, field, vsyncLine, compressedSize))
	b[12] = 1
	return b
}
