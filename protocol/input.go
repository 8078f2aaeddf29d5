package protocol

import "encoding/binary"

// Input packet sizes on the FPGA's input port. The packet kind is implied by
// its length; anything else is discarded.
const (
	JoyDigitalLen  = 9
	JoyAnalogLen   = 17
	Ps2KeyboardLen = 37
	Ps2FullLen     = 41
)

// JoystickState is the latest joystick snapshot captured on the FPGA. Analog
// axes are zero for purely digital packets.
type JoystickState struct {
	Frame uint32
	Order uint8

	Joy1 uint16
	Joy2 uint16

	Joy1X, Joy1Y   int8
	Joy2X, Joy2Y   int8
	Joy1RX, Joy1RY int8
	Joy2RX, Joy2RY int8
}

// Ps2State is the latest PS/2 keyboard and mouse snapshot. Keys is a 256-bit
// scancode bitfield; bit n lives at byte n/8, bit n%8.
type Ps2State struct {
	Frame uint32
	Order uint8

	Keys [32]byte

	MouseButtons uint8
	MouseX       int8
	MouseY       int8
	MouseZ       int8
}

// KeyDown reports whether scancode n is held.
func (s Ps2State) KeyDown(n uint8) bool {
	return s.Keys[n/8]&(1<<(n%8)) != 0
}

// ParseJoystick decodes a 9- or 17-byte joystick packet.
func ParseJoystick(b []byte) (JoystickState, bool) {
	if len(b) != JoyDigitalLen && len(b) != JoyAnalogLen {
		return JoystickState{}, false
	}

	st := JoystickState{
		Frame: binary.LittleEndian.Uint32(b[0:]),
		Order: b[4],
		Joy1:  binary.LittleEndian.Uint16(b[5:]),
		Joy2:  binary.LittleEndian.Uint16(b[7:]),
	}

	if len(b) == JoyAnalogLen {
		st.Joy1X = int8(b[9])
		st.Joy1Y = int8(b[10])
		st.Joy2X = int8(b[11])
		st.Joy2Y = int8(b[12])
		st.Joy1RX = int8(b[13])
		st.Joy1RY = int8(b[14])
		st.Joy2RX = int8(b[15])
		st.Joy2RY = int8(b[16])
	}

	return st, true
}

// ParsePs2 decodes a 37- or 41-byte PS/2 packet.
func ParsePs2(b []byte) (Ps2State, bool) {
	if len(b) != Ps2KeyboardLen && len(b) != Ps2FullLen {
		return Ps2State{}, false
	}

	st := Ps2State{
		Frame: binary.LittleEndian.Uint32(b[0:]),
		Order: b[4],
	}
	copy(st.Keys[:], b[5:37])

	if len(b) == Ps2FullLen {
		st.MouseButtons = b[37]
		st.MouseX = int8(b[38])
		st.MouseY = int8(b[39])
		st.MouseZ = int8(b[40])
	}

	return st, true
}
